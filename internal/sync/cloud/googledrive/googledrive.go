// Package googledrive implements cloud.Provider against the Google Drive
// v3 REST API: metadata fetch, media upload, and file listing.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package googledrive

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	docxsync "github.com/NVIDIA/docx-mcp-storage/internal/sync"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func decodeJSON(r io.Reader, v interface{}) error { return json.NewDecoder(r).Decode(v) }
func newReader(data []byte) io.Reader             { return bytes.NewReader(data) }

const apiBase = "https://www.googleapis.com/drive/v3"
const uploadBase = "https://www.googleapis.com/upload/drive/v3"

type fileMetadata struct {
	ID              string `json:"id"`
	Size            string `json:"size"`
	ModifiedTime    string `json:"modifiedTime"`
	MD5Checksum     string `json:"md5Checksum"`
	HeadRevisionID  string `json:"headRevisionId"`
}

// Provider is a stateless Google Drive v3 client; the caller supplies a
// fresh bearer token per call via the token broker.
type Provider struct {
	http    *http.Client
	catalog catalog.Client
}

func New(cat catalog.Client) *Provider {
	return &Provider{http: &http.Client{Timeout: 30 * time.Second}, catalog: cat}
}

func (p *Provider) Name() string                       { return "google_drive" }
func (p *Provider) SourceType() docxsync.SourceType    { return docxsync.SourceGoogleDrive }

func (p *Provider) GetMetadata(ctx context.Context, token, fileID string) (*docxsync.Metadata, error) {
	u := fmt.Sprintf("%s/files/%s?fields=id,size,modifiedTime,md5Checksum,headRevisionId", apiBase, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.New(502, errs.CodeSyncFailed, fmt.Sprintf("google drive metadata error %d: %s", resp.StatusCode, body))
	}

	var m fileMetadata
	if err := decodeJSON(resp.Body, &m); err != nil {
		return nil, errs.Internal(err)
	}

	size, _ := strconv.ParseUint(m.Size, 10, 64)
	var modifiedAt int64
	if t, err := time.Parse(time.RFC3339, m.ModifiedTime); err == nil {
		modifiedAt = t.Unix()
	}
	var versionID *string
	if m.HeadRevisionID != "" {
		versionID = &m.HeadRevisionID
	}
	var contentHash []byte
	if m.MD5Checksum != "" {
		if decoded, err := hex.DecodeString(m.MD5Checksum); err == nil {
			contentHash = decoded
		}
	}

	return &docxsync.Metadata{
		SizeBytes:   size,
		ModifiedAt:  modifiedAt,
		VersionID:   versionID,
		ContentHash: contentHash,
	}, nil
}

func (p *Provider) DownloadFile(ctx context.Context, token, fileID string) ([]byte, error) {
	u := fmt.Sprintf("%s/files/%s?alt=media", apiBase, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errs.NotFound("google drive file")
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.New(502, errs.CodeSyncFailed, fmt.Sprintf("google drive download error %d: %s", resp.StatusCode, body))
	}
	return io.ReadAll(resp.Body)
}

func (p *Provider) UpdateFile(ctx context.Context, token, fileID string, data []byte) error {
	u := fmt.Sprintf("%s/files/%s?uploadType=media", uploadBase, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, newReader(data))
	if err != nil {
		return errs.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	req.ContentLength = int64(len(data))

	resp, err := p.http.Do(req)
	if err != nil {
		return errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return errs.New(502, errs.CodeSyncFailed, fmt.Sprintf("google drive upload error %d: %s", resp.StatusCode, body))
	}
	return nil
}

type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         string `json:"size"`
	ModifiedTime string `json:"modifiedTime"`
}

type fileListResponse struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

const folderMimeType = "application/vnd.google-apps.folder"

func (p *Provider) ListFiles(ctx context.Context, token, folderID, pageToken string, pageSize int) (docxsync.FileListResult, error) {
	if folderID == "" {
		folderID = "root"
	}
	q := url.Values{}
	q.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", folderID))
	q.Set("fields", "nextPageToken,files(id,name,mimeType,size,modifiedTime)")
	q.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/files?"+q.Encode(), nil)
	if err != nil {
		return docxsync.FileListResult{}, errs.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.http.Do(req)
	if err != nil {
		return docxsync.FileListResult{}, errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return docxsync.FileListResult{}, errs.New(502, errs.CodeSyncFailed, fmt.Sprintf("google drive list error %d: %s", resp.StatusCode, body))
	}

	var out fileListResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return docxsync.FileListResult{}, errs.Internal(err)
	}

	files := make([]docxsync.FileEntry, 0, len(out.Files))
	for _, f := range out.Files {
		size, _ := strconv.ParseUint(f.Size, 10, 64)
		files = append(files, docxsync.FileEntry{
			FileID:   f.ID,
			Name:     f.Name,
			IsFolder: f.MimeType == folderMimeType,
			Size:     size,
		})
	}
	return docxsync.FileListResult{Files: files, NextPageToken: out.NextPageToken}, nil
}

// ListConnections delegates to the catalog: connection records for this
// provider are owned by the external catalog, not by Drive itself.
func (p *Provider) ListConnections(ctx context.Context, tenant string) ([]docxsync.ConnectionInfo, error) {
	conns, err := p.catalog.ListConnections(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]docxsync.ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		if c.Provider != "google_drive" {
			continue
		}
		out = append(out, docxsync.ConnectionInfo{ConnectionID: c.ConnectionID, Provider: c.Provider, DisplayName: c.DisplayName})
	}
	return out, nil
}
