// Package msgraph implements cloud.Provider against the Microsoft Graph
// driveItem API, covering both SharePoint and OneDrive source types.
// Both use the same driveItem calls against the token owner's default
// drive (/me/drive); no per-drive ID is resolved or passed.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package msgraph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	docxsync "github.com/NVIDIA/docx-mcp-storage/internal/sync"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const apiBase = "https://graph.microsoft.com/v1.0"

// Provider implements cloud.Provider for a single Graph drive kind.
// Construct one instance per SourceType (NewSharePoint, NewOneDrive); the
// two differ only in the source type and provider name they report.
type Provider struct {
	sourceType docxsync.SourceType
	name       string
	http       *http.Client
	catalog    catalog.Client
}

func NewSharePoint(cat catalog.Client) *Provider {
	return &Provider{sourceType: docxsync.SourceSharePoint, name: "sharepoint", http: &http.Client{Timeout: 30 * time.Second}, catalog: cat}
}

func NewOneDrive(cat catalog.Client) *Provider {
	return &Provider{sourceType: docxsync.SourceOneDrive, name: "onedrive", http: &http.Client{Timeout: 30 * time.Second}, catalog: cat}
}

func (p *Provider) Name() string                    { return p.name }
func (p *Provider) SourceType() docxsync.SourceType { return p.sourceType }

type driveItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ETag       string `json:"eTag"`
	CTag       string `json:"cTag"`
	LastModDTM string `json:"lastModifiedDateTime"`
	Folder     *struct{} `json:"folder"`
}

type driveChildren struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

func (p *Provider) doJSON(ctx context.Context, method, u, token string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errs.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errs.NotFound(p.name + " item")
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return errs.New(502, errs.CodeSyncFailed, fmt.Sprintf("%s graph error %d: %s", p.name, resp.StatusCode, data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *Provider) GetMetadata(ctx context.Context, token, fileID string) (*docxsync.Metadata, error) {
	u := fmt.Sprintf("%s/me/drive/items/%s", apiBase, url.PathEscape(fileID))
	var item driveItem
	if err := p.doJSON(ctx, http.MethodGet, u, token, nil, &item); err != nil {
		if e := errs.As(err); e != nil && e.Code == errs.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	var modified int64
	if t, err := time.Parse(time.RFC3339, item.LastModDTM); err == nil {
		modified = t.Unix()
	}
	etag := item.CTag
	return &docxsync.Metadata{
		SizeBytes:  uint64(item.Size),
		ModifiedAt: modified,
		VersionID:  &etag,
	}, nil
}

func (p *Provider) DownloadFile(ctx context.Context, token, fileID string) ([]byte, error) {
	u := fmt.Sprintf("%s/me/drive/items/%s/content", apiBase, url.PathEscape(fileID))
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
		return nil, errs.NotFound(p.name + " item")
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, errs.New(502, errs.CodeSyncFailed, fmt.Sprintf("%s download error %d: %s", p.name, resp.StatusCode, data))
	}
	return io.ReadAll(resp.Body)
}

func (p *Provider) UpdateFile(ctx context.Context, token, fileID string, data []byte) error {
	u := fmt.Sprintf("%s/me/drive/items/%s/content", apiBase, url.PathEscape(fileID))
	return p.doJSON(ctx, http.MethodPut, u, token, newReader(data), nil)
}

func (p *Provider) ListFiles(ctx context.Context, token, folderID, pageToken string, pageSize int) (docxsync.FileListResult, error) {
	u := fmt.Sprintf("%s/me/drive/root/children?$top=%d", apiBase, pageSize)
	if folderID != "" {
		u = fmt.Sprintf("%s/me/drive/items/%s/children?$top=%d", apiBase, url.PathEscape(folderID), pageSize)
	}
	if pageToken != "" {
		u = pageToken
	}
	var children driveChildren
	if err := p.doJSON(ctx, http.MethodGet, u, token, nil, &children); err != nil {
		return docxsync.FileListResult{}, err
	}
	files := make([]docxsync.FileEntry, 0, len(children.Value))
	for _, it := range children.Value {
		files = append(files, docxsync.FileEntry{
			FileID:   it.ID,
			Name:     it.Name,
			IsFolder: it.Folder != nil,
			Size:     uint64(it.Size),
		})
	}
	return docxsync.FileListResult{Files: files, NextPageToken: children.NextLink}, nil
}

func (p *Provider) ListConnections(ctx context.Context, tenant string) ([]docxsync.ConnectionInfo, error) {
	conns, err := p.catalog.ListConnections(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]docxsync.ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		if c.Provider != p.name {
			continue
		}
		out = append(out, docxsync.ConnectionInfo{ConnectionID: c.ConnectionID, Provider: c.Provider, DisplayName: c.DisplayName})
	}
	return out, nil
}

func newReader(data []byte) io.Reader { return bytes.NewReader(data) }
