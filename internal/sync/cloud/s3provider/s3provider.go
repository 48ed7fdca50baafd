// Package s3provider implements cloud.Provider over its own aws-sdk-go S3
// client so S3 and Cloudflare R2 (S3-compatible) external sources share
// the sync/watch machinery with Google Drive. Sync targets are user-owned
// buckets reached with the per-connection token; GetMetadata reports the
// object's ETag as its version ID and sets no content hash.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package s3provider

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	docxsync "github.com/NVIDIA/docx-mcp-storage/internal/sync"
)

// Provider implements cloud.Provider for plain S3 or R2 buckets. The
// endpoint and region are fixed per Provider (NewS3, NewR2); each sync
// target names only its bucket and key, as a "bucket/key" file ID.
type Provider struct {
	sourceType docxsync.SourceType
	name       string
	endpoint   string
	region     string
	catalog    catalog.Client
}

func NewS3(cat catalog.Client, region string) *Provider {
	return &Provider{sourceType: docxsync.SourceS3, name: "s3", region: region, catalog: cat}
}

func NewR2(cat catalog.Client, accountEndpoint string) *Provider {
	return &Provider{sourceType: docxsync.SourceR2, name: "r2", endpoint: accountEndpoint, region: "auto", catalog: cat}
}

func (p *Provider) Name() string                    { return p.name }
func (p *Provider) SourceType() docxsync.SourceType { return p.sourceType }

// client builds an S3 client for the Provider's region and endpoint,
// using the caller's bearer token as both the static access key ID and
// secret. A new client is built on every call.
func (p *Provider) client(token string) *s3.S3 {
	cfg := aws.NewConfig().
		WithRegion(p.region).
		WithCredentials(credentials.NewStaticCredentials(token, token, ""))
	if p.endpoint != "" {
		cfg = cfg.WithEndpoint(p.endpoint).WithS3ForcePathStyle(true)
	}
	sess := awssession.Must(awssession.NewSession(cfg))
	return s3.New(sess)
}

func splitBucketKey(path string) (bucket, key string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return path, ""
}

func (p *Provider) GetMetadata(_ context.Context, token, fileID string) (*docxsync.Metadata, error) {
	bucket, key := splitBucketKey(fileID)
	cli := p.client(token)
	out, err := cli.HeadObject(&s3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	var etag string
	if out.ETag != nil {
		etag = *out.ETag
	}
	var size uint64
	if out.ContentLength != nil {
		size = uint64(*out.ContentLength)
	}
	var modified int64
	if out.LastModified != nil {
		modified = out.LastModified.Unix()
	}
	return &docxsync.Metadata{SizeBytes: size, ModifiedAt: modified, VersionID: &etag}, nil
}

func (p *Provider) DownloadFile(_ context.Context, token, fileID string) ([]byte, error) {
	bucket, key := splitBucketKey(fileID)
	cli := p.client(token)
	out, err := cli.GetObject(&s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, errs.NotFound("s3 object")
		}
		return nil, errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	defer out.Body.Close()
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 32*1024)
	for {
		n, rerr := out.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return buf, nil
}

func (p *Provider) UpdateFile(_ context.Context, token, fileID string, data []byte) error {
	bucket, key := splitBucketKey(fileID)
	cli := p.client(token)
	_, err := cli.PutObject(&s3.PutObjectInput{Bucket: &bucket, Key: &key, Body: bytesReader(data)})
	if err != nil {
		return errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	return nil
}

func (p *Provider) ListFiles(_ context.Context, token, folderID, pageToken string, pageSize int) (docxsync.FileListResult, error) {
	bucket, prefix := splitBucketKey(folderID)
	cli := p.client(token)
	input := &s3.ListObjectsV2Input{
		Bucket:  &bucket,
		Prefix:  &prefix,
		MaxKeys: aws.Int64(int64(pageSize)),
	}
	if pageToken != "" {
		input.ContinuationToken = &pageToken
	}
	out, err := cli.ListObjectsV2(input)
	if err != nil {
		return docxsync.FileListResult{}, errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	files := make([]docxsync.FileEntry, 0, len(out.Contents))
	for _, obj := range out.Contents {
		var size uint64
		if obj.Size != nil {
			size = uint64(*obj.Size)
		}
		files = append(files, docxsync.FileEntry{FileID: *obj.Key, Name: *obj.Key, Size: size})
	}
	var next string
	if out.NextContinuationToken != nil {
		next = *out.NextContinuationToken
	}
	return docxsync.FileListResult{Files: files, NextPageToken: next}, nil
}

// ListConnections delegates to the catalog, same as the Google Drive
// provider: connection ownership lives outside the storage engine.
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

func bytesReader(data []byte) io.ReadSeeker { return bytes.NewReader(data) }

func isNotFound(err error) bool {
	type statusCoder interface{ Code() string }
	if sc, ok := err.(statusCoder); ok {
		return sc.Code() == s3.ErrCodeNoSuchKey || sc.Code() == "NotFound"
	}
	return false
}
