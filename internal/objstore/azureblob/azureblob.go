// Package azureblob implements objstore.Store against Azure Blob Storage,
// using If-Match / If-None-Match conditional headers as the CAS primitive.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package azureblob

import (
	"bytes"
	"context"
	"io"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
)

type Store struct {
	container azblob.ContainerURL
	retry     objstore.RetryPolicy
}

func New(container azblob.ContainerURL) *Store {
	return &Store{container: container, retry: objstore.DefaultRetryPolicy()}
}

func isTransient(err error) bool {
	se, ok := err.(azblob.StorageError)
	if !ok {
		return false
	}
	code := se.Response().StatusCode
	return code == 429 || code >= 500
}

func isPreconditionFailed(err error) bool {
	se, ok := err.(azblob.StorageError)
	if !ok {
		return false
	}
	return se.Response().StatusCode == 412
}

func isNotFound(err error) bool {
	se, ok := err.(azblob.StorageError)
	if !ok {
		return false
	}
	return se.Response().StatusCode == 404
}

func (s *Store) blob(key string) azblob.BlockBlobURL {
	return s.container.NewBlockBlobURL(key)
}

func (s *Store) Get(ctx context.Context, key string) (objstore.Object, error) {
	resp, err := s.blob(key).Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if isNotFound(err) {
		return objstore.Object{}, errs.NotFound(key)
	}
	if err != nil {
		return objstore.Object{}, errs.Internal(err)
	}
	body := resp.Body(azblob.RetryReaderOptions{})
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return objstore.Object{}, errs.Internal(err)
	}
	return objstore.Object{Bytes: data, ETag: string(resp.ETag())}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	return s.upload(ctx, key, data, azblob.BlobAccessConditions{})
}

func (s *Store) PutIfMatch(ctx context.Context, key string, data []byte, etag string) (string, error) {
	cond := azblob.BlobAccessConditions{
		ModifiedAccessConditions: azblob.ModifiedAccessConditions{IfMatch: azblob.ETag(etag)},
	}
	return s.upload(ctx, key, data, cond)
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, data []byte) (string, error) {
	cond := azblob.BlobAccessConditions{
		ModifiedAccessConditions: azblob.ModifiedAccessConditions{IfNoneMatch: azblob.ETagAny},
	}
	return s.upload(ctx, key, data, cond)
}

func (s *Store) upload(ctx context.Context, key string, data []byte, cond azblob.BlobAccessConditions) (string, error) {
	var etag string
	err := objstore.WithRetry(ctx, s.retry, isTransient, func() error {
		resp, err := s.blob(key).Upload(ctx, bytes.NewReader(data), azblob.BlobHTTPHeaders{}, azblob.Metadata{},
			cond, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{}, azblob.ImmutabilityPolicyOptions{})
		if err != nil {
			return err
		}
		etag = string(resp.ETag())
		return nil
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return "", errs.PreconditionFailed(key)
		}
		return "", errs.Internal(err)
	}
	return etag, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	_, err := s.blob(key).Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errs.Internal(err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix, cursor string, limit int) (objstore.ListPage, error) {
	marker := azblob.Marker{}
	if cursor != "" {
		c := cursor
		marker.Val = &c
	}
	resp, err := s.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
		Prefix:     prefix,
		MaxResults: int32(limit),
	})
	if err != nil {
		return objstore.ListPage{}, errs.Internal(err)
	}
	page := objstore.ListPage{}
	for _, b := range resp.Segment.BlobItems {
		size := int64(0)
		if b.Properties.ContentLength != nil {
			size = *b.Properties.ContentLength
		}
		page.Entries = append(page.Entries, objstore.Entry{
			Key:      b.Name,
			Size:     size,
			Modified: b.Properties.LastModified,
		})
	}
	if resp.NextMarker.Val != nil {
		page.Cursor = *resp.NextMarker.Val
	}
	return page, nil
}
