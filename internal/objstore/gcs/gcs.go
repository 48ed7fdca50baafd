// Package gcs implements objstore.Store against Google Cloud Storage,
// using object generation preconditions as the CAS primitive.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package gcs

import (
	"context"
	"errors"
	"io"
	"strconv"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
)

func generationEtag(gen int64) string { return strconv.FormatInt(gen, 10) }

func parseGeneration(etag string) (int64, error) { return strconv.ParseInt(etag, 10, 64) }

type Store struct {
	bucket *gstorage.BucketHandle
	retry  objstore.RetryPolicy
}

func New(client *gstorage.Client, bucketName string) *Store {
	return &Store{bucket: client.Bucket(bucketName), retry: objstore.DefaultRetryPolicy()}
}

func isTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 429 || gerr.Code >= 500
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 412
	}
	return false
}

func (s *Store) Get(ctx context.Context, key string) (objstore.Object, error) {
	obj := s.bucket.Object(key)
	r, err := obj.NewReader(ctx)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return objstore.Object{}, errs.NotFound(key)
	}
	if err != nil {
		return objstore.Object{}, errs.Internal(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return objstore.Object{}, errs.Internal(err)
	}
	return objstore.Object{Bytes: data, ETag: generationEtag(r.Attrs.Generation)}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	return s.write(ctx, s.bucket.Object(key), data)
}

func (s *Store) PutIfMatch(ctx context.Context, key string, data []byte, etag string) (string, error) {
	gen, err := parseGeneration(etag)
	if err != nil {
		return "", errs.Internal(err)
	}
	return s.write(ctx, s.bucket.Object(key).If(gstorage.Conditions{GenerationMatch: gen}), data)
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, data []byte) (string, error) {
	return s.write(ctx, s.bucket.Object(key).If(gstorage.Conditions{DoesNotExist: true}), data)
}

func (s *Store) write(ctx context.Context, obj *gstorage.ObjectHandle, data []byte) (string, error) {
	var gen int64
	err := objstore.WithRetry(ctx, s.retry, isTransient, func() error {
		w := obj.NewWriter(ctx)
		if _, err := w.Write(data); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		gen = w.Attrs().Generation
		return nil
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return "", errs.PreconditionFailed(obj.ObjectName())
		}
		return "", errs.Internal(err)
	}
	return generationEtag(gen), nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	err := s.bucket.Object(key).Delete(ctx)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errs.Internal(err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix, cursor string, limit int) (objstore.ListPage, error) {
	it := s.bucket.Objects(ctx, &gstorage.Query{Prefix: prefix})
	page := objstore.ListPage{}
	count := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return objstore.ListPage{}, errs.Internal(err)
		}
		page.Entries = append(page.Entries, objstore.Entry{
			Key:      attrs.Name,
			Size:     attrs.Size,
			Modified: attrs.Updated,
		})
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	return page, nil
}
