// Package s3 implements objstore.Store against an S3-compatible object
// store using conditional PUT (If-Match / If-None-Match) as the CAS
// primitive.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package s3

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
)

// Store wraps an s3.S3 client scoped to a single bucket.
type Store struct {
	client *s3.S3
	bucket string
	retry  objstore.RetryPolicy
}

func New(sess *session.Session, bucket string) *Store {
	return &Store{client: s3.New(sess), bucket: bucket, retry: objstore.DefaultRetryPolicy()}
}

func isTransient(err error) bool {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	switch aerr.Code() {
	case "RequestTimeout", "SlowDown", "InternalError", "ServiceUnavailable", "RequestTimeTooSkewed":
		return true
	case "PreconditionFailed":
		return false
	}
	if reqErr, ok := err.(awserr.RequestFailure); ok {
		code := reqErr.StatusCode()
		return code == 429 || code >= 500
	}
	return false
}

func isPreconditionFailed(err error) bool {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	return aerr.Code() == "PreconditionFailed" || aerr.Code() == "ConditionalRequestConflict"
}

func isNotFound(err error) bool {
	aerr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
}

func (s *Store) Get(ctx context.Context, key string) (objstore.Object, error) {
	var out *s3.GetObjectOutput
	err := objstore.WithRetry(ctx, s.retry, isTransient, func() error {
		var err error
		out, err = s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return objstore.Object{}, errs.NotFound(key)
		}
		return objstore.Object{}, errs.Internal(err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return objstore.Object{}, errs.Internal(err)
	}
	return objstore.Object{Bytes: data, ETag: unquote(aws.StringValue(out.ETag))}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	return s.put(ctx, key, data, nil, false)
}

func (s *Store) PutIfMatch(ctx context.Context, key string, data []byte, etag string) (string, error) {
	return s.put(ctx, key, data, aws.String(quote(etag)), false)
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, data []byte) (string, error) {
	return s.put(ctx, key, data, nil, true)
}

func (s *Store) put(ctx context.Context, key string, data []byte, ifMatch *string, ifNoneStar bool) (string, error) {
	var out *s3.PutObjectOutput
	err := objstore.WithRetry(ctx, s.retry, isTransient, func() error {
		in := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		}
		req, output := s.client.PutObjectRequest(in)
		req.SetContext(ctx)
		if ifMatch != nil {
			req.HTTPRequest.Header.Set("If-Match", *ifMatch)
		}
		if ifNoneStar {
			req.HTTPRequest.Header.Set("If-None-Match", "*")
		}
		err := req.Send()
		out = output
		return err
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return "", errs.PreconditionFailed(key)
		}
		return "", errs.Internal(err)
	}
	return unquote(aws.StringValue(out.ETag)), nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	existed := err == nil
	if err != nil && !isNotFound(err) {
		glog.V(3).Infof("s3: head before delete %s failed: %v", key, err)
	}
	err = objstore.WithRetry(ctx, s.retry, isTransient, func() error {
		_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return false, errs.Internal(err)
	}
	return existed, nil
}

func (s *Store) List(ctx context.Context, prefix, cursor string, limit int) (objstore.ListPage, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if limit > 0 {
		in.MaxKeys = aws.Int64(int64(limit))
	}
	if cursor != "" {
		in.ContinuationToken = aws.String(cursor)
	}
	var out *s3.ListObjectsV2Output
	err := objstore.WithRetry(ctx, s.retry, isTransient, func() error {
		var err error
		out, err = s.client.ListObjectsV2WithContext(ctx, in)
		return err
	})
	if err != nil {
		return objstore.ListPage{}, errs.Internal(err)
	}
	page := objstore.ListPage{}
	for _, obj := range out.Contents {
		page.Entries = append(page.Entries, objstore.Entry{
			Key:      aws.StringValue(obj.Key),
			Size:     aws.Int64Value(obj.Size),
			Modified: aws.TimeValue(obj.LastModified),
		})
	}
	if aws.BoolValue(out.IsTruncated) {
		page.Cursor = aws.StringValue(out.NextContinuationToken)
	}
	return page, nil
}

func quote(s string) string {
	if strings.HasPrefix(s, `"`) {
		return s
	}
	return `"` + s + `"`
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}
