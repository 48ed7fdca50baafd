// Package fs implements objstore.Store over the local filesystem.
// PutIfAbsent is O_EXCL create, writing the new file in place; PutIfMatch
// is stat-then-rename guarded by a version token derived from the file's
// mtime and size. Put and PutIfMatch go through temp-file-plus-rename so
// readers never observe a partial object on overwrite.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
	"github.com/google/uuid"
)

// Store is a objstore.Store backed by a root directory. Keys map to
// slash-separated relative paths under root; callers are responsible for
// keys that are safe path components (tenant/session identifiers are
// validated upstream).
type Store struct {
	root string
	mu   sync.Mutex // serializes stat-then-rename CAS within this process
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fs store: create root %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// etag encodes an mtime/size pair as an opaque version token.
func etag(fi fs.FileInfo) string {
	return fmt.Sprintf("%d-%d", fi.ModTime().UnixNano(), fi.Size())
}

func (s *Store) Get(_ context.Context, key string) (objstore.Object, error) {
	p := s.path(key)
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return objstore.Object{}, errs.NotFound(key)
	}
	if err != nil {
		return objstore.Object{}, errs.Internal(err)
	}
	fi, err := os.Stat(p)
	if err != nil {
		return objstore.Object{}, errs.Internal(err)
	}
	return objstore.Object{Bytes: data, ETag: etag(fi)}, nil
}

func (s *Store) Put(_ context.Context, key string, data []byte) (string, error) {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errs.Internal(err)
	}
	if err := atomicWrite(p, data); err != nil {
		return "", errs.Internal(err)
	}
	fi, err := os.Stat(p)
	if err != nil {
		return "", errs.Internal(err)
	}
	return etag(fi), nil
}

func (s *Store) PutIfAbsent(_ context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errs.Internal(err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		return "", errs.PreconditionFailed(key)
	}
	if err != nil {
		return "", errs.Internal(err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil {
		os.Remove(p)
		return "", errs.Internal(werr)
	}
	if cerr != nil {
		return "", errs.Internal(cerr)
	}
	fi, err := os.Stat(p)
	if err != nil {
		return "", errs.Internal(err)
	}
	return etag(fi), nil
}

func (s *Store) PutIfMatch(_ context.Context, key string, data []byte, expected string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.path(key)
	fi, err := os.Stat(p)
	if os.IsNotExist(err) {
		return "", errs.PreconditionFailed(key)
	}
	if err != nil {
		return "", errs.Internal(err)
	}
	if etag(fi) != expected {
		return "", errs.PreconditionFailed(key)
	}
	if err := atomicWrite(p, data); err != nil {
		return "", errs.Internal(err)
	}
	fi, err = os.Stat(p)
	if err != nil {
		return "", errs.Internal(err)
	}
	return etag(fi), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errs.Internal(err)
	}
	return true, nil
}

func (s *Store) List(_ context.Context, prefix, cursor string, limit int) (objstore.ListPage, error) {
	base := s.path(prefix)
	dir := filepath.Dir(base)
	namePrefix := filepath.Base(base)
	// A prefix ending in "/" (or equal to the root) lists a whole directory.
	if strings.HasSuffix(prefix, "/") || prefix == "" {
		dir = s.path(strings.TrimSuffix(prefix, "/"))
		namePrefix = ""
	}

	var entries []objstore.Entry
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(s.root, p)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		if namePrefix != "" && !strings.HasPrefix(filepath.Base(p), namePrefix) {
			return nil
		}
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		fi, ferr := d.Info()
		if ferr != nil {
			return ferr
		}
		entries = append(entries, objstore.Entry{Key: rel, Size: fi.Size(), Modified: fi.ModTime()})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return objstore.ListPage{}, errs.Internal(err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	start := 0
	if cursor != "" {
		if n, perr := strconv.Atoi(cursor); perr == nil {
			start = n
		}
	}
	if start > len(entries) {
		start = len(entries)
	}
	end := len(entries)
	nextCursor := ""
	if limit > 0 && start+limit < len(entries) {
		end = start + limit
		nextCursor = strconv.Itoa(end)
	}
	return objstore.ListPage{Entries: entries[start:end], Cursor: nextCursor}, nil
}

// atomicWrite writes to a sibling temp file, fsyncs, and renames into
// place so readers never observe a partial write.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp."+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
