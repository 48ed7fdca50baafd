// Package memstore is an in-memory objstore.Store used by unit tests to
// exercise the CAS engine and the stores above it without a real backend.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
)

type object struct {
	bytes    []byte
	etag     string
	modified time.Time
}

// Store is a concurrency-safe in-memory implementation of objstore.Store.
type Store struct {
	mu      sync.RWMutex
	objs    map[string]object
	counter int64

	// FailNext, when > 0, makes the next N operations return a transient
	// error, for exercising objstore.WithRetry in tests.
	FailNext int32
}

func New() *Store {
	return &Store{objs: make(map[string]object)}
}

var errTransient = fmt.Errorf("memstore: injected transient fault")

func (s *Store) maybeFail() error {
	if atomic.LoadInt32(&s.FailNext) > 0 {
		atomic.AddInt32(&s.FailNext, -1)
		return errTransient
	}
	return nil
}

// IsTransient is the classifier to pass to objstore.WithRetry in tests.
func IsTransient(err error) bool { return err == errTransient }

func (s *Store) nextEtag() string {
	return strconv.FormatInt(atomic.AddInt64(&s.counter, 1), 10)
}

func (s *Store) Get(_ context.Context, key string) (objstore.Object, error) {
	if err := s.maybeFail(); err != nil {
		return objstore.Object{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objs[key]
	if !ok {
		return objstore.Object{}, errs.NotFound(key)
	}
	cp := make([]byte, len(o.bytes))
	copy(cp, o.bytes)
	return objstore.Object{Bytes: cp, ETag: o.etag}, nil
}

func (s *Store) Put(_ context.Context, key string, data []byte) (string, error) {
	if err := s.maybeFail(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	et := s.nextEtag()
	s.objs[key] = object{bytes: append([]byte(nil), data...), etag: et, modified: time.Now()}
	return et, nil
}

func (s *Store) PutIfAbsent(_ context.Context, key string, data []byte) (string, error) {
	if err := s.maybeFail(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[key]; ok {
		return "", errs.PreconditionFailed(key)
	}
	et := s.nextEtag()
	s.objs[key] = object{bytes: append([]byte(nil), data...), etag: et, modified: time.Now()}
	return et, nil
}

func (s *Store) PutIfMatch(_ context.Context, key string, data []byte, etag string) (string, error) {
	if err := s.maybeFail(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.objs[key]
	if !ok || cur.etag != etag {
		return "", errs.PreconditionFailed(key)
	}
	et := s.nextEtag()
	s.objs[key] = object{bytes: append([]byte(nil), data...), etag: et, modified: time.Now()}
	return et, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	if err := s.maybeFail(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	delete(s.objs, key)
	return ok, nil
}

func (s *Store) List(_ context.Context, prefix, cursor string, limit int) (objstore.ListPage, error) {
	if err := s.maybeFail(); err != nil {
		return objstore.ListPage{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil {
			start = n
		}
	}
	if start > len(keys) {
		start = len(keys)
	}
	end := len(keys)
	next := ""
	if limit > 0 && start+limit < len(keys) {
		end = start + limit
		next = strconv.Itoa(end)
	}
	entries := make([]objstore.Entry, 0, end-start)
	for _, k := range keys[start:end] {
		o := s.objs[k]
		entries = append(entries, objstore.Entry{Key: k, Size: int64(len(o.bytes)), Modified: o.modified})
	}
	return objstore.ListPage{Entries: entries, Cursor: next}, nil
}
