// Package session implements the current-document blob and deletion logic:
// <tenant>/sessions/<session>.<suffix>, plain get/put/delete,
// and an existence probe that also surfaces the index's
// pending_external_change flag as a convenience for the editor.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/docx-mcp-storage/internal/checkpoint"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/index"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
	"github.com/NVIDIA/docx-mcp-storage/internal/wal"
)

// Store implements the session blob lifecycle, composing the index, WAL,
// and checkpoint stores for deletion fan-out.
type Store struct {
	objstore   objstore.Store
	suffix     string
	index      *index.Store
	wal        *wal.Store
	checkpoint *checkpoint.Store
}

func New(store objstore.Store, suffix string, idx *index.Store, w *wal.Store, ckpt *checkpoint.Store) *Store {
	return &Store{objstore: store, suffix: suffix, index: idx, wal: w, checkpoint: ckpt}
}

func (s *Store) key(tenant, session string) string {
	return fmt.Sprintf("%s/sessions/%s.%s", tenant, session, s.suffix)
}

// List enumerates the tenant's session IDs by scanning the blob prefix.
// Checkpoint and WAL artifacts under the same prefix are skipped.
func (s *Store) List(ctx context.Context, tenant string) ([]string, error) {
	prefix := tenant + "/sessions/"
	suffix := "." + s.suffix
	var out []string
	cursor := ""
	for {
		page, err := s.objstore.List(ctx, prefix, cursor, 1000)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Entries {
			name := strings.TrimPrefix(e.Key, prefix)
			if !strings.HasSuffix(name, suffix) || strings.Contains(name, ".ckpt.") {
				continue
			}
			out = append(out, strings.TrimSuffix(name, suffix))
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	sort.Strings(out)
	return out, nil
}

// Load returns the current document bytes.
func (s *Store) Load(ctx context.Context, tenant, session string) ([]byte, error) {
	obj, err := s.objstore.Get(ctx, s.key(tenant, session))
	if err != nil {
		return nil, err
	}
	return obj.Bytes, nil
}

// Save writes the current document bytes unconditionally (single writer
// per session is guaranteed by the proxy layer).
func (s *Store) Save(ctx context.Context, tenant, session string, data []byte) error {
	_, err := s.objstore.Put(ctx, s.key(tenant, session), data)
	return err
}

// Exists is a HEAD-like probe. If the blob is present, it also reads the
// index to surface PendingExternalChange.
func (s *Store) Exists(ctx context.Context, tenant, session string) (exists bool, pendingExternalChange bool, err error) {
	_, err = s.objstore.Get(ctx, s.key(tenant, session))
	if errs.IsNotFound(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	idx, ierr := s.index.Load(ctx, tenant)
	if ierr != nil {
		return true, false, ierr
	}
	if e, ok := idx.Sessions[session]; ok {
		return true, e.PendingExternalChange, nil
	}
	return true, false, nil
}

// Delete removes the blob, the WAL, and every checkpoint discovered by
// prefix LIST, in that order. Checkpoint-deletion failures are logged and
// do not abort the operation; the session is still considered gone.
func (s *Store) Delete(ctx context.Context, tenant, session string) error {
	if _, err := s.objstore.Delete(ctx, s.key(tenant, session)); err != nil {
		return err
	}
	if _, err := s.objstore.Delete(ctx, fmt.Sprintf("%s/sessions/%s.wal", tenant, session)); err != nil {
		return err
	}
	infos, err := s.checkpoint.List(ctx, tenant, session)
	if err != nil {
		glog.Errorf("session: failed to list checkpoints for %s/%s during delete: %v", tenant, session, err)
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, info := range infos {
		info := info
		g.Go(func() error {
			if _, derr := s.checkpoint.Delete(gctx, tenant, session, info.Position); derr != nil {
				glog.Errorf("session: failed to delete checkpoint %d for %s/%s: %v", info.Position, tenant, session, derr)
			}
			return nil
		})
	}
	g.Wait()
	return nil
}
