// Package checkpoint implements the per-session numbered snapshot store.
// Keys are <tenant>/sessions/<session>.ckpt.<position>.<suffix>;
// PUT is unconditional because positions uniquely name the artifact.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
)

// Info is one row of a ListCheckpoints response.
type Info struct {
	Position  uint64
	Size      int64
	CreatedAt int64
}

// Store implements save/load/list over the object store.
type Store struct {
	objstore objstore.Store
	suffix   string // document MIME-derived file suffix, e.g. "docx"
}

func New(store objstore.Store, suffix string) *Store {
	return &Store{objstore: store, suffix: suffix}
}

func (s *Store) prefix(tenant, session string) string {
	return fmt.Sprintf("%s/sessions/%s.ckpt.", tenant, session)
}

func (s *Store) key(tenant, session string, position uint64) string {
	return fmt.Sprintf("%s%d.%s", s.prefix(tenant, session), position, s.suffix)
}

// Save writes a checkpoint blob unconditionally. Concurrent writes at the
// same position are a caller-level error; the store itself does not detect
// the race, it last-writer-wins like any unconditional PUT.
func (s *Store) Save(ctx context.Context, tenant, session string, position uint64, data []byte) error {
	_, err := s.objstore.Put(ctx, s.key(tenant, session, position), data)
	return err
}

// List returns CheckpointInfo records sorted strictly ascending by
// position.
func (s *Store) List(ctx context.Context, tenant, session string) ([]Info, error) {
	var infos []Info
	cursor := ""
	for {
		page, err := s.objstore.List(ctx, s.prefix(tenant, session), cursor, 1000)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Entries {
			pos, ok := parsePosition(e.Key, s.prefix(tenant, session))
			if !ok {
				continue
			}
			infos = append(infos, Info{Position: pos, Size: e.Size, CreatedAt: e.Modified.Unix()})
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Position < infos[j].Position })
	return infos, nil
}

func parsePosition(key, prefix string) (uint64, bool) {
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	rest := key[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, false
	}
	pos, err := strconv.ParseUint(rest[:dot], 10, 64)
	if err != nil {
		return 0, false
	}
	return pos, true
}

// Load fetches a checkpoint. position=0 means "latest" (the
// largest-positioned checkpoint present); otherwise an exact match.
// Returns errs.NotFound if none exist (position 0) or the exact position
// is absent.
func (s *Store) Load(ctx context.Context, tenant, session string, position uint64) (data []byte, resolved uint64, err error) {
	if position != 0 {
		obj, err := s.objstore.Get(ctx, s.key(tenant, session, position))
		if err != nil {
			return nil, 0, err
		}
		return obj.Bytes, position, nil
	}
	infos, err := s.List(ctx, tenant, session)
	if err != nil {
		return nil, 0, err
	}
	if len(infos) == 0 {
		return nil, 0, errs.NotFound("checkpoint")
	}
	latest := infos[len(infos)-1].Position
	obj, err := s.objstore.Get(ctx, s.key(tenant, session, latest))
	if err != nil {
		return nil, 0, err
	}
	return obj.Bytes, latest, nil
}

// Prefix exposes the checkpoint key prefix for a session, for callers
// (session deletion) that need to enumerate-then-delete every checkpoint.
func (s *Store) Prefix(tenant, session string) string { return s.prefix(tenant, session) }

// Delete removes a single checkpoint blob at position.
func (s *Store) Delete(ctx context.Context, tenant, session string, position uint64) (bool, error) {
	return s.objstore.Delete(ctx, s.key(tenant, session, position))
}
