// Package index implements the per-tenant session index: a single
// JSON blob at <tenant>/index.json mutated via the CAS engine.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/docx-mcp-storage/internal/cas"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is the per-session catalog row.
type Entry struct {
	SourcePath             string  `json:"source_path"`
	CreatedAt              int64   `json:"created_at"`
	ModifiedAt             int64   `json:"modified_at"`
	WalPosition            uint64  `json:"wal_position"`
	CursorPosition         uint64  `json:"cursor_position"`
	CheckpointPositions    []uint64 `json:"checkpoint_positions"`
	DocumentFileName       string  `json:"document_file_name"`
	PendingExternalChange  bool    `json:"pending_external_change"`
}

// Index is the per-tenant mapping session_id -> entry.
type Index struct {
	Sessions map[string]*Entry `json:"sessions"`
}

func newIndex() *Index { return &Index{Sessions: make(map[string]*Entry)} }

func key(tenant string) string { return fmt.Sprintf("%s/index.json", tenant) }

// Store wraps the CAS engine for index-specific mutations.
type Store struct {
	engine *cas.Engine
}

func New(store objstore.Store) *Store {
	return &Store{engine: cas.New(store)}
}

// Load reads the index for tenant with a plain Get (no CAS needed for a
// pure read), returning an empty index if none exists yet.
func (s *Store) Load(ctx context.Context, tenant string) (*Index, error) {
	obj, err := s.engine.Store.Get(ctx, key(tenant))
	if errs.IsNotFound(err) {
		return newIndex(), nil
	}
	if err != nil {
		return nil, err
	}
	idx := newIndex()
	if len(obj.Bytes) > 0 {
		if err := json.Unmarshal(obj.Bytes, idx); err != nil {
			return nil, errs.Internal(err)
		}
	}
	if idx.Sessions == nil {
		idx.Sessions = make(map[string]*Entry)
	}
	return idx, nil
}

// AddOpts describes the fields of a new session entry.
type AddOpts struct {
	SourcePath       string
	DocumentFileName string
	Now              int64
}

// Add inserts a new session entry, overwriting one at the same ID.
func (s *Store) Add(ctx context.Context, tenant, sessionID string, opts AddOpts) (*Entry, error) {
	idx, err := cas.Do(ctx, s.engine, key(tenant), newIndex, func(idx *Index) {
		idx.Sessions[sessionID] = &Entry{
			SourcePath:       opts.SourcePath,
			CreatedAt:        opts.Now,
			ModifiedAt:       opts.Now,
			WalPosition:      0,
			CursorPosition:   0,
			DocumentFileName: opts.DocumentFileName,
		}
	})
	if err != nil {
		return nil, err
	}
	return idx.Sessions[sessionID], nil
}

// UpdateOpts carries Update's optional overrides; nil fields are left
// untouched.
type UpdateOpts struct {
	ModifiedAt              *int64
	WalPosition             *uint64
	CursorPosition          *uint64
	PendingExternalChange   *bool
	SourcePath              *string
	AddCheckpointPositions  []uint64
	RemoveCheckpointPositions []uint64
}

// UpdateResult reports whether the target session existed.
type UpdateResult struct {
	Success  bool
	NotFound bool
}

// Update applies the optional overrides to sessionID's entry. A
// WalPosition bump auto-advances CursorPosition unless CursorPosition is
// also specified. Checkpoint position lists are add/remove set operations,
// deduplicated and sorted ascending after mutation. Updating a
// non-existent session reports NotFound=true, Success=false, and does not
// error.
func (s *Store) Update(ctx context.Context, tenant, sessionID string, opts UpdateOpts) (UpdateResult, error) {
	var result UpdateResult
	_, err := cas.Do(ctx, s.engine, key(tenant), newIndex, func(idx *Index) {
		e, ok := idx.Sessions[sessionID]
		if !ok {
			result = UpdateResult{Success: false, NotFound: true}
			return
		}
		if opts.SourcePath != nil {
			e.SourcePath = *opts.SourcePath
		}
		if opts.WalPosition != nil {
			e.WalPosition = *opts.WalPosition
			if opts.CursorPosition == nil {
				e.CursorPosition = *opts.WalPosition
			}
		}
		if opts.CursorPosition != nil {
			e.CursorPosition = *opts.CursorPosition
		}
		if opts.PendingExternalChange != nil {
			e.PendingExternalChange = *opts.PendingExternalChange
		}
		if opts.ModifiedAt != nil {
			e.ModifiedAt = *opts.ModifiedAt
		}
		if len(opts.AddCheckpointPositions) > 0 || len(opts.RemoveCheckpointPositions) > 0 {
			e.CheckpointPositions = applyCheckpointSet(e.CheckpointPositions, opts.AddCheckpointPositions, opts.RemoveCheckpointPositions)
		}
		result = UpdateResult{Success: true}
	})
	if err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

func applyCheckpointSet(current []uint64, add, remove []uint64) []uint64 {
	set := make(map[uint64]struct{}, len(current)+len(add))
	for _, p := range current {
		set[p] = struct{}{}
	}
	for _, p := range add {
		set[p] = struct{}{}
	}
	for _, p := range remove {
		delete(set, p)
	}
	out := make([]uint64, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Remove deletes sessionID's entry, reporting whether it existed.
// Removing a non-existent session reports existed=false but succeeds.
func (s *Store) Remove(ctx context.Context, tenant, sessionID string) (bool, error) {
	existed := false
	_, err := cas.Do(ctx, s.engine, key(tenant), newIndex, func(idx *Index) {
		if _, ok := idx.Sessions[sessionID]; ok {
			existed = true
			delete(idx.Sessions, sessionID)
		}
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// Now is the injectable clock used by callers constructing AddOpts/UpdateOpts
// so tests can pin timestamps.
func Now() int64 { return time.Now().Unix() }
