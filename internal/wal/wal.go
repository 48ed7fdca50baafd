// Package wal implements the per-session write-ahead log:
// a single blob at <tenant>/sessions/<session>.wal, laid out as an 8-byte
// little-endian length header followed by exactly that many bytes of
// JSON-lines payload, one entry per line, each terminated by '\n'.
// Positions are inferred from line order starting at 1.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package wal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/docx-mcp-storage/internal/cas"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const headerLen = 8

// Entry is one WAL record: (position, operation, path, patch_bytes, timestamp).
type Entry struct {
	Position  uint64 `json:"position"`
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Patch     []byte `json:"patch_bytes"`
	Timestamp int64  `json:"timestamp"`
}

func key(tenant, session string) string {
	return fmt.Sprintf("%s/sessions/%s.wal", tenant, session)
}

// Store implements append/read/truncate over the object store.
type Store struct {
	objstore objstore.Store
}

func New(store objstore.Store) *Store {
	return &Store{objstore: store}
}

// decode splits the stored blob into its raw JSON-line payload.
func decode(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) < headerLen {
		return nil, errs.Internal(fmt.Errorf("wal: truncated header (%d bytes)", len(raw)))
	}
	l := binary.LittleEndian.Uint64(raw[:headerLen])
	payload := raw[headerLen:]
	if uint64(len(payload)) != l {
		return nil, errs.Internal(fmt.Errorf("wal: header length %d does not match payload %d", l, len(payload)))
	}
	return payload, nil
}

func encode(payload []byte) []byte {
	out := make([]byte, headerLen+len(payload))
	binary.LittleEndian.PutUint64(out[:headerLen], uint64(len(payload)))
	copy(out[headerLen:], payload)
	return out
}

// parseLines scans a WAL payload into entries, one per newline-terminated
// JSON line, position inferred as 1-based line number.
func parseLines(payload []byte) ([]Entry, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(payload))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	pos := uint64(0)
	for sc.Scan() {
		pos++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, errs.InvalidJSON(fmt.Sprintf("wal: malformed entry at position %d: %v", pos, err))
		}
		e.Position = pos
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Internal(err)
	}
	return entries, nil
}

// rawLine renders one entry as its JSON-line wire form. The position field
// is not re-serialized; position is positional, not stored.
func rawLine(e Entry) ([]byte, error) {
	if bytes.ContainsRune(e.Patch, '\n') {
		return nil, errs.InvalidJSON("wal: patch payload contains an unescaped newline")
	}
	data, err := json.Marshal(struct {
		Operation string `json:"operation"`
		Path      string `json:"path"`
		Patch     []byte `json:"patch_bytes"`
		Timestamp int64  `json:"timestamp"`
	}{e.Operation, e.Path, e.Patch, e.Timestamp})
	if err != nil {
		return nil, errs.Internal(err)
	}
	if bytes.ContainsRune(data, '\n') {
		return nil, errs.InvalidJSON("wal: encoded entry contains an unescaped newline")
	}
	return append(data, '\n'), nil
}

// Append adds entries to the session's WAL, atomically, under CAS. An
// empty slice is a no-op returning 0. Returns the position of the last
// appended entry.
//
// This bypasses cas.Do's generic JSON-value round trip: WAL entries need
// raw length-prefixed byte framing, not a JSON-marshaled struct.
func (s *Store) Append(ctx context.Context, tenant, session string, entries []Entry) (uint64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	k := key(tenant, session)
	for attempt := 1; attempt <= cas.MaxAttempts; attempt++ {
		obj, err := s.objstore.Get(ctx, k)
		var (
			payload []byte
			etag    string
			has     bool
		)
		switch {
		case errs.IsNotFound(err):
			has = false
		case err != nil:
			return 0, err
		default:
			payload, err = decode(obj.Bytes)
			if err != nil {
				return 0, err
			}
			etag = obj.ETag
			has = true
		}

		existing, err := parseLines(payload)
		if err != nil {
			return 0, err
		}
		pos := uint64(len(existing))

		var buf bytes.Buffer
		buf.Write(payload)
		for _, e := range entries {
			pos++
			e.Position = pos
			line, err := rawLine(e)
			if err != nil {
				return 0, err
			}
			buf.Write(line)
		}
		newBlob := encode(buf.Bytes())

		var werr error
		if has {
			_, werr = s.objstore.PutIfMatch(ctx, k, newBlob, etag)
		} else {
			_, werr = s.objstore.PutIfAbsent(ctx, k, newBlob)
		}
		if werr == nil {
			return pos, nil
		}
		if !errs.IsPreconditionFailed(werr) {
			return 0, werr
		}
	}
	return 0, errs.CasExhausted(k, cas.MaxAttempts)
}

// Read parses the WAL and yields entries starting at fromPosition (1-based,
// inclusive), up to limit entries (0 = unbounded). hasMore reports whether
// the limit was hit before EOF.
func (s *Store) Read(ctx context.Context, tenant, session string, fromPosition uint64, limit int) (entries []Entry, hasMore bool, err error) {
	obj, err := s.objstore.Get(ctx, key(tenant, session))
	if errs.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	payload, err := decode(obj.Bytes)
	if err != nil {
		return nil, false, err
	}
	all, err := parseLines(payload)
	if err != nil {
		return nil, false, err
	}
	if fromPosition < 1 {
		fromPosition = 1
	}
	var out []Entry
	for _, e := range all {
		if e.Position < fromPosition {
			continue
		}
		if limit > 0 && len(out) >= limit {
			hasMore = true
			break
		}
		out = append(out, e)
	}
	return out, hasMore, nil
}

// Truncate keeps the first keepFromPosition entries (a 0-based count from
// position 1) and removes the rest, rewritten under CAS. Returns the
// number of removed entries (0 if no change needed).
func (s *Store) Truncate(ctx context.Context, tenant, session string, keepFromPosition uint64) (uint64, error) {
	k := key(tenant, session)
	for attempt := 1; attempt <= cas.MaxAttempts; attempt++ {
		obj, err := s.objstore.Get(ctx, k)
		if errs.IsNotFound(err) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		payload, err := decode(obj.Bytes)
		if err != nil {
			return 0, err
		}
		all, err := parseLines(payload)
		if err != nil {
			return 0, err
		}
		if uint64(len(all)) <= keepFromPosition {
			return 0, nil
		}
		kept := all[:keepFromPosition]
		removed := uint64(len(all)) - keepFromPosition

		var buf bytes.Buffer
		for _, e := range kept {
			line, err := rawLine(e)
			if err != nil {
				return 0, err
			}
			buf.Write(line)
		}
		newBlob := encode(buf.Bytes())
		_, werr := s.objstore.PutIfMatch(ctx, k, newBlob, obj.ETag)
		if werr == nil {
			return removed, nil
		}
		if !errs.IsPreconditionFailed(werr) {
			return 0, werr
		}
	}
	return 0, errs.CasExhausted(k, cas.MaxAttempts)
}
