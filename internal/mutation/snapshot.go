// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package mutation

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/odly-dev/odly/internal/store"
	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// SnapshotFile is the snapshot's name inside the backup directory.
const SnapshotFile = "entries.snapshot.json"

// State is the resolution of a snapshot.
type State string

const (
	// StatePending marks a snapshot whose mutation has not resolved yet.
	StatePending   State = "pending"
	StateCommitted State = "committed"
	StateRestored  State = "restored"
)

// Snapshot is a full copy of the entry working set.
type Snapshot struct {
	ID      string        `json:"id"`
	TakenAt time.Time     `json:"taken_at"`
	State   State         `json:"state"`
	Entries []store.Entry `json:"-"`
}

// snapshotFile is the on-disk form. Checksum is the hex SHA-256 of the
// compacted entries JSON.
type snapshotFile struct {
	ID       string          `json:"id"`
	TakenAt  time.Time       `json:"taken_at"`
	State    State           `json:"state"`
	Checksum string          `json:"checksum"`
	Entries  json.RawMessage `json:"entries"`
}

func checksum(compact []byte) string {
	sum := sha256.Sum256(compact)
	return hex.EncodeToString(sum[:])
}

func encodeSnapshot(s *Snapshot) ([]byte, error) {
	entries := s.Entries
	if entries == nil {
		entries = []store.Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(snapshotFile{
		ID:       s.ID,
		TakenAt:  s.TakenAt,
		State:    s.State,
		Checksum: checksum(raw),
		Entries:  raw,
	}, "", "  ")
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotCorrupt, "decoding snapshot")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, f.Entries); err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotCorrupt, "snapshot has no entries",
			odlyerr.FieldSnapshotID(f.ID))
	}
	if got := checksum(compact.Bytes()); got != f.Checksum {
		return nil, odlyerr.New(odlyerr.CodeMutationSnapshotCorrupt, "snapshot checksum mismatch",
			odlyerr.FieldSnapshotID(f.ID), odlyerr.Field("want", f.Checksum), odlyerr.Field("got", got))
	}

	s := &Snapshot{ID: f.ID, TakenAt: f.TakenAt, State: f.State}
	if err := json.Unmarshal(compact.Bytes(), &s.Entries); err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotCorrupt, "decoding snapshot entries",
			odlyerr.FieldSnapshotID(f.ID))
	}
	return s, nil
}

// readSnapshot loads and verifies the snapshot at path.
func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotNotFound, "no snapshot taken yet",
			odlyerr.Field("path", path))
	}
	if err != nil {
		return nil, odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "reading snapshot",
			odlyerr.Field("path", path))
	}
	return decodeSnapshot(data)
}

// writeSnapshot replaces the file at path atomically: temp file in the same
// directory, fsync, rename, then fsync of the directory.
func writeSnapshot(path string, s *Snapshot) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "encoding snapshot",
			odlyerr.FieldSnapshotID(s.ID))
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "creating snapshot temp file",
			odlyerr.FieldSnapshotID(s.ID))
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "writing snapshot",
			odlyerr.FieldSnapshotID(s.ID))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "syncing snapshot",
			odlyerr.FieldSnapshotID(s.ID))
	}
	if err := tmp.Close(); err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "closing snapshot",
			odlyerr.FieldSnapshotID(s.ID))
	}
	if err := os.Rename(tmpName, path); err != nil {
		return odlyerr.Wrap(err, odlyerr.CodeMutationSnapshotWriteFailure, "replacing snapshot",
			odlyerr.FieldSnapshotID(s.ID))
	}

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
