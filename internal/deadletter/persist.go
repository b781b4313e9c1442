// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// archiveStore persists discarded/cleaned-up dead letters as one JSON
// file per record under dir, mirroring the queue manager's own
// snapshot-to-JSON persistence pattern.
type archiveStore struct {
	dir string
}

func newArchiveStore(dir string) *archiveStore {
	return &archiveStore{dir: dir}
}

func (s *archiveStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// archive writes dl to disk. An empty dir disables archival entirely.
func (s *archiveStore) archive(dl *domain.DeadLetterMessage) error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("dead letter archive: mkdir: %w", err)
	}

	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("dead letter archive: marshal: %w", err)
	}

	tmp := s.path(dl.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dead letter archive: write: %w", err)
	}
	return os.Rename(tmp, s.path(dl.ID))
}

// remove deletes an archived record. The retention cleanup loop does not
// call it: cleanup archives stale records and drops them from memory, and
// their archive files stay on disk.
func (s *archiveStore) remove(id string) error {
	if s.dir == "" {
		return nil
	}
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
