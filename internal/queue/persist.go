// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package queue

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// store persists a queue's resident messages to a JSON file per queue
// name under dir, so a restart can reload QUEUED/RETRY entries rather
// than losing them.
type store struct {
	dir string
}

func newStore(dir string) *store {
	return &store{dir: dir}
}

func (s *store) path(queueName string) string {
	return filepath.Join(s.dir, queueName+".json")
}

// save atomically overwrites the snapshot file for queueName.
func (s *store) save(queueName string, messages []*domain.QueuedMessage) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("queue persistence: mkdir: %w", err)
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("queue persistence: marshal: %w", err)
	}

	tmp := s.path(queueName) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("queue persistence: write: %w", err)
	}
	return os.Rename(tmp, s.path(queueName))
}

// load reads a previously persisted snapshot for queueName. A missing
// file is not an error: it means the queue has no prior state.
func (s *store) load(queueName string) ([]*domain.QueuedMessage, error) {
	data, err := os.ReadFile(s.path(queueName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue persistence: read: %w", err)
	}

	var messages []*domain.QueuedMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("queue persistence: unmarshal: %w", err)
	}
	return messages, nil
}
