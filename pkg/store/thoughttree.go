// Copyright 2026 The Nyx Orchestrator Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nyxcore/orchestrator/pkg/errs"
)

// ThoughtTreeStatus is the closed set of statuses a ThoughtTree transitions
// through. It is never physically deleted, only status-transitioned.
type ThoughtTreeStatus string

const (
	ThoughtTreePending    ThoughtTreeStatus = "pending"
	ThoughtTreeInProgress ThoughtTreeStatus = "in_progress"
	ThoughtTreeCompleted  ThoughtTreeStatus = "completed"
	ThoughtTreeFailed     ThoughtTreeStatus = "failed"
	ThoughtTreeCancelled  ThoughtTreeStatus = "cancelled"
)

// ThoughtTree is the root of a workflow's execution record.
type ThoughtTree struct {
	ID        string
	Goal      string
	Status    ThoughtTreeStatus
	Depth     int
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ThoughtTreeRepo persists ThoughtTree rows.
type ThoughtTreeRepo struct{ s *Store }

// ThoughtTrees returns the ThoughtTree repository.
func (s *Store) ThoughtTrees() *ThoughtTreeRepo { return &ThoughtTreeRepo{s: s} }

// Create inserts a new ThoughtTree in the pending status, generating its id.
func (r *ThoughtTreeRepo) Create(ctx context.Context, goal string, depth int, metadata map[string]any) (*ThoughtTree, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "marshal thought tree metadata", err)
	}

	now := time.Now().UTC()
	tt := &ThoughtTree{
		ID:        uuid.NewString(),
		Goal:      goal,
		Status:    ThoughtTreePending,
		Depth:     depth,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.s.exec(ctx, `
		INSERT INTO thought_trees (id, goal, status, depth, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tt.ID, tt.Goal, string(tt.Status), tt.Depth, string(metaJSON), tt.CreatedAt, tt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return tt, nil
}

// Get fetches a ThoughtTree by id.
func (r *ThoughtTreeRepo) Get(ctx context.Context, id string) (*ThoughtTree, error) {
	row := r.s.queryRow(ctx, `
		SELECT id, goal, status, depth, metadata, created_at, updated_at
		FROM thought_trees WHERE id = ?`, id)
	return scanThoughtTree(row)
}

// UpdateStatus transitions a ThoughtTree's status. Physical rows are never
// removed; cancellation (startup cleanup) is a status transition like any
// other.
func (r *ThoughtTreeRepo) UpdateStatus(ctx context.Context, id string, status ThoughtTreeStatus) error {
	_, err := r.s.exec(ctx, `UPDATE thought_trees SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	return err
}

// UpdateStatusWithMetadata transitions status and replaces metadata in the
// same write, for callers (startup cleanup) that need to stamp a reason
// tag alongside the transition rather than lose it to a second write.
func (r *ThoughtTreeRepo) UpdateStatusWithMetadata(ctx context.Context, id string, status ThoughtTreeStatus, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal thought tree metadata", err)
	}
	_, err = r.s.exec(ctx, `UPDATE thought_trees SET status = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		string(status), string(metaJSON), time.Now().UTC(), id)
	return err
}

// ListActive returns ThoughtTrees whose status is non-terminal, newest
// first, for the active-workflows listing endpoint.
func (r *ThoughtTreeRepo) ListActive(ctx context.Context, limit, offset int) ([]*ThoughtTree, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, goal, status, depth, metadata, created_at, updated_at
		FROM thought_trees
		WHERE status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		string(ThoughtTreePending), string(ThoughtTreeInProgress), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ThoughtTree
	for rows.Next() {
		tt, err := scanThoughtTreeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

// ListNonTerminal returns every ThoughtTree not yet in a terminal status,
// used for the startup cleanup pass that force-transitions orphaned
// workflows left behind by an unclean shutdown.
func (r *ThoughtTreeRepo) ListNonTerminal(ctx context.Context) ([]*ThoughtTree, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, goal, status, depth, metadata, created_at, updated_at
		FROM thought_trees WHERE status IN (?, ?)`,
		string(ThoughtTreePending), string(ThoughtTreeInProgress))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ThoughtTree
	for rows.Next() {
		tt, err := scanThoughtTreeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThoughtTree(row rowScanner) (*ThoughtTree, error) {
	return scanThoughtTreeGeneric(row)
}

func scanThoughtTreeRows(rows rowScanner) (*ThoughtTree, error) {
	return scanThoughtTreeGeneric(rows)
}

func scanThoughtTreeGeneric(row rowScanner) (*ThoughtTree, error) {
	var tt ThoughtTree
	var status, metaJSON string
	if err := row.Scan(&tt.ID, &tt.Goal, &status, &tt.Depth, &metaJSON, &tt.CreatedAt, &tt.UpdatedAt); err != nil {
		return nil, scanErr("thought tree", err)
	}
	tt.Status = ThoughtTreeStatus(status)
	tt.Metadata = map[string]any{}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &tt.Metadata); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, "unmarshal thought tree metadata", err)
		}
	}
	return &tt, nil
}
