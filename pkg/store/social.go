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
	"database/sql"
	"time"
)

// SocialSeenPostRepo backs the social drive's feed dedup ledger: once a
// post has been turned into a MotivationalTask, it is never spawned again,
// even across restarts.
type SocialSeenPostRepo struct{ s *Store }

// SocialSeenPosts returns the dedup repository.
func (s *Store) SocialSeenPosts() *SocialSeenPostRepo { return &SocialSeenPostRepo{s: s} }

// MarkSeen records that a post has been processed. Calling it twice for the
// same (platform, post id) pair is a no-op.
func (r *SocialSeenPostRepo) MarkSeen(ctx context.Context, platform, postID string) error {
	var insertSQL string
	switch r.s.dialect {
	case "postgres":
		insertSQL = `INSERT INTO social_seen_posts (source_platform, source_post_id, seen_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`
	case "mysql":
		insertSQL = `INSERT IGNORE INTO social_seen_posts (source_platform, source_post_id, seen_at) VALUES (?, ?, ?)`
	default: // sqlite
		insertSQL = `INSERT OR IGNORE INTO social_seen_posts (source_platform, source_post_id, seen_at) VALUES (?, ?, ?)`
	}

	_, err := r.s.exec(ctx, insertSQL, platform, postID, time.Now().UTC())
	return err
}

// HasSeen reports whether a post has already been processed.
func (r *SocialSeenPostRepo) HasSeen(ctx context.Context, platform, postID string) (bool, error) {
	var discard string
	row := r.s.queryRow(ctx, `SELECT source_post_id FROM social_seen_posts WHERE source_platform = ? AND source_post_id = ?`, platform, postID)
	err := row.Scan(&discard)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, scanErr("social seen post", err)
	}
	return true, nil
}
