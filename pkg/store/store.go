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

// Package store is the relational persistence layer: one table per entity
// in the data model, keyed by UUID, shared across the process through a
// single *sql.DB obtained from config.DBPool. It supports Postgres, MySQL,
// and SQLite, matching the dialect-dispatch approach pkg/ratelimit uses for
// its own SQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nyxcore/orchestrator/pkg/config"
	"github.com/nyxcore/orchestrator/pkg/errs"
)

// Store owns the shared database handle and dialect used to build every
// repository. Repositories embed *Store rather than holding their own
// connection so that all tables share one pool and one transaction scope.
type Store struct {
	db      *sql.DB
	dialect string
}

// New opens (or reuses, via pool) the configured database and creates every
// table this package owns if it does not already exist.
func New(pool *config.DBPool, cfg *config.DatabaseConfig) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("store: DBPool is required")
	}

	db, err := pool.Get(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: failed to get database connection: %w", err)
	}

	s := &Store{db: db, dialect: cfg.Dialect()}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, stmt := range createTableStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Close is a no-op: the underlying *sql.DB is owned by the shared DBPool.
func (s *Store) Close() error { return nil }

// NewForTest wraps an already-open *sql.DB (typically a sqlmock connection)
// in a Store without running schema bootstrap, for use by other packages'
// repository-level tests.
func NewForTest(db *sql.DB, dialect string) *Store {
	return &Store{db: db, dialect: dialect}
}

// Dialect returns the normalized SQL dialect (for testing).
func (s *Store) Dialect() string { return s.dialect }

// rebind rewrites a query written with `?` placeholders into the
// dialect-appropriate form. Postgres wants `$1, $2, ...`; MySQL and SQLite
// accept `?` as written.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "exec failed", err)
	}
	return res, nil
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "query failed", err)
	}
	return rows, nil
}

// scanErr classifies sql.ErrNoRows into a not_found error and anything else
// into a database error, so every repository Get method returns a Kind a
// caller can branch on instead of comparing against sql.ErrNoRows directly.
func scanErr(entity string, err error) error {
	if err == sql.ErrNoRows {
		return errs.New(errs.KindNotFound, entity+" not found")
	}
	return errs.Wrap(errs.KindDatabase, "scan "+entity+" failed", err)
}

// boolParam normalizes a Go bool into the 0/1 representation that reads
// back consistently across postgres BOOLEAN, MySQL TINYINT, and SQLite's
// NUMERIC affinity.
func boolParam(b bool) int {
	if b {
		return 1
	}
	return 0
}
