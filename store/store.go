// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package store persists landmark sets in a SQLite database, keyed by curve
// name.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/OpenPSG/waveform"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS landmarks (
		curve     TEXT    NOT NULL,
		category  TEXT    NOT NULL,
		ts        INTEGER NOT NULL,
		PRIMARY KEY (curve, category, ts)
	);
`

// Store is a SQLite backed landmark store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening landmark store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating landmark schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored landmarks of curve with the contents of idx.
func (s *Store) Save(ctx context.Context, curve string, idx *waveform.LandmarkIndex) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM landmarks WHERE curve = ?`, curve); err != nil {
		return fmt.Errorf("error clearing landmarks of %q: %w", curve, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO landmarks (curve, category, ts) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, c := range waveform.Categories() {
		for _, t := range idx.Timestamps(c) {
			if _, err := stmt.ExecContext(ctx, curve, c.String(), t); err != nil {
				return fmt.Errorf("error inserting %s landmark at %d: %w", c, t, err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing landmarks of %q: %w", curve, err)
	}

	s.logger.Debug("saved landmarks", "curve", curve, "count", count)
	return nil
}

// Load replaces every category of idx with the landmarks stored for curve.
// Stored timestamps are snapped to the index's signal. It returns the number
// of rows read.
func (s *Store) Load(ctx context.Context, curve string, idx *waveform.LandmarkIndex) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, ts FROM landmarks WHERE curve = ? ORDER BY ts`, curve)
	if err != nil {
		return 0, fmt.Errorf("error querying landmarks of %q: %w", curve, err)
	}
	defer rows.Close()

	sets := make(map[waveform.Category][]int64)
	count := 0
	for rows.Next() {
		var name string
		var t int64
		if err := rows.Scan(&name, &t); err != nil {
			return 0, fmt.Errorf("error scanning landmark: %w", err)
		}

		c, err := waveform.ParseCategory(name)
		if err != nil {
			s.logger.Warn("skipping stored landmark", "curve", curve, "error", err)
			continue
		}
		sets[c] = append(sets[c], t)
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error reading landmarks of %q: %w", curve, err)
	}

	for _, c := range waveform.Categories() {
		idx.SetPoints(c, sets[c]...)
	}

	s.logger.Debug("loaded landmarks", "curve", curve, "count", count)
	return count, nil
}

// Curves lists the curves that have stored landmarks.
func (s *Store) Curves(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT curve FROM landmarks ORDER BY curve`)
	if err != nil {
		return nil, fmt.Errorf("error querying curves: %w", err)
	}
	defer rows.Close()

	var curves []string
	for rows.Next() {
		var curve string
		if err := rows.Scan(&curve); err != nil {
			return nil, fmt.Errorf("error scanning curve: %w", err)
		}
		curves = append(curves, curve)
	}
	return curves, rows.Err()
}

// Delete removes every landmark stored for curve.
func (s *Store) Delete(ctx context.Context, curve string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM landmarks WHERE curve = ?`, curve); err != nil {
		return fmt.Errorf("error deleting landmarks of %q: %w", curve, err)
	}
	return nil
}
