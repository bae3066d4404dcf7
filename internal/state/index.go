package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotIndexed is returned when a feature has no index entry.
var ErrNotIndexed = errors.New("feature not indexed")

// IndexEntry summarizes the verification history of one feature.
type IndexEntry struct {
	FeatureID  string
	LatestRun  int
	Verdict    string
	CommitHash string
	UpdatedAt  time.Time
	TotalRuns  int
	PassRuns   int
}

// UpsertIndex records e as the latest entry for its feature.
func (db *DB) UpsertIndex(e IndexEntry) error {
	if e.FeatureID == "" {
		return fmt.Errorf("upsert index: empty feature id")
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO verification_index
				(feature_id, latest_run, verdict, commit_hash, updated_at, total_runs, pass_runs)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(feature_id) DO UPDATE SET
				latest_run = excluded.latest_run,
				verdict = excluded.verdict,
				commit_hash = excluded.commit_hash,
				updated_at = excluded.updated_at,
				total_runs = excluded.total_runs,
				pass_runs = excluded.pass_runs
		`, e.FeatureID, e.LatestRun, e.Verdict, e.CommitHash, formatTime(e.UpdatedAt), e.TotalRuns, e.PassRuns)
		if err != nil {
			return fmt.Errorf("upsert index %s: %w", e.FeatureID, err)
		}
		return nil
	})
}

// GetIndex returns the entry for featureID or ErrNotIndexed.
func (db *DB) GetIndex(featureID string) (*IndexEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT feature_id, latest_run, verdict, commit_hash, updated_at, total_runs, pass_runs
		FROM verification_index WHERE feature_id = ?
	`, featureID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotIndexed
	}
	if err != nil {
		return nil, fmt.Errorf("get index %s: %w", featureID, err)
	}
	return e, nil
}

// ListIndex returns every entry ordered by feature ID.
func (db *DB) ListIndex() ([]IndexEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT feature_id, latest_run, verdict, commit_hash, updated_at, total_runs, pass_runs
		FROM verification_index ORDER BY feature_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list index: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteIndex removes the entry for featureID, if any.
func (db *DB) DeleteIndex(featureID string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM verification_index WHERE feature_id = ?", featureID); err != nil {
			return fmt.Errorf("delete index %s: %w", featureID, err)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*IndexEntry, error) {
	var (
		e          IndexEntry
		commitHash sql.NullString
		updatedAt  string
	)
	if err := s.Scan(&e.FeatureID, &e.LatestRun, &e.Verdict, &commitHash, &updatedAt, &e.TotalRuns, &e.PassRuns); err != nil {
		return nil, err
	}
	e.CommitHash = commitHash.String
	if t, err := parseTime(updatedAt); err == nil {
		e.UpdatedAt = t
	}
	return &e, nil
}
