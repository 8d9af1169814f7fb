// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const defaultRecentLimit = 50

// Record is a stored Entry
type Record struct {
	ID int64 `json:"id"`
	Entry
}

// SQLiteSink stores entries in the audit_logs table
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the audit database at dbPath and
// applies pending migrations. dbPath may be ":memory:".
func OpenSQLite(dbPath string) (*SQLiteSink, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// single writer; database/sql serializes callers on the one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	sink := &SQLiteSink{db: db}
	if err := sink.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return sink, nil
}

// Close closes the database connection
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Log inserts entry
func (s *SQLiteSink) Log(entry Entry) error {
	return s.LogContext(context.Background(), entry)
}

// LogContext inserts entry using ctx for the statement
func (s *SQLiteSink) LogContext(ctx context.Context, entry Entry) error {
	categories := entry.MatchesByCategory
	if categories == nil {
		categories = map[string]int{}
	}
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("failed to marshal matches by category: %w", err)
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var output sql.NullString
	if entry.SHA256Output != "" {
		output = sql.NullString{String: entry.SHA256Output, Valid: true}
	}

	dryRun := 0
	if entry.DryRun {
		dryRun = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			timestamp_utc, os_username, input_filename, file_type,
			playbook_name, playbook_version, dry_run, total_matches,
			matches_by_category, sha256_input, sha256_output, processing_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ts.UTC().Format(time.RFC3339Nano), entry.OSUsername, entry.InputFilename, entry.FileType,
		entry.PlaybookName, entry.PlaybookVersion, dryRun, entry.TotalMatches,
		string(categoriesJSON), entry.SHA256Input, output, entry.ProcessingID,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Recent returns the latest records, newest first
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp_utc, os_username, input_filename, file_type,
		       playbook_name, playbook_version, dry_run, total_matches,
		       matches_by_category, sha256_input, sha256_output, processing_id
		FROM audit_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			ts         string
			dryRun     int
			categories string
			output     sql.NullString
		)
		err := rows.Scan(
			&rec.ID, &ts, &rec.OSUsername, &rec.InputFilename, &rec.FileType,
			&rec.PlaybookName, &rec.PlaybookVersion, &dryRun, &rec.TotalMatches,
			&categories, &rec.SHA256Input, &output, &rec.ProcessingID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("invalid timestamp in audit entry %d: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(categories), &rec.MatchesByCategory); err != nil {
			return nil, fmt.Errorf("invalid matches_by_category in audit entry %d: %w", rec.ID, err)
		}
		rec.DryRun = dryRun != 0
		rec.SHA256Output = output.String
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return records, nil
}

// runMigrations applies every embedded migration newer than the recorded version
func (s *SQLiteSink) runMigrations() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL,
			description TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		// "0001_audit_logs.sql" -> 1, "audit_logs"
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(parts[0], "%d", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		description := strings.TrimSuffix(parts[1], ".sql")

		content, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", version, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)",
			version, time.Now().UTC().Format(time.RFC3339), description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}
	}
	return nil
}
