package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps logs in the metric_logs table of a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS metric_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		machine_name TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		cpu_usage REAL NOT NULL,
		memory_usage REAL NOT NULL,
		disk_usage REAL NOT NULL,
		network_usage REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metric_logs_timestamp ON metric_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_metric_logs_machine ON metric_logs(machine_name);
	`
	_, err := s.db.Exec(query)
	return err
}

// SaveBatch inserts every log in one transaction
func (s *SQLiteStore) SaveBatch(ctx context.Context, logs []MetricLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_logs (run_id, machine_name, timestamp, cpu_usage, memory_usage, disk_usage, network_usage)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		_, err := stmt.ExecContext(ctx,
			l.RunID, l.MachineName, l.Timestamp.UTC().UnixNano(),
			l.CPUUsage, l.MemoryUsage, l.DiskUsage, l.NetworkUsage,
		)
		if err != nil {
			return fmt.Errorf("insert metric log for %s: %w", l.MachineName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit metric logs: %w", err)
	}
	return nil
}

// Recent returns the newest limit rows in ascending time order
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]MetricLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, machine_name, timestamp, cpu_usage, memory_usage, disk_usage, network_usage
		FROM metric_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query metric logs: %w", err)
	}
	defer rows.Close()

	var logs []MetricLog
	for rows.Next() {
		var l MetricLog
		var ts int64
		if err := rows.Scan(
			&l.ID, &l.RunID, &l.MachineName, &ts,
			&l.CPUUsage, &l.MemoryUsage, &l.DiskUsage, &l.NetworkUsage,
		); err != nil {
			return nil, fmt.Errorf("scan metric log: %w", err)
		}
		l.Timestamp = time.Unix(0, ts).UTC()
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric logs: %w", err)
	}

	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
