// IoT Pipeline - Telemetry, Alert and Device Lifecycle Processing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/iotpipeline

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/iotpipeline/internal/domain"
	"github.com/tomtom215/iotpipeline/internal/logging"
)

// DuckDBStore implements Store on a DuckDB table.
type DuckDBStore struct {
	db *sql.DB
}

// OpenDuckDB opens the database file at path, or an in-memory database for
// an empty path or ":memory:".
func OpenDuckDB(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %s: %w", path, err)
	}
	return db, nil
}

// NewDuckDBStore wraps db. Call CreateTable before first use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the alert_audit table and its indexes if missing.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS alert_audit (
			alert_id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			severity_level INTEGER NOT NULL,
			message TEXT NOT NULL,
			alert_timestamp TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			is_acknowledged BOOLEAN NOT NULL DEFAULT false,
			acknowledged_at TIMESTAMPTZ,
			acknowledged_by TEXT,
			resolution TEXT,
			metadata JSON,
			command_sent BOOLEAN NOT NULL,
			command_result TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alert_audit_device ON alert_audit(device_id);
		CREATE INDEX IF NOT EXISTS idx_alert_audit_processed ON alert_audit(processed_at DESC)
	`
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create alert_audit schema: %w", err)
		}
	}
	logging.Debug().Msg("alert_audit table created/verified")
	return nil
}

// Save upserts rec keyed by its alert ID.
func (s *DuckDBStore) Save(ctx context.Context, rec Record) error {
	metadata, err := json.Marshal(rec.Alert.Metadata)
	if err != nil {
		return fmt.Errorf("encode alert metadata: %w", err)
	}

	a := rec.Alert
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO alert_audit (
			alert_id, device_id, severity, severity_level, message,
			alert_timestamp, created_at, is_acknowledged, acknowledged_at,
			acknowledged_by, resolution, metadata,
			command_sent, command_result, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), string(a.DeviceID), a.Severity.String(), int(a.Severity), a.Message,
		a.Timestamp.UTC(), a.CreatedAt.UTC(), a.IsAcknowledged, nullTime(a.AcknowledgedAt),
		nullString(a.AcknowledgedBy), nullString(a.Resolution), string(metadata),
		rec.CommandSent, rec.CommandResult, rec.ProcessedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save audit record %s: %w", a.ID, err)
	}
	return nil
}

const selectColumns = `
	alert_id, device_id, severity_level, message, alert_timestamp, created_at,
	is_acknowledged, acknowledged_at, acknowledged_by, resolution,
	CAST(metadata AS VARCHAR) AS metadata,
	command_sent, command_result, processed_at`

func (s *DuckDBStore) Get(ctx context.Context, alertID uuid.UUID) domain.Result[Record] {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM alert_audit WHERE alert_id = ?", alertID.String())

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound[Record]()
	}
	if err != nil {
		return domain.Failed[Record](fmt.Errorf("get audit record %s: %w", alertID, err))
	}
	return domain.Found(rec)
}

// Query returns matching records, most recently processed first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Record, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, string(filter.DeviceID))
	}
	if filter.MinSeverity > domain.SeverityInfo {
		conditions = append(conditions, "severity_level >= ?")
		args = append(args, int(filter.MinSeverity))
	}
	if filter.CommandSent != nil {
		conditions = append(conditions, "command_sent = ?")
		args = append(args, *filter.CommandSent)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "processed_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT " + selectColumns + " FROM alert_audit"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY processed_at DESC LIMIT %d", filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}

// CountBySeverity returns the number of audited alerts per severity name.
func (s *DuckDBStore) CountBySeverity(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT severity, COUNT(*) FROM alert_audit GROUP BY severity")
	if err != nil {
		return nil, fmt.Errorf("count audit records: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var severity string
		var n int64
		if err := rows.Scan(&severity, &n); err != nil {
			return nil, fmt.Errorf("scan severity count: %w", err)
		}
		counts[severity] = n
	}
	return counts, rows.Err()
}

// Ping checks the database connection.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec            Record
		id             string
		deviceID       string
		severity       int
		acknowledgedAt sql.NullTime
		acknowledgedBy sql.NullString
		resolution     sql.NullString
		metadata       sql.NullString
	)
	err := row.Scan(
		&id, &deviceID, &severity, &rec.Alert.Message, &rec.Alert.Timestamp, &rec.Alert.CreatedAt,
		&rec.Alert.IsAcknowledged, &acknowledgedAt, &acknowledgedBy, &resolution,
		&metadata, &rec.CommandSent, &rec.CommandResult, &rec.ProcessedAt,
	)
	if err != nil {
		return Record{}, err
	}

	if rec.Alert.ID, err = uuid.Parse(id); err != nil {
		return Record{}, fmt.Errorf("parse alert id %q: %w", id, err)
	}
	rec.Alert.DeviceID = domain.DeviceID(deviceID)
	rec.Alert.Severity = domain.Severity(severity)
	rec.Alert.Timestamp = rec.Alert.Timestamp.UTC()
	rec.Alert.CreatedAt = rec.Alert.CreatedAt.UTC()
	rec.ProcessedAt = rec.ProcessedAt.UTC()
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time.UTC()
		rec.Alert.AcknowledgedAt = &t
	}
	rec.Alert.AcknowledgedBy = acknowledgedBy.String
	rec.Alert.Resolution = resolution.String

	rec.Alert.Metadata = map[string]any{}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Alert.Metadata); err != nil {
			return Record{}, fmt.Errorf("decode alert metadata: %w", err)
		}
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
