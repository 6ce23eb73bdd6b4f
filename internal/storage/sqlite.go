package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"secdash/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:secdash.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			severity TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL,
			is_resolved INTEGER NOT NULL,
			resolved_at TEXT,
			resolved_by TEXT,
			resolution_notes TEXT,
			details_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
		`CREATE TABLE IF NOT EXISTS traffic (
			id TEXT PRIMARY KEY,
			source_ip TEXT NOT NULL,
			destination_ip TEXT NOT NULL,
			source_port INTEGER NOT NULL,
			destination_port INTEGER NOT NULL,
			protocol TEXT NOT NULL,
			packet_size INTEGER NOT NULL,
			ts TEXT NOT NULL,
			is_anomalous INTEGER NOT NULL,
			anomaly_score REAL NOT NULL,
			anomaly_type TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_traffic_ts ON traffic(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	var resolvedAt any
	if alert.ResolvedAt != nil {
		resolvedAt = encodeTime(*alert.ResolvedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, title, description, severity, source, created_at, is_resolved, resolved_at, resolved_by, resolution_notes, details_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_resolved = excluded.is_resolved,
			resolved_at = excluded.resolved_at,
			resolved_by = excluded.resolved_by,
			resolution_notes = excluded.resolution_notes`,
		alert.ID,
		alert.Title,
		alert.Description,
		string(alert.Severity),
		string(alert.Source),
		encodeTime(alert.CreatedAt),
		alert.IsResolved,
		resolvedAt,
		alert.ResolvedBy,
		alert.ResolutionNotes,
		encodeJSON(alert.Details),
	)
	return err
}

func (s *sqliteStore) SaveTraffic(ctx context.Context, record model.TrafficRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO traffic (id, source_ip, destination_ip, source_port, destination_port, protocol, packet_size, ts, is_anomalous, anomaly_score, anomaly_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		record.ID,
		record.SourceIP,
		record.DestinationIP,
		record.SourcePort,
		record.DestinationPort,
		string(record.Protocol),
		record.PacketSize,
		encodeTime(record.Timestamp),
		record.IsAnomalous,
		record.AnomalyScore,
		record.AnomalyType,
	)
	return err
}

func (s *sqliteStore) LoadAlerts(ctx context.Context) ([]model.Alert, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, severity, source, created_at, is_resolved, resolved_at, resolved_by, resolution_notes, details_json
		FROM alerts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *sqliteStore) LoadTraffic(ctx context.Context, limit int) ([]model.TrafficRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_ip, destination_ip, source_port, destination_port, protocol, packet_size, ts, is_anomalous, anomaly_score, anomaly_type
		FROM traffic ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTraffic(rows)
}

func scanAlerts(rows *sql.Rows) ([]model.Alert, error) {
	out := make([]model.Alert, 0)
	for rows.Next() {
		var (
			alert       model.Alert
			severity    string
			source      string
			createdAt   string
			resolvedAt  sql.NullString
			resolvedBy  sql.NullString
			notes       sql.NullString
			description sql.NullString
			details     sql.NullString
		)
		if err := rows.Scan(&alert.ID, &alert.Title, &description, &severity, &source, &createdAt,
			&alert.IsResolved, &resolvedAt, &resolvedBy, &notes, &details); err != nil {
			return nil, err
		}
		alert.Description = description.String
		alert.Severity = model.Severity(severity)
		alert.Source = model.Source(source)
		alert.CreatedAt = decodeTime(createdAt)
		if resolvedAt.Valid && resolvedAt.String != "" {
			t := decodeTime(resolvedAt.String)
			alert.ResolvedAt = &t
		}
		alert.ResolvedBy = resolvedBy.String
		alert.ResolutionNotes = notes.String
		alert.Details = decodeDetails(details.String)
		out = append(out, alert)
	}
	return out, rows.Err()
}

func scanTraffic(rows *sql.Rows) ([]model.TrafficRecord, error) {
	out := make([]model.TrafficRecord, 0)
	for rows.Next() {
		var (
			record      model.TrafficRecord
			protocol    string
			ts          string
			anomalyType sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.SourceIP, &record.DestinationIP, &record.SourcePort,
			&record.DestinationPort, &protocol, &record.PacketSize, &ts,
			&record.IsAnomalous, &record.AnomalyScore, &anomalyType); err != nil {
			return nil, err
		}
		record.Protocol = model.Protocol(protocol)
		record.Timestamp = decodeTime(ts)
		record.AnomalyType = anomalyType.String
		out = append(out, record)
	}
	return out, rows.Err()
}
