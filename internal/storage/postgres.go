package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"secdash/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/secdash?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
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
			is_resolved BOOLEAN NOT NULL,
			resolved_at TEXT,
			resolved_by TEXT,
			resolution_notes TEXT,
			details_json JSONB
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
			is_anomalous BOOLEAN NOT NULL,
			anomaly_score DOUBLE PRECISION NOT NULL,
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

func (s *postgresStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	var resolvedAt any
	if alert.ResolvedAt != nil {
		resolvedAt = encodeTime(*alert.ResolvedAt)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, title, description, severity, source, created_at, is_resolved, resolved_at, resolved_by, resolution_notes, details_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
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

func (s *postgresStore) SaveTraffic(ctx context.Context, record model.TrafficRecord) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO traffic (id, source_ip, destination_ip, source_port, destination_port, protocol, packet_size, ts, is_anomalous, anomaly_score, anomaly_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
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

func (s *postgresStore) LoadAlerts(ctx context.Context) ([]model.Alert, error) {
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

func (s *postgresStore) LoadTraffic(ctx context.Context, limit int) ([]model.TrafficRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_ip, destination_ip, source_port, destination_port, protocol, packet_size, ts, is_anomalous, anomaly_score, anomaly_type
		FROM traffic ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTraffic(rows)
}
