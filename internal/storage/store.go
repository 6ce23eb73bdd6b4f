package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"secdash/internal/config"
	"secdash/internal/model"
)

// Store persists snapshots of the alert and traffic working sets so a
// restarted process can rehydrate without replaying the feed.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveAlert(ctx context.Context, alert model.Alert) error
	SaveTraffic(ctx context.Context, record model.TrafficRecord) error
	LoadAlerts(ctx context.Context) ([]model.Alert, error)
	LoadTraffic(ctx context.Context, limit int) ([]model.TrafficRecord, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func decodeDetails(data string) model.Details {
	if data == "" || data == "null" {
		return nil
	}
	var details model.Details
	if err := json.Unmarshal([]byte(data), &details); err != nil {
		return nil
	}
	return details
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
