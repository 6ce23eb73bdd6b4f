package credstore

import (
	"context"
	"errors"
	"strings"

	"secdash/internal/config"
)

// Store persists the bearer credential across process restarts. Get returns
// an empty token when none is stored.
type Store interface {
	Init(ctx context.Context) error
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Close() error
}

func NewStore(cfg config.CredStoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "file":
		return NewFile(cfg.Path), nil
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "redis":
		return NewRedis(cfg.Addr, cfg.Key), nil
	default:
		return nil, errors.New("unsupported credential store driver")
	}
}
