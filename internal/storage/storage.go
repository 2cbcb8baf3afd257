// Package storage provides the optional audit trail.
//
// It records command actions append-only. It is never read
// back to restore state: alert records are memory-only and reset on restart.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "alertbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. If Driver is empty or "none", storage is
// disabled and Open returns (nil, nil).
type Config struct {
	Driver string
	Path   string
}

// AuditEntry is one recorded action.
type AuditEntry struct {
	At      time.Time
	ActorID int64
	ChatID  int64
	Action  string // "alert.add", "alert.remove", "alert.clear", ...
	Target  string
	OK      bool
	Error   string
}

// Store is the minimal persistence API used by the router.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
