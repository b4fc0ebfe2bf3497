package jobstore

import (
	"context"
	"errors"
	"strings"

	"groupcast/pkg/logx"
)

// Store is the persistence API for pending deferred jobs.
//
// The scheduler is the sole writer; implementations still serialize access to
// the backing file internally so overlapping timer callbacks cannot lose
// updates.
type Store interface {
	// Load reads all persisted jobs in stable order. It never fails: a
	// missing or corrupt backing file is treated as "no jobs" and logged,
	// not returned as an error.
	Load(ctx context.Context) []Job

	// AppendAll merges jobs into the persisted set and rewrites it.
	AppendAll(ctx context.Context, jobs []Job) error

	// RemoveByID drops one job from the persisted set. Removing an id that
	// is not present is a no-op.
	RemoveByID(ctx context.Context, id string) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown job store driver: " + driver)
	}
}
