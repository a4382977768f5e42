package consolidate

import (
	"testing"
	"time"

	"github.com/lherron/usageadm/internal/db"
	"github.com/lherron/usageadm/internal/logging"
	"github.com/lherron/usageadm/internal/retry"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

// newSqliteEngine builds an engine with its own connection to the database at path.
func newSqliteEngine(t *testing.T, path string, opts Options) (*Engine, *db.Manager) {
	t.Helper()
	conns := db.NewManager(db.OpenerFor(db.EngineSqlite, path), logging.Discard())
	t.Cleanup(func() { conns.Close() })
	if opts.Retry.MaxRetries == 0 {
		opts.Retry = fastRetry()
	}
	return NewEngine(conns, opts, logging.Discard()), conns
}
