// Package consolidate merges duplicate accounts onto their platform identity
// and purges accounts with all their owned rows.
package consolidate

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lherron/usageadm/internal/db"
	"github.com/lherron/usageadm/internal/retry"
	"github.com/lherron/usageadm/internal/store"
)

// Options configures an Engine
type Options struct {
	// BatchSize bounds each event delete of a purge
	BatchSize int
	// CredentialSuffix decorates a donor credential during rotation
	CredentialSuffix string
	// DryRun plans merges without writing
	DryRun bool
	// Retry governs reconnect attempts for reads that precede mutation
	Retry retry.Config
	// OnBatch, when set, is called after every committed event batch
	OnBatch func(accountID string, batch int, deleted, total int64)
}

// Engine runs consolidation and purges over one managed connection, one
// unit of work at a time.
type Engine struct {
	conns  *db.Manager
	opts   Options
	runID  string
	logger *logrus.Entry
}

// NewEngine creates an Engine. Every log line it emits carries the run id.
func NewEngine(conns *db.Manager, opts Options, logger logrus.FieldLogger) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.CredentialSuffix == "" {
		opts.CredentialSuffix = "-rm"
	}
	if opts.Retry.MaxRetries <= 0 {
		opts.Retry = retry.DefaultConfig()
	}
	opts.Retry.Retryable = db.IsConnectivityError

	runID := uuid.NewString()
	return &Engine{
		conns: conns,
		opts:  opts,
		runID: runID,
		logger: logger.WithFields(logrus.Fields{
			"module": "consolidate",
			"run_id": runID,
		}),
	}
}

// RunID identifies this engine's run in logs and reports
func (e *Engine) RunID() string {
	return e.runID
}

// withReconnect runs fn against the live connection. After a connectivity
// failure the connection is replaced and fn is retried with backoff.
// Only idempotent work may go through here.
func (e *Engine) withReconnect(ctx context.Context, operation string, fn func(s *store.Store) error) error {
	stale := false
	return retry.WithBackoff(ctx, e.opts.Retry, e.logger, operation, func() error {
		database, err := e.connect(ctx, stale)
		if err != nil {
			return err
		}
		err = fn(store.New(database))
		stale = db.IsConnectivityError(err)
		return err
	})
}

func (e *Engine) connect(ctx context.Context, stale bool) (*db.DB, error) {
	if stale {
		return e.conns.Reacquire(ctx)
	}
	return e.conns.Acquire(ctx)
}

// acquire returns a live store, reconnecting with backoff if needed
func (e *Engine) acquire(ctx context.Context) (*store.Store, error) {
	var s *store.Store
	err := retry.WithBackoff(ctx, e.opts.Retry, e.logger, "acquire connection", func() error {
		database, err := e.conns.Acquire(ctx)
		if err != nil {
			return err
		}
		s = store.New(database)
		return nil
	})
	return s, err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
