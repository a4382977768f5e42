package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Opener dials a fresh connection
type Opener func(ctx context.Context) (*DB, error)

// Manager owns at most one live connection. Call sites that detect a dead
// connection ask for a replacement through Reacquire instead of reconnecting
// on their own.
type Manager struct {
	open   Opener
	logger logrus.FieldLogger

	mu         sync.Mutex
	current    *DB
	reconnects int
}

// NewManager creates a Manager. No connection is made until Acquire.
func NewManager(open Opener, logger logrus.FieldLogger) *Manager {
	return &Manager{open: open, logger: logger}
}

// OpenerFor returns an Opener dialing dsn with the given engine
func OpenerFor(engine Engine, dsn string) Opener {
	return func(ctx context.Context) (*DB, error) {
		return Open(ctx, engine, dsn)
	}
}

// Acquire returns the live connection, opening one if needed
func (m *Manager) Acquire(ctx context.Context) (*DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current, nil
	}
	return m.dialLocked(ctx)
}

// Reacquire drops the current connection and dials a new one
func (m *Manager) Reacquire(ctx context.Context) (*DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()
	m.reconnects++
	m.logger.WithField("reconnects", m.reconnects).Warn("Reacquiring database connection")
	return m.dialLocked(ctx)
}

// Invalidate drops the current connection; the next Acquire dials again
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.reconnects++
	}
	m.closeLocked()
}

// Reconnects returns how many times the connection was replaced
func (m *Manager) Reconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

// Close releases the live connection, if any
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}

func (m *Manager) dialLocked(ctx context.Context) (*DB, error) {
	conn, err := m.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	m.current = conn
	m.logger.WithFields(logrus.Fields{
		"engine": conn.Engine().String(),
		"target": conn.Target(),
	}).Debug("Database connection established")
	return conn, nil
}

func (m *Manager) closeLocked() {
	if m.current == nil {
		return
	}
	if err := m.current.Close(); err != nil {
		m.logger.WithError(err).Debug("Error closing stale connection")
	}
	m.current = nil
}
