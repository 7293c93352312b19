package budget

import (
	"context"
	"errors"
	"time"

	"budgetd/internal/cache"
	"budgetd/internal/core"
	applog "budgetd/internal/log"
	"budgetd/internal/store"
)

// Manager keeps one Session per (user, month) in an LRU. Sessions evicted for
// capacity or idleness flush their queued writes first.
type Manager struct {
	src      Source
	boot     store.CategoryWriter
	writer   store.BudgetWriter
	opts     Options
	logger   *applog.Logger
	sessions *cache.LRUCache[*Session]
}

// ManagerConfig sizes the session cache.
type ManagerConfig struct {
	Options
	MaxSessions int
	SessionTTL  time.Duration
}

func NewManager(src Source, boot store.CategoryWriter, writer store.BudgetWriter, cfg ManagerConfig, logger *applog.Logger) *Manager {
	if logger == nil {
		logger = applog.Discard()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 256
	}
	m := &Manager{
		src:      src,
		boot:     boot,
		writer:   writer,
		opts:     cfg.Options,
		logger:   logger.WithComponent(applog.ComponentBudget),
		sessions: cache.NewLRUCache[*Session](cfg.MaxSessions, cfg.SessionTTL),
	}
	m.sessions.OnEvict(m.evicted)
	return m
}

func sessionKey(userID string, month core.Month) string {
	return userID + "|" + string(month)
}

// Open returns the session for the user's month, loading it on first use.
func (m *Manager) Open(ctx context.Context, userID string, month core.Month) (*Session, View) {
	s, _ := m.sessions.GetOrCreate(sessionKey(userID, month), func() *Session {
		return NewSession(userID, month, m.src, m.boot, m.writer, m.opts, m.logger)
	})
	return s, s.Open(ctx)
}

// Lookup returns an already open session.
func (m *Manager) Lookup(userID string, month core.Month) (*Session, bool) {
	return m.sessions.Get(sessionKey(userID, month))
}

// Sessions exposes the cache for the expiry janitor.
func (m *Manager) Sessions() cache.Cleaner {
	return m.sessions
}

// ReloadUser refreshes every open session of a user, e.g. after a new
// transaction or category changed activity or the tree.
func (m *Manager) ReloadUser(ctx context.Context, userID string) {
	m.sessions.Each(func(_ string, s *Session) {
		if s.UserID() == userID {
			s.Reload(ctx)
		}
	})
}

// FlushAll writes every session's queued edits.
func (m *Manager) FlushAll(ctx context.Context) error {
	var errs []error
	m.sessions.Each(func(_ string, s *Session) {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Close flushes and stops every session.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	m.sessions.Each(func(_ string, s *Session) {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func (m *Manager) evicted(key string, s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.FetchTimeout+5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		m.logger.Error("Failed to flush evicted session", "session", key, applog.FieldError, err)
		return
	}
	m.logger.Debug("Budget session evicted", "session", key)
}
