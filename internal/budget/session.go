package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"budgetd/internal/core"
	applog "budgetd/internal/log"
	"budgetd/internal/store"
)

// ErrNotLoaded is returned for edits before the first successful load.
var ErrNotLoaded = errors.New("budget not loaded")

// Source is everything a session reads from the backend.
type Source interface {
	store.CategoryReader
	store.BudgetReader
	store.TransactionLister
	store.SummaryReader
}

// Options tune a session.
type Options struct {
	Window       time.Duration // write quiescence window
	FetchTimeout time.Duration // per load
}

// View is a consistent snapshot of a session.
type View struct {
	Tree          Tree
	Summary       core.Summary
	ReadyToAssign core.Money
	Loaded        bool
	Version       uint64
}

// Session is the edit session of one user for one month. It owns the tree,
// a write queue, and the month summary.
type Session struct {
	userID string
	month  core.Month
	src    Source
	boot   store.CategoryWriter
	writer store.BudgetWriter
	opts   Options
	logger *applog.Logger
	queue  *WriteQueue

	mu            sync.Mutex
	tree          Tree
	loaded        bool
	version       uint64
	applied       uint64
	summary       core.Summary
	summarySeq    uint64
	summaryLoaded bool

	seq    atomic.Uint64
	opened singleflight.Group
}

// NewSession wires a session. boot may be nil when the backend needs no bootstrap.
func NewSession(userID string, month core.Month, src Source, boot store.CategoryWriter, writer store.BudgetWriter, opts Options, logger *applog.Logger) *Session {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 7 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Session{
		userID: userID,
		month:  month,
		src:    src,
		boot:   boot,
		writer: writer,
		opts:   opts,
		logger: logger.With(applog.FieldUserID, userID, applog.FieldMonth, string(month)),
	}
	s.queue = NewWriteQueue(opts.Window, s.persist)
	s.queue.AfterFlush(s.Reload)
	return s
}

func (s *Session) UserID() string    { return s.userID }
func (s *Session) Month() core.Month { return s.month }

// Open bootstraps default categories and performs the initial loads. Callers
// racing on a fresh session share one open.
func (s *Session) Open(ctx context.Context) View {
	_, _, _ = s.opened.Do("open", func() (any, error) {
		if s.View().Loaded {
			return nil, nil
		}
		if s.boot != nil {
			if err := s.boot.AddDefaultCategories(ctx, s.userID); err != nil {
				s.logger.ErrorContext(ctx, "Failed to add default categories", applog.FieldError, err)
			}
		}
		s.Reload(ctx)
		return nil, nil
	})
	return s.View()
}

// Reload refreshes the tree and the summary independently; one failing does
// not cancel the other.
func (s *Session) Reload(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { return s.Load(ctx) })
	g.Go(func() error { return s.LoadSummary(ctx) })
	_ = g.Wait()
}

// Load rebuilds the tree from the backend. On failure the error is logged and
// the previous tree stays. A load that finishes after a newer one is dropped.
func (s *Session) Load(ctx context.Context) error {
	seq := s.seq.Add(1)
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	var (
		cats []core.Category
		rows []core.BudgetRow
		page core.TransactionPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cats, err = s.src.ListCategories(gctx, s.userID)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		rows, err = s.src.ListBudgetRows(gctx, s.userID, s.month)
		if err != nil {
			return fmt.Errorf("list budget rows: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		page, err = s.src.ListTransactions(gctx, s.userID, s.month, 1, store.MaxPageSize)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load budget", applog.FieldError, err, applog.FieldSequence, seq)
		return err
	}
	if page.Total > len(page.Transactions) {
		s.logger.WarnContext(ctx, "Transaction page truncated, activity is partial",
			"total", page.Total, "fetched", len(page.Transactions))
	}

	tree := Build(s.month, cats, rows, page.Transactions)
	if len(tree.DuplicateRows) > 0 {
		s.logger.WarnContext(ctx, "Duplicate budget rows found, highest row id wins",
			"category_ids", tree.DuplicateRows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		s.logger.DebugContext(ctx, "Discarding stale budget load", applog.FieldSequence, seq, "applied", s.applied)
		return nil
	}
	// Edits enqueue under s.mu, so this sees every accepted edit.
	for _, e := range s.queue.Pending() {
		if next, _, err := tree.WithBudget(e.ParentID, e.Row.CategoryID, e.Row.Assigned); err == nil {
			tree = next
		}
	}
	s.applied = seq
	s.tree = tree
	s.loaded = true
	s.version++
	return nil
}

// LoadSummary refreshes income and expenses for the month.
func (s *Session) LoadSummary(ctx context.Context) error {
	seq := s.seq.Add(1)
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	sum, err := s.src.ReadSummary(ctx, s.userID, s.month)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load summary", applog.FieldError, err)
		return fmt.Errorf("read summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.summarySeq {
		return nil
	}
	s.summarySeq = seq
	s.summary = sum
	s.summaryLoaded = true
	return nil
}

// Edit sets a child's budget locally and queues the write. A closed session
// returns ErrSessionClosed and its tree is left alone.
func (s *Session) Edit(parentID, childID int64, value core.Money) (View, error) {
	if value.IsNegative() {
		return View{}, core.ErrNegativeBudget
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return View{}, ErrNotLoaded
	}
	tree, line, err := s.tree.WithBudget(parentID, childID, value)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	err = s.queue.Enqueue(PendingEdit{
		ParentID: parentID,
		Row: core.BudgetRow{
			UserID:     s.userID,
			CategoryID: childID,
			Month:      s.month,
			Assigned:   value,
			Actual:     line.Activity,
		},
	})
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	s.tree = tree
	s.version++
	s.mu.Unlock()

	return s.View(), nil
}

// Flush writes queued edits immediately.
func (s *Session) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}

// Close stops accepting writes and flushes what is queued.
func (s *Session) Close(ctx context.Context) error {
	return s.queue.Stop(ctx)
}

// PendingWrites reports how many edits wait for the window to pass.
func (s *Session) PendingWrites() int {
	return s.queue.Len()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Tree:          s.tree,
		Summary:       s.summary,
		ReadyToAssign: s.summary.ReadyToAssign(),
		Loaded:        s.loaded,
		Version:       s.version,
	}
}

// persist is the queue's flush. The queue reloads from the backend once the
// batch is no longer pending, so a failed write is not laid back onto the tree.
func (s *Session) persist(ctx context.Context, edits []PendingEdit) error {
	rows := make([]core.BudgetRow, len(edits))
	for i, e := range edits {
		rows[i] = e.Row
	}

	if err := s.writer.SaveBudgetRows(ctx, rows); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save budget rows", applog.FieldError, err, applog.FieldRows, len(rows))
		return err
	}
	s.logger.InfoContext(ctx, "Budget rows saved", applog.FieldRows, len(rows))
	return nil
}
