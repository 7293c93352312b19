package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetd/internal/core"
)

type fakeWriter struct {
	saved [][]core.BudgetRow
	err   error
}

func (w *fakeWriter) SaveBudgetRows(_ context.Context, rows []core.BudgetRow) error {
	if w.err != nil {
		return w.err
	}
	w.saved = append(w.saved, rows)
	return nil
}

type fakePublisher struct {
	published []core.BudgetRow
	err       error
}

func (p *fakePublisher) PublishBudgetAssigned(_ context.Context, row core.BudgetRow) error {
	p.published = append(p.published, row)
	return p.err
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func rows() []core.BudgetRow {
	return []core.BudgetRow{
		{UserID: "u", CategoryID: 2, Month: "2024-03", Assigned: core.Cents(60000)},
		{UserID: "u", CategoryID: 3, Month: "2024-03", Assigned: core.Cents(30000)},
	}
}

func TestBudgetService_SavesThenPublishesEachRow(t *testing.T) {
	w, p := &fakeWriter{}, &fakePublisher{}
	s := NewBudgetService(w, p)

	require.NoError(t, s.SaveBudgetRows(context.Background(), rows()))
	require.Len(t, w.saved, 1)
	assert.Len(t, w.saved[0], 2)
	assert.Equal(t, rows(), p.published)
}

func TestBudgetService_PublishFailureDoesNotFailWrite(t *testing.T) {
	w, p := &fakeWriter{}, &fakePublisher{err: errors.New("broker down")}
	s := NewBudgetService(w, p)

	require.NoError(t, s.SaveBudgetRows(context.Background(), rows()))
	assert.Len(t, p.published, 2, "every row is still attempted")
}

func TestBudgetService_WriteFailureSkipsPublish(t *testing.T) {
	w, p := &fakeWriter{err: errors.New("locked")}, &fakePublisher{}
	s := NewBudgetService(w, p)

	err := s.SaveBudgetRows(context.Background(), rows())
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
	assert.Empty(t, p.published)
}

func TestBudgetService_NoPublisherAndEmptyBatch(t *testing.T) {
	w := &fakeWriter{}
	s := NewBudgetService(w, nil)
	require.NoError(t, s.SaveBudgetRows(context.Background(), nil))
	assert.Empty(t, w.saved)
	require.NoError(t, s.SaveBudgetRows(context.Background(), rows()))
	assert.Len(t, w.saved, 1)
}

func TestBudgetService_Close(t *testing.T) {
	var order []string
	ok := closerFunc(func() error { order = append(order, "ok"); return nil })
	bad := closerFunc(func() error { order = append(order, "bad"); return errors.New("boom") })

	assert.NoError(t, NewBudgetService(&fakeWriter{}, nil).Close())

	err := NewBudgetService(&fakeWriter{}, nil, bad, nil, ok).Close()
	require.Error(t, err)
	assert.Equal(t, []string{"bad", "ok"}, order)
}
