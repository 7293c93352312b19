package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetd/internal/config"
	"budgetd/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", AMQPQueue: "q"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLiteDBPath)
	assert.Equal(t, "q", cfg.AMQPQueue)
	assert.Equal(t, DefaultUser, cfg.SampleUser)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sqlite with amqp", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db", AMQPURL: "amqp://localhost/"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"memory with amqp", Config{Type: MemoryBackend, AMQPURL: "amqp://localhost/"}, true},
		{"unknown", Config{Type: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Len(t, GetBackendTypes(), 2)
}

func TestCreateBackend_Memory(t *testing.T) {
	ctx := context.Background()
	result, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, SampleUser: "alice"})
	require.NoError(t, err)
	assert.Nil(t, result.Ping)
	assert.Nil(t, result.Cleanup)

	cats, err := result.Backend.ListCategories(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, cats, "sample data is loaded for the sample user")
}

func TestCreateBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "budget.db")

	result, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Cleanup() })
	require.NoError(t, result.Ping(ctx))

	parent, err := result.Backend.AddCategory(ctx, core.Category{UserID: "u", Name: "Home", Type: core.Expense})
	require.NoError(t, err)
	child, err := result.Backend.AddCategory(ctx, core.Category{UserID: "u", Name: "Rent", ParentID: &parent.ID})
	require.NoError(t, err)

	row := core.BudgetRow{UserID: "u", CategoryID: child.ID, Month: "2024-03", Assigned: core.Cents(90000)}
	require.NoError(t, result.Writer.SaveBudgetRows(ctx, []core.BudgetRow{row}))

	rows, err := result.Backend.ListBudgetRows(ctx, "u", "2024-03")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(90000), rows[0].Assigned.Cents)
}

func TestCreateBackend_Invalid(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, AMQPURL: "amqp://x/"})
	assert.Error(t, err)
}
