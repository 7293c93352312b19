package backend

import (
	"context"
	"fmt"
	"time"

	"budgetd/internal/amqp"
	"budgetd/internal/core"
	applog "budgetd/internal/log"
	"budgetd/internal/services"
	"budgetd/internal/storage"
	"budgetd/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}

	// A broker outage at startup only delays the export; the sweep catches up.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without export events", applog.FieldError, err)
		} else {
			publisher = amqpClient
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	var writer *services.BudgetService
	if amqpClient != nil {
		writer = services.NewBudgetService(repo, publisher, amqpClient, repo)
	} else {
		writer = services.NewBudgetService(repo, publisher, repo)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: repo,
		Writer:  writer,
		Ping:    repo.Ping,
		Cleanup: writer.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	var st *memory.Store
	if config.SampleUser != "" {
		st = memory.NewWithSampleData(config.SampleUser, core.MonthOf(time.Now()))
	} else {
		st = memory.New()
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "sample_user", config.SampleUser)

	return &BackendResult{
		Backend: st,
		Writer:  services.NewBudgetService(st, nil),
	}, nil
}
