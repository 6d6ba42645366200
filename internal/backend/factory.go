package backend

import (
	"context"
	"fmt"
	"time"

	"bokforing/internal/log"
	"bokforing/internal/sheets"
	"bokforing/internal/sheets/memory"
	"bokforing/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	now    func() time.Time
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		now:    time.Now,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
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

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	var source sheets.DocumentSource = repo
	if config.DataDirectory != "" {
		snapshots, err := memory.NewFromFiles(config.DataDirectory, f.now())
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("load snapshots: %w", err)
		}
		if snapshots.Len() > 0 {
			source = sheets.NewMultiSource(
				sheets.NamedSource{Name: "sqlite", Source: repo},
				sheets.NamedSource{Name: "snapshots", Source: snapshots},
			)
		}
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"data_directory", config.DataDirectory)

	return &Result{
		Source:    source,
		Writer:    repo,
		Documents: repo,
		Batches:   repo,
		Ready:     repo,
		Cleanup:   repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*Result, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := memory.NewFromFiles(dataDir, f.now())
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized memory backend",
		"data_directory", dataDir,
		log.FieldDocuments, store.Len())

	return &Result{
		Source:    store,
		Writer:    store,
		Documents: store,
	}, nil
}
