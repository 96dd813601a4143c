package backend

import (
	"context"
	"fmt"
	"log/slog"

	"facturas/internal/kv"
	"facturas/internal/storage"
)

// DefaultOpener implements the Opener interface
type DefaultOpener struct {
	logger *slog.Logger
}

// NewOpener creates a new backend opener
func NewOpener(logger *slog.Logger) Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultOpener{
		logger: logger,
	}
}

// Open selects the record store once. A sqlite backend that cannot be opened
// or migrated is replaced by the flat backend for the rest of the process;
// the failure is logged, not returned.
func (o *DefaultOpener) Open(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Kind {
	case SQLiteBackend:
		res, err := o.openSQLite(config)
		if err == nil {
			return res, nil
		}
		o.logger.WarnContext(ctx, "SQLite backend unavailable, falling back to flat storage",
			"error", err,
			"db_path", config.SQLiteDBPath,
			"data_dir", config.DataDir)
		return o.openFlat(config, SQLiteBackend)
	case FlatBackend:
		return o.openFlat(config, FlatBackend)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Kind)
	}
}

func (o *DefaultOpener) openSQLite(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	o.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Result{
		Store:     repo,
		Kind:      SQLiteBackend,
		Requested: SQLiteBackend,
		Cleanup:   repo.Close,
	}, nil
}

func (o *DefaultOpener) openFlat(config Config, requested Kind) (*Result, error) {
	kvs, err := kv.Open(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize flat storage: %w", err)
	}
	repo := storage.NewFlatRepository(kvs)

	o.logger.Info("Initialized flat backend", "data_dir", config.DataDir)

	return &Result{
		Store:     repo,
		Kind:      FlatBackend,
		Requested: requested,
		Cleanup:   repo.Close,
	}, nil
}

// Open is shorthand for NewOpener(logger).Open(ctx, config).
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Result, error) {
	return NewOpener(logger).Open(ctx, config)
}
