package backend

import (
	"context"
	"errors"
	"fmt"

	"faturas/internal/amqp"
	"faturas/internal/log"
	"faturas/internal/sources"
	"faturas/internal/sources/api"
	"faturas/internal/sources/google"
	"faturas/internal/sources/memory"
	"faturas/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend builds the record source for config.Type, then attaches the
// document fetcher and the optional AMQP notifier.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case APIBackend:
		result, err = f.createAPIBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		result, err = f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	result.Backend.Name = config.Type.String()

	// A configured upstream API serves documents for every backend.
	if result.Backend.Documents == nil && config.APIBaseURL != "" {
		client, err := f.newAPIClient(config)
		if err != nil {
			_ = result.Close()
			return nil, err
		}
		result.Backend.Documents = client
	}
	if result.Backend.Documents == nil {
		f.logger.Warn("No document source configured, downloads are disabled",
			log.FieldBackend, config.Type.String())
		result.Backend.Documents = sources.Unavailable{}
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPRoutingKey, "", f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without download events",
				log.FieldError, err.Error())
		} else {
			f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange)
			result.Backend.Notifier = client
			result.Cleanup = chain(result.Cleanup, client.Close)
		}
	}

	return result, nil
}

func (f *DefaultFactory) newAPIClient(config Config) (*api.Client, error) {
	client, err := api.New(api.Options{
		BaseURL:       config.APIBaseURL,
		RecordsPath:   config.RecordsPath,
		DocumentsPath: config.DocumentsPath,
		Timeout:       config.APITimeout,
		Logger:        f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}
	return client, nil
}

func (f *DefaultFactory) createAPIBackend(config Config) (*BackendResult, error) {
	client, err := f.newAPIClient(config)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Initialized API backend", "base_url", config.APIBaseURL)
	return &BackendResult{
		Backend: Backend{Records: client, Accounts: client, Documents: client},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store := memory.NewFromFile(config.DataFile, config.DocumentsDir)
	b := Backend{Records: store, Accounts: store}
	if config.DocumentsDir != "" {
		b.Documents = store
	}
	f.logger.Info("Initialized memory backend",
		"data_file", config.DataFile,
		"documents_dir", config.DocumentsDir)
	return &BackendResult{Backend: b}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{
		Backend: Backend{Records: repo, Accounts: repo},
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := google.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	return &BackendResult{
		Backend: Backend{Records: cli, Accounts: cli},
	}, nil
}

func chain(first, second CleanupFunc) CleanupFunc {
	if first == nil {
		return second
	}
	return func() error {
		return errors.Join(second(), first())
	}
}
