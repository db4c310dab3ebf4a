package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faturas/internal/config"
	"faturas/internal/core"
	"faturas/internal/sources"
	"faturas/internal/sources/api"
	"faturas/internal/sources/memory"
	"faturas/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:   config.BackendMemory,
		DataFile:      "data/faturas.json",
		DocumentsDir:  "data/pdfs",
		APITimeout:    5 * time.Second,
		RecordsPath:   "/faturas",
		DocumentsPath: "/download-pdf",
	}
	bc, err := FromAppConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, bc.Type)
	assert.Equal(t, "data/pdfs", bc.DocumentsDir)
	assert.Equal(t, "/download-pdf", bc.DocumentsPath)

	_, err = FromAppConfig(&config.Config{DataBackend: "csv"})
	assert.Error(t, err)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"api ok", Config{Type: APIBackend, APIBaseURL: "http://localhost:3000"}, false},
		{"api without url", Config{Type: APIBackend}, true},
		{"memory without file", Config{Type: MemoryBackend}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sheets without id", Config{Type: SheetsBackend, GoogleSheetName: "Faturas"}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "faturas.json")
	require.NoError(t, os.WriteFile(dataFile, []byte(`[{"accountId":"X","installationId":"I1","billingMonth":"JAN/24"}]`), 0o644))

	f := NewFactory(nil)

	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, DataFile: dataFile})
	require.NoError(t, err)
	defer res.Close()
	assert.Equal(t, "memory", res.Backend.Name)
	assert.IsType(t, &memory.Store{}, res.Backend.Records)
	assert.Nil(t, res.Backend.Notifier)

	_, err = res.Backend.Documents.FetchDocument(context.Background(), core.DocumentKey{InstallationID: "I1", Month: "01", Year: "2024"})
	assert.True(t, errors.Is(err, sources.ErrDocumentsUnavailable))

	recs, err := res.Backend.Records.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	// With a documents dir the memory store serves PDFs itself.
	res, err = f.CreateBackend(context.Background(), Config{Type: MemoryBackend, DataFile: dataFile, DocumentsDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, res.Backend.Documents)

	// An upstream URL serves documents when the store has none.
	res, err = f.CreateBackend(context.Background(), Config{
		Type: MemoryBackend, DataFile: dataFile,
		APIBaseURL: "http://localhost:3000", RecordsPath: "/records", DocumentsPath: "/documents", APITimeout: time.Second,
	})
	require.NoError(t, err)
	assert.IsType(t, &api.Client{}, res.Backend.Documents)
}

func TestCreateSQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "faturas.db")
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: dbPath})
	require.NoError(t, err)
	defer func() { require.NoError(t, res.Close()) }()

	assert.IsType(t, &storage.SQLiteRepository{}, res.Backend.Records)
	recs, err := res.Backend.Records.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCreateAPIBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type: APIBackend, APIBaseURL: "http://localhost:3000",
		RecordsPath: "/records", DocumentsPath: "/documents", APITimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Same(t, res.Backend.Records, res.Backend.Documents)
	assert.NotNil(t, res.Backend.Accounts)
}
