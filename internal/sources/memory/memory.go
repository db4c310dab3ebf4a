package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"faturas/internal/core"
	"faturas/internal/sources"
)

// Store serves invoice records from memory or from a fixture file that is
// re-read on every LoadAll, so edits show up on reload.
type Store struct {
	mu      sync.Mutex
	path    string
	docsDir string
	items   []core.Invoice
}

// Ensure interface conformance
var (
	_ sources.RecordSource        = (*Store)(nil)
	_ sources.AccountRecordSource = (*Store)(nil)
	_ sources.DocumentFetcher     = (*Store)(nil)
)

// New returns a store holding a fixed set of records.
func New(records []core.Invoice) *Store {
	return &Store{items: append([]core.Invoice(nil), records...)}
}

// NewFromFile returns a store backed by a .json, .yaml or .yml fixture.
// docsDir, when set, holds PDFs named by core.DocumentKey.Filename.
func NewFromFile(path, docsDir string) *Store {
	return &Store{path: path, docsDir: docsDir}
}

// WithDocumentsDir sets the directory FetchDocument reads from.
func (s *Store) WithDocumentsDir(dir string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docsDir = dir
	return s
}

// LoadAll returns the records in file order.
func (s *Store) LoadAll(_ context.Context) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return append([]core.Invoice(nil), s.items...), nil
	}
	records, err := ReadFile(s.path)
	if err != nil {
		return nil, &core.FetchError{Op: "load records", URL: "file://" + s.path, Err: err}
	}
	s.items = records
	return append([]core.Invoice(nil), records...), nil
}

// LoadByAccount filters a fresh load down to one account.
func (s *Store) LoadByAccount(ctx context.Context, accountID string) ([]core.Invoice, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return core.Filter(all, core.ForAccount(accountID)), nil
}

// FetchDocument reads {docsDir}/{installationId}-{month}-{year}.pdf.
func (s *Store) FetchDocument(_ context.Context, key core.DocumentKey) ([]byte, error) {
	s.mu.Lock()
	dir := s.docsDir
	s.mu.Unlock()
	if dir == "" {
		return nil, sources.ErrDocumentsUnavailable
	}
	name := key.Filename()
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid document name %q", name)
	}
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.FetchError{Op: "fetch document", URL: "file://" + path, Err: err}
	}
	return data, nil
}

// ReadFile decodes a fixture file. YAML documents are converted to JSON
// first so both formats go through the same record decoder. YAML scalars
// keep their source text, so ids like 0123 and long amounts survive.
func ReadFile(path string) ([]core.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	records, skipped, err := sources.DecodeRecords(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(skipped) > 0 {
		return nil, fmt.Errorf("parse %s: %w", path, skipped[0])
	}
	return records, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return []byte("[]"), nil
	}
	v, err := yamlValue(root.Content[0])
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// yamlValue mirrors n as plain Go values. Scalars stay strings; the record
// decoder parses numbers itself.
func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return yamlValue(n.Content[0])
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil, nil
		}
		return n.Value, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}
