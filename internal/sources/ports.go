package sources

import (
	"context"
	"errors"

	"faturas/internal/core"
)

// ErrDocumentsUnavailable is returned by fetchers that have no way to
// produce invoice PDFs (for example a memory source without a documents dir).
var ErrDocumentsUnavailable = errors.New("invoice documents are not available from this source")

// Ports for outbound adapters.
type (
	// RecordSource returns every invoice record known upstream, in the
	// order the upstream reports them.
	RecordSource interface {
		LoadAll(ctx context.Context) ([]core.Invoice, error)
	}

	// AccountRecordSource is implemented by sources that can answer a
	// per-account query without a full load.
	AccountRecordSource interface {
		LoadByAccount(ctx context.Context, accountID string) ([]core.Invoice, error)
	}

	// DocumentFetcher returns the PDF bytes for one resolved document key.
	DocumentFetcher interface {
		FetchDocument(ctx context.Context, key core.DocumentKey) ([]byte, error)
	}
)

// Unavailable is a DocumentFetcher that always fails with
// ErrDocumentsUnavailable.
type Unavailable struct{}

func (Unavailable) FetchDocument(context.Context, core.DocumentKey) ([]byte, error) {
	return nil, ErrDocumentsUnavailable
}
