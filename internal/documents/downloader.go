// Package documents fetches invoice PDFs for resolved document keys and
// hands them to a destination.
package documents

import (
	"context"
	"time"

	"faturas/internal/core"
	"faturas/internal/log"
	"faturas/internal/metrics"
	"faturas/internal/sources"
)

// Sink receives the bytes of one document under its conventional filename.
type Sink interface {
	Save(ctx context.Context, filename string, data []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, filename string, data []byte) error

func (f SinkFunc) Save(ctx context.Context, filename string, data []byte) error {
	return f(ctx, filename, data)
}

// Event describes a completed download.
type Event struct {
	Key          core.DocumentKey
	AccountID    string
	BillingMonth string
	Filename     string
	Size         int
	DownloadedAt time.Time
}

// Notifier is told about every successful download.
type Notifier interface {
	DocumentDownloaded(ctx context.Context, e Event) error
}

// Request is one download. AccountID and BillingMonth are informational.
type Request struct {
	Key          core.DocumentKey
	AccountID    string
	BillingMonth string
}

// Downloader issues exactly one fetch per call; there is no retry.
type Downloader struct {
	fetcher  sources.DocumentFetcher
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
}

// NewDownloader returns a downloader. notifier may be nil.
func NewDownloader(fetcher sources.DocumentFetcher, notifier Notifier, logger *log.Logger) *Downloader {
	if fetcher == nil {
		fetcher = sources.Unavailable{}
	}
	if logger == nil {
		logger = log.Default(log.ComponentDocuments)
	}
	return &Downloader{
		fetcher:  fetcher,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentDocuments),
		now:      time.Now,
	}
}

// Download fetches the document for req.Key and saves it to sink under
// req.Key.Filename(). Nothing reaches the sink when the fetch fails.
func (d *Downloader) Download(ctx context.Context, req Request, sink Sink) (Event, error) {
	start := d.now()
	filename := req.Key.Filename()

	data, err := d.fetcher.FetchDocument(ctx, req.Key)
	if err != nil {
		metrics.ObserveDownload(metrics.ResultError, d.now().Sub(start))
		log.NewStructuredLogger(d.logger).LogError(ctx, "Document fetch failed", err,
			log.ComponentDocuments, log.OpDownload,
			log.NewFields().WithSelection(req.AccountID, req.BillingMonth))
		return Event{}, err
	}
	if err := sink.Save(ctx, filename, data); err != nil {
		metrics.ObserveDownload(metrics.ResultError, d.now().Sub(start))
		d.logger.ErrorContext(ctx, "Document could not be saved",
			log.FieldFilename, filename,
			log.FieldError, err.Error())
		return Event{}, err
	}
	metrics.ObserveDownload(metrics.ResultSuccess, d.now().Sub(start))

	evt := Event{
		Key:          req.Key,
		AccountID:    req.AccountID,
		BillingMonth: req.BillingMonth,
		Filename:     filename,
		Size:         len(data),
		DownloadedAt: d.now(),
	}
	log.NewStructuredLogger(d.logger).LogDocumentDownloaded(ctx, req.Key.InstallationID, filename, len(data))

	if d.notifier != nil {
		if err := d.notifier.DocumentDownloaded(ctx, evt); err != nil {
			d.logger.WarnContext(ctx, "Download event not published",
				log.FieldFilename, filename,
				log.FieldError, err.Error())
		}
	}
	return evt, nil
}
