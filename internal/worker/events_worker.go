// Package worker consumes download events published by the viewer.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"faturas/internal/amqp"
	"faturas/internal/log"
)

// JournalEntry is one line of the event journal.
type JournalEntry struct {
	Filename       string    `json:"filename"`
	InstallationID string    `json:"installationId"`
	Month          string    `json:"month"`
	Year           string    `json:"year"`
	AccountID      string    `json:"accountId,omitempty"`
	BillingMonth   string    `json:"billingMonth,omitempty"`
	Size           int       `json:"size"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventWorker appends every DocumentDownloaded event to a JSON-lines
// journal. Duplicate deliveries of the same file and timestamp are written
// once per process.
type EventWorker struct {
	mu      sync.Mutex
	out     io.Writer
	logger  *log.Logger
	seen    map[string]struct{}
	written int
}

func NewEventWorker(out io.Writer, logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.Default(log.ComponentAMQP)
	}
	return &EventWorker{
		out:    out,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// HandleDocumentDownloaded processes a single event from AMQP. A returned
// error makes the consumer requeue the message.
func (w *EventWorker) HandleDocumentDownloaded(ctx context.Context, msg *amqp.DocumentDownloadedMessage) error {
	key := fmt.Sprintf("%s@%d", msg.Filename, msg.Timestamp.UnixNano())

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.seen[key]; dup {
		w.logger.DebugContext(ctx, "Duplicate download event skipped", log.FieldFilename, msg.Filename)
		return nil
	}

	line, err := json.Marshal(JournalEntry{
		Filename:       msg.Filename,
		InstallationID: msg.InstallationID,
		Month:          msg.Month,
		Year:           msg.Year,
		AccountID:      msg.AccountID,
		BillingMonth:   msg.BillingMonth,
		Size:           msg.Size,
		Timestamp:      msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	if _, err := w.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	w.seen[key] = struct{}{}
	w.written++

	w.logger.InfoContext(ctx, "Download event journaled",
		log.FieldFilename, msg.Filename,
		log.FieldAccountID, msg.AccountID,
		log.FieldBytes, msg.Size)
	return nil
}

// Written returns the number of journal lines written.
func (w *EventWorker) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}
