package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faturas/internal/amqp"
)

func TestEventWorker_JournalsEvents(t *testing.T) {
	var buf bytes.Buffer
	w := NewEventWorker(&buf, nil)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	msgs := []*amqp.DocumentDownloadedMessage{
		{InstallationID: "I1", Month: "02", Year: "2024", AccountID: "X", BillingMonth: "FEB/24", Filename: "I1-02-2024.pdf", Size: 10, Timestamp: ts},
		{InstallationID: "I1", Month: "02", Year: "2024", AccountID: "X", BillingMonth: "FEB/24", Filename: "I1-02-2024.pdf", Size: 10, Timestamp: ts},
		{InstallationID: "I2", Month: "01", Year: "2024", Filename: "I2-01-2024.pdf", Size: 7, Timestamp: ts.Add(time.Minute)},
	}
	for _, m := range msgs {
		require.NoError(t, w.HandleDocumentDownloaded(context.Background(), m))
	}
	assert.Equal(t, 2, w.Written())

	var entries []JournalEntry
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var e JournalEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "I1-02-2024.pdf", entries[0].Filename)
	assert.Equal(t, "FEB/24", entries[0].BillingMonth)
	assert.Equal(t, "I2", entries[1].InstallationID)
	assert.True(t, entries[1].Timestamp.Equal(ts.Add(time.Minute)))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEventWorker_WriteFailureIsRetryable(t *testing.T) {
	w := NewEventWorker(failingWriter{}, nil)
	msg := &amqp.DocumentDownloadedMessage{InstallationID: "I1", Filename: "I1-01-2024.pdf", Timestamp: time.Now()}

	err := w.HandleDocumentDownloaded(context.Background(), msg)
	require.Error(t, err)
	assert.Zero(t, w.Written())

	// A failed write is not remembered, so the redelivery is attempted again.
	err = w.HandleDocumentDownloaded(context.Background(), msg)
	assert.Error(t, err)
}
