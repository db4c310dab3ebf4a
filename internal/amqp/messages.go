package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentDownloadedMessage announces that an invoice PDF was handed to
// its destination. It carries the resolved key, never the document bytes.
type DocumentDownloadedMessage struct {
	InstallationID string    `json:"installationId"`
	Month          string    `json:"month"`
	Year           string    `json:"year"`
	AccountID      string    `json:"accountId,omitempty"`
	BillingMonth   string    `json:"billingMonth,omitempty"`
	Filename       string    `json:"filename"`
	Size           int       `json:"size"`
	Timestamp      time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *DocumentDownloadedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DocumentDownloadedMessageFromJSON decodes and checks a message body.
func DocumentDownloadedMessageFromJSON(data []byte) (*DocumentDownloadedMessage, error) {
	var msg DocumentDownloadedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.InstallationID == "" || msg.Filename == "" {
		return nil, fmt.Errorf("incomplete document message: installation=%q filename=%q", msg.InstallationID, msg.Filename)
	}
	return &msg, nil
}
