package sources

import (
	"encoding/json"
	"fmt"
	"io"

	"faturas/internal/core"
)

// DecodeRecords reads a JSON array of invoice records. A record that is not
// a JSON object with decodable identifiers is skipped and reported; the
// rest of the array is still returned. Bad numeric values never cause a
// skip, they are carried in core.Amount and surface during aggregation.
func DecodeRecords(r io.Reader) ([]core.Invoice, []*core.MalformedRecordError, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("decode records: %w", err)
	}
	records := make([]core.Invoice, 0, len(raw))
	var skipped []*core.MalformedRecordError
	for i, msg := range raw {
		var inv core.Invoice
		if err := json.Unmarshal(msg, &inv); err != nil {
			skipped = append(skipped, &core.MalformedRecordError{Index: i, Err: err})
			continue
		}
		records = append(records, inv)
	}
	return records, skipped, nil
}
