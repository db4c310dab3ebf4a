package google

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"faturas/internal/core"
	"faturas/internal/sources"
)

// parseRows converts a values matrix (as returned by the Sheets API) into
// invoices. The header row may use the camelCase record names or the
// upstream snake_case names; matching ignores case and surrounding spaces.
// Unknown columns are ignored and blank cells are left out so they decode
// as missing values.
func parseRows(values [][]interface{}) ([]core.Invoice, []*core.MalformedRecordError, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	headers := toStrings(values[0])
	columns := make(map[int]string, len(headers))
	taken := make(map[string]bool, len(headers))
	for i, h := range headers {
		// The leftmost column wins when a field appears under both names.
		if name, ok := knownColumn(h); ok && !taken[name] {
			columns[i] = name
			taken[name] = true
		}
	}
	if !taken["accountId"] {
		return nil, nil, fmt.Errorf("unexpected sheet header: no account column; got headers=%v", headers)
	}

	rows := make([]map[string]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := toStrings(raw)
		obj := make(map[string]string, len(columns))
		for i, name := range columns {
			if v := safeGet(row, i); v != "" {
				obj[name] = v
			}
		}
		if len(obj) == 0 {
			continue
		}
		rows = append(rows, obj)
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, nil, err
	}
	return sources.DecodeRecords(bytes.NewReader(payload))
}

var columnAliases = map[string]string{
	"accountid":                      "accountId",
	"client_number":                  "accountId",
	"installationid":                 "installationId",
	"installation_number":            "installationId",
	"billingmonth":                   "billingMonth",
	"reference_month":                "billingMonth",
	"consumedenergykwh":              core.FieldConsumedEnergy,
	"energia_eletrica_kwh":           core.FieldConsumedEnergy,
	"distributedgenerationenergykwh": core.FieldDistributedGenerationEnergy,
	"energia_scee_kwh":               core.FieldDistributedGenerationEnergy,
	"offsetenergykwh":                core.FieldOffsetEnergy,
	"energia_compensada_kwh":         core.FieldOffsetEnergy,
	"energycost":                     core.FieldEnergyCost,
	"energia_eletrica_valor":         core.FieldEnergyCost,
	"distributedgenerationcost":      core.FieldDistributedGenerationCost,
	"energia_scee_valor":             core.FieldDistributedGenerationCost,
	"illuminationcontribution":       core.FieldIlluminationContribution,
	"contrib_ilum_valor":             core.FieldIlluminationContribution,
	"compensationsavings":            core.FieldCompensationSavings,
	"energia_compensada_valor":       core.FieldCompensationSavings,
}

func knownColumn(header string) (string, bool) {
	name, ok := columnAliases[strings.ToLower(strings.TrimSpace(header))]
	return name, ok
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
