// Package fakeapi serves the upstream invoice API from a local record
// source, for development and tests. Invoice PDFs are rendered on the fly.
package fakeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"faturas/internal/core"
	"faturas/internal/log"
	"faturas/internal/sources"
)

type Options struct {
	RecordsPath   string // default /records
	DocumentsPath string // default /documents
	Logger        *log.Logger
}

type handler struct {
	source sources.RecordSource
	logger *log.Logger
}

// Handler returns the API mux. Records are re-read from source on every
// request.
func Handler(source sources.RecordSource, opts Options) http.Handler {
	if opts.RecordsPath == "" {
		opts.RecordsPath = "/records"
	}
	if opts.DocumentsPath == "" {
		opts.DocumentsPath = "/documents"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default(log.ComponentAPI)
	}
	h := &handler{source: source, logger: opts.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+opts.RecordsPath, h.handleRecords)
	mux.HandleFunc("GET "+opts.RecordsPath+"/{account}", h.handleAccountRecords)
	mux.HandleFunc("POST "+opts.DocumentsPath, h.handleDocument)
	return mux
}

func (h *handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	all, err := h.source.LoadAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, all)
}

// handleAccountRecords answers 404 for an account with no records.
func (h *handler) handleAccountRecords(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")
	all, err := h.source.LoadAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	recs := core.Filter(all, core.ForAccount(account))
	if len(recs) == 0 {
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, recs)
}

func (h *handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	var key core.DocumentKey
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&key); err != nil {
		http.Error(w, "invalid document key", http.StatusBadRequest)
		return
	}
	if key.InstallationID == "" || len(key.Month) != 2 || len(key.Year) != 4 {
		http.Error(w, "invalid document key", http.StatusBadRequest)
		return
	}

	all, err := h.source.LoadAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	inv, ok := findInvoice(all, key)
	if !ok {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}

	data, err := RenderInvoice(inv, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key.Filename()))
	_, _ = w.Write(data)
	h.logger.InfoContext(r.Context(), "Document served",
		log.FieldFilename, key.Filename(),
		log.FieldBytes, len(data))
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "Request failed",
		log.FieldPath, r.URL.Path,
		log.FieldError, err.Error())
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func findInvoice(all []core.Invoice, key core.DocumentKey) (core.Invoice, bool) {
	for _, inv := range all {
		if strings.TrimSpace(inv.InstallationID) != key.InstallationID {
			continue
		}
		k, err := core.NewDocumentKey(key.InstallationID, inv.BillingMonth)
		if err == nil && k == key {
			return inv, true
		}
	}
	return core.Invoice{}, false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// RenderInvoice renders a one-page placeholder invoice.
func RenderInvoice(inv core.Invoice, key core.DocumentKey) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Electricity Invoice")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Account: %s", inv.AccountID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Installation: %s", key.InstallationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Billing month: %s (%s/%s)", inv.BillingMonth, key.Month, key.Year))
	pdf.Ln(9)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(90, 6, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, "Value", "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	rows := []struct {
		label  string
		amount core.Amount
		format func(core.Amount) string
	}{
		{"Consumed energy (kWh)", inv.ConsumedEnergyKWh, kwh},
		{"Distributed generation energy (kWh)", inv.DistributedGenerationEnergyKWh, kwh},
		{"Offset energy (kWh)", inv.OffsetEnergyKWh, kwh},
		{"Energy cost", inv.EnergyCost, reais},
		{"Distributed generation cost", inv.DistributedGenerationCost, reais},
		{"Public illumination contribution", inv.IlluminationContribution, reais},
		{"Compensation savings", inv.CompensationSavings, reais},
	}
	for _, row := range rows {
		pdf.CellFormat(90, 6, row.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, row.format(row.amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", key.Filename(), err)
	}
	return buf.Bytes(), nil
}

func kwh(a core.Amount) string {
	if !a.Valid() {
		return rawOrDash(a)
	}
	return core.FormatKWh(a.Decimal())
}

func reais(a core.Amount) string {
	if !a.Valid() {
		return rawOrDash(a)
	}
	return core.FormatReais(a.Decimal())
}

func rawOrDash(a core.Amount) string {
	if a.Raw() == "" {
		return "-"
	}
	return a.Raw()
}
