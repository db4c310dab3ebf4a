package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"faturas/internal/core"
	"faturas/internal/log"
	"faturas/internal/sources"
)

// maxDocumentSize caps a single PDF response.
const maxDocumentSize = 32 << 20

var errEmptyDocument = errors.New("empty document body")

// Client is a minimal REST client for the invoice service.
type Client struct {
	baseURL       string
	recordsPath   string
	documentsPath string
	client        *http.Client
	logger        *log.Logger
}

// Options configures a Client. Zero paths fall back to /records and
// /documents.
type Options struct {
	BaseURL       string
	RecordsPath   string
	DocumentsPath string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *log.Logger
}

// Ensure interface conformance
var (
	_ sources.RecordSource        = (*Client)(nil)
	_ sources.AccountRecordSource = (*Client)(nil)
	_ sources.DocumentFetcher     = (*Client)(nil)
)

// New constructs a client for the invoice service at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api: empty base url")
	}
	if opts.RecordsPath == "" {
		opts.RecordsPath = "/records"
	}
	if opts.DocumentsPath == "" {
		opts.DocumentsPath = "/documents"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentAPI)
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		recordsPath:   opts.RecordsPath,
		documentsPath: opts.DocumentsPath,
		client:        httpClient,
		logger:        logger.WithComponent(log.ComponentAPI),
	}, nil
}

// LoadAll fetches every invoice record.
func (c *Client) LoadAll(ctx context.Context) ([]core.Invoice, error) {
	return c.loadRecords(ctx, "load records", c.recordsPath)
}

// LoadByAccount fetches the records of one account. A 404 is returned as a
// *core.FetchError carrying the status so callers can fall back.
func (c *Client) LoadByAccount(ctx context.Context, accountID string) ([]core.Invoice, error) {
	path := c.recordsPath + "/" + url.PathEscape(accountID)
	return c.loadRecords(ctx, "load account records", path)
}

func (c *Client) loadRecords(ctx context.Context, op, path string) ([]core.Invoice, error) {
	endpoint := c.baseURL + path
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &core.FetchError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &core.FetchError{Op: op, URL: endpoint, StatusCode: resp.StatusCode}
	}

	records, skipped, err := sources.DecodeRecords(resp.Body)
	if err != nil {
		return nil, &core.FetchError{Op: op, URL: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	for _, s := range skipped {
		c.logger.WarnContext(ctx, "Skipping undecodable record",
			log.FieldRecordIndex, s.Index,
			log.FieldError, s.Err.Error())
	}
	c.logger.DebugContext(ctx, "Records fetched",
		log.FieldPath, path,
		log.FieldRecords, len(records))
	return records, nil
}

// FetchDocument posts the document key and returns the PDF bytes.
func (c *Client) FetchDocument(ctx context.Context, key core.DocumentKey) ([]byte, error) {
	const op = "fetch document"
	endpoint := c.baseURL + c.documentsPath

	payload, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encode document key: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, &core.FetchError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &core.FetchError{Op: op, URL: endpoint, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &core.FetchError{Op: op, URL: endpoint, StatusCode: resp.StatusCode, Err: err}
	}
	if len(data) == 0 {
		return nil, &core.FetchError{Op: op, URL: endpoint, StatusCode: resp.StatusCode, Err: errEmptyDocument}
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/pdf")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	return c.client.Do(req)
}
