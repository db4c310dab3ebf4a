package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"faturas/internal/core"
	"faturas/internal/log"
	"faturas/internal/sources"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client reads invoice rows from one sheet of a spreadsheet. The first row
// holds the column names.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ sources.RecordSource        = (*Client)(nil)
	_ sources.AccountRecordSource = (*Client)(nil)
)

// New creates a Sheets client. Without explicit options, credentials come
// from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if sheetName == "" {
		sheetName = "Faturas"
	}
	if logger == nil {
		logger = log.Default(log.ComponentSheets)
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		var err error
		opts, err = credentialsFromEnv(ctx, logger)
		if err != nil {
			return nil, err
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

func readServiceAccount(ctx context.Context, logger *log.Logger) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errNoServiceAccount
	}
}

var errNoServiceAccount = errors.New("no service account configured")

// credentialsFromEnv prefers a service account and falls back to an OAuth
// token saved by cmd/oauth-init.
func credentialsFromEnv(ctx context.Context, logger *log.Logger) ([]goption.ClientOption, error) {
	credentialsJSON, err := readServiceAccount(ctx, logger)
	if err == nil {
		return []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		}, nil
	}
	if !errors.Is(err, errNoServiceAccount) {
		return nil, err
	}

	opts, ok, err := oauthOptions(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or an OAuth client with GOOGLE_OAUTH_TOKEN_FILE)")
	}
	logger.DebugContext(ctx, "Using OAuth token credentials", "path", TokenFile())
	return opts, nil
}

// LoadAll reads every data row of the sheet.
func (c *Client) LoadAll(ctx context.Context) ([]core.Invoice, error) {
	rng := fmt.Sprintf("%s!A:Z", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, c.fetchError(rng, err)
	}
	records, skipped, err := parseRows(resp.Values)
	if err != nil {
		return nil, &core.FetchError{Op: "load records", URL: c.location(rng), StatusCode: resp.HTTPStatusCode, Err: err}
	}
	for _, s := range skipped {
		c.logger.WarnContext(ctx, "Skipping undecodable sheet row",
			log.FieldRecordIndex, s.Index,
			log.FieldError, s.Err.Error())
	}
	c.logger.DebugContext(ctx, "Sheet rows read", "range", rng, log.FieldRecords, len(records))
	return records, nil
}

// LoadByAccount reads the whole sheet and keeps one account; the Sheets API
// has no server-side row filter for plain value ranges.
func (c *Client) LoadByAccount(ctx context.Context, accountID string) ([]core.Invoice, error) {
	all, err := c.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return core.Filter(all, core.ForAccount(accountID)), nil
}

func (c *Client) location(rng string) string {
	return fmt.Sprintf("sheets://%s/%s", c.spreadsheetID, rng)
}

func (c *Client) fetchError(rng string, err error) error {
	fe := &core.FetchError{Op: "load records", URL: c.location(rng), Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		fe.StatusCode = gerr.Code
	}
	return fe
}
