package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldSessionID      = "session_id"
	FieldClientIP       = "client_ip"
	FieldMethod         = "method"
	FieldPath           = "path"
	FieldQuery          = "query"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldUserAgent      = "user_agent"
	FieldSuccess        = "success"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldAccountID      = "account_id"
	FieldInstallationID = "installation_id"
	FieldBillingMonth   = "billing_month"
	FieldSelector       = "selector"
	FieldField          = "field"
	FieldRecordIndex    = "record_index"
	FieldRecords        = "records"
	FieldAccounts       = "accounts"
	FieldMalformed      = "malformed"
	FieldFilename       = "filename"
	FieldBytes          = "bytes"
	FieldBackend        = "backend"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRecords   = "records"
	ComponentDashboard = "dashboard"
	ComponentSelection = "selection"
	ComponentDocuments = "documents"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentSheets    = "sheets"
	ComponentAPI       = "api"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpLoad          = "load"
	OpFilter        = "filter"
	OpAggregate     = "aggregate"
	OpChooseAccount = "choose_account"
	OpComputeMonths = "compute_months"
	OpChooseMonth   = "choose_month"
	OpResolve       = "resolve"
	OpDownload      = "download"
	OpExport        = "export"
	OpShutdown      = "shutdown"
	OpStartup       = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSelection adds the account and month of a selection. Empty values are
// left out.
func (f LogFields) WithSelection(accountID, billingMonth string) LogFields {
	if accountID != "" {
		f[FieldAccountID] = accountID
	}
	if billingMonth != "" {
		f[FieldBillingMonth] = billingMonth
	}
	return f
}

// WithDocument adds the fields identifying a downloaded document.
func (f LogFields) WithDocument(installationID, filename string, size int) LogFields {
	f[FieldInstallationID] = installationID
	f[FieldFilename] = filename
	f[FieldBytes] = size
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
