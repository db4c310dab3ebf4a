package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	CORSAllowedOrigins []string
	SessionTTL         time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend string

	// Upstream API (api backend, and documents for every backend)
	APIBaseURL    string
	RecordsPath   string
	DocumentsPath string
	APITimeout    time.Duration

	// Memory backend
	DataFile     string
	DocumentsDir string

	// SQLite backend
	SQLiteDBPath string

	// Google Sheets backend
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// AMQP download events (optional)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
	AMQPQueue      string // faturas-worker only

	// Event journal written by faturas-worker; empty means stdout
	EventsFile string
}

// Backend names accepted by DATA_BACKEND.
const (
	BackendAPI    = "api"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", nil),
		SessionTTL:         getEnvDuration("SESSION_TTL", 30*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend: getEnv("DATA_BACKEND", BackendAPI),

		APIBaseURL:    getEnv("API_BASE_URL", "http://localhost:3000"),
		RecordsPath:   getEnv("RECORDS_PATH", "/records"),
		DocumentsPath: getEnv("DOCUMENTS_PATH", "/documents"),
		APITimeout:    getEnvDuration("API_TIMEOUT", 15*time.Second),

		DataFile:     getEnv("DATA_FILE", "./data/faturas.json"),
		DocumentsDir: getEnv("DOCUMENTS_DIR", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/faturas.db"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Faturas"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "faturas"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "document.downloaded"),
		AMQPQueue:      getEnv("AMQP_QUEUE", "faturas.downloads"),

		EventsFile: getEnv("EVENTS_FILE", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{BackendAPI, BackendMemory, BackendSQLite, BackendSheets}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// The upstream API is required by the api backend; the others only use it
	// for documents, so an empty URL just disables downloads there.
	if c.APIBaseURL == "" {
		if c.DataBackend == BackendAPI {
			errors = append(errors, "API base URL is required when using api backend")
		}
	} else if parsedURL, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	for name, path := range map[string]string{"records": c.RecordsPath, "documents": c.DocumentsPath} {
		if !strings.HasPrefix(path, "/") {
			errors = append(errors, fmt.Sprintf("invalid %s path '%s': must start with '/'", name, path))
		}
	}

	if c.APITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
	} else if c.APITimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at most 5 minutes", c.APITimeout))
	}

	if c.DataBackend == BackendMemory {
		if c.DataFile == "" {
			errors = append(errors, "data file cannot be empty when using memory backend")
		} else if _, err := os.Stat(c.DataFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("data file does not exist: %s", c.DataFile))
		}
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					errors = append(errors, fmt.Sprintf("SQLite database directory does not exist: %s", dir))
				}
			}
		}
	}

	// Validate Google Sheets configuration if backend is sheets
	if c.DataBackend == BackendSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	} else if c.SessionTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at most 24 hours", c.SessionTTL))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// DocumentsEnabled reports whether invoice PDFs can be requested.
func (c *Config) DocumentsEnabled() bool {
	return c.APIBaseURL != "" || (c.DataBackend == BackendMemory && c.DocumentsDir != "")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
