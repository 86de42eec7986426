package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Database
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/finledger.db"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// AMQP; publishing and consuming are disabled when AMQP_URL is unset
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"finledger"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"alert_delivery"`

	// Google Sheets alert log; delivery falls back to memory when unset
	GoogleSpreadsheetID          string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleAlertSheetName         string `env:"GOOGLE_ALERT_SHEET_NAME" envDefault:"Alerts"`
	GoogleCategoriesSheetName    string `env:"GOOGLE_CATEGORIES_SHEET_NAME" envDefault:"Categories"`
	GoogleServiceAccountJSON     string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile     string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleApplicationCredentials string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	// Evaluation
	EvaluationInterval    time.Duration `env:"EVALUATION_INTERVAL" envDefault:"15m"`
	EvaluationConcurrency int           `env:"EVALUATION_CONCURRENCY" envDefault:"4"`
	BillLookaheadDays     int           `env:"BILL_LOOKAHEAD_DAYS" envDefault:"3"`
	ProgressRetries       int           `env:"PROGRESS_RETRIES" envDefault:"3"`

	// Delivery
	DeliveryBatchSize int           `env:"DELIVERY_BATCH_SIZE" envDefault:"10"`
	DeliveryInterval  time.Duration `env:"DELIVERY_INTERVAL" envDefault:"30s"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SheetsEnabled reports whether alerts are delivered to a spreadsheet.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// ServiceAccountFile returns the credentials file, falling back to the
// standard Google Cloud variable.
func (c *Config) ServiceAccountFile() string {
	if c.GoogleServiceAccountFile != "" {
		return c.GoogleServiceAccountFile
	}
	return c.GoogleApplicationCredentials
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleAlertSheetName == "" {
			errors = append(errors, "Google alert sheet name is required when a spreadsheet is configured")
		}
		file := c.ServiceAccountFile()
		if c.GoogleServiceAccountJSON == "" && file == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountJSON == "" && file != "" {
			if _, err := os.Stat(file); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", file))
			}
		}
	}

	if c.EvaluationInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid evaluation interval %v: must be at least 1 minute", c.EvaluationInterval))
	} else if c.EvaluationInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid evaluation interval %v: must be at most 24 hours", c.EvaluationInterval))
	}
	if c.EvaluationConcurrency < 1 || c.EvaluationConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid evaluation concurrency %d: must be between 1 and 64", c.EvaluationConcurrency))
	}
	if c.BillLookaheadDays < 0 || c.BillLookaheadDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid bill lookahead %d: must be between 0 and 366 days", c.BillLookaheadDays))
	}
	if c.ProgressRetries < 1 || c.ProgressRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid progress retries %d: must be between 1 and 10", c.ProgressRetries))
	}

	if c.DeliveryBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid delivery batch size %d: must be at least 1", c.DeliveryBatchSize))
	} else if c.DeliveryBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid delivery batch size %d: must be at most 1000", c.DeliveryBatchSize))
	}
	if c.DeliveryInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid delivery interval %v: must be at least 1 second", c.DeliveryInterval))
	} else if c.DeliveryInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid delivery interval %v: must be at most 24 hours", c.DeliveryInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
