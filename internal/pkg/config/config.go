package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Warehouse backends.
const (
	WarehouseCSV        = "csv"
	WarehousePostgres   = "postgres"
	WarehouseClickHouse = "clickhouse"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	EventStoreURL string `env:"EVENT_STORE_URL,required,notEmpty"`

	WarehouseBackend     string `env:"WAREHOUSE_BACKEND" envDefault:"csv"`
	WarehouseDir         string `env:"WAREHOUSE_DIR" envDefault:"warehouse"`
	WarehousePostgresURL string `env:"WAREHOUSE_POSTGRES_URL"`
	ClickHouse           ClickHouseConfig

	RedisAddr string        `env:"REDIS_ADDR"`
	ReportTTL time.Duration `env:"REPORT_TTL" envDefault:"720h"`

	ReportDir     string `env:"REPORT_DIR" envDefault:"reports"`
	SnapshotDir   string `env:"SNAPSHOT_DIR" envDefault:"reports/transformed_data"`
	BootstrapDir  string `env:"BOOTSTRAP_DIR" envDefault:"data/bootstrap"`
	LiveEventsDir string `env:"LIVE_EVENTS_DIR" envDefault:"data/live_events"`

	SpoolDir            string        `env:"SPOOL_DIR" envDefault:"data/spool"`
	SpoolSegmentSize    int64         `env:"SPOOL_SEGMENT_SIZE_BYTES" envDefault:"104857600"`   // 100MB
	SpoolMaxDiskSize    int64         `env:"SPOOL_MAX_DISK_SIZE_BYTES" envDefault:"1073741824"` // 1GB
	IngestBatchSize     int           `env:"INGEST_BATCH_SIZE" envDefault:"500"`
	IngestBatchesPerSec float64       `env:"INGEST_BATCHES_PER_SECOND" envDefault:"0"`
	IngestRetryCount    int           `env:"INGEST_RETRY_COUNT" envDefault:"3"`
	IngestRetryBackoff  time.Duration `env:"INGEST_RETRY_BACKOFF" envDefault:"1s"`

	PIIRedactionFields string `env:"PII_REDACTION_FIELDS" envDefault:"email,password,credit_card,ssn"`
	VocabularyFile     string `env:"VOCABULARY_FILE"`
	PushgatewayURL     string `env:"PUSHGATEWAY_URL"`
}

// ClickHouseConfig configures the ClickHouse warehouse backend.
type ClickHouseConfig struct {
	Addr     string `env:"CLICKHOUSE_ADDR" envDefault:"localhost:9000"`
	Database string `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	Username string `env:"CLICKHOUSE_USERNAME" envDefault:"default"`
	Password string `env:"CLICKHOUSE_PASSWORD"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the struct tags cannot express.
func (c *Config) Validate() error {
	var errs []string
	switch c.WarehouseBackend {
	case WarehouseCSV:
	case WarehousePostgres:
		if c.WarehousePostgresURL == "" {
			c.WarehousePostgresURL = c.EventStoreURL
		}
	case WarehouseClickHouse:
		if c.ClickHouse.Addr == "" {
			errs = append(errs, "CLICKHOUSE_ADDR is required for the clickhouse warehouse")
		}
	default:
		errs = append(errs, fmt.Sprintf("WAREHOUSE_BACKEND %q is not one of csv, postgres, clickhouse", c.WarehouseBackend))
	}
	if c.IngestBatchSize <= 0 {
		errs = append(errs, "INGEST_BATCH_SIZE must be positive")
	}
	if c.IngestRetryCount <= 0 {
		errs = append(errs, "INGEST_RETRY_COUNT must be positive")
	}
	if c.IngestBatchesPerSec < 0 {
		errs = append(errs, "INGEST_BATCHES_PER_SECOND must not be negative")
	}
	if c.SpoolSegmentSize <= 0 || c.SpoolMaxDiskSize < c.SpoolSegmentSize {
		errs = append(errs, "spool sizes must be positive with SPOOL_MAX_DISK_SIZE_BYTES >= SPOOL_SEGMENT_SIZE_BYTES")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RedactionFields splits PII_REDACTION_FIELDS.
func (c *Config) RedactionFields() []string {
	var out []string
	for _, f := range strings.Split(c.PIIRedactionFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
