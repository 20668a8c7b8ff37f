package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EVENT_STORE_URL", "postgres://localhost/events?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, WarehouseCSV, cfg.WarehouseBackend)
	assert.Equal(t, "data/bootstrap", cfg.BootstrapDir)
	assert.Equal(t, 500, cfg.IngestBatchSize)
	assert.Equal(t, time.Second, cfg.IngestRetryBackoff)
	assert.Equal(t, "localhost:9000", cfg.ClickHouse.Addr)
	assert.Equal(t, []string{"email", "password", "credit_card", "ssn"}, cfg.RedactionFields())
}

func TestLoadRequiresEventStore(t *testing.T) {
	t.Setenv("EVENT_STORE_URL", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestPostgresWarehouseDefaultsToEventStore(t *testing.T) {
	t.Setenv("EVENT_STORE_URL", "postgres://localhost/events")
	t.Setenv("WAREHOUSE_BACKEND", WarehousePostgres)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/events", cfg.WarehousePostgresURL)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			EventStoreURL:    "postgres://x",
			WarehouseBackend: WarehouseCSV,
			IngestBatchSize:  10,
			IngestRetryCount: 1,
			SpoolSegmentSize: 10,
			SpoolMaxDiskSize: 100,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown backend", func(c *Config) { c.WarehouseBackend = "bigquery" }},
		{"zero batch size", func(c *Config) { c.IngestBatchSize = 0 }},
		{"zero retries", func(c *Config) { c.IngestRetryCount = 0 }},
		{"negative rate", func(c *Config) { c.IngestBatchesPerSec = -1 }},
		{"disk smaller than segment", func(c *Config) { c.SpoolMaxDiskSize = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, cfg.Validate())
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
