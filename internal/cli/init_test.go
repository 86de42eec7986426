package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/config"
	"finledger/internal/sheets/memory"
)

func TestInitSinks_MemoryFallback(t *testing.T) {
	logger := SetupLogger("error", "test")
	cfg := &config.Config{SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")}

	sinks, err := InitSinks(context.Background(), logger, cfg)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, sinks.Alerts)

	cats, err := sinks.Categories.ListCategories(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, cats, "defaults are seeded when no seed file exists")
}

func TestInitSinks_SheetsWithoutCredentials(t *testing.T) {
	logger := SetupLogger("error", "test")
	cfg := &config.Config{GoogleSpreadsheetID: "sheet-1"}

	_, err := InitSinks(context.Background(), logger, cfg)
	assert.Error(t, err)
}

func TestInitPublisher_Disabled(t *testing.T) {
	logger := SetupLogger("error", "test")
	assert.Nil(t, InitPublisher(logger, &config.Config{}))
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("verbose", "alert-worker")
	assert.Equal(t, "alert-worker", logger.Component())
}
