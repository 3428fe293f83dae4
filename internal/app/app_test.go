package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/boxscore/internal/config"
	"github.com/fortuna/boxscore/internal/logging"
	"github.com/fortuna/boxscore/internal/pipeline"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/tabular"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DatabaseDriver:    store.DriverSQLite,
		DatabaseURL:       ":memory:",
		BaseURL:           "http://127.0.0.1:1",
		FetchMode:         config.FetchModeHTTP,
		RequestsPerMinute: 60,
		OutputDir:         t.TempDir(),
	}
}

func TestBuildWithoutOptionalBackends(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, logging.Discard(), Options{Scraping: true})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.DB)
	assert.NotNil(t, a.Pipeline)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Objects)
	require.NoError(t, a.DB.HealthCheck())
}

func TestBuiltPipelineRejectsBadCSV(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, logging.Discard(), Options{})
	require.NoError(t, err)
	defer a.Close()

	spec, err := pipeline.NewSpec("2021-22", "", "")
	require.NoError(t, err)

	csv := "Date,Name,Team,Opponent,MP\n"
	_, err = a.Pipeline.ProcessCSV(context.Background(), spec, strings.NewReader(csv), nil)
	assert.ErrorIs(t, err, tabular.ErrBadHeader)
}

func TestBuildRejectsBadDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "mysql"
	_, err := Build(context.Background(), cfg, logging.Discard(), Options{})
	assert.Error(t, err)
}

func TestConnectRedisGivesUp(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "not-a-redis-url"
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	_, err := Build(context.Background(), cfg, logging.Discard(), Options{ConnectRetries: 2, RetryDelay: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 attempts")
}
