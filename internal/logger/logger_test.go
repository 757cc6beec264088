package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobal(t *testing.T) {
	t.Helper()
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestInit_JSONConsole(t *testing.T) {
	restoreGlobal(t)
	var buf bytes.Buffer
	c, err := Init(Config{Level: "info", Format: "json", Service: "stocklens", Console: &buf})
	require.NoError(t, err)
	defer c.Close()

	log.Debug().Msg("hidden")
	log.Info().Str("symbol", "AAPL").Msg("stored")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "stored", entry["message"])
	assert.Equal(t, "AAPL", entry["symbol"])
	assert.Equal(t, "stocklens", entry["service"])
}

func TestInit_Files(t *testing.T) {
	restoreGlobal(t)
	dir := t.TempDir()
	var buf bytes.Buffer
	c, err := Init(Config{Level: "debug", Format: "json", Dir: dir, MaxSizeMB: 1, Console: &buf})
	require.NoError(t, err)

	log.Info().Msg("routine")
	log.Error().Msg("broken")
	require.NoError(t, c.Close())

	app, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(app), "routine")
	assert.Contains(t, string(app), "broken")

	errs, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "routine")
	assert.Contains(t, string(errs), "broken")
}

func TestInit_Invalid(t *testing.T) {
	restoreGlobal(t)
	_, err := Init(Config{Level: "loud"})
	assert.Error(t, err)
	_, err = Init(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
