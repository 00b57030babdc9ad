package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger(t *testing.T) {
	logger := GetLogger()
	require.NotNil(t, logger)

	// Same instance on repeat calls.
	assert.Equal(t, logger, GetLogger())

	logger.Info().Str("check", "console").Msg("logger smoke test")
}

func TestInitLogger(t *testing.T) {
	config := NewDefaultConfig()
	config.Logging.Level = "debug"
	config.Logging.Output = []string{"stdout"}

	logger := InitLogger(config)
	require.NotNil(t, logger)

	logger.Debug().Str("check", "init").Msg("logger smoke test")
	assert.Equal(t, logger, GetLogger())
}

func TestPrintBanner(t *testing.T) {
	// Render path only; output goes to stdout.
	PrintBanner("test")
}
