package advisor

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/pm-advisor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFor(dir string) config.ExchangeLogConfig {
	return config.ExchangeLogConfig{Enabled: true, Dir: dir, QueueSize: 16}
}

func TestExchangeLoggerWritesPerPurposeNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewExchangeLogger(configFor(dir), slog.Default())
	require.NoError(t, err)

	logger.Log(ExchangeEvent{Purpose: "conversation", Model: "m", TaskID: 1, GroupID: 2, PromptChars: 10, Response: "hi"})
	logger.Log(ExchangeEvent{Purpose: "conversation", Model: "m", Error: "boom"})
	logger.Log(ExchangeEvent{Purpose: "../weekly goal", Model: "m"})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close(), "close is idempotent")

	data, err := os.ReadFile(filepath.Join(dir, "conversation.ndjson"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var got ExchangeEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.NotEmpty(t, got.EventID)
	assert.NotEmpty(t, got.Timestamp)
	assert.Equal(t, int64(2), got.GroupID)
	assert.Equal(t, "hi", got.Response)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, "boom", got.Error)

	_, err = os.Stat(filepath.Join(dir, "_weekly_goal.ndjson"))
	assert.NoError(t, err, "purpose is sanitized into a file name")
}

func TestExchangeLoggerDropsAfterClose(t *testing.T) {
	t.Parallel()

	logger, err := NewExchangeLogger(configFor(t.TempDir()), slog.Default())
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	assert.NotPanics(t, func() { logger.Log(ExchangeEvent{Purpose: "late"}) })
}

func TestExchangeLoggerDisabled(t *testing.T) {
	t.Parallel()

	logger, err := NewExchangeLogger(config.ExchangeLogConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, noopExchangeLogger{}, logger)
	logger.Log(ExchangeEvent{})
	assert.NoError(t, logger.Close())
}
