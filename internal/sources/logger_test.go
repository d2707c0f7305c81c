package sources

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogResponse_ReportsBodySize(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogResponse(log, "worldbank", 200, 150*time.Millisecond, 2048)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "worldbank", entry["source"])
	assert.Equal(t, 2048.0, entry["bytes"])
	assert.Equal(t, 150.0, entry["duration_ms"])
	assert.NotContains(t, entry, "results")
}
