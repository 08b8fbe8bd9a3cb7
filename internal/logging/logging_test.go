package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "prod", "warn")

	log.Info().Msg("dropped")
	log.Warn().Str("doctor_id", "d1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "d1", entry["doctor_id"])
	assert.Contains(t, entry, "time")
}

func TestNewConsoleInDev(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "dev", "debug")

	log.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	log := newWithWriter(&bytes.Buffer{}, "prod", "loud")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
