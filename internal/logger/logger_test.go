package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"Warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.level))
		})
	}
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", false, &buf)

	log.Debug().Msg("hidden")
	log.Info().Str("method", "get").Msg("Making request")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "Making request", entry["message"])
	assert.Equal(t, "get", entry["method"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestNewPretty(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", true, &buf)
	log.Debug().Msg("pretty line")

	assert.Contains(t, buf.String(), "pretty line")
	assert.NotContains(t, buf.String(), "{")
}

func TestRedact(t *testing.T) {
	headers := map[string]string{
		"Authorization":       "Bearer abc",
		"X-Api-Key":           "k",
		"Cookie":              "session=1",
		"X-Auth-Token":        "t",
		"X-Request-Id":        "0",
		"Content-Type":        "application/json",
		"Proxy-Authorization": "Basic xyz",
	}

	redacted := Redact(headers)

	assert.Equal(t, DefaultMaskValue, redacted["Authorization"])
	assert.Equal(t, DefaultMaskValue, redacted["X-Api-Key"])
	assert.Equal(t, DefaultMaskValue, redacted["Cookie"])
	assert.Equal(t, DefaultMaskValue, redacted["X-Auth-Token"])
	assert.Equal(t, DefaultMaskValue, redacted["Proxy-Authorization"])
	assert.Equal(t, "0", redacted["X-Request-Id"])
	assert.Equal(t, "application/json", redacted["Content-Type"])

	// input untouched
	assert.Equal(t, "Bearer abc", headers["Authorization"])
	assert.Nil(t, Redact(nil))
}

func TestCustomFilter(t *testing.T) {
	f := NewSensitiveDataFilter(&FilterConfig{SensitiveFields: []string{"tenant"}})

	out := f.FilterMap(map[string]string{"X-Tenant": "acme", "Authorization": "x"})
	assert.Equal(t, DefaultMaskValue, out["X-Tenant"])
	assert.Equal(t, "x", out["Authorization"])
}
