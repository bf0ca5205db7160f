// Package logger builds the zerolog logger used by the CLI and the receiver,
// and masks sensitive values before they reach log output.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaskValue replaces sensitive values in logs
const DefaultMaskValue = "***"

var callerMarshalOnce sync.Once

// New creates a logger writing JSON lines to out (stderr when nil).
// If pretty is true, output is formatted for human readability.
// Unknown levels fall back to info.
func New(level string, pretty bool, out io.Writer) zerolog.Logger {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			base := filepath.Base(file)
			parent := filepath.Base(filepath.Dir(file))
			if parent != "." && parent != "" {
				return parent + "/" + base + ":" + strconv.Itoa(line)
			}
			return base + ":" + strconv.Itoa(line)
		}
	})

	if out == nil {
		out = os.Stderr
	}

	var l zerolog.Logger
	if pretty {
		l = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Caller().Logger()
	} else {
		l = zerolog.New(out).With().Timestamp().Caller().Logger()
	}

	return l.Level(ParseLevel(level))
}

// ParseLevel converts a level name (any case) to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	zLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return zLevel
}

// FilterConfig defines which header or field names are masked
type FilterConfig struct {
	// SensitiveFields are matched case-insensitively as substrings of the name
	SensitiveFields []string
	// MaskValue replaces the value (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns the common sensitive names for HTTP headers and parameters
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"authorization", "cookie",
			"password", "passwd", "secret",
			"token", "api-key", "api_key", "apikey",
			"credential",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose names look sensitive
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter; a nil config uses DefaultFilterConfig
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// IsSensitive reports whether name matches one of the sensitive fields
func (f *SensitiveDataFilter) IsSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range f.config.SensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// FilterMap returns a copy of values with sensitive entries masked
func (f *SensitiveDataFilter) FilterMap(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	filtered := make(map[string]string, len(values))
	for k, v := range values {
		if f.IsSensitive(k) {
			filtered[k] = f.config.MaskValue
			continue
		}
		filtered[k] = v
	}
	return filtered
}

var defaultFilter = NewSensitiveDataFilter(nil)

// Redact masks sensitive entries using the default filter
func Redact(values map[string]string) map[string]string {
	return defaultFilter.FilterMap(values)
}
