package receiver

import "time"

// Config represents the receiver configuration
type Config struct {
	Host         string         `json:"host" yaml:"host"`                                       // Listen host (default: 0.0.0.0)
	Port         int            `json:"port" yaml:"port"`                                       // Listen port (default: 8080, 0 picks a free port)
	DefaultCodes map[string]int `json:"defaultCodes,omitempty" yaml:"defaultCodes,omitempty"` // Status per method when no status param is given
	Logging      bool           `json:"logging" yaml:"logging"`                                 // Keep an in-memory request log
}

// RequestLog represents a logged request
type RequestLog struct {
	Timestamp time.Time         `json:"timestamp"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Query     string            `json:"query,omitempty"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	RequestID string            `json:"requestId,omitempty"`
	Status    int               `json:"status"`
	Duration  time.Duration     `json:"duration"`
}

// defaultCodes is the status returned per method when the caller does not ask for one
var defaultCodes = map[string]int{
	"GET":    200,
	"PUT":    201,
	"POST":   201,
	"PATCH":  200,
	"DELETE": 204,
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	codes := make(map[string]int, len(defaultCodes))
	for k, v := range defaultCodes {
		codes[k] = v
	}
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		DefaultCodes: codes,
		Logging:      true,
	}
}
