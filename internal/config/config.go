package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/studiowebux/caller/internal/codes"
)

// PathEnv names the environment variable holding the default config file path
const PathEnv = "CALLER_CONFIG"

// envKeys maps the environment variables read by Load to config keys
var envKeys = map[string]string{
	"LOG_LEVEL":       "log.level",
	"LOG_PRETTY":      "log.pretty",
	"DEFAULT_HEADERS": "request.headers",
}

// Config holds the settings shared by every call
type Config struct {
	Log     LogConfig
	Request RequestConfig
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Pretty bool
}

// RequestConfig holds the defaults applied to calls when flags are not set
type RequestConfig struct {
	// Headers are sent with every request; request headers override them
	Headers map[string]string
	Timeout time.Duration `validate:"gt=0"`
	Retries int           `validate:"min=0"`
	RetryOn []codes.Spec
	FailOn  []codes.Spec
}

// Load loads configuration with priority:
// 1. Environment variables (LOG_LEVEL, LOG_PRETTY, DEFAULT_HEADERS)
// 2. YAML configuration file, when path is not empty
// 3. Default values
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load default configuration first
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Load from YAML file (explicit paths must exist)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Load environment variables (highest priority)
	if err := k.Load(envprovider.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg, err := fromKoanf(k)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns the config file named by CALLER_CONFIG, or ""
func DefaultPath() string {
	return os.Getenv(PathEnv)
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"log.level":  "info",
		"log.pretty": false,

		"request.timeout": 60,
		"request.retries": 0,
		"request.retryon": []any{0, "50X"},
		"request.failon":  []any{0, "50X"},
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Log: LogConfig{
			Level:  k.String("log.level"),
			Pretty: k.Bool("log.pretty"),
		},
		Request: RequestConfig{
			Retries: k.Int("request.retries"),
		},
	}

	headers, err := parseHeaders(k.Get("request.headers"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request.headers: %w", err)
	}
	cfg.Request.Headers = headers

	timeout, err := parseTimeout(k.Get("request.timeout"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request.timeout: %w", err)
	}
	cfg.Request.Timeout = timeout

	if cfg.Request.RetryOn, err = parseCodes(k.Get("request.retryon")); err != nil {
		return nil, fmt.Errorf("failed to parse request.retryon: %w", err)
	}
	if cfg.Request.FailOn, err = parseCodes(k.Get("request.failon")); err != nil {
		return nil, fmt.Errorf("failed to parse request.failon: %w", err)
	}

	return cfg, nil
}

// parseHeaders accepts a map (YAML) or a JSON object string (DEFAULT_HEADERS)
func parseHeaders(value any) (map[string]string, error) {
	headers := make(map[string]string)

	switch v := value.(type) {
	case nil:
	case string:
		if strings.TrimSpace(v) == "" {
			break
		}
		if err := json.Unmarshal([]byte(v), &headers); err != nil {
			return nil, fmt.Errorf("expected a JSON object of strings: %w", err)
		}
	case map[string]any:
		for key, item := range v {
			headers[key] = fmt.Sprint(item)
		}
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}

	return headers, nil
}

// parseTimeout accepts seconds as a number or a duration string ("90s", "1m")
func parseTimeout(value any) (time.Duration, error) {
	switch v := value.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		if seconds, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(seconds * float64(time.Second)), nil
		}
		return time.ParseDuration(v)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

// parseCodes accepts a mixed list of integers and strings, or a space separated string
func parseCodes(value any) ([]codes.Spec, error) {
	switch v := value.(type) {
	case nil:
		return codes.Defaults(), nil
	case string:
		fields := strings.Fields(strings.ReplaceAll(v, ",", " "))
		return codes.ParseAll(fields)
	case []any:
		return codes.Normalize(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

// Validate checks value ranges
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	return nil
}
