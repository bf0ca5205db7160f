package cli

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/studiowebux/caller/internal/config"
	"github.com/studiowebux/caller/internal/envsubst"
)

var (
	// key=value, key=value=with=equals, key="quoted value"
	kvpPattern = regexp.MustCompile(`^[^= ]+=([^ ]+|".*")$`)

	authPattern = regexp.MustCompile(`^[Bb](asic|earer)$`)
)

// Auth types
const (
	AuthBasic  = "basic"
	AuthBearer = "bearer"
)

// Output formats
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputText = "text"
)

// Options contains the raw command line values for one call
type Options struct {
	Host        string
	Port        int // 0 selects 80 or 443 from Insecure
	Path        string
	Params      []string // key=value pairs
	Method      string
	Auth        string
	Credentials string
	Headers     []string // key=value pairs
	Body        string   // JSON or JSONC
	Timeout     float64  // seconds
	Retries     int
	RetryOn     []string
	FailOn      []string
	Insecure    bool

	Quiet   bool
	Last    bool
	Output  string
	Query   string
	EnvFile string

	CACert     string
	Cert       string
	Key        string
	SkipVerify bool
}

// ApplyConfig fills the values the user did not set explicitly from the loaded config
func (o *Options) ApplyConfig(cfg *config.Config, changed func(flag string) bool) {
	if cfg == nil {
		return
	}
	if !changed("timeout") {
		o.Timeout = cfg.Request.Timeout.Seconds()
	}
	if !changed("retries") {
		o.Retries = cfg.Request.Retries
	}
	if !changed("retry-on-codes") {
		o.RetryOn = specStrings(cfg.Request.RetryOn)
	}
	if !changed("fail-on-codes") {
		o.FailOn = specStrings(cfg.Request.FailOn)
	}
}

// ParseKeyValue splits key=value; surrounding double quotes are stripped from the value
func ParseKeyValue(pair string) (string, string, error) {
	if !kvpPattern.MatchString(pair) {
		return "", "", fmt.Errorf("invalid key-value pair %q; should match %s", pair, kvpPattern)
	}

	key, value, _ := strings.Cut(pair, "=")
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		value = value[1 : len(value)-1]
	}
	return key, value, nil
}

// ParseKeyValues converts pairs to a map; later keys win. No pairs gives nil.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, err := ParseKeyValue(pair)
		if err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, nil
}

// ParseAuthType accepts Basic/basic/Bearer/bearer
func ParseAuthType(value string) (string, error) {
	if !authPattern.MatchString(value) {
		return "", fmt.Errorf("invalid HTTP auth value %q; should match %s", value, authPattern)
	}
	return strings.ToLower(value), nil
}

// AuthorizationHeader builds the Authorization header value. Basic credentials
// are expanded before encoding; bearer tokens are expanded with the other headers.
func AuthorizationHeader(authType, credentials string, lookup envsubst.Lookup) (string, error) {
	if credentials == "" {
		return "", fmt.Errorf("must provide credentials (-c, --credentials) with auth")
	}

	switch authType {
	case AuthBasic:
		if strings.Count(credentials, ":") != 1 {
			return "", fmt.Errorf("credentials must be in the form username:password")
		}
		expanded := envsubst.Expand(credentials, lookup)
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(expanded)), nil
	case AuthBearer:
		return "Bearer " + credentials, nil
	default:
		return "", fmt.Errorf("unsupported auth type %q", authType)
	}
}

// DefaultPort returns 80 for plain HTTP and 443 otherwise
func DefaultPort(insecure bool) int {
	if insecure {
		return 80
	}
	return 443
}
