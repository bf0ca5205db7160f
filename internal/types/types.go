package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/studiowebux/caller/internal/codes"
)

// Method is one of the supported HTTP methods
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// Methods lists the supported methods in display order
var Methods = []Method{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete}

// ParseMethod accepts a method name in any case
func ParseMethod(name string) (Method, error) {
	upper := Method(strings.ToUpper(strings.TrimSpace(name)))
	for _, m := range Methods {
		if m == upper {
			return m, nil
		}
	}
	return "", fmt.Errorf("unsupported method %q (use get, post, put, patch, delete)", name)
}

// AllowsBody reports whether requests with this method carry a JSON body
func (m Method) AllowsBody() bool {
	return m != MethodGet && m != MethodDelete
}

// TLSConfig contains TLS/mTLS options for HTTPS calls
type TLSConfig struct {
	CertFile           string `json:"certFile,omitempty" yaml:"certFile,omitempty"`                     // Client certificate (mTLS)
	KeyFile            string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`                       // Client private key (mTLS)
	CAFile             string `json:"caFile,omitempty" yaml:"caFile,omitempty"`                         // CA bundle for server verification
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"` // Skip server certificate verification
}

// Descriptor is a fully resolved request: no variable substitution happens after it is built
type Descriptor struct {
	Method   Method            `json:"method" yaml:"method" validate:"required,oneof=GET POST PUT PATCH DELETE"`
	Host     string            `json:"host" yaml:"host" validate:"required"`
	Port     int               `json:"port" yaml:"port" validate:"min=1,max=65535"`
	Path     string            `json:"path,omitempty" yaml:"path,omitempty"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body     any               `json:"body,omitempty" yaml:"body,omitempty"` // nil means absent
	Timeout  time.Duration     `json:"timeout" yaml:"timeout" validate:"gt=0"`
	Retries  int               `json:"retries" yaml:"retries" validate:"min=0"`
	RetryOn  []codes.Spec      `json:"retryOn,omitempty" yaml:"retryOn,omitempty"` // nil means codes.Defaults()
	FailOn   []codes.Spec      `json:"failOn,omitempty" yaml:"failOn,omitempty"`   // nil means codes.Defaults()
	Insecure bool              `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// Scheme is http for insecure calls, https otherwise
func (d *Descriptor) Scheme() string {
	if d.Insecure {
		return "http"
	}
	return "https"
}

// NormalizedPath strips one leading slash
func (d *Descriptor) NormalizedPath() string {
	return strings.TrimPrefix(d.Path, "/")
}

// URL assembles scheme://host:port/path without query parameters
func (d *Descriptor) URL() string {
	return d.Scheme() + "://" + d.Host + ":" + strconv.Itoa(d.Port) + "/" + d.NormalizedPath()
}

// Response is one attempt's outcome. Status 0 means no HTTP response was obtained.
type Response struct {
	Duration float64           `json:"duration" yaml:"duration"` // seconds
	Status   int               `json:"status" yaml:"status"`
	Headers  map[string]string `json:"headers" yaml:"headers"`
	Body     any               `json:"body" yaml:"body"` // parsed JSON, raw text, or {error, message}
}

// String renders the record as JSON
func (r Response) String() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("{\"status\":%d}", r.Status)
	}
	return string(data)
}

// History holds every attempt of one call in chronological order
type History []Response

// Last returns the final attempt
func (h History) Last() (Response, bool) {
	if len(h) == 0 {
		return Response{}, false
	}
	return h[len(h)-1], true
}
