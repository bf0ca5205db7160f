package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/studiowebux/caller/internal/codes"
	"github.com/studiowebux/caller/internal/logger"
	"github.com/studiowebux/caller/internal/types"
)

// Options configures an Executor. The zero value is usable.
type Options struct {
	// DefaultHeaders are sent with every request; descriptor headers override them
	DefaultHeaders map[string]string
	// TLS configures certificates for https calls; ignored when Transport is set
	TLS *types.TLSConfig
	// Transport replaces the HTTP transport (tests)
	Transport http.RoundTripper
	// Logger receives per-call structured logs (default: disabled)
	Logger *zerolog.Logger
	// Sleep waits between attempts (default: timer honoring ctx)
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns the random part of the backoff in seconds (default: uniform in [0, 0.5))
	Jitter func() float64
}

// Executor runs descriptors through the attempt loop. It holds no per-call state.
type Executor struct {
	defaultHeaders map[string]string
	transport      http.RoundTripper
	log            zerolog.Logger
	sleep          func(ctx context.Context, d time.Duration) error
	jitter         func() float64
}

// New creates an executor; it fails only when TLS files cannot be loaded
func New(opts Options) (*Executor, error) {
	transport := opts.Transport
	if transport == nil {
		built, err := buildTransport(opts.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
		}
		transport = built
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	e := &Executor{
		defaultHeaders: make(map[string]string, len(opts.DefaultHeaders)),
		transport:      transport,
		log:            log,
		sleep:          opts.Sleep,
		jitter:         opts.Jitter,
	}
	for k, v := range opts.DefaultHeaders {
		e.defaultHeaders[k] = v
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if e.jitter == nil {
		e.jitter = uniformJitter
	}

	return e, nil
}

// Execute sends the request, retrying while the status matches the retry codes
// and retries remain, then classifies the last response against the fail codes.
//
// It returns the full history on success. On failure the error is a
// *FailedCallError (the history is also returned), or an *InvalidRequestError
// when the descriptor is rejected before any network I/O. If ctx is cancelled
// the attempts made so far are returned with the context error.
func (e *Executor) Execute(ctx context.Context, d types.Descriptor) (types.History, error) {
	if !d.Method.AllowsBody() && d.Body != nil {
		return nil, &InvalidRequestError{Method: d.Method, Reason: "requests cannot have a body"}
	}

	var payload []byte
	if d.Method.AllowsBody() {
		body := d.Body
		if body == nil {
			body = map[string]any{}
		}
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &InvalidRequestError{Method: d.Method, Reason: fmt.Sprintf("body is not valid JSON: %v", err)}
		}
		payload = data
	}

	retryOn := codes.Compile(orDefaults(d.RetryOn))
	failOn := codes.Compile(orDefaults(d.FailOn))

	headers := make(map[string]string, len(e.defaultHeaders)+len(d.Headers))
	for k, v := range e.defaultHeaders {
		headers[k] = v
	}
	for k, v := range d.Headers {
		headers[k] = v
	}

	target, urlErr := buildURL(d)

	client := &http.Client{
		Timeout:   d.Timeout,
		Transport: e.transport,
	}

	log := e.log.With().
		Str("scheme", d.Scheme()).
		Str("method", strings.ToLower(string(d.Method))).
		Str("host", d.Host).
		Str("path", d.NormalizedPath()).
		Interface("headers", logger.Redact(d.Headers)).
		Interface("params", logger.Redact(d.Params)).
		Logger()

	log.Info().Msg("Making request")

	var history types.History
	for attempt := 0; ; attempt++ {
		var response types.Response
		if urlErr != nil {
			response = FromTransportError(urlErr, 0)
		} else {
			response = e.send(ctx, client, d.Method, target, headers, payload)
		}
		history = append(history, response)

		if err := ctx.Err(); err != nil {
			return history, fmt.Errorf("call interrupted after %d attempt(s): %w", len(history), err)
		}

		if !retryOn.Match(response.Status) || attempt >= d.Retries {
			break
		}

		delay := Backoff(attempt, e.jitter())
		withHint(log.Warn(), response).
			Int("attempt", attempt+1).
			Msgf("response (%d) matches retry_on (%s); retrying in %.2f seconds", response.Status, retryOn, delay.Seconds())

		if err := e.sleep(ctx, delay); err != nil {
			return history, fmt.Errorf("call interrupted after %d attempt(s): %w", len(history), err)
		}
	}

	last, _ := history.Last()
	lastStatus := codes.Pad(last.Status)
	if failOn.Match(last.Status) {
		withHint(log.Error(), last).Str("status_code", lastStatus).Int("attempts", len(history)).Msg("Failing due to status code")
		return history, NewFailedCallError(history)
	}

	log.Info().Str("status_code", lastStatus).Int("attempts", len(history)).Msg("Succeeded on status code")
	return history, nil
}

// send performs one attempt; every failure becomes a status-0 record
func (e *Executor) send(ctx context.Context, client *http.Client, method types.Method, target string, headers map[string]string, payload []byte) types.Response {
	start := time.Now()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(method), target, bodyReader)
	if err != nil {
		return FromTransportError(err, time.Since(start))
	}

	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		if strings.EqualFold(key, "Host") {
			httpReq.Host = value
			continue
		}
		httpReq.Header.Set(key, value)
	}

	resp, err := client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		return FromTransportError(err, elapsed)
	}
	defer resp.Body.Close()

	return FromHTTPResponse(resp, elapsed)
}

// withHint adds the failure hint of a status-0 record to a log event
func withHint(event *zerolog.Event, response types.Response) *zerolog.Event {
	if kind, ok := TransportErrorKind(response); ok {
		event = event.Str("hint", kind.Hint())
	}
	return event
}

func orDefaults(specs []codes.Spec) []codes.Spec {
	if specs == nil {
		return codes.Defaults()
	}
	return specs
}

// buildURL appends query parameters to the descriptor URL
func buildURL(d types.Descriptor) (string, error) {
	u, err := url.Parse(d.URL())
	if err != nil {
		return "", err
	}

	if len(d.Params) > 0 {
		query := u.Query()
		for key, value := range d.Params {
			query.Add(key, value)
		}
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

// buildTransport creates an HTTP transport with optional TLS/mTLS configuration
func buildTransport(tlsConfig *types.TLSConfig) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if tlsConfig == nil {
		return transport, nil
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
	}

	// Load client certificate if provided (for mTLS)
	if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	// Load CA certificate if provided (for server verification)
	if tlsConfig.CAFile != "" {
		caCert, err := os.ReadFile(tlsConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = caCertPool
	}

	transport.TLSClientConfig = tlsCfg
	return transport, nil
}
