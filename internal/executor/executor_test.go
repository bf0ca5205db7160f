package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/caller/internal/codes"
	"github.com/studiowebux/caller/internal/receiver"
	"github.com/studiowebux/caller/internal/types"
)

const testJitter = 0.25

// sleepRecorder records backoff delays instead of sleeping
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func mustParseAll(t *testing.T, values ...string) []codes.Spec {
	t.Helper()
	specs, err := codes.ParseAll(values)
	require.NoError(t, err)
	return specs
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestExecutor(t *testing.T, opts Options) (*Executor, *sleepRecorder) {
	t.Helper()
	recorder := &sleepRecorder{}
	if opts.Sleep == nil {
		opts.Sleep = recorder.sleep
	}
	if opts.Jitter == nil {
		opts.Jitter = func() float64 { return testJitter }
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e, recorder
}

// startReceiver serves the receiver handler and returns a descriptor template pointing at it
func startReceiver(t *testing.T) types.Descriptor {
	t.Helper()
	srv := receiver.NewServer(nil, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return types.Descriptor{
		Method:   types.MethodGet,
		Host:     u.Hostname(),
		Port:     port,
		Timeout:  5 * time.Second,
		Insecure: true,
	}
}

func TestExecuteScenarios(t *testing.T) {
	base := startReceiver(t)

	t.Run("get noauth", func(t *testing.T) {
		e, _ := newTestExecutor(t, Options{})
		d := base
		d.Path = "/noauth"

		history, err := e.Execute(context.Background(), d)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, 200, history[0].Status)
		assert.Equal(t, map[string]any{"subpath": ""}, history[0].Body)
	})

	t.Run("post noauth", func(t *testing.T) {
		e, _ := newTestExecutor(t, Options{})
		d := base
		d.Method = types.MethodPost
		d.Path = "noauth"

		history, err := e.Execute(context.Background(), d)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, 201, history[0].Status)
	})

	t.Run("fail on 401", func(t *testing.T) {
		e, _ := newTestExecutor(t, Options{})
		d := base
		d.Path = "/bearer"
		d.Headers = map[string]string{"Authorization": "Basic dXNlcjpwYXNz"}
		d.Retries = 3
		d.FailOn = mustParseAll(t, "401")

		history, err := e.Execute(context.Background(), d)
		var failed *FailedCallError
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, 401, failed.Status)
		assert.Equal(t, 1, failed.Attempts)
		assert.Len(t, history, 1)
		assert.Equal(t, history, failed.Responses)
	})

	t.Run("status param", func(t *testing.T) {
		e, _ := newTestExecutor(t, Options{})
		d := base
		d.Path = "/noauth"
		d.Params = map[string]string{"status": "301"}

		history, err := e.Execute(context.Background(), d)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, 301, history[0].Status)
	})

	t.Run("fails then succeeds", func(t *testing.T) {
		e, recorder := newTestExecutor(t, Options{})
		d := base
		d.Path = "/noauth"
		d.Params = map[string]string{"fails": "2", "requestId": "scenario-5"}
		d.Retries = 3

		history, err := e.Execute(context.Background(), d)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, 500, history[0].Status)
		assert.Equal(t, 500, history[1].Status)
		assert.Equal(t, 200, history[2].Status)
		assert.Equal(t, []time.Duration{1250 * time.Millisecond, 2250 * time.Millisecond}, recorder.delays)
	})
}

func TestInvalidRequestMakesNoCall(t *testing.T) {
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("unexpected request to %s", r.URL)
		return nil, nil
	})

	for _, method := range []types.Method{types.MethodGet, types.MethodDelete} {
		t.Run(string(method), func(t *testing.T) {
			e, _ := newTestExecutor(t, Options{Transport: transport})

			history, err := e.Execute(context.Background(), types.Descriptor{
				Method:  method,
				Host:    "localhost",
				Port:    80,
				Body:    map[string]any{"a": 1},
				Timeout: time.Second,
			})

			var invalid *InvalidRequestError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, method, invalid.Method)
			assert.Nil(t, history)
			assert.Contains(t, err.Error(), "cannot have a body")
		})
	}
}

func TestUnserializableBody(t *testing.T) {
	e, _ := newTestExecutor(t, Options{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatal("unexpected request")
		return nil, nil
	})})

	_, err := e.Execute(context.Background(), types.Descriptor{
		Method:  types.MethodPost,
		Host:    "localhost",
		Port:    80,
		Body:    map[string]any{"ch": make(chan int)},
		Timeout: time.Second,
	})

	var invalid *InvalidRequestError
	assert.ErrorAs(t, err, &invalid)
}

// statusServer answers every request with the next status from the list (the last one repeats)
func statusServer(t *testing.T, statuses ...int) (types.Descriptor, *int) {
	t.Helper()
	var mu sync.Mutex
	calls := 0

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := min(calls, len(statuses)-1)
		calls++
		mu.Unlock()
		w.WriteHeader(statuses[idx])
		w.Write([]byte("plain text"))
	}))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return types.Descriptor{
		Method:   types.MethodGet,
		Host:     u.Hostname(),
		Port:     port,
		Timeout:  5 * time.Second,
		Insecure: true,
	}, &calls
}

func TestRetryBound(t *testing.T) {
	d, calls := statusServer(t, 503)
	d.Retries = 4

	e, recorder := newTestExecutor(t, Options{})
	history, err := e.Execute(context.Background(), d)

	var failed *FailedCallError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 503, failed.Status)
	assert.Equal(t, 5, failed.Attempts)
	assert.Len(t, history, 5)
	assert.Equal(t, 5, *calls)

	assert.Equal(t, []time.Duration{
		1250 * time.Millisecond,
		2250 * time.Millisecond,
		4250 * time.Millisecond,
		8250 * time.Millisecond,
	}, recorder.delays)
}

func TestZeroRetries(t *testing.T) {
	d, calls := statusServer(t, 503)

	e, recorder := newTestExecutor(t, Options{})
	history, err := e.Execute(context.Background(), d)

	assert.Error(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, recorder.delays)
}

func TestRetryAndFailSetsAreIndependent(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		retryOn   []string
		failOn    []string
		wantLen   int
		wantError bool
	}{
		{"retry exhausted but not failing", []int{429}, []string{"429"}, []string{"5XX"}, 3, false},
		{"fail without retry", []int{404}, []string{"50X"}, []string{"4XX"}, 1, true},
		{"retry then fail on different code", []int{503, 400}, []string{"503"}, []string{"400"}, 2, true},
		{"empty retry list only matches 000", []int{503}, []string{}, []string{"4XX"}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := statusServer(t, tt.statuses...)
			d.Retries = 2
			d.RetryOn = mustParseAll(t, tt.retryOn...)
			d.FailOn = mustParseAll(t, tt.failOn...)

			e, _ := newTestExecutor(t, Options{})
			history, err := e.Execute(context.Background(), d)

			assert.Len(t, history, tt.wantLen)
			if tt.wantError {
				var failed *FailedCallError
				assert.ErrorAs(t, err, &failed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTextBody(t *testing.T) {
	d, _ := statusServer(t, 200)

	e, _ := newTestExecutor(t, Options{})
	history, err := e.Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "plain text", history[0].Body)
	assert.GreaterOrEqual(t, history[0].Duration, 0.0)
}

func TestIdempotence(t *testing.T) {
	d, _ := statusServer(t, 202)
	e, _ := newTestExecutor(t, Options{})

	first, err := e.Execute(context.Background(), d)
	require.NoError(t, err)
	second, err := e.Execute(context.Background(), d)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	assert.Equal(t, first[0].Status, second[0].Status)
	assert.Equal(t, first[0].Body, second[0].Body)
}

func TestConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	e, recorder := newTestExecutor(t, Options{})
	history, err := e.Execute(context.Background(), types.Descriptor{
		Method:   types.MethodGet,
		Host:     "127.0.0.1",
		Port:     port,
		Timeout:  2 * time.Second,
		Retries:  2,
		Insecure: true,
	})

	var failed *FailedCallError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 0, failed.Status)
	require.Len(t, history, 3)
	assert.Len(t, recorder.delays, 2)

	for _, response := range history {
		assert.Equal(t, 0, response.Status)
		assert.Empty(t, response.Headers)
		body, ok := response.Body.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, string(KindConnectionRefused), body["error"])
		assert.NotEmpty(t, body["message"])
	}
}

func TestPerAttemptTimeout(t *testing.T) {
	d := startReceiver(t)
	d.Path = "/noauth"
	d.Params = map[string]string{"wait": "2"}
	d.Timeout = 200 * time.Millisecond
	d.Retries = 1

	e, recorder := newTestExecutor(t, Options{})
	history, err := e.Execute(context.Background(), d)

	var failed *FailedCallError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 0, failed.Status)
	assert.Equal(t, 2, failed.Attempts)
	require.Len(t, history, 2)
	assert.Equal(t, []time.Duration{1250 * time.Millisecond}, recorder.delays)

	for _, response := range history {
		assert.Equal(t, 0, response.Status)
		body, ok := response.Body.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, string(KindTimeout), body["error"])
	}
}

func TestLargeRetryCount(t *testing.T) {
	d, calls := statusServer(t, 200)
	d.Retries = math.MaxInt

	e, recorder := newTestExecutor(t, Options{})
	history, err := e.Execute(context.Background(), d)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, recorder.delays)
}

func TestFailureLogHint(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	e, _ := newTestExecutor(t, Options{Logger: &log})

	_, err = e.Execute(context.Background(), types.Descriptor{
		Method:   types.MethodGet,
		Host:     "127.0.0.1",
		Port:     port,
		Timeout:  2 * time.Second,
		Retries:  1,
		Insecure: true,
	})
	require.Error(t, err)

	var warned, failed bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		switch entry["level"] {
		case "warn":
			warned = true
			assert.Equal(t, KindConnectionRefused.Hint(), entry["hint"])
		case "error":
			failed = true
			assert.Equal(t, KindConnectionRefused.Hint(), entry["hint"])
		}
	}
	assert.True(t, warned)
	assert.True(t, failed)
}

func TestTransportErrorKind(t *testing.T) {
	tests := []struct {
		name     string
		response types.Response
		want     ErrorKind
		wantOK   bool
	}{
		{"transport failure", FromTransportError(context.DeadlineExceeded, 0), KindTimeout, true},
		{"http status", types.Response{Status: 503, Body: map[string]any{"error": "x"}}, "", false},
		{"text body", types.Response{Status: 0, Body: "oops"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := TransportErrorKind(tt.response)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestRequestShape(t *testing.T) {
	type captured struct {
		method      string
		path        string
		query       url.Values
		contentType string
		headers     http.Header
		host        string
		body        string
	}
	var got captured

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got = captured{
			method:      r.Method,
			path:        r.URL.Path,
			query:       r.URL.Query(),
			contentType: r.Header.Get("Content-Type"),
			headers:     r.Header.Clone(),
			host:        r.Host,
			body:        string(data),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer ts.Close()

	u, _ := url.Parse(ts.URL)
	port, _ := strconv.Atoi(u.Port())
	base := types.Descriptor{
		Host:     u.Hostname(),
		Port:     port,
		Timeout:  5 * time.Second,
		Insecure: true,
	}

	e, _ := newTestExecutor(t, Options{DefaultHeaders: map[string]string{
		"X-Default":  "from-default",
		"X-Override": "from-default",
	}})

	t.Run("post without body sends empty object", func(t *testing.T) {
		d := base
		d.Method = types.MethodPost
		d.Path = "/items/1"
		d.Params = map[string]string{"q": "a b"}
		d.Headers = map[string]string{"X-Override": "from-request", "Host": "virtual.local"}

		history, err := e.Execute(context.Background(), d)
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, "/items/1", got.path)
		assert.Equal(t, "a b", got.query.Get("q"))
		assert.Equal(t, "{}", got.body)
		assert.Equal(t, "application/json", got.contentType)
		assert.Equal(t, "from-default", got.headers.Get("X-Default"))
		assert.Equal(t, "from-request", got.headers.Get("X-Override"))
		assert.Equal(t, "virtual.local", got.host)
		assert.Equal(t, map[string]any{"ok": true}, history[0].Body)
		assert.Equal(t, "application/json", history[0].Headers["Content-Type"])
	})

	t.Run("patch sends json body", func(t *testing.T) {
		d := base
		d.Method = types.MethodPatch
		d.Body = map[string]any{"name": "x"}

		_, err := e.Execute(context.Background(), d)
		require.NoError(t, err)

		var sent map[string]any
		require.NoError(t, json.Unmarshal([]byte(got.body), &sent))
		assert.Equal(t, map[string]any{"name": "x"}, sent)
	})

	t.Run("get sends no body", func(t *testing.T) {
		d := base
		d.Method = types.MethodGet
		d.Path = "plain"

		_, err := e.Execute(context.Background(), d)
		require.NoError(t, err)

		assert.Equal(t, http.MethodGet, got.method)
		assert.Equal(t, "", got.body)
		assert.Equal(t, "", got.contentType)
		assert.Equal(t, "/plain", got.path)
	})
}

func TestContextCancelDuringSleep(t *testing.T) {
	d, _ := statusServer(t, 503)
	d.Retries = 5

	ctx, cancel := context.WithCancel(context.Background())
	e, _ := newTestExecutor(t, Options{Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}})

	history, err := e.Execute(ctx, d)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, history, 1)
}

func TestNewWithMissingTLSFiles(t *testing.T) {
	_, err := New(Options{TLS: &types.TLSConfig{CAFile: "/nonexistent/ca.pem"}})
	assert.Error(t, err)

	_, err = New(Options{TLS: &types.TLSConfig{CertFile: "/nonexistent/c.pem", KeyFile: "/nonexistent/k.pem"}})
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		jitter  float64
		want    time.Duration
	}{
		{0, 0, time.Second},
		{1, 0, 2 * time.Second},
		{3, 0.4, 8400 * time.Millisecond},
		{-1, 0, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempt, tt.jitter))
	}

	for i := 0; i < 100; i++ {
		j := uniformJitter()
		assert.GreaterOrEqual(t, j, 0.0)
		assert.Less(t, j, MaxJitter)
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
