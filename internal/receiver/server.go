package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// RequestIDHeader carries the identifier used to count requests
	RequestIDHeader = "X-Request-Id"

	maxLogs = 1000
)

var allowedMethods = []string{
	http.MethodGet,
	http.MethodPut,
	http.MethodPost,
	http.MethodPatch,
	http.MethodDelete,
}

// Server represents the receiver HTTP server
type Server struct {
	config     *Config
	log        zerolog.Logger
	httpServer *http.Server
	listener   net.Listener

	counts      map[string]int
	countsMutex sync.Mutex

	logs      []RequestLog
	logsMutex sync.RWMutex
}

// NewServer creates a new receiver; missing config fields take DefaultConfig values
func NewServer(config *Config, log zerolog.Logger) *Server {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.DefaultCodes == nil {
		config.DefaultCodes = defaults.DefaultCodes
	}

	return &Server{
		config: config,
		log:    log,
		counts: make(map[string]int),
		logs:   make([]RequestLog, 0),
	}
}

// Handler returns the routing handler, usable with httptest
//
//	GET  /status/health        always responds 200
//	GET  /admin/count/{id}     request count (or 0) for the request id
//	POST /admin/clear/{id}     resets the count for the request id
//	POST /admin/reset          clears all counts
//	ALL  /noauth[/subpath]     no auth required
//	ALL  /basic[/subpath]      any non-empty basic credentials
//	ALL  /bearer[/subpath]     any non-empty bearer token
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status/health", s.handleHealth)
	mux.HandleFunc("GET /admin/count/{id}", s.handleCount)
	mux.HandleFunc("POST /admin/clear/{id}", s.handleClear)
	mux.HandleFunc("POST /admin/reset", s.handleReset)

	for _, family := range []struct {
		prefix string
		auth   func(*http.Request) bool
	}{
		{"/noauth", nil},
		{"/basic", basicAuthorized},
		{"/bearer", bearerAuthorized},
	} {
		handler := s.echoHandler(family.auth)
		mux.HandleFunc(family.prefix, handler)
		mux.HandleFunc(family.prefix+"/{subpath...}", handler)
	}

	return mux
}

// Start starts listening and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("Receiver server error")
		}
	}()

	s.log.Info().Str("address", s.Address()).Msg("Receiver listening")
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Address returns the base URL the server listens on
func (s *Server) Address() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port)))
}

// Count returns how many echo requests were seen for a request id
func (s *Server) Count(requestID string) int {
	s.countsMutex.Lock()
	defer s.countsMutex.Unlock()
	return s.counts[requestID]
}

// Logs returns a copy of the logged requests, oldest first
func (s *Server) Logs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// ClearLogs clears all logged requests
func (s *Server) ClearLogs() {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = make([]RequestLog, 0)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "UP"})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"count": s.Count(r.PathValue("id"))})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.countsMutex.Lock()
	delete(s.counts, id)
	count := s.counts[id]
	s.countsMutex.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.countsMutex.Lock()
	s.counts = make(map[string]int)
	s.countsMutex.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{})
}

// echoHandler replies with the subpath, honoring the status, wait and fails params
func (s *Server) echoHandler(authorized func(*http.Request) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		bodyBytes, _ := io.ReadAll(r.Body)
		r.Body.Close()

		if !isAllowedMethod(r.Method) {
			w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		if authorized != nil && !authorized(r) {
			w.Header().Set("WWW-Authenticate", challenge(r.URL.Path))
			http.Error(w, "Unauthorized Access", http.StatusUnauthorized)
			s.record(r, string(bodyBytes), "", http.StatusUnauthorized, start)
			return
		}

		// Get or assign the request id
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = r.URL.Query().Get("requestId")
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		count := s.increment(requestID)

		// Maybe wait to respond, depending on query params
		if wait := s.intParam(r, "wait"); wait > 0 {
			select {
			case <-time.After(time.Duration(wait) * time.Second):
			case <-r.Context().Done():
				return
			}
		}

		status := s.config.DefaultCodes[r.Method]
		if requested := s.intParam(r, "status"); requested >= 100 && requested <= 999 {
			status = requested
		}
		if fails := s.intParam(r, "fails"); fails > 0 && count <= fails {
			status = http.StatusInternalServerError
		}

		subpath := r.PathValue("subpath")
		if subpath != "" {
			subpath = "/" + subpath
		}

		w.Header().Set(RequestIDHeader, requestID)
		writeJSON(w, status, map[string]any{"subpath": subpath})

		s.record(r, string(bodyBytes), requestID, status, start)
	}
}

func (s *Server) increment(requestID string) int {
	s.countsMutex.Lock()
	defer s.countsMutex.Unlock()

	s.counts[requestID]++
	return s.counts[requestID]
}

// intParam reads an integer query param; missing or invalid values are 0
func (s *Server) intParam(r *http.Request, key string) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		s.log.Error().Err(err).Str("param", key).Str("value", raw).Msg("Error getting int from params")
		return 0
	}
	return value
}

// record adds a request to the log
func (s *Server) record(r *http.Request, body, requestID string, status int, start time.Time) {
	duration := time.Since(start)

	s.log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("request_id", requestID).
		Dur("duration", duration).
		Msg("Handled request")

	if !s.config.Logging {
		return
	}

	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = append(s.logs, RequestLog{
		Timestamp: start,
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		Headers:   flattenHeaders(r.Header),
		Body:      body,
		RequestID: requestID,
		Status:    status,
		Duration:  duration,
	})

	// Keep only the last maxLogs entries
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
}

func basicAuthorized(r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	return ok && username != "" && password != ""
}

func bearerAuthorized(r *http.Request) bool {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	return found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != ""
}

func challenge(path string) string {
	if strings.HasPrefix(path, "/bearer") {
		return `Bearer realm="Authentication Required"`
	}
	return `Basic realm="Authentication Required"`
}

func isAllowedMethod(method string) bool {
	for _, m := range allowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusNoContent || status == http.StatusNotModified {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// flattenHeaders converts http.Header to map[string]string (first value only)
func flattenHeaders(headers http.Header) map[string]string {
	result := make(map[string]string)
	for key, values := range headers {
		if len(values) > 0 {
			result[key] = values[0]
		}
	}
	return result
}
