package executor

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/studiowebux/caller/internal/types"
)

// FromTransportError converts a failure to obtain any HTTP response into a status-0 record.
// It performs no I/O.
func FromTransportError(err error, elapsed time.Duration) types.Response {
	return types.Response{
		Duration: elapsed.Seconds(),
		Status:   0,
		Headers:  map[string]string{},
		Body:     errorBody(err),
	}
}

// FromHTTPResponse reads the response body and builds the record. The body is
// parsed as JSON when possible, otherwise kept as text. If reading the body
// fails the real status is kept and the body describes the error.
func FromHTTPResponse(resp *http.Response, elapsed time.Duration) types.Response {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Response{
			Duration: elapsed.Seconds(),
			Status:   resp.StatusCode,
			Headers:  map[string]string{},
			Body:     errorBody(err),
		}
	}

	return types.Response{
		Duration: elapsed.Seconds(),
		Status:   resp.StatusCode,
		Headers:  flattenHeaders(resp.Header),
		Body:     decodeBody(data),
	}
}

// TransportErrorKind returns the failure class recorded in a status-0 response
func TransportErrorKind(response types.Response) (ErrorKind, bool) {
	if response.Status != 0 {
		return "", false
	}
	body, ok := response.Body.(map[string]any)
	if !ok {
		return "", false
	}
	kind, ok := body["error"].(string)
	if !ok || kind == "" {
		return "", false
	}
	return ErrorKind(kind), true
}

func errorBody(err error) map[string]any {
	return map[string]any{
		"error":   string(Classify(err)),
		"message": err.Error(),
	}
}

func decodeBody(data []byte) any {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return string(data)
	}
	return parsed
}

// flattenHeaders converts http.Header to map[string]string, joining repeated values
func flattenHeaders(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for key, values := range headers {
		result[key] = strings.Join(values, ", ")
	}
	return result
}
