package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/caller/internal/types"
)

const (
	highlightFormatter = "terminal256"
	highlightStyle     = "monokai"
)

// ANSI color codes
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
)

// FormatOutput renders a value as json, yaml or text. Text renders a history
// as one block per attempt; color adds ANSI status colors and JSON highlighting.
func FormatOutput(value any, format string, color bool) (string, error) {
	switch format {
	case OutputJSON, "":
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil

	case OutputYAML:
		data, err := yaml.Marshal(value)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case OutputText:
		switch v := value.(type) {
		case types.History:
			var sb strings.Builder
			for i, response := range v {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("Attempt %d: ", i+1))
				writeResponse(&sb, response, color)
			}
			return sb.String(), nil
		case types.Response:
			var sb strings.Builder
			writeResponse(&sb, v, color)
			return sb.String(), nil
		default:
			return formatBody(value, color), nil
		}

	default:
		return "", fmt.Errorf("unsupported output format %q (use json, yaml, text)", format)
	}
}

func writeResponse(sb *strings.Builder, response types.Response, color bool) {
	status := fmt.Sprintf("%03d", response.Status)
	if color {
		status = getStatusColor(response.Status) + status + colorReset
	}
	sb.WriteString(fmt.Sprintf("%s | Duration: %.3fs\n", status, response.Duration))

	keys := make([]string, 0, len(response.Headers))
	for key := range response.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(fmt.Sprintf("%s: %s\n", key, response.Headers[key]))
	}

	sb.WriteString("\n")
	sb.WriteString(formatBody(response.Body, color))
}

// formatBody renders text bodies as-is and everything else as indented JSON
func formatBody(body any, color bool) string {
	if text, ok := body.(string); ok {
		if text == "" || strings.HasSuffix(text, "\n") {
			return text
		}
		return text + "\n"
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v\n", body)
	}
	if color {
		return highlightJSON(string(data)) + "\n"
	}
	return string(data) + "\n"
}

// highlightJSON applies syntax highlighting; the input is returned unchanged on failure
func highlightJSON(source string) string {
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, source, "json", highlightFormatter, highlightStyle); err != nil {
		return source
	}
	return strings.TrimRight(buf.String(), "\n")
}

func getStatusColor(status int) string {
	if status >= 200 && status < 300 {
		return colorGreen
	} else if status == 0 || status >= 400 {
		return colorRed
	}
	return colorYellow
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
