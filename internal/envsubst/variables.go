package envsubst

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var (
	// Matches $NAME and ${NAME}
	varPattern = regexp.MustCompile(`\$(?:\{([A-Za-z_][A-Za-z0-9_]*)\}|([A-Za-z_][A-Za-z0-9_]*))`)
)

// Lookup returns the value of a variable and whether it is set
type Lookup func(name string) (string, bool)

// Expand replaces $NAME and ${NAME} using lookup. Unknown variables are left unchanged.
func Expand(input string, lookup Lookup) string {
	if lookup == nil || !strings.Contains(input, "$") {
		return input
	}
	return varPattern.ReplaceAllStringFunc(input, func(match string) string {
		if value, ok := lookup(variableName(match)); ok {
			return value
		}
		return match
	})
}

func variableName(match string) string {
	name := strings.TrimPrefix(match, "$")
	return strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
}

// Resolver expands variables from layered sources: env file values override the process environment
type Resolver struct {
	fileVars   map[string]string
	envVars    map[string]string
	unresolved []string
}

// NewResolver creates a resolver; either map may be nil
func NewResolver(fileVars, envVars map[string]string) *Resolver {
	return &Resolver{
		fileVars: fileVars,
		envVars:  envVars,
	}
}

// Lookup finds a variable, env file first
func (r *Resolver) Lookup(name string) (string, bool) {
	if value, ok := r.fileVars[name]; ok {
		return value, true
	}
	value, ok := r.envVars[name]
	return value, ok
}

// Resolve expands a string and tracks names that could not be resolved
func (r *Resolver) Resolve(input string) string {
	return Expand(input, func(name string) (string, bool) {
		value, ok := r.Lookup(name)
		if !ok {
			r.unresolved = append(r.unresolved, name)
		}
		return value, ok
	})
}

// ResolveMap expands every value of a map into a new map
func (r *Resolver) ResolveMap(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	resolved := make(map[string]string, len(values))
	for key, value := range values {
		resolved[key] = r.Resolve(value)
	}
	return resolved
}

// ResolveValue expands the string leaves of a decoded JSON value
func (r *Resolver) ResolveValue(value any) any {
	switch v := value.(type) {
	case string:
		return r.Resolve(v)
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for key, item := range v {
			resolved[key] = r.ResolveValue(item)
		}
		return resolved
	case []any:
		resolved := make([]any, len(v))
		for i, item := range v {
			resolved[i] = r.ResolveValue(item)
		}
		return resolved
	default:
		return value
	}
}

// GetUnresolvedVariables returns the distinct names that had no value, sorted
func (r *Resolver) GetUnresolvedVariables() []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range r.unresolved {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LoadEnvFile loads variables from a .env file
func LoadEnvFile(path string) (map[string]string, error) {
	envVars := make(map[string]string)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		// Parse key=value
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue // Skip malformed lines
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		envVars[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading env file: %w", err)
	}

	return envVars, nil
}

// Environ snapshots the process environment
func Environ() map[string]string {
	envVars := make(map[string]string)
	for _, env := range os.Environ() {
		if key, value, found := strings.Cut(env, "="); found {
			envVars[key] = value
		}
	}
	return envVars
}
