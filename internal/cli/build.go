package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"

	"github.com/studiowebux/caller/internal/codes"
	"github.com/studiowebux/caller/internal/envsubst"
	"github.com/studiowebux/caller/internal/types"
)

// BuildDescriptor turns command line options into a validated descriptor.
// Host, path, params, headers, credentials and body strings are expanded with the resolver.
func BuildDescriptor(opts Options, resolver *envsubst.Resolver) (types.Descriptor, error) {
	method, err := types.ParseMethod(defaultString(opts.Method, "get"))
	if err != nil {
		return types.Descriptor{}, err
	}

	params, err := ParseKeyValues(opts.Params)
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("invalid params: %w", err)
	}

	headers, err := ParseKeyValues(opts.Headers)
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("invalid headers: %w", err)
	}

	// Add the Authorization header
	if opts.Auth != "" {
		authType, err := ParseAuthType(opts.Auth)
		if err != nil {
			return types.Descriptor{}, err
		}
		value, err := AuthorizationHeader(authType, opts.Credentials, resolver.Lookup)
		if err != nil {
			return types.Descriptor{}, err
		}
		if headers == nil {
			headers = make(map[string]string)
		}
		headers["Authorization"] = value
	}

	body, err := parseBody(opts.Body)
	if err != nil {
		return types.Descriptor{}, err
	}

	retryOn, err := parseCodes(opts.RetryOn)
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("invalid retry-on codes: %w", err)
	}
	failOn, err := parseCodes(opts.FailOn)
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("invalid fail-on codes: %w", err)
	}

	port := opts.Port
	if port == 0 {
		port = DefaultPort(opts.Insecure)
	}

	d := types.Descriptor{
		Method:   method,
		Host:     resolver.Resolve(opts.Host),
		Port:     port,
		Path:     resolver.Resolve(opts.Path),
		Params:   resolver.ResolveMap(params),
		Headers:  resolver.ResolveMap(headers),
		Body:     resolver.ResolveValue(body),
		Timeout:  time.Duration(opts.Timeout * float64(time.Second)),
		Retries:  opts.Retries,
		RetryOn:  retryOn,
		FailOn:   failOn,
		Insecure: opts.Insecure,
	}

	if err := Validate(&d); err != nil {
		return types.Descriptor{}, err
	}

	return d, nil
}

// parseBody decodes a JSON body; comments and trailing commas are accepted
func parseBody(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var body any
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), &body); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	return body, nil
}

// parseCodes parses code flags; nil keeps the executor defaults
func parseCodes(values []string) ([]codes.Spec, error) {
	if values == nil {
		return nil, nil
	}

	var fields []string
	for _, v := range values {
		fields = append(fields, strings.Fields(v)...)
	}
	specs, err := codes.ParseAll(fields)
	if err != nil {
		return nil, err
	}
	return specs, nil
}

func specStrings(specs []codes.Spec) []string {
	if specs == nil {
		return nil
	}
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.String()
	}
	return out
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ValidationError lists descriptor fields that failed validation
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

var validate = validator.New()

// Validate checks the descriptor's field constraints
func Validate(d *types.Descriptor) error {
	if err := validate.Struct(d); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				fields = append(fields, fieldMessage(fe))
			}
			return &ValidationError{Fields: fields}
		}
		return err
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", strings.ToLower(fe.Field()), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", strings.ToLower(fe.Field()), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", strings.ToLower(fe.Field()), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation", strings.ToLower(fe.Field()))
	}
}
