package codes

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind identifies the shape of a status code specification
type Kind uint8

const (
	// NoConnection is the sentinel 000: no HTTP response was obtained
	NoConnection Kind = iota
	// Exact matches a single status code, e.g. 404
	Exact
	// Prefix fixes the first two digits, e.g. 50X
	Prefix
	// Class fixes only the first digit, e.g. 5XX
	Class
	// Infix fixes the first and last digits, e.g. 5X3
	Infix
)

func (k Kind) String() string {
	switch k {
	case NoConnection:
		return "no-connection"
	case Exact:
		return "exact"
	case Prefix:
		return "prefix"
	case Class:
		return "class"
	case Infix:
		return "infix"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

const wildcard = 'X'

var (
	// ErrInvalidCode is returned for string specifications outside 000, 4xx and 5xx
	ErrInvalidCode = errors.New("invalid HTTP code value")

	// Accepted string forms: 000, 4xx/5xx digits, with x/X wildcards in the last two positions
	codePattern = regexp.MustCompile(`^(000|[45][0-9]{2}|[45][0-9xX]{2}|[45][xX]{2})$`)
)

// Spec is one normalized status code specification. The zero value is not valid;
// build specs with FromInt, Parse or Normalize.
type Spec struct {
	kind   Kind
	digits [3]byte
}

// Kind returns the specification shape
func (s Spec) Kind() Kind {
	return s.kind
}

// String returns the 3-character form, wildcards rendered as X
func (s Spec) String() string {
	return string(s.digits[:])
}

// MarshalText implements encoding.TextMarshaler
func (s Spec) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using Parse
func (s *Spec) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Spec) matches(candidate [3]byte) bool {
	for i := range candidate {
		if s.digits[i] != wildcard && s.digits[i] != candidate[i] {
			return false
		}
	}
	return true
}

// FromInt normalizes an integer code. Only 0 and 100..599 are kept; ok is false
// for anything else and the caller is expected to drop the value.
func FromInt(n int) (spec Spec, ok bool) {
	if n != 0 && (n < 100 || n >= 600) {
		return Spec{}, false
	}
	digits, _ := pad(n)
	if n == 0 {
		return Spec{kind: NoConnection, digits: digits}, true
	}
	return Spec{kind: Exact, digits: digits}, true
}

// Parse normalizes a string code such as "000", "404", "50X" or "4xx"
func Parse(value string) (Spec, error) {
	if !codePattern.MatchString(value) {
		return Spec{}, fmt.Errorf("%w %q; should match %s", ErrInvalidCode, value, codePattern.String())
	}

	var digits [3]byte
	copy(digits[:], strings.ToUpper(value))

	if value == "000" {
		return Spec{kind: NoConnection, digits: digits}, nil
	}

	switch {
	case digits[1] == wildcard && digits[2] == wildcard:
		return Spec{kind: Class, digits: digits}, nil
	case digits[2] == wildcard:
		return Spec{kind: Prefix, digits: digits}, nil
	case digits[1] == wildcard:
		return Spec{kind: Infix, digits: digits}, nil
	default:
		return Spec{kind: Exact, digits: digits}, nil
	}
}

// MustParse is like Parse but panics on invalid input. Intended for constants.
func MustParse(value string) Spec {
	spec, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return spec
}

// ParseAll parses every string and stops at the first invalid one
func ParseAll(values []string) ([]Spec, error) {
	specs := make([]Spec, 0, len(values))
	for _, v := range values {
		spec, err := Parse(v)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Normalize converts a mixed list of integers and strings, as decoded from YAML
// or JSON, into specs. Out-of-range integers are dropped silently; invalid strings
// are an error.
func Normalize(values []any) ([]Spec, error) {
	specs := make([]Spec, 0, len(values))
	for _, v := range values {
		switch value := v.(type) {
		case string:
			spec, err := Parse(value)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		case int:
			if spec, ok := FromInt(value); ok {
				specs = append(specs, spec)
			}
		case int64:
			if spec, ok := FromInt(int(value)); ok {
				specs = append(specs, spec)
			}
		case float64:
			if value != float64(int(value)) {
				return nil, fmt.Errorf("%w %v; not an integer", ErrInvalidCode, value)
			}
			if spec, ok := FromInt(int(value)); ok {
				specs = append(specs, spec)
			}
		case Spec:
			specs = append(specs, value)
		default:
			return nil, fmt.Errorf("%w %v; unsupported type %T", ErrInvalidCode, value, value)
		}
	}
	return specs, nil
}

// Defaults returns the default retry and fail set: no connection and 500-509
func Defaults() []Spec {
	noConnection, _ := FromInt(0)
	return []Spec{noConnection, MustParse("50X")}
}

// Pad renders a status the way matchers see it, zero-padded to 3 digits
func Pad(status int) string {
	return fmt.Sprintf("%03d", status)
}

// pad returns the 3 digits of status; ok is false when status has no 3-digit form
func pad(status int) (digits [3]byte, ok bool) {
	if status < 0 || status > 999 {
		return digits, false
	}
	digits[0] = byte('0' + status/100)
	digits[1] = byte('0' + status/10%10)
	digits[2] = byte('0' + status%10)
	return digits, true
}
