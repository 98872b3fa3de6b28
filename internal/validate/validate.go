// Package validate checks note, folder and image names against the rules
// shared by every file system the vault may be synced to.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind classifies why a name was rejected.
type Kind string

const (
	KindEmpty            Kind = "EMPTY"
	KindForbiddenChars   Kind = "FORBIDDEN_CHARS"
	KindReservedName     Kind = "RESERVED_NAME"
	KindInvalidDot       Kind = "INVALID_DOT"
	KindTrailingDotSpace Kind = "TRAILING_DOT_SPACE"
)

// Message returns a short user-facing description of the kind.
func (k Kind) Message() string {
	switch k {
	case KindEmpty:
		return "name cannot be empty"
	case KindForbiddenChars:
		return `name cannot contain \ / : * ? " < > | or control characters`
	case KindReservedName:
		return "name is reserved by the operating system"
	case KindInvalidDot:
		return `name cannot be "."`
	case KindTrailingDotSpace:
		return "name cannot end with a dot or a space"
	default:
		return string(k)
	}
}

var reservedRe = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[1-9]|lpt[1-9])(\..*)?$`)

// Result is the outcome of validating a name or path. Exactly one of
// Sanitized (when Valid) or Kind (when not) is meaningful.
type Result struct {
	Valid     bool   `json:"valid"`
	Sanitized string `json:"sanitized,omitempty"`
	Kind      Kind   `json:"error,omitempty"`
	// Segment is the offending path segment for path validation.
	Segment string `json:"segment,omitempty"`
}

// Err converts a failed Result into an *Error. It returns nil for valid results.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Kind: r.Kind, Name: r.Segment}
}

// Error is the error form of a failed Result.
type Error struct {
	Kind Kind
	Name string
}

func (e *Error) Error() string {
	if e.Name == "" {
		return e.Kind.Message()
	}
	return fmt.Sprintf("%q: %s", e.Name, e.Kind.Message())
}

// Name validates a single file or folder name. The input is trimmed first and
// the trimmed form is returned as Sanitized.
func Name(candidate string) Result {
	name := strings.TrimSpace(candidate)
	fail := func(k Kind) Result {
		return Result{Kind: k, Segment: name}
	}

	if name == "" {
		return fail(KindEmpty)
	}
	if hasForbidden(name) {
		return fail(KindForbiddenChars)
	}
	if reservedRe.MatchString(name) {
		return fail(KindReservedName)
	}
	if name == "." {
		return fail(KindInvalidDot)
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return fail(KindTrailingDotSpace)
	}
	return Result{Valid: true, Sanitized: name}
}

// Path validates a slash-separated path segment by segment. Empty segments
// are dropped; the first invalid segment decides the result.
func Path(candidate string) Result {
	parts := strings.Split(candidate, "/")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		res := Name(p)
		if !res.Valid {
			return res
		}
		clean = append(clean, res.Sanitized)
	}
	if len(clean) == 0 {
		return Result{Kind: KindEmpty}
	}
	return Result{Valid: true, Sanitized: strings.Join(clean, "/")}
}

func hasForbidden(s string) bool {
	for _, r := range s {
		if r < 0x20 {
			return true
		}
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			return true
		}
	}
	return false
}

// NameRule is an ozzo-validation rule wrapping Name. Empty values are left to
// validation.Required.
var NameRule = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	return Name(s).Err()
})

// PathRule is an ozzo-validation rule wrapping Path.
var PathRule = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	return Path(s).Err()
})
