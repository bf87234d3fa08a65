package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// CourseError is a domain failure whose Message is ready to be shown to the
// student as is. It terminates the command; nothing retries it.
type CourseError struct {
	Message string
	Err     error
}

func (e *CourseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "course error"
}

func (e *CourseError) Unwrap() error {
	return e.Err
}

// NewCourseError builds a CourseError with a formatted message.
func NewCourseError(format string, args ...any) *CourseError {
	return &CourseError{Message: fmt.Sprintf(format, args...)}
}

// WrapCourseError attaches a student-facing message to an underlying failure.
func WrapCourseError(err error, message string) *CourseError {
	return &CourseError{Message: message, Err: err}
}

// UsageError reports invalid command-line input, such as an unknown selector
// token or a command started from the wrong directory.
type UsageError struct {
	Token   string
	Message string
}

func (e *UsageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("unsupported format %s. See apyneng --help for accepted formats", e.Token)
}

// NewUnsupportedToken returns the usage error for a selector token that matches
// none of the accepted shapes.
func NewUnsupportedToken(token string) *UsageError {
	return &UsageError{Token: token}
}

// IsUsage reports whether err is (or wraps) a UsageError.
func IsUsage(err error) bool {
	var usageErr *UsageError
	return errors.As(err, &usageErr)
}

// ErrMissingToken is returned when submission is requested without a token.
var ErrMissingToken = &CourseError{
	Message: "A GitHub token is required to submit tasks for review. " +
		"Set the GITHUB_TOKEN environment variable, see https://advpyneng.natenka.io/docs/apyneng-prepare/",
}

// ErrAuthFailed is returned when the hosting API rejects the token.
var ErrAuthFailed = &CourseError{
	Message: "Token authentication failed. The tasks were not submitted for review",
}

// CloneFailure classifies the stderr of a failed git clone.
func CloneFailure(stderr string) *CourseError {
	if isHostResolution(stderr) {
		return &CourseError{Message: "Could not clone the repository. Is there internet access?"}
	}
	return &CourseError{Message: fmt.Sprintf("Could not copy files. %s", strings.TrimSpace(stderr))}
}

func isHostResolution(stderr string) bool {
	lower := strings.ToLower(stderr)
	patterns := []string{
		"could not resolve host",
		"temporary failure in name resolution",
		"name or service not known",
	}
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Kind returns the short type name used in one-line error summaries, looking
// through wrappers created with fmt.Errorf for the first named error type.
func Kind(err error) string {
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if name := typeName(cur); exported(name) {
			return name
		}
	}
	if err == nil {
		return ""
	}
	return "Error"
}

func exported(name string) bool {
	return name != "" && unicode.IsUpper(rune(name[0]))
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Chain renders every layer of a wrapped error, outermost first.
func Chain(err error) []string {
	var out []string
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		out = append(out, fmt.Sprintf("%s: %s", typeNameOrError(cur), cur.Error()))
	}
	return out
}

func typeNameOrError(err error) string {
	if name := typeName(err); exported(name) {
		return name
	}
	return "error"
}
