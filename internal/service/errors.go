package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/livesub/pkg/log"
)

type ErrorType int

const (
	ErrCapabilityUnavailable ErrorType = iota
	ErrNetwork
	ErrParse
	ErrTranslation
	ErrMissingIdentity
	ErrValidation
	ErrStorage
	ErrUnknown
)

// Error is a failure tagged with its kind. Handlers turn it into a result
// value instead of letting it escape.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var ctxParts []string
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrCapabilityUnavailable:
		return "CapabilityUnavailable"
	case ErrNetwork:
		return "Network"
	case ErrParse:
		return "Parse"
	case ErrTranslation:
		return "Translation"
	case ErrMissingIdentity:
		return "MissingIdentity"
	case ErrValidation:
		return "Validation"
	case ErrStorage:
		return "Storage"
	default:
		return "Unknown"
	}
}

// Advice returns a hint for operators reading the log.
func Advice(err *Error) string {
	switch err.Type {
	case ErrCapabilityUnavailable:
		return "Check LLM_API_URL, LLM_API_KEY and LLM_MODEL, or update them through /api/settings"
	case ErrNetwork:
		return "Check connectivity to the video catalog and the subtitle host"
	case ErrParse:
		return "The subtitle resource is not valid WebVTT"
	case ErrTranslation:
		return "The translation backend rejected the request; the source text is shown instead"
	case ErrMissingIdentity:
		return "The caller did not send a tab id"
	case ErrValidation:
		return "Check the request parameters"
	case ErrStorage:
		return "Check that DATA_DIR is writable"
	default:
		return "Review the error details"
	}
}

// logError logs err with advice when it is an *Error.
func logError(err error) {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		log.Error("Unknown error: %v", err)
		return
	}
	log.Error("%v (advice: %s)", svcErr, Advice(svcErr))
}

func IsErrorType(err error, errorType ErrorType) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *Error {
	return NewErrorWithCause(errorType, message, err)
}
