package transcribe

import (
	"errors"
	"strings"
)

// ErrorKind classifies a transcription failure at the service boundary.
type ErrorKind int

const (
	// KindTransient covers network errors, rate limits, timeouts and anything
	// unclassified. Unmatched errors defaulting to transient is intentional:
	// an unknown failure from the service gets retried rather than dropped.
	KindTransient ErrorKind = iota
	KindUnauthorized
	KindInvalidInput
	KindTooLarge
	KindUnsupported
)

// Error is a classified transcription failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Retryable reports whether another attempt can succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// NewError builds a classified error with an explicit kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// permanentMarkers maps normalized message fragments to error kinds. The
// service does not expose structured error codes on every path, so message
// inspection remains the fallback classifier.
var permanentMarkers = []struct {
	marker string
	kind   ErrorKind
}{
	{"unauthorized", KindUnauthorized},
	{"invalid api key", KindUnauthorized},
	{"invalid", KindInvalidInput},
	{"too large", KindTooLarge},
	{"unsupported", KindUnsupported},
}

// Classify wraps err with an ErrorKind. Errors that already carry a kind pass
// through unchanged; otherwise the normalized message is inspected for
// permanent-failure markers, defaulting to transient.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}
	msg := strings.ToLower(err.Error())
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m.marker) {
			return &Error{Kind: m.kind, Message: err.Error()}
		}
	}
	return &Error{Kind: KindTransient, Message: err.Error()}
}

// IsRetryable reports whether the failure should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}
