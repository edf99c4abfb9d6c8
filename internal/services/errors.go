package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/rsc/internal/shared"
)

// ErrorKind classifies a failed call at the service boundary.
type ErrorKind int

const (
	// KindTransient is a rate limit or server error (status >= 429). Retried.
	KindTransient ErrorKind = iota
	// KindClient is a rejected request (status < 429). Terminal.
	KindClient
	// KindSemantic is a 2xx response missing a field the caller requires. Terminal.
	KindSemantic
	// KindNetwork is a transport failure with no response. Terminal.
	KindNetwork
	// KindDecode is a response body that could not be parsed. Terminal.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindClient:
		return "client"
	case KindSemantic:
		return "semantic"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// APIError is a failed streaming API call.
type APIError struct {
	Op       string
	Method   string
	Endpoint string
	Status   int
	Kind     ErrorKind
	Message  string
	Err      error
}

// NewStatusError classifies a non-2xx response by its status code.
func NewStatusError(op, method, endpoint string, status int, message string) *APIError {
	kind := KindClient
	if status >= http.StatusTooManyRequests {
		kind = KindTransient
	}
	return &APIError{Op: op, Method: method, Endpoint: endpoint, Status: status, Kind: kind, Message: message}
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s %s %s", e.Op, e.Method, e.Endpoint)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the matching sentinels from [shared] and the underlying cause, if any.
func (e *APIError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Kind == KindTransient || e.Kind == KindClient || e.Kind == KindSemantic {
		errs = append(errs, shared.ErrAPIRequest)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *APIError) sentinel() error {
	switch e.Kind {
	case KindTransient:
		if e.Status == http.StatusTooManyRequests {
			return shared.ErrRateLimited
		}
		return shared.ErrServiceUnavailable
	case KindClient:
		switch e.Status {
		case http.StatusUnauthorized:
			return shared.ErrTokenExpired
		case http.StatusNotFound:
			return shared.ErrPlaylistNotFound
		}
		return shared.ErrAPIRequest
	case KindNetwork:
		return shared.ErrNetwork
	case KindDecode:
		return shared.ErrDecode
	default:
		return shared.ErrAPIRequest
	}
}

// IsRetryable reports whether err carries an [APIError] with status >= 429.
//
// Network, decode and semantic failures and every status below 429 are terminal.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= http.StatusTooManyRequests
}
