package exchange

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why the authorization service refused an exchange.
type Kind int

const (
	// KindOther covers any non-success status without a more specific kind.
	KindOther Kind = iota
	KindForbidden
	KindNotFound
	KindUnauthorized
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	default:
		return "other"
	}
}

// rejectedMessage is shared by the unauthorized and unrecognized kinds.
const rejectedMessage = "authorization service rejected the request"

// FailureError is returned when the authorization service answers an exchange
// with a non-success status. It never carries the credential that was
// presented.
type FailureError struct {
	Kind Kind

	// StatusCode is the status the authorization service responded with.
	StatusCode int
}

// FailureForStatus maps a non-success status from the authorization service
// to its failure kind. The mapping is total: any status without a specific
// kind becomes KindOther. Callers must not pass a success status.
func FailureForStatus(statusCode int) *FailureError {
	kind := KindOther

	switch statusCode {
	case http.StatusForbidden:
		kind = KindForbidden
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusUnauthorized:
		kind = KindUnauthorized
	case http.StatusBadRequest:
		kind = KindBadRequest
	}

	return &FailureError{Kind: kind, StatusCode: statusCode}
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("token exchange failed: %s (authorization service status %d)", e.Kind, e.StatusCode)
}

// Status reports the response the failure should produce for the client.
func (e *FailureError) Status() (int, string) {
	switch e.Kind {
	case KindForbidden:
		return http.StatusForbidden, http.StatusText(http.StatusForbidden)
	case KindNotFound:
		return http.StatusNotFound, http.StatusText(http.StatusNotFound)
	case KindBadRequest:
		return http.StatusBadRequest, http.StatusText(http.StatusBadRequest)
	default:
		return http.StatusUnauthorized, rejectedMessage
	}
}

// ServiceError indicates the authorization service could not be reached or
// its response could not be read. There is no status to classify.
type ServiceError struct {
	Cause error
}

func (e ServiceError) Error() string {
	return fmt.Sprintf("authorization service unavailable: %v", e.Cause)
}

func (e ServiceError) Unwrap() error {
	return e.Cause
}

func (e ServiceError) Status() (int, string) {
	return http.StatusBadGateway, http.StatusText(http.StatusBadGateway)
}

// HTTPStatuser provides HTTP status information for errors
type HTTPStatuser interface {
	Status() (int, string)
}

// ErrorStatus extracts the HTTP status code and message from an error.
// Returns (StatusInternalServerError, StatusText) for errors that don't
// implement HTTPStatuser, so that no internal detail reaches the client.
func ErrorStatus(err error) (int, string) {
	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		return statuser.Status()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
