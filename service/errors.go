package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed request.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuth
	KindValidation
	KindForbidden
	KindNotFound
	KindConflict
	KindTimeout
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Local guard failures, returned before any request is sent.
var (
	ErrInvalidAmount         = errors.New("amount must be at least 1")
	ErrAmountTooLarge        = errors.New("amount must not exceed 10000")
	ErrPurposeRequired       = errors.New("payment purpose is required")
	ErrOrderIDRequired       = errors.New("order id is required")
	ErrTransactionIDRequired = errors.New("transaction id is required")
	ErrReasonRequired        = errors.New("refund reason is required")
	ErrCredentialsRequired   = errors.New("email and password are required")
	ErrSeatsRequired         = errors.New("at least one seat is required")
	ErrSeatsUnavailable      = errors.New("selected seats are already booked")
	ErrCancelWindowClosed    = errors.New("bookings cannot be cancelled within 2 hours of show time")
	ErrIDRequired            = errors.New("id is required")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrWeakPassword          = errors.New("password must be at least 8 characters with upper and lower case letters, a digit and one of !@#$%^&*")
	ErrInvalidPhone          = errors.New("invalid phone number")
	ErrInvalidSeat           = errors.New("invalid seat label")
	ErrInvalidCardNumber     = errors.New("card number must be 16 digits")
	ErrTokenRequired         = errors.New("token is required")
)

// APIError is returned for every failed round trip. Error returns the
// normalized message for the failure kind.
type APIError struct {
	Kind          Kind
	StatusCode    int
	Status        string
	Method        string
	Endpoint      string
	Message       string
	ServerMessage string
	Code          string
	Fields        map[string]string
	Body          string
	RequestID     string
	Err           error
}

func (e *APIError) Error() string {
	if e == nil {
		return "citizen card api error"
	}
	if e.Message != "" {
		return e.Message
	}
	return kindMessage(e.Kind, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DomainError is returned by the domain services. Message carries the
// server-provided message when one exists.
type DomainError struct {
	Op      string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func wrapErr(op string, fallback string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.ServerMessage
		if msg == "" {
			msg = fmt.Sprintf("%s: %s", fallback, apiErr.Error())
		}
		return &DomainError{Op: op, Message: msg, Err: err}
	}
	return &DomainError{Op: op, Message: fmt.Sprintf("%s: %v", fallback, err), Err: err}
}

// KindOf extracts the failure kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether the error represents a 404 from the API.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsUnauthorized(err error) bool {
	return KindOf(err) == KindAuth
}

func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return KindValidation
	case code == http.StatusUnauthorized:
		return KindAuth
	case code == http.StatusForbidden:
		return KindForbidden
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusConflict:
		return KindConflict
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindUnknown
	}
}

func kindMessage(kind Kind, code int) string {
	switch code {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusUnauthorized:
		return "authentication required, please log in again"
	case http.StatusForbidden:
		return "access denied"
	case http.StatusNotFound:
		return "requested resource not found"
	case http.StatusRequestTimeout:
		return "request timed out"
	case http.StatusConflict:
		return "request conflicts with the current state"
	case http.StatusUnprocessableEntity:
		return "validation failed"
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusBadGateway:
		return "bad gateway"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	case http.StatusGatewayTimeout:
		return "gateway timed out"
	}
	switch kind {
	case KindNetwork:
		return "network error, please check your connection"
	case KindTimeout:
		return "request timed out"
	case KindServer:
		return "server error"
	}
	if code > 0 {
		return fmt.Sprintf("unexpected error (status %d)", code)
	}
	return "unexpected error"
}
