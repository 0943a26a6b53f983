package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a backend failure.
type Kind string

const (
	KindAuthFailure       Kind = "auth_failure"
	KindRateLimited       Kind = "rate_limited"
	KindTimeout           Kind = "timeout"
	KindMalformedResponse Kind = "malformed_response"
)

// Error is a classified backend failure. The pipeline treats every Error as
// fatal to the current run; backends do not retry.
type Error struct {
	Backend string
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Backend, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Backend, e.Kind, e.Message)
}

// statusError classifies a non-2xx response.
func statusError(backend string, status int, body string) *Error {
	kind := KindMalformedResponse
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuthFailure
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	}
	return &Error{Backend: backend, Kind: kind, Status: status, Message: strings.TrimSpace(body)}
}

// transportError classifies a failed round trip. Deadline and network
// timeouts map to KindTimeout; other transport failures produced no usable
// response and map to KindMalformedResponse.
func transportError(backend string, err error) *Error {
	kind := KindMalformedResponse
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Backend: backend, Kind: kind, Message: err.Error()}
}

func decodeError(backend string, err error) *Error {
	return &Error{Backend: backend, Kind: KindMalformedResponse, Message: fmt.Sprintf("failed to decode response: %v", err)}
}

func emptyResponseError(backend string) *Error {
	return &Error{Backend: backend, Kind: KindMalformedResponse, Message: "empty response from API"}
}

func missingKeyError(backend, what string) *Error {
	return &Error{Backend: backend, Kind: KindAuthFailure, Message: what + " required"}
}
