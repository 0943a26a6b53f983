package publisher

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a publish failure.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindValidationRejected Kind = "validation_rejected"
	KindUnreachable        Kind = "unreachable"
)

// PublishError classifies a failed publish. The pipeline records it in the
// run's Publication and finishes normally.
type PublishError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *PublishError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("wordpress: %s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("wordpress: %s: %s", e.Kind, msg)
}

func (e *PublishError) Unwrap() error { return e.Err }

// responseError classifies a non-2xx response: 401/403 are credential
// problems, 400/422 mean the endpoint rejected the payload, anything else
// counts as the service being unusable.
func responseError(status int, body string) *PublishError {
	kind := KindUnreachable
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = KindValidationRejected
	}
	return &PublishError{Kind: kind, Status: status, Message: strings.TrimSpace(body)}
}

// wireError wraps a transport failure.
func wireError(err error) *PublishError {
	return &PublishError{Kind: KindUnreachable, Err: err}
}
