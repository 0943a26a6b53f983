package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a fetch failure.
type Kind string

const (
	KindUnreachable  Kind = "unreachable"
	KindEmptyContent Kind = "empty_content"
	KindTimeout      Kind = "timeout"
)

// FetchError is the scraper's error type. The pipeline treats every kind
// as fatal for the run; nothing here is retried.
type FetchError struct {
	URL     string
	Kind    Kind
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("fetch %s: %s: %s", e.URL, e.Kind, msg)
}

func (e *FetchError) Unwrap() error { return e.Err }

// statusError reports a non-2xx response.
func statusError(rawURL string, status int) *FetchError {
	return &FetchError{
		URL:     rawURL,
		Kind:    KindUnreachable,
		Message: fmt.Sprintf("status %d", status),
	}
}

// transportError classifies a failed HTTP round trip. Deadline and timeout
// failures map to KindTimeout, everything else to KindUnreachable.
func transportError(rawURL string, err error) *FetchError {
	kind := KindUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &FetchError{URL: rawURL, Kind: kind, Err: err}
}

// emptyContentError reports a page that yielded no article text after
// extraction and filtering.
func emptyContentError(rawURL string) *FetchError {
	return &FetchError{
		URL:     rawURL,
		Kind:    KindEmptyContent,
		Message: "no article content extracted",
	}
}

func invalidURLError(rawURL string, err error) *FetchError {
	return &FetchError{
		URL:     rawURL,
		Kind:    KindUnreachable,
		Message: "invalid URL",
		Err:     err,
	}
}
