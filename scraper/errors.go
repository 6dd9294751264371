package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"

	"airbnb-listings/models"
)

// ErrNoBrowser is returned when no Chrome/Chromium binary can be started.
// It is the one fetch failure the pipeline treats as fatal.
var ErrNoBrowser = errors.New("no usable browser binary")

// FetchError describes a failed page fetch.
type FetchError struct {
	Kind   models.FailureKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("[%s] %s: status %d", e.Kind, e.URL, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the fetch ran out of time, either as classified
// when the error was built or through a deadline in the wrapped cause.
func (e *FetchError) IsTimeout() bool {
	return e.Kind == models.FailureTimeout || errors.Is(e.Err, context.DeadlineExceeded)
}

func newFetchError(url string, err error) *FetchError {
	kind := models.FailureFetch
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = models.FailureTimeout
	}
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// FailureOf maps an error returned by a fetcher to the failure kind
// recorded in place of the page.
func FailureOf(err error) models.FailureKind {
	if err == nil {
		return models.FailureNone
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.IsTimeout() {
			return models.FailureTimeout
		}
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailureTimeout
	}
	return models.FailureFetch
}
