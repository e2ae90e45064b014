package githubapi

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/pkg/errors"
)

type Kind int

const (
	KindUnavailable Kind = iota
	KindUnauthenticated
	KindRateLimited
	KindNotFound
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// Error is a classified failure of a GitHub call.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Indeterminate reports whether the request may have been applied even
// though no response was seen.
func (e *Error) Indeterminate() bool {
	return isTransport(e.Err)
}

// KindOf returns the classification of err, or KindUnavailable for errors
// that did not come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// Indeterminate reports whether err leaves the outcome of a write unknown.
func Indeterminate(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Indeterminate()
	}
	return isTransport(err)
}

func classify(err error) Kind {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return KindRateLimited
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return KindRateLimited
	}
	var resp *github.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		switch code := resp.Response.StatusCode; {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return KindUnauthenticated
		case code == http.StatusTooManyRequests:
			return KindRateLimited
		case code == http.StatusNotFound:
			return KindNotFound
		case code >= 500:
			return KindUnavailable
		case code >= 400:
			return KindRejected
		}
	}
	return KindUnavailable
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

func alreadyExists(err error) bool {
	var resp *github.ErrorResponse
	if !errors.As(err, &resp) || resp.Response == nil || resp.Response.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	if mentionsExisting(resp.Message) {
		return true
	}
	for _, e := range resp.Errors {
		if mentionsExisting(e.Message) {
			return true
		}
	}
	return false
}

func mentionsExisting(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "already exists") || strings.Contains(msg, `"sha" wasn't supplied`)
}
