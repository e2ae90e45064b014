package engine

import (
	"errors"

	"mutual/internal/githubapi"
)

var (
	ErrUnauthenticated       = errors.New("repository rejected the credentials")
	ErrRateLimited           = errors.New("repository rate limit reached, try again later")
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	ErrRegistryUnavailable   = errors.New("could not load open case studies")
	ErrInvalidSignature      = errors.New("signature does not match the document")
)

// PublishError reports why no change request could be confirmed. Kind is one
// of ErrUnauthenticated, ErrRateLimited or ErrRepositoryUnavailable.
type PublishError struct {
	Kind error
	Err  error
}

func (e *PublishError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *PublishError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func publishError(err error) *PublishError {
	switch githubapi.KindOf(err) {
	case githubapi.KindUnauthenticated:
		return &PublishError{Kind: ErrUnauthenticated, Err: err}
	case githubapi.KindRateLimited:
		return &PublishError{Kind: ErrRateLimited, Err: err}
	default:
		return &PublishError{Kind: ErrRepositoryUnavailable, Err: err}
	}
}
