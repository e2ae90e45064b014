package auth

import (
	"errors"
	"fmt"

	"mutual/internal/domain"
)

// ErrAuthRequired means the operation needs a signed-in identity.
var ErrAuthRequired = errors.New("sign in required")

// ForbiddenError indicates the caller does not own the draft.
type ForbiddenError struct {
	DraftID string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("draft %s belongs to another user", e.DraftID)
}

// RequireOwner returns the owner key of an authenticated identity.
func RequireOwner(id domain.Identity) (string, error) {
	if !id.Authenticated() {
		return "", ErrAuthRequired
	}
	return id.Owner(), nil
}

// EnsureOwns fails with ForbiddenError unless owner holds d.
func EnsureOwns(owner string, d domain.Draft) error {
	if d.Owner != owner {
		return ForbiddenError{DraftID: d.ID}
	}
	return nil
}
