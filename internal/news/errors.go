package news

import (
	"errors"
	"fmt"

	"newsagg/internal/users"
)

var (
	ErrNoPreferences = errors.New("no news preferences set")
	ErrMissingQuery  = errors.New("search query is required")
	ErrUnconfigured  = errors.New("news provider is not configured")
	ErrFetchTimeout  = errors.New("timed out fetching news")
	ErrProvider      = errors.New("news provider failed")
	ErrUserNotFound  = users.ErrNotFound
)

// ProviderFailure is a provider error with the upstream reason attached. It
// matches ErrProvider under errors.Is.
type ProviderFailure struct {
	Status  int
	Details string
}

func (e *ProviderFailure) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%v (status %d): %s", ErrProvider, e.Status, e.Details)
	}
	return fmt.Sprintf("%v: %s", ErrProvider, e.Details)
}

func (e *ProviderFailure) Is(target error) bool { return target == ErrProvider }
