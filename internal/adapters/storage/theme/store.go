package theme

import (
	"context"
	"errors"

	domain "parishweb/internal/domain/theme"
)

// ErrNotFound is returned when a visitor has no stored preference.
var ErrNotFound = errors.New("theme preference not found")

// Store persists per-visitor theme preferences.
type Store interface {
	Get(ctx context.Context, visitorID string) (domain.Preference, error)
	Save(ctx context.Context, p domain.Preference) error
}
