package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is the common root of every lookup miss; the specific errors
// below wrap it.
var ErrNotFound = errors.New("not found")

var (
	ErrOrganizationNotFound   = fmt.Errorf("organization %w", ErrNotFound)
	ErrClassificationNotFound = fmt.Errorf("cost classification %w", ErrNotFound)
	ErrDefaultsNotFound       = fmt.Errorf("global defaults %w", ErrNotFound)
)
