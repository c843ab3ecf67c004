package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/tournevent/kse-bridge/pkg/shipper"
)

// Finder looks up a record by session.
type Finder interface {
	FindBySession(ctx context.Context, sessionID string) (*Record, error)
}

// Lookup resolves the API key for a session. It is read-only and uncached.
type Lookup struct {
	finder Finder
}

// NewLookup creates a new Lookup.
func NewLookup(finder Finder) *Lookup {
	return &Lookup{finder: finder}
}

// Resolve returns the stored API key. A missing record or an empty key
// yields shipper.ErrCredentialNotConfigured.
func (l *Lookup) Resolve(ctx context.Context, sessionID string) (string, error) {
	rec, err := l.finder.FindBySession(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return "", shipper.ErrCredentialNotConfigured
	}
	if err != nil {
		return "", fmt.Errorf("resolve credential: %w", err)
	}
	if rec.APIKey == "" {
		return "", shipper.ErrCredentialNotConfigured
	}
	return rec.APIKey, nil
}
