// Package quote fetches and normalizes quotes from the upstream provider.
package quote

import (
	"context"

	"stocktracker/internal/models"
)

// Fetcher retrieves the current quote for a single symbol. Implementations
// return a *errors.FetchError on any failure; nothing upstream-specific
// leaks past this boundary.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (*models.Quote, error)
}
