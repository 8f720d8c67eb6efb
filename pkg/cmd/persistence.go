// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"strings"

	"github.com/ccxxllhl2/ai-workflow/pkg/persistence"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence/file"
	"github.com/ccxxllhl2/ai-workflow/pkg/persistence/postgresql"
)

// NewPersistence picks a persistence backend by database URL scheme.
// "postgres://" and "postgresql://" select PostgreSQL; anything else falls
// back to the file backend rooted at the URL's path.
func NewPersistence(databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)

	return parts[0]
}
