package cmd

import (
	"fmt"
	"strings"

	"github.com/workstack/macrod/pkg/persistence"
	"github.com/workstack/macrod/pkg/persistence/file"
	"github.com/workstack/macrod/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "redis"}

// NewPersistence selects the persistence provider from the database url
// scheme. Unknown schemes fall back to the file provider.
func NewPersistence(databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "redis":
		provider, err := redis.NewPersistence(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis persistence: %w", err)
		}

		return provider, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, _ := strings.Cut(databaseURL, "://")

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
