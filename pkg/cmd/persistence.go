// Package cmd holds the shared construction helpers used by the binaries:
// persistence, event bus and AI provider wiring selected by configuration.
package cmd

import (
	"fmt"
	"strings"

	"github.com/meetflow/meetflow/pkg/persistence"
	"github.com/meetflow/meetflow/pkg/persistence/file"
	"github.com/meetflow/meetflow/pkg/persistence/redis"
)

// NewPersistence selects a storage backend from the URL scheme. Redis URLs
// get the redis backend; anything else is treated as a filesystem root.
func NewPersistence(databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		p, err := redis.NewPersistence(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("redis persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}
