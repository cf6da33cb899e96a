package monitoring

import (
	"context"

	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/cache"
	"github.com/tacticalpanel/panel/internal/database"
)

const cacheProbeKey = "health:probe"

// DatabaseCheck pings the credential store.
func DatabaseCheck(db *gorm.DB) Check {
	return Check{
		Name: "database",
		Probe: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
	}
}

// CacheCheck reads a key from the shared store backing the deny-list and rate counters.
func CacheCheck(store cache.Store) Check {
	return Check{
		Name: "cache",
		Probe: func(ctx context.Context) error {
			_, _, err := store.Get(ctx, cacheProbeKey)
			return err
		},
	}
}
