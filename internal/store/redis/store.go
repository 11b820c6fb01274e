package redis

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

// DefaultSnapshotTTL bounds how stale a cached topology may be when it seeds a restart.
const DefaultSnapshotTTL = 7 * 24 * time.Hour

// Store persists log history and the last good topology snapshot.
type Store struct {
	client      *redis.Client
	logger      logger.Logger
	snapshotTTL time.Duration
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client:      client,
		logger:      log,
		snapshotTTL: DefaultSnapshotTTL,
	}
}
