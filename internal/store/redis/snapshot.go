package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/switchboard/internal/topology"
)

// SaveSnapshot caches the last topology fetched from the daemon.
func (s *Store) SaveSnapshot(ctx context.Context, snap topology.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, SnapshotKey(), data, s.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the cached topology. ok is false when nothing is cached.
func (s *Store) LoadSnapshot(ctx context.Context) (topology.Snapshot, bool, error) {
	var snap topology.Snapshot

	data, err := s.client.Get(ctx, SnapshotKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return snap, false, nil
		}
		return snap, false, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}
