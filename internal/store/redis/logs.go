package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

// AppendLogs pushes a flushed batch and trims the list to the newest capacity entries.
func (s *Store) AppendLogs(ctx context.Context, entries []domain.LogEntry, capacity int) error {
	if len(entries) == 0 {
		return nil
	}

	values, err := encodeLogs(entries)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, LogsKey(), values...)
	if capacity > 0 {
		pipe.LTrim(ctx, LogsKey(), int64(-capacity), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append logs: %w", err)
	}
	return nil
}

// LoadLogs returns up to capacity of the newest persisted entries, oldest first.
// Entries that no longer decode are skipped.
func (s *Store) LoadLogs(ctx context.Context, capacity int) ([]domain.LogEntry, error) {
	start := int64(0)
	if capacity > 0 {
		start = int64(-capacity)
	}
	raw, err := s.client.LRange(ctx, LogsKey(), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load logs: %w", err)
	}

	entries, skipped := decodeLogs(raw)
	if skipped > 0 {
		s.logger.Warn("skipped undecodable persisted log entries", logger.Int("count", skipped))
	}
	return entries, nil
}

// ClearLogs forgets the persisted history.
func (s *Store) ClearLogs(ctx context.Context) error {
	if err := s.client.Del(ctx, LogsKey()).Err(); err != nil {
		return fmt.Errorf("failed to clear logs: %w", err)
	}
	return nil
}

func encodeLogs(entries []domain.LogEntry) ([]any, error) {
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal log entry: %w", err)
		}
		values = append(values, data)
	}
	return values, nil
}

func decodeLogs(raw []string) ([]domain.LogEntry, int) {
	entries := make([]domain.LogEntry, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var e domain.LogEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped
}
