package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

const (
	DefaultLogCapacity   = 500
	DefaultFlushInterval = 200 * time.Millisecond

	logStream = "logs"
)

// LogPersister stores flushed log history outside the process.
type LogPersister interface {
	AppendLogs(ctx context.Context, entries []domain.LogEntry, capacity int) error
	LoadLogs(ctx context.Context, capacity int) ([]domain.LogEntry, error)
	ClearLogs(ctx context.Context) error
}

// LogIngestor batches incoming log lines and commits them to a capped
// history on a fixed flush interval. Eviction is oldest first.
type LogIngestor struct {
	mu      sync.Mutex
	buffer  []domain.LogEntry
	entries *Ring[domain.LogEntry]
	paused  bool

	// serializes history writes so a Clear never races a flush's persist
	persistMu sync.Mutex
	persister LogPersister // nil when persistence is disabled

	interval time.Duration
	logger   logger.Logger
	drops    DropObserver
	now      func() time.Time
}

// NewLogIngestor creates an ingestor keeping at most capacity entries.
func NewLogIngestor(capacity int, interval time.Duration, persister LogPersister, log logger.Logger) *LogIngestor {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &LogIngestor{
		entries:   NewRing[domain.LogEntry](capacity),
		persister: persister,
		interval:  interval,
		logger:    log,
		now:       time.Now,
	}
}

// SetDropObserver registers o for entries dropped while paused.
func (l *LogIngestor) SetDropObserver(o DropObserver) {
	l.drops = o
}

// Ingest stamps msg and queues it for the next flush. While paused the
// message is dropped and Ingest returns false.
func (l *LogIngestor) Ingest(msg clash.LogMessage) bool {
	l.mu.Lock()
	if l.paused {
		l.mu.Unlock()
		if l.drops != nil {
			l.drops.ObserveDrop(logStream, "paused")
		}
		return false
	}
	l.buffer = append(l.buffer, domain.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Level:     msg.Type,
		Payload:   msg.Payload,
	})
	l.mu.Unlock()
	return true
}

// Flush moves the buffered entries into the history in one batch and
// persists them. It returns how many entries were committed.
func (l *LogIngestor) Flush(ctx context.Context) int {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	batch := l.buffer
	l.buffer = nil
	l.entries.PushAll(batch)
	capacity := l.entries.Cap()
	l.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	// Persist (best effort)
	if l.persister != nil {
		if err := l.persister.AppendLogs(ctx, batch, capacity); err != nil {
			l.logger.Warn("failed to persist log batch",
				logger.Int("count", len(batch)),
				logger.Error(err))
		}
	}
	return len(batch)
}

// Run flushes on the interval until ctx ends, then flushes once more.
func (l *LogIngestor) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Flush(ctx)
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), time.Second)
			l.Flush(final)
			cancel()
			return
		}
	}
}

// Entries returns the committed history, oldest first.
func (l *LogIngestor) Entries() []domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries.Items()
}

// Pending returns how many entries wait for the next flush.
func (l *LogIngestor) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

// SetPaused toggles sampling of incoming entries.
func (l *LogIngestor) SetPaused(paused bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = paused
}

func (l *LogIngestor) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// Clear empties the history and forgets the persisted copy. Entries still
// waiting in the buffer are committed by the next flush.
func (l *LogIngestor) Clear(ctx context.Context) error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	l.entries.Clear()
	l.mu.Unlock()

	if l.persister != nil {
		return l.persister.ClearLogs(ctx)
	}
	return nil
}

// Restore loads persisted history into an empty ingestor.
func (l *LogIngestor) Restore(ctx context.Context) error {
	if l.persister == nil {
		return nil
	}

	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.Lock()
	capacity := l.entries.Cap()
	empty := l.entries.Len() == 0
	l.mu.Unlock()
	if !empty {
		return nil
	}

	restored, err := l.persister.LoadLogs(ctx, capacity)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.entries.PushAll(restored)
	l.mu.Unlock()

	l.logger.Info("restored log history", logger.Int("count", len(restored)))
	return nil
}
