package telemetry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/domain"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

type memoryPersister struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	appends int
	clears  int
	lastCap int
}

func (p *memoryPersister) AppendLogs(_ context.Context, entries []domain.LogEntry, capacity int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appends++
	p.lastCap = capacity
	p.entries = append(p.entries, entries...)
	if len(p.entries) > capacity {
		p.entries = p.entries[len(p.entries)-capacity:]
	}
	return nil
}

func (p *memoryPersister) LoadLogs(_ context.Context, capacity int) ([]domain.LogEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.entries
	if len(out) > capacity {
		out = out[len(out)-capacity:]
	}
	return append([]domain.LogEntry(nil), out...), nil
}

func (p *memoryPersister) ClearLogs(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
	p.entries = nil
	return nil
}

type dropCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (d *dropCounter) ObserveDrop(stream, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.counts == nil {
		d.counts = make(map[string]int)
	}
	d.counts[stream+"/"+reason]++
}

func line(i int) clash.LogMessage {
	return clash.LogMessage{Type: "info", Payload: fmt.Sprintf("line %d", i)}
}

func payloads(entries []domain.LogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Payload)
	}
	return out
}

func TestLogIngestor_BufferedUntilFlush(t *testing.T) {
	l := NewLogIngestor(10, time.Hour, nil, logger.NewNop())

	assert.True(t, l.Ingest(line(1)))
	assert.True(t, l.Ingest(line(2)))
	assert.Empty(t, l.Entries())
	assert.Equal(t, 2, l.Pending())

	assert.Equal(t, 2, l.Flush(context.Background()))
	entries := l.Entries()
	assert.Equal(t, []string{"line 1", "line 2"}, payloads(entries))
	assert.Equal(t, "info", entries[0].Level)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
	assert.Zero(t, l.Pending())
	assert.Zero(t, l.Flush(context.Background()))
}

func TestLogIngestor_CapEvictsOldestFirst(t *testing.T) {
	l := NewLogIngestor(DefaultLogCapacity, time.Hour, nil, logger.NewNop())

	for i := 0; i < 1234; i++ {
		l.Ingest(line(i))
		if i%97 == 0 {
			l.Flush(context.Background())
			assert.LessOrEqual(t, len(l.Entries()), DefaultLogCapacity)
		}
	}
	l.Flush(context.Background())

	entries := l.Entries()
	require.Len(t, entries, DefaultLogCapacity)
	assert.Equal(t, "line 734", entries[0].Payload)
	assert.Equal(t, "line 1233", entries[len(entries)-1].Payload)
}

func TestLogIngestor_PauseDropsAtIngest(t *testing.T) {
	l := NewLogIngestor(10, time.Hour, nil, logger.NewNop())
	drops := &dropCounter{}
	l.SetDropObserver(drops)

	l.Ingest(line(1))
	l.Flush(context.Background())

	l.SetPaused(true)
	assert.True(t, l.Paused())
	for i := 2; i < 6; i++ {
		assert.False(t, l.Ingest(line(i)))
	}
	l.Flush(context.Background())
	assert.Len(t, l.Entries(), 1)

	// pausing drops, it does not defer
	l.SetPaused(false)
	l.Ingest(line(6))
	l.Flush(context.Background())
	assert.Equal(t, []string{"line 1", "line 6"}, payloads(l.Entries()))
	assert.Equal(t, 4, drops.counts["logs/paused"])
}

func TestLogIngestor_PersistsAndRestores(t *testing.T) {
	p := &memoryPersister{}
	l := NewLogIngestor(3, time.Hour, p, logger.NewNop())

	for i := 0; i < 5; i++ {
		l.Ingest(line(i))
	}
	l.Flush(context.Background())
	assert.Equal(t, 1, p.appends)
	assert.Equal(t, 3, p.lastCap)

	restarted := NewLogIngestor(3, time.Hour, p, logger.NewNop())
	require.NoError(t, restarted.Restore(context.Background()))
	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, payloads(restarted.Entries()))
	assert.Equal(t, l.Entries(), restarted.Entries())

	// restoring twice does not duplicate history
	require.NoError(t, restarted.Restore(context.Background()))
	assert.Len(t, restarted.Entries(), 3)
}

func TestLogIngestor_ClearForgetsHistory(t *testing.T) {
	p := &memoryPersister{}
	l := NewLogIngestor(10, time.Hour, p, logger.NewNop())

	l.Ingest(line(1))
	l.Flush(context.Background())
	l.Ingest(line(2)) // still buffered

	require.NoError(t, l.Clear(context.Background()))
	assert.Empty(t, l.Entries())
	assert.Equal(t, 1, p.clears)

	restored, err := p.LoadLogs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, restored)

	l.Flush(context.Background())
	assert.Equal(t, []string{"line 2"}, payloads(l.Entries()))
}

func TestLogIngestor_RunFlushesPeriodicallyAndOnExit(t *testing.T) {
	l := NewLogIngestor(10, 10*time.Millisecond, nil, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()

	l.Ingest(line(1))
	require.Eventually(t, func() bool { return len(l.Entries()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	l.Ingest(line(2))
	assert.Len(t, l.Entries(), 1)
	assert.Equal(t, 1, l.Pending())
}

func TestMetricsIngestor(t *testing.T) {
	m := NewMetricsIngestor(2)

	latest, history := m.Traffic()
	assert.Zero(t, latest)
	assert.Empty(t, history)

	m.IngestTraffic(clash.TrafficMessage{Up: 1, Down: 10})
	m.IngestTraffic(clash.TrafficMessage{Up: 2, Down: 20})
	m.IngestTraffic(clash.TrafficMessage{Up: 3, Down: 30})
	m.IngestMemory(clash.MemoryMessage{InUse: 4096})

	latest, history = m.Traffic()
	assert.Equal(t, int64(3), latest.UploadBps)
	assert.Equal(t, int64(30), latest.DownloadBps)
	require.Len(t, history, 2)
	assert.Equal(t, int64(2), history[0].UploadBps)

	mem, memHistory := m.Memory()
	assert.Equal(t, int64(4096), mem.InUseBytes)
	assert.Len(t, memHistory, 1)
}
