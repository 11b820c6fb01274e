package telemetry

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/domain"
)

// DefaultHistory is how many traffic and memory samples are retained.
const DefaultHistory = 30

// SampleObserver mirrors the latest samples elsewhere (gauges).
type SampleObserver interface {
	ObserveTraffic(s domain.TrafficSample)
	ObserveMemory(s domain.MemorySample)
}

// MetricsIngestor keeps the recent traffic and memory samples.
type MetricsIngestor struct {
	mu       sync.RWMutex
	traffic  *Ring[domain.TrafficSample]
	memory   *Ring[domain.MemorySample]
	observer SampleObserver
	now      func() time.Time
}

// NewMetricsIngestor retains the last history samples of each kind.
func NewMetricsIngestor(history int) *MetricsIngestor {
	if history <= 0 {
		history = DefaultHistory
	}
	return &MetricsIngestor{
		traffic: NewRing[domain.TrafficSample](history),
		memory:  NewRing[domain.MemorySample](history),
		now:     time.Now,
	}
}

// SetObserver registers o for new samples.
func (m *MetricsIngestor) SetObserver(o SampleObserver) {
	m.observer = o
}

// IngestTraffic records one traffic message.
func (m *MetricsIngestor) IngestTraffic(msg clash.TrafficMessage) {
	s := domain.TrafficSample{UploadBps: msg.Up, DownloadBps: msg.Down, At: m.now()}
	m.mu.Lock()
	m.traffic.Push(s)
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.ObserveTraffic(s)
	}
}

// IngestMemory records one memory message.
func (m *MetricsIngestor) IngestMemory(msg clash.MemoryMessage) {
	s := domain.MemorySample{InUseBytes: msg.InUse, At: m.now()}
	m.mu.Lock()
	m.memory.Push(s)
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.ObserveMemory(s)
	}
}

// Traffic returns the newest sample and the retained history, oldest first.
func (m *MetricsIngestor) Traffic() (latest domain.TrafficSample, history []domain.TrafficSample) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest, _ = m.traffic.Last()
	return latest, m.traffic.Items()
}

// Memory returns the newest sample and the retained history, oldest first.
func (m *MetricsIngestor) Memory() (latest domain.MemorySample, history []domain.MemorySample) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest, _ = m.memory.Last()
	return latest, m.memory.Items()
}
