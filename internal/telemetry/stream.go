// Package telemetry ingests the daemon's push streams: traffic and memory
// samples kept in small rings, and log entries batched into a capped history.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

// ErrDial marks failures to establish a stream connection.
var ErrDial = errors.New("telemetry: dial failed")

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Conn is the read side of a message-oriented connection. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// DialFunc opens one connection.
type DialFunc func(ctx context.Context) (Conn, error)

// State is the connection state of a stream.
type State int32

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// DropObserver is told about every message discarded at ingestion.
type DropObserver interface {
	ObserveDrop(stream, reason string)
}

// Stream turns a connection into a sequence of parsed messages of type T.
type Stream[T any] struct {
	name   string
	dial   DialFunc
	logger logger.Logger
	drops  DropObserver

	state     atomic.Int32
	malformed atomic.Uint64
}

// NewStream creates a stream named name (used in logs and metrics).
func NewStream[T any](name string, dial DialFunc, log logger.Logger) *Stream[T] {
	return &Stream[T]{name: name, dial: dial, logger: log}
}

// SetDropObserver registers o for malformed messages.
func (s *Stream[T]) SetDropObserver(o DropObserver) {
	s.drops = o
}

// Name returns the stream name.
func (s *Stream[T]) Name() string { return s.name }

// State returns the current connection state.
func (s *Stream[T]) State() State { return State(s.state.Load()) }

// Malformed returns how many messages failed to parse so far.
func (s *Stream[T]) Malformed() uint64 { return s.malformed.Load() }

// Open connects and returns the parsed messages of that one connection, in
// arrival order. The channel is closed when the connection ends or ctx is
// cancelled; the stream is Disconnected again by then. A message that fails
// to parse is dropped and reading continues. The returned error channel
// receives the read error that ended the connection, if any.
func (s *Stream[T]) Open(ctx context.Context) (<-chan T, <-chan error, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrDial, s.name, err)
	}
	s.state.Store(int32(Connected))
	s.logger.Info("stream connected", logger.String("stream", s.name))

	out := make(chan T, 64)
	errc := make(chan error, 1)

	// closing the conn is the only way to interrupt a blocked read
	stop := make(chan struct{})
	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-stop:
		}
	}()

	go func() {
		defer close(errc)
		defer close(out)
		defer s.state.Store(int32(Disconnected))
		defer closeConn()
		defer close(stop)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errc <- err
				}
				return
			}

			var msg T
			if err := json.Unmarshal(data, &msg); err != nil {
				s.malformed.Add(1)
				if s.drops != nil {
					s.drops.ObserveDrop(s.name, "malformed")
				}
				s.logger.Debug("dropping malformed stream message",
					logger.String("stream", s.name),
					logger.Error(err))
				continue
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errc, nil
}

// Follow keeps the stream open until ctx ends, delivering every message to
// handle from a single goroutine. Lost connections are redialed with
// exponential backoff; messages are never replayed across connections.
func (s *Stream[T]) Follow(ctx context.Context, handle func(T)) {
	backoff := minBackoff
	for {
		msgs, errc, err := s.Open(ctx)
		if err == nil {
			backoff = minBackoff
			for msg := range msgs {
				handle(msg)
			}
			err = <-errc
		}
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			s.logger.Warn("stream interrupted",
				logger.String("stream", s.name),
				logger.Duration("retry_in", backoff),
				logger.Error(err))
		} else {
			s.logger.Warn("stream closed by peer",
				logger.String("stream", s.name),
				logger.Duration("retry_in", backoff))
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
