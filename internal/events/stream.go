package events

import (
	"log/slog"
	"sync"
)

// Stream is a bounded status event channel. Publishing never blocks: when
// the buffer is full the event is dropped, since status updates are purely
// informational and the next one supersedes it anyway.
type Stream struct {
	events chan StatusEvent
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewStream creates a status stream with the given buffer size.
func NewStream(size int, logger *slog.Logger) *Stream {
	if size <= 0 {
		size = 64
	}
	return &Stream{
		events: make(chan StatusEvent, size),
		logger: logger.With("component", "status_stream"),
	}
}

// Publish offers an event to the stream without blocking.
func (s *Stream) Publish(event StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Debug("status event dropped",
			"task", event.TaskName,
			"state", event.State)
	}
}

// Events returns the read side of the stream for a draining goroutine.
func (s *Stream) Events() <-chan StatusEvent {
	return s.events
}

// Close stops the stream. Publishing after Close is a no-op; the read side
// drains whatever is buffered and then sees the channel closed.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
