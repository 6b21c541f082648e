package events

import (
	"time"

	"github.com/google/uuid"
)

// StatusEvent is one observable change in a task's progress: a state
// transition or a message update.
type StatusEvent struct {
	// TaskID identifies the task instance that produced the event.
	TaskID uuid.UUID

	// TaskName is the task's human-readable name.
	TaskName string

	// State is the task's lifecycle state at the time of the event.
	State string

	// Message is the task's descriptive progress message.
	Message string

	// At is the timestamp when the event was produced.
	At time.Time
}

// NewStatusEvent stamps a status event with the current time.
func NewStatusEvent(taskID uuid.UUID, taskName, state, message string) StatusEvent {
	return StatusEvent{
		TaskID:   taskID,
		TaskName: taskName,
		State:    state,
		Message:  message,
		At:       time.Now(),
	}
}
