package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/domain"
)

// Job lifecycle event types
const (
	JobSubmitted = "job.submitted"
	JobCompleted = "job.completed"
	JobFailed    = "job.failed"
	JobCancelled = "job.cancelled"
)

// JobEvent describes a change in a job's lifecycle.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Job* constants
	Type string `json:"type"`

	JobID            uuid.UUID        `json:"job_id"`
	OwnerID          uuid.UUID        `json:"owner_id"`
	Status           domain.JobStatus `json:"status"`
	Titles           int              `json:"titles"`
	CompletedTitles  int              `json:"completed_titles"`
	EstimatedCredits int64            `json:"estimated_credits"`
	ActualCredits    int64            `json:"actual_credits"`
	ErrorMessage     string           `json:"error_message,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewJobEvent snapshots the job into an event of the given type.
func NewJobEvent(eventType string, job *domain.Job) *JobEvent {
	return &JobEvent{
		ID:               uuid.New(),
		Type:             eventType,
		JobID:            job.ID,
		OwnerID:          job.OwnerID,
		Status:           job.Status,
		Titles:           len(job.RequestedTitles),
		CompletedTitles:  len(job.CompletedTitles),
		EstimatedCredits: job.EstimatedCredits,
		ActualCredits:    job.ActualCredits,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        time.Now().UTC(),
	}
}

// TerminalEventType returns the event type announcing the given terminal status.
func TerminalEventType(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusCompleted:
		return JobCompleted
	case domain.JobStatusCancelled:
		return JobCancelled
	default:
		return JobFailed
	}
}

// Marshal encodes the event as JSON.
func (e *JobEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *JobEvent) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *JobEvent) error {
	return nil
}
