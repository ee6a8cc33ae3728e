package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a generation job
type JobStatus string

// Possible job status values
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobKind distinguishes single-title jobs from bulk jobs
type JobKind string

// Possible job kinds
const (
	JobKindSingle JobKind = "single"
	JobKindBulk   JobKind = "bulk"
)

// MaxBulkTitles bounds the number of titles a bulk job may request.
const MaxBulkTitles = 50

// Common validation errors for Job
var (
	ErrEmptyJobID        = errors.New("job ID cannot be empty")
	ErrEmptyJobOwner     = errors.New("job owner cannot be empty")
	ErrEmptyTitles       = errors.New("job must request at least one title")
	ErrTooManyTitles     = fmt.Errorf("job cannot request more than %d titles", MaxBulkTitles)
	ErrDuplicateTitle    = errors.New("job titles must be unique")
	ErrInvalidJobStatus  = errors.New("invalid job status")
	ErrInvalidJobKind    = errors.New("invalid job kind")
	ErrTitleNotRequested = errors.New("title is not part of the job")
	ErrAlreadySettled    = errors.New("job credits already settled")
)

// allowedTransitions lists every legal edge of the job state machine.
var allowedTransitions = map[JobStatus][]JobStatus{
	JobStatusQueued:  {JobStatusRunning, JobStatusCancelled},
	JobStatusRunning: {JobStatusCompleted, JobStatusFailed, JobStatusCancelled},
}

// TitleFailure records why a single title could not be generated.
type TitleFailure struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Job tracks one submission of one or more titles through the pipeline.
//
// Jobs start queued. Workers move them to running and then to one of the
// terminal states. Once terminal, the only permitted write is the one-time
// settlement stamp (ActualCredits and SettledAt).
type Job struct {
	ID               uuid.UUID        `json:"id"`
	OwnerID          uuid.UUID        `json:"owner_id"`
	Kind             JobKind          `json:"kind"`
	Status           JobStatus        `json:"status"`
	Progress         int              `json:"progress"`
	RequestedTitles  []string         `json:"requested_titles"`
	CompletedTitles  []string         `json:"completed_titles"`
	FailedTitles     []TitleFailure   `json:"failed_titles,omitempty"`
	Config           GenerationConfig `json:"config"`
	EstimatedCredits int64            `json:"estimated_credits"`
	ActualCredits    int64            `json:"actual_credits"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	CancelRequested  bool             `json:"cancel_requested"`
	Attempts         int              `json:"attempts"` // deliveries whose title work failed
	Version          int              `json:"-"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	SettledAt        *time.Time       `json:"settled_at,omitempty"`
}

// NewJob creates a queued job for the given titles. A single title yields a
// single job and more than one yields a bulk job.
func NewJob(ownerID uuid.UUID, titles []string, cfg GenerationConfig, estimated int64) (*Job, error) {
	cleaned := make([]string, 0, len(titles))
	for _, title := range titles {
		cleaned = append(cleaned, strings.TrimSpace(title))
	}

	kind := JobKindSingle
	if len(cleaned) > 1 {
		kind = JobKindBulk
	}

	now := time.Now().UTC()
	job := &Job{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Kind:             kind,
		Status:           JobStatusQueued,
		RequestedTitles:  cleaned,
		CompletedTitles:  []string{},
		Config:           cfg,
		EstimatedCredits: estimated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.OwnerID == uuid.Nil {
		return ErrEmptyJobOwner
	}

	if err := ValidateTitles(j.RequestedTitles); err != nil {
		return err
	}

	if j.Kind != JobKindSingle && j.Kind != JobKindBulk {
		return ErrInvalidJobKind
	}

	if !IsValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.EstimatedCredits < 0 {
		return fmt.Errorf("%w: estimated credits cannot be negative", ErrValidation)
	}

	return nil
}

// ValidateTitles checks a list of requested titles.
func ValidateTitles(titles []string) error {
	if len(titles) == 0 {
		return ErrEmptyTitles
	}

	if len(titles) > MaxBulkTitles {
		return ErrTooManyTitles
	}

	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			return ErrEmptyTitles
		}
		if _, ok := seen[title]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
		}
		seen[title] = struct{}{}
	}

	return nil
}

// IsTerminal reports whether the job reached a final state.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsSettled reports whether the job's credits were reconciled.
func (j *Job) IsSettled() bool {
	return j.SettledAt != nil
}

// Transition moves the job to the target status if the edge is legal.
// Entering running stamps StartedAt, entering a terminal state stamps CompletedAt.
func (j *Job) Transition(to JobStatus, now time.Time) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}

	now = now.UTC()
	j.Status = to
	j.UpdatedAt = now

	switch {
	case to == JobStatusRunning:
		j.StartedAt = &now
	case IsTerminalStatus(to):
		j.CompletedAt = &now
		if to == JobStatusCompleted {
			j.Progress = 100
		}
	}

	return nil
}

// Fail moves the job to failed with the given message.
func (j *Job) Fail(message string, now time.Time) error {
	if err := j.Transition(JobStatusFailed, now); err != nil {
		return err
	}
	j.ErrorMessage = message
	return nil
}

// RecordTitle appends a completed title and advances progress.
func (j *Job) RecordTitle(title string, now time.Time) error {
	if j.IsTerminal() {
		return ErrJobTerminal
	}

	if !j.requested(title) {
		return fmt.Errorf("%w: %q", ErrTitleNotRequested, title)
	}

	if j.HasCompleted(title) {
		return nil
	}

	j.CompletedTitles = append(j.CompletedTitles, title)
	j.advanceProgress()
	j.UpdatedAt = now.UTC()
	return nil
}

// RecordFailure notes a failed title. Progress is only driven by completed titles.
func (j *Job) RecordFailure(title, reason string, now time.Time) error {
	if j.IsTerminal() {
		return ErrJobTerminal
	}

	if !j.requested(title) {
		return fmt.Errorf("%w: %q", ErrTitleNotRequested, title)
	}

	if j.HasFailed(title) {
		return nil
	}

	j.FailedTitles = append(j.FailedTitles, TitleFailure{Title: title, Reason: reason})
	j.UpdatedAt = now.UTC()
	return nil
}

// HasCompleted reports whether title is already in CompletedTitles.
func (j *Job) HasCompleted(title string) bool {
	for _, t := range j.CompletedTitles {
		if t == title {
			return true
		}
	}
	return false
}

// HasFailed reports whether title was already recorded as failed.
func (j *Job) HasFailed(title string) bool {
	for _, f := range j.FailedTitles {
		if f.Title == title {
			return true
		}
	}
	return false
}

// PendingTitles returns requested titles that were neither completed nor failed,
// in submission order.
func (j *Job) PendingTitles() []string {
	pending := make([]string, 0, len(j.RequestedTitles))
	for _, title := range j.RequestedTitles {
		if !j.HasCompleted(title) && !j.HasFailed(title) {
			pending = append(pending, title)
		}
	}
	return pending
}

// PerTitleEstimate is the reserved share of a single title.
func (j *Job) PerTitleEstimate() int64 {
	if len(j.RequestedTitles) == 0 {
		return 0
	}
	return j.EstimatedCredits / int64(len(j.RequestedTitles))
}

// MarkSettled stamps the settlement result. It may only happen once and only
// on a terminal job.
func (j *Job) MarkSettled(actual int64, now time.Time) error {
	if !j.IsTerminal() {
		return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, j.ID, j.Status)
	}
	if j.IsSettled() {
		return ErrAlreadySettled
	}

	now = now.UTC()
	j.ActualCredits = actual
	j.SettledAt = &now
	if j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	return nil
}

func (j *Job) requested(title string) bool {
	for _, t := range j.RequestedTitles {
		if t == title {
			return true
		}
	}
	return false
}

// advanceProgress recomputes progress without ever moving it backwards.
// Single jobs are binary so the general formula already yields 0 or 100.
func (j *Job) advanceProgress() {
	if len(j.RequestedTitles) == 0 {
		return
	}
	progress := len(j.CompletedTitles) * 100 / len(j.RequestedTitles)
	if progress > j.Progress {
		j.Progress = progress
	}
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether status is final.
func IsTerminalStatus(status JobStatus) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidJobStatus checks if the given status is a valid JobStatus.
func IsValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}
