// Package events publishes consultation lifecycle events for downstream
// consumers such as notification workers. Delivery is fire-and-forget over
// Redis pub/sub.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeRequested     = "consultation.requested"
	TypeStatusChanged = "consultation.status_changed"
)

type Event struct {
	ID             uuid.UUID `json:"id"`
	Type           string    `json:"type"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	ActorID        uuid.UUID `json:"actor_id"`
	Action         string    `json:"action,omitempty"`
	FromStatus     string    `json:"from_status,omitempty"`
	Status         string    `json:"status"`
	VersionID      int64     `json:"version_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// New stamps an event with an id and the current time.
func New(typ string) Event {
	return Event{ID: uuid.New(), Type: typ, OccurredAt: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NopPublisher drops every event. Used when no Redis URL is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
