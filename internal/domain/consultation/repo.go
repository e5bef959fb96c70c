package consultation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Request, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Request, error)
	// Transition stores r's new status and proposed times if the stored
	// version still equals expectedVersion, and appends change to the
	// history in the same transaction. On success r carries the new version
	// and update time. A version mismatch yields ErrConcurrentModification.
	Transition(ctx context.Context, r *Request, expectedVersion int64, change *StatusChange) error
	History(ctx context.Context, consultationID uuid.UUID) ([]*StatusChange, error)
	// DoctorHasAttachment reports whether any request addressed to doctorID
	// lists ref among its attachments.
	DoctorHasAttachment(ctx context.Context, doctorID uuid.UUID, ref string) (bool, error)
}
