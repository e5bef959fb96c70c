package directory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	DoctorsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Doctor, error)
	PatientsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error)
}
