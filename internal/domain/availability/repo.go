package availability

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Window, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Window, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Window, error)
}
