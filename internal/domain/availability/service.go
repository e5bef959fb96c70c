package availability

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListWindows returns the doctor's windows ordered by date then start time.
func (s *Service) ListWindows(ctx context.Context, doctorID uuid.UUID) ([]*Window, error) {
	return s.repo.ListByDoctor(ctx, doctorID)
}

// GetWindow returns ErrWindowNotFound when no window has the id.
func (s *Service) GetWindow(ctx context.Context, id uuid.UUID) (*Window, error) {
	return s.repo.GetByID(ctx, id)
}

// WindowsByID resolves many windows at once; ids with no window are absent
// from the result.
func (s *Service) WindowsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Window, error) {
	return s.repo.GetByIDs(ctx, ids)
}
