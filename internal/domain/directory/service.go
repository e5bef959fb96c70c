package directory

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

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.ListDoctors(ctx, limit, offset)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

func (s *Service) DoctorsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Doctor, error) {
	return s.repo.DoctorsByIDs(ctx, dedupe(ids))
}

func (s *Service) PatientsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error) {
	return s.repo.PatientsByIDs(ctx, dedupe(ids))
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
