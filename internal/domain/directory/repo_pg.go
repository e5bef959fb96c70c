package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeepChandMishra/Skincare/internal/platform/db"
)

type directoryRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &directoryRepoPG{pool: pool} }

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *directoryRepoPG) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT id, name, specialization FROM doctor
		ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	doctors := []*Doctor{}
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization); err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		doctors = append(doctors, &d)
	}
	return doctors, total, rows.Err()
}

func (r *directoryRepoPG) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, specialization FROM doctor WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Specialization)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return &d, nil
}

func (r *directoryRepoPG) DoctorsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Doctor, error) {
	out := make(map[uuid.UUID]*Doctor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT id, name, specialization FROM doctor WHERE id = ANY($1::uuid[])`, idStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("get doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out[d.ID] = &d
	}
	return out, rows.Err()
}

func (r *directoryRepoPG) PatientsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Patient, error) {
	out := make(map[uuid.UUID]*Patient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT id, name FROM patient WHERE id = ANY($1::uuid[])`, idStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("get patients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}
