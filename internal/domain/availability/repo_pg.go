package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeepChandMishra/Skincare/internal/platform/db"
)

type windowRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &windowRepoPG{pool: pool} }

const windowCols = `id, doctor_id, date, start_time, end_time`

func scanWindow(row pgx.Row) (*Window, error) {
	var w Window
	if err := row.Scan(&w.ID, &w.DoctorID, &w.Date, &w.StartTime, &w.EndTime); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *windowRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Window, error) {
	w, err := scanWindow(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+windowCols+` FROM availability_window WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWindowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get availability window: %w", err)
	}
	return w, nil
}

func (r *windowRepoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Window, error) {
	out := make(map[uuid.UUID]*Window, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+windowCols+` FROM availability_window WHERE id = ANY($1::uuid[])`, keys)
	if err != nil {
		return nil, fmt.Errorf("get availability windows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability window: %w", err)
		}
		out[w.ID] = w
	}
	return out, rows.Err()
}

func (r *windowRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Window, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+windowCols+` FROM availability_window
		WHERE doctor_id = $1
		ORDER BY date, start_time, id`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	defer rows.Close()

	windows := []*Window{}
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability window: %w", err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}
