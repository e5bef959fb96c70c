package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DeepChandMishra/Skincare/internal/platform/db"
)

type consultationRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &consultationRepoPG{pool: pool} }

const requestCols = `id, patient_id, doctor_id, availability_window_id, reason, description,
	attachment_refs, requested_start, requested_end, status, proposed_start, proposed_end,
	version_id, created_at, updated_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.PatientID, &r.DoctorID, &r.AvailabilityWindowID, &r.Reason, &r.Description,
		&r.AttachmentRefs, &r.RequestedStart, &r.RequestedEnd, &r.Status, &r.ProposedStart, &r.ProposedEnd,
		&r.VersionID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *consultationRepoPG) Create(ctx context.Context, r *Request) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.VersionID == 0 {
		r.VersionID = 1
	}
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		INSERT INTO consultation_request (id, patient_id, doctor_id, availability_window_id, reason,
			description, attachment_refs, requested_start, requested_end, status, version_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		r.ID, r.PatientID, r.DoctorID, r.AvailabilityWindowID, r.Reason,
		r.Description, r.AttachmentRefs, r.RequestedStart, r.RequestedEnd, r.Status, r.VersionID).
		Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert consultation: %w", err)
	}
	return nil
}

func (p *consultationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	r, err := scanRequest(db.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM consultation_request WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get consultation: %w", err)
	}
	return r, nil
}

func (p *consultationRepoPG) list(ctx context.Context, where string, arg uuid.UUID) ([]*Request, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx,
		`SELECT `+requestCols+` FROM consultation_request WHERE `+where+` = $1 ORDER BY created_at, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	defer rows.Close()

	out := []*Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consultation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *consultationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Request, error) {
	return p.list(ctx, "patient_id", patientID)
}

func (p *consultationRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Request, error) {
	return p.list(ctx, "doctor_id", doctorID)
}

func (p *consultationRepoPG) DoctorHasAttachment(ctx context.Context, doctorID uuid.UUID, ref string) (bool, error) {
	var ok bool
	err := db.Conn(ctx, p.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM consultation_request
			WHERE doctor_id = $1 AND $2 = ANY(attachment_refs))`,
		doctorID, ref).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check attachment reference: %w", err)
	}
	return ok, nil
}

func (p *consultationRepoPG) Transition(ctx context.Context, r *Request, expectedVersion int64, change *StatusChange) error {
	return db.WithTx(ctx, p.pool, func(ctx context.Context) error {
		conn := db.Conn(ctx, p.pool)

		err := conn.QueryRow(ctx, `
			UPDATE consultation_request
			SET status = $3, proposed_start = $4, proposed_end = $5,
				version_id = version_id + 1, updated_at = NOW()
			WHERE id = $1 AND version_id = $2
			RETURNING version_id, updated_at`,
			r.ID, expectedVersion, r.Status, r.ProposedStart, r.ProposedEnd).
			Scan(&r.VersionID, &r.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConcurrentModification
		}
		if err != nil {
			return fmt.Errorf("update consultation status: %w", err)
		}

		if change.ID == uuid.Nil {
			change.ID = uuid.New()
		}
		err = conn.QueryRow(ctx, `
			INSERT INTO consultation_status_change (id, consultation_id, from_status, to_status,
				action, actor_id, proposed_start, proposed_end)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING changed_at`,
			change.ID, change.ConsultationID, change.FromStatus, change.ToStatus,
			change.Action, change.ActorID, change.ProposedStart, change.ProposedEnd).
			Scan(&change.ChangedAt)
		if err != nil {
			return fmt.Errorf("insert status change: %w", err)
		}
		return nil
	})
}

func (p *consultationRepoPG) History(ctx context.Context, consultationID uuid.UUID) ([]*StatusChange, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, `
		SELECT id, consultation_id, from_status, to_status, action, actor_id,
			proposed_start, proposed_end, changed_at
		FROM consultation_status_change
		WHERE consultation_id = $1
		ORDER BY seq`, consultationID)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	out := []*StatusChange{}
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.ID, &sc.ConsultationID, &sc.FromStatus, &sc.ToStatus, &sc.Action, &sc.ActorID,
			&sc.ProposedStart, &sc.ProposedEnd, &sc.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}
