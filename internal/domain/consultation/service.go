package consultation

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DeepChandMishra/Skincare/internal/domain/availability"
	"github.com/DeepChandMishra/Skincare/internal/domain/directory"
	"github.com/DeepChandMishra/Skincare/internal/platform/attachments"
	"github.com/DeepChandMishra/Skincare/internal/platform/auth"
	"github.com/DeepChandMishra/Skincare/internal/platform/events"
	"github.com/DeepChandMishra/Skincare/internal/platform/telemetry"
)

// WindowSource is the availability store as seen by consultations.
type WindowSource interface {
	WindowLookup
	WindowsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*availability.Window, error)
}

// People resolves display data for read-side joins.
type People interface {
	PatientsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*directory.Patient, error)
	DoctorsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*directory.Doctor, error)
}

// AttachmentIndex looks up uploaded files by reference.
type AttachmentIndex interface {
	Stat(ctx context.Context, ref string) (*attachments.Meta, error)
}

type Service struct {
	repo        Repository
	validator   *Validator
	windows     WindowSource
	people      People
	attachments AttachmentIndex
	publisher   events.Publisher
	logger      zerolog.Logger

	created     *telemetry.Counter
	transitions *telemetry.Counter
}

func NewService(repo Repository, windows WindowSource, people People, publisher events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: NewValidator(windows),
		windows:   windows,
		people:    people,
		publisher: publisher,
		logger:    logger,
	}
}

// SetMetrics registers the service's counters on m.
func (s *Service) SetMetrics(m *telemetry.Metrics) {
	s.created = m.Counter("consultations_created_total", "Consultation requests stored.")
	s.transitions = m.Counter("consultation_transitions_total",
		"Transition attempts by action and outcome.", "action", "outcome")
}

// SetAttachments makes Create check that every referenced file exists and
// was uploaded by the requesting patient.
func (s *Service) SetAttachments(a AttachmentIndex) {
	s.attachments = a
}

// Create validates a patient's request and stores it as Requested. The
// patient is always the acting user.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Request, error) {
	if !actor.IsPatient() {
		return nil, ErrForbidden
	}
	if err := s.validator.Validate(ctx, in); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, &PersistenceError{Op: "validate", Err: err}
	}

	refs := make([]string, len(in.AttachmentRefs))
	for i, ref := range in.AttachmentRefs {
		refs[i] = strings.TrimSpace(ref)
	}
	if err := s.checkOwnership(ctx, actor, refs); err != nil {
		return nil, err
	}
	r := &Request{
		ID:                   uuid.New(),
		PatientID:            actor.ID,
		DoctorID:             in.DoctorID,
		AvailabilityWindowID: in.AvailabilityWindowID,
		Reason:               strings.TrimSpace(in.Reason),
		Description:          strings.TrimSpace(in.Description),
		AttachmentRefs:       refs,
		RequestedStart:       *in.RequestedStart,
		RequestedEnd:         *in.RequestedEnd,
		Status:               StatusRequested,
		VersionID:            1,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, &PersistenceError{Op: "create", Err: err}
	}
	s.created.Inc()

	evt := events.New(events.TypeRequested)
	evt.ActorID = actor.ID
	s.publish(ctx, evt, r)
	return r, nil
}

func (s *Service) checkOwnership(ctx context.Context, actor auth.Actor, refs []string) error {
	if s.attachments == nil {
		return nil
	}
	for _, ref := range refs {
		meta, err := s.attachments.Stat(ctx, ref)
		if errors.Is(err, attachments.ErrNotFound) {
			return invalid(CodeMissingAttachment, "attachment %s does not exist", ref)
		}
		if err != nil {
			return &PersistenceError{Op: "attachments", Err: err}
		}
		if meta.UploadedBy != actor.ID.String() {
			return invalid(CodeMissingAttachment, "attachment %s was not uploaded by this patient", ref)
		}
	}
	return nil
}

// CanReadAttachment lets a doctor read a file attached to any request
// addressed to them. Uploaders are checked by the attachment store itself.
func (s *Service) CanReadAttachment(ctx context.Context, ref string, actor auth.Actor) (bool, error) {
	if !actor.IsDoctor() {
		return false, nil
	}
	ok, err := s.repo.DoctorHasAttachment(ctx, actor.ID, ref)
	if err != nil {
		return false, &PersistenceError{Op: "attachment access", Err: err}
	}
	return ok, nil
}

// Get returns the request if actor is its patient or its doctor.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Request, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(r, actor) {
		return nil, ErrForbidden
	}
	return r, nil
}

func canRead(r *Request, actor auth.Actor) bool {
	switch actor.Role {
	case auth.RolePatient:
		return actor.ID == r.PatientID
	case auth.RoleDoctor:
		return actor.ID == r.DoctorID
	}
	return false
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Request, error) {
	r, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return r, nil
}

// ListByPatient returns the patient's requests oldest first. A patient with
// no requests gets an empty slice.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Request, error) {
	list, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, &PersistenceError{Op: "list by patient", Err: err}
	}
	if list == nil {
		list = []*Request{}
	}
	return list, nil
}

// PatientOverview is ListByPatient with each request's doctor name and
// specialization attached.
func (s *Service) PatientOverview(ctx context.Context, patientID uuid.UUID) ([]*PatientView, error) {
	list, err := s.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(list))
	for i, r := range list {
		ids[i] = r.DoctorID
	}
	doctors, err := s.people.DoctorsByID(ctx, ids)
	if err != nil {
		return nil, &PersistenceError{Op: "load doctors", Err: err}
	}

	out := make([]*PatientView, len(list))
	for i, r := range list {
		v := &PatientView{Request: r}
		if d, ok := doctors[r.DoctorID]; ok {
			v.DoctorName = d.Name
			v.Specialization = d.Specialization
		}
		out[i] = v
	}
	return out, nil
}

// ListByDoctor returns the doctor's requests oldest first, each with the
// patient's name, the referenced window and the actions now available.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*DoctorView, error) {
	list, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, &PersistenceError{Op: "list by doctor", Err: err}
	}

	patientIDs := make([]uuid.UUID, len(list))
	windowIDs := make([]uuid.UUID, len(list))
	for i, r := range list {
		patientIDs[i] = r.PatientID
		windowIDs[i] = r.AvailabilityWindowID
	}
	patients, err := s.people.PatientsByID(ctx, patientIDs)
	if err != nil {
		return nil, &PersistenceError{Op: "load patients", Err: err}
	}
	windows, err := s.windows.WindowsByID(ctx, windowIDs)
	if err != nil {
		return nil, &PersistenceError{Op: "load windows", Err: err}
	}

	out := make([]*DoctorView, len(list))
	for i, r := range list {
		v := &DoctorView{Request: r, Window: windows[r.AvailabilityWindowID], PermittedActions: PermittedActions(r.Status)}
		if p, ok := patients[r.PatientID]; ok {
			v.PatientName = p.Name
		}
		out[i] = v
	}
	return out, nil
}

// ApplyTransition runs a doctor action against the stored request. When
// expectedVersion is set it must match the stored version.
func (s *Service) ApplyTransition(ctx context.Context, id uuid.UUID, action Action, actor auth.Actor, proposal *TimeProposal, expectedVersion *int64) (*Request, error) {
	r, err := s.applyTransition(ctx, id, action, actor, proposal, expectedVersion)
	s.transitions.Inc(string(action), transitionOutcome(err))
	return r, err
}

func transitionOutcome(err error) string {
	var te *TransitionError
	var ve *ValidationError
	switch {
	case err == nil:
		return "applied"
	case errors.As(err, &te) && te.Code == CodeUnauthorized:
		return "unauthorized"
	case errors.As(err, &te):
		return "illegal"
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}

func (s *Service) applyTransition(ctx context.Context, id uuid.UUID, action Action, actor auth.Actor, proposal *TimeProposal, expectedVersion *int64) (*Request, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(current, action, actor); err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != current.VersionID {
		return nil, ErrConcurrentModification
	}

	next, err := Apply(current, action, actor, proposal)
	if err != nil {
		return nil, err
	}

	change := &StatusChange{
		ConsultationID: current.ID,
		FromStatus:     current.Status,
		ToStatus:       next.Status,
		Action:         action,
		ActorID:        actor.ID,
	}
	if action == ActionProposeNewTime {
		change.ProposedStart = next.ProposedStart
		change.ProposedEnd = next.ProposedEnd
	}

	if err := s.repo.Transition(ctx, next, current.VersionID, change); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return nil, ErrConcurrentModification
		}
		return nil, &PersistenceError{Op: "transition", Err: err}
	}

	evt := events.New(events.TypeStatusChanged)
	evt.ActorID = actor.ID
	evt.Action = string(action)
	evt.FromStatus = string(current.Status)
	s.publish(ctx, evt, next)
	return next, nil
}

// History returns the applied transitions oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID, actor auth.Actor) ([]*StatusChange, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	changes, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "history", Err: err}
	}
	if changes == nil {
		changes = []*StatusChange{}
	}
	return changes, nil
}

// publish sends evt after the write has committed. A failure is logged and
// does not undo the write.
func (s *Service) publish(ctx context.Context, evt events.Event, r *Request) {
	evt.ConsultationID = r.ID
	evt.PatientID = r.PatientID
	evt.DoctorID = r.DoctorID
	evt.Status = string(r.Status)
	evt.VersionID = r.VersionID

	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("event_id", evt.ID.String()).
			Str("type", evt.Type).
			Str("consultation_id", r.ID.String()).
			Msg("failed to publish consultation event")
	}
}
