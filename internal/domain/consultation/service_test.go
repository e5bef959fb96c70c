package consultation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DeepChandMishra/Skincare/internal/domain/availability"
	"github.com/DeepChandMishra/Skincare/internal/domain/directory"
	"github.com/DeepChandMishra/Skincare/internal/platform/attachments"
	"github.com/DeepChandMishra/Skincare/internal/platform/auth"
	"github.com/DeepChandMishra/Skincare/internal/platform/events"
	"github.com/DeepChandMishra/Skincare/internal/platform/telemetry"
)

// -- Mock Repository --

type mockRepo struct {
	mu      sync.Mutex
	store   map[uuid.UUID]*Request
	history map[uuid.UUID][]*StatusChange
	clock   time.Time
	// beforeTransition runs once, outside the lock, before the next
	// compare-and-swap. Used to interleave a competing writer.
	beforeTransition func()
	failWith         error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		store:   make(map[uuid.UUID]*Request),
		history: make(map[uuid.UUID][]*StatusChange),
		clock:   time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (m *mockRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockRepo) Create(_ context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	r.CreatedAt = m.tick()
	r.UpdatedAt = r.CreatedAt
	m.store[r.ID] = r.clone()
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	r, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.clone(), nil
}

func (m *mockRepo) list(match func(*Request) bool) []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.store {
		if match(r) {
			out = append(out, r.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Request, error) {
	return m.list(func(r *Request) bool { return r.PatientID == patientID }), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*Request, error) {
	return m.list(func(r *Request) bool { return r.DoctorID == doctorID }), nil
}

func (m *mockRepo) Transition(_ context.Context, r *Request, expectedVersion int64, change *StatusChange) error {
	if hook := m.beforeTransition; hook != nil {
		m.beforeTransition = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	stored, ok := m.store[r.ID]
	if !ok || stored.VersionID != expectedVersion {
		return ErrConcurrentModification
	}
	r.VersionID = expectedVersion + 1
	r.UpdatedAt = m.tick()
	m.store[r.ID] = r.clone()

	change.ID = uuid.New()
	change.ChangedAt = r.UpdatedAt
	m.history[r.ID] = append(m.history[r.ID], change)
	return nil
}

func (m *mockRepo) History(_ context.Context, consultationID uuid.UUID) ([]*StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*StatusChange(nil), m.history[consultationID]...), nil
}

func (m *mockRepo) DoctorHasAttachment(_ context.Context, doctorID uuid.UUID, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	for _, r := range m.store {
		if r.DoctorID != doctorID {
			continue
		}
		for _, got := range r.AttachmentRefs {
			if got == ref {
				return true, nil
			}
		}
	}
	return false, nil
}

// -- Mock Directory --

type fakePeople struct {
	patients map[uuid.UUID]*directory.Patient
	doctors  map[uuid.UUID]*directory.Doctor
}

func (f *fakePeople) PatientsByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*directory.Patient, error) {
	out := make(map[uuid.UUID]*directory.Patient)
	for _, id := range ids {
		if p, ok := f.patients[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakePeople) DoctorsByID(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*directory.Doctor, error) {
	out := make(map[uuid.UUID]*directory.Doctor)
	for _, id := range ids {
		if d, ok := f.doctors[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

// -- Fixture --

type fixture struct {
	svc      *Service
	repo     *mockRepo
	windows  *fakeWindows
	recorder *events.Recorder
	patient  auth.Actor
	doctor   auth.Actor
	window   *availability.Window
}

func newFixture() *fixture {
	repo := newMockRepo()
	windows := newFakeWindows()
	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	doctor := auth.Actor{ID: uuid.New(), Role: auth.RoleDoctor}
	people := &fakePeople{
		patients: map[uuid.UUID]*directory.Patient{patient.ID: {ID: patient.ID, Name: "Riya Sharma"}},
		doctors:  map[uuid.UUID]*directory.Doctor{doctor.ID: {ID: doctor.ID, Name: "Dr. Mehta", Specialization: "Dermatology"}},
	}
	recorder := &events.Recorder{}
	w := windows.add(doctor.ID, *clock("09:00"), *clock("10:00"))
	return &fixture{
		svc:      NewService(repo, windows, people, recorder, zerolog.Nop()),
		repo:     repo,
		windows:  windows,
		recorder: recorder,
		patient:  patient,
		doctor:   doctor,
		window:   w,
	}
}

func (f *fixture) create(t *testing.T) *Request {
	t.Helper()
	r, err := f.svc.Create(context.Background(), f.patient, validInput(f.window))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r
}

func (f *fixture) apply(t *testing.T, id uuid.UUID, action Action, p *TimeProposal) *Request {
	t.Helper()
	r, err := f.svc.ApplyTransition(context.Background(), id, action, f.doctor, p, nil)
	if err != nil {
		t.Fatalf("%s: %v", action, err)
	}
	return r
}

// -- Create --

func TestService_Create(t *testing.T) {
	f := newFixture()
	in := validInput(f.window)
	in.Reason = "  Rash on forearm  "
	in.AttachmentRefs = []string{" ref-1 ", "ref-2"}

	r, err := f.svc.Create(context.Background(), f.patient, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != StatusRequested {
		t.Errorf("expected Requested, got %s", r.Status)
	}
	if r.PatientID != f.patient.ID {
		t.Error("expected patient id to come from the actor")
	}
	if r.VersionID != 1 {
		t.Errorf("expected version 1, got %d", r.VersionID)
	}
	if r.Reason != "Rash on forearm" {
		t.Errorf("expected trimmed reason, got %q", r.Reason)
	}
	if !reflect.DeepEqual(r.AttachmentRefs, []string{"ref-1", "ref-2"}) {
		t.Errorf("expected ordered trimmed refs, got %v", r.AttachmentRefs)
	}

	evts := f.recorder.Events()
	if len(evts) != 1 || evts[0].Type != events.TypeRequested || evts[0].ConsultationID != r.ID {
		t.Errorf("expected one requested event, got %+v", evts)
	}
}

func TestService_Create_ValidationError(t *testing.T) {
	f := newFixture()
	in := validInput(f.window)
	in.AttachmentRefs = nil

	_, err := f.svc.Create(context.Background(), f.patient, in)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Code != CodeMissingAttachment {
		t.Fatalf("expected MissingAttachment, got %v", err)
	}
	if len(f.repo.store) != 0 {
		t.Error("nothing should be stored on validation failure")
	}
	if len(f.recorder.Events()) != 0 {
		t.Error("no event should be published on validation failure")
	}
}

func TestService_Create_OnlyPatients(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.doctor, validInput(f.window))
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Create_PersistenceError(t *testing.T) {
	f := newFixture()
	f.repo.failWith = errors.New("connection refused")

	_, err := f.svc.Create(context.Background(), f.patient, validInput(f.window))
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "create" {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !errors.Is(err, f.repo.failWith) {
		t.Error("expected cause to be preserved")
	}
}

func TestService_Create_WindowLookupFailure(t *testing.T) {
	f := newFixture()
	f.windows.err = errors.New("timeout")

	_, err := f.svc.Create(context.Background(), f.patient, validInput(f.window))
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestService_Create_PublishFailureKeepsRecord(t *testing.T) {
	f := newFixture()
	f.recorder.Err = errors.New("redis down")

	r, err := f.svc.Create(context.Background(), f.patient, validInput(f.window))
	if err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
	if _, ok := f.repo.store[r.ID]; !ok {
		t.Error("expected record to be stored")
	}
}

func TestService_Create_AttachmentOwnership(t *testing.T) {
	f := newFixture()
	files := attachments.NewMemoryStore()
	f.svc.SetAttachments(files)

	put := func(uploader uuid.UUID) string {
		meta, err := files.Put(context.Background(), attachments.Meta{
			FileName: "rash.png", ContentType: "image/png", UploadedBy: uploader.String(),
		}, strings.NewReader("pixels"))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		return meta.Ref
	}
	own := put(f.patient.ID)
	foreign := put(uuid.New())

	in := validInput(f.window)
	in.AttachmentRefs = []string{own}
	if _, err := f.svc.Create(context.Background(), f.patient, in); err != nil {
		t.Fatalf("own attachment: %v", err)
	}

	for name, refs := range map[string][]string{
		"uploaded by someone else": {own, foreign},
		"never uploaded":           {uuid.New().String()},
	} {
		t.Run(name, func(t *testing.T) {
			in := validInput(f.window)
			in.AttachmentRefs = refs
			_, err := f.svc.Create(context.Background(), f.patient, in)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Code != CodeMissingAttachment {
				t.Fatalf("expected MissingAttachment, got %v", err)
			}
		})
	}
	if len(f.repo.store) != 1 {
		t.Errorf("expected only the valid request stored, got %d", len(f.repo.store))
	}
}

func TestService_CanReadAttachment(t *testing.T) {
	f := newFixture()
	in := validInput(f.window)
	in.AttachmentRefs = []string{"ref-1"}
	if _, err := f.svc.Create(context.Background(), f.patient, in); err != nil {
		t.Fatalf("Create: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name  string
		ref   string
		actor auth.Actor
		want  bool
	}{
		{"assigned doctor", "ref-1", f.doctor, true},
		{"assigned doctor other ref", "ref-2", f.doctor, false},
		{"other doctor", "ref-1", auth.Actor{ID: uuid.New(), Role: auth.RoleDoctor}, false},
		{"patient", "ref-1", f.patient, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.CanReadAttachment(ctx, tt.ref, tt.actor)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	f.repo.failWith = errors.New("connection refused")
	_, err := f.svc.CanReadAttachment(ctx, "ref-1", f.doctor)
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Errorf("expected PersistenceError, got %v", err)
	}
}

// -- Reads --

func TestService_Get_Access(t *testing.T) {
	f := newFixture()
	r := f.create(t)

	for _, actor := range []auth.Actor{f.patient, f.doctor} {
		if _, err := f.svc.Get(context.Background(), r.ID, actor); err != nil {
			t.Errorf("%s should read: %v", actor.Role, err)
		}
	}
	for _, actor := range []auth.Actor{
		{ID: uuid.New(), Role: auth.RolePatient},
		{ID: uuid.New(), Role: auth.RoleDoctor},
		{ID: f.patient.ID, Role: auth.RoleDoctor},
	} {
		if _, err := f.svc.Get(context.Background(), r.ID, actor); !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	}
	if _, err := f.svc.Get(context.Background(), uuid.New(), f.patient); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ListByPatient_Empty(t *testing.T) {
	f := newFixture()
	list, err := f.svc.ListByPatient(context.Background(), f.patient.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", list)
	}
}

func TestService_ListByPatient_OrderedAndRepeatable(t *testing.T) {
	f := newFixture()
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, f.create(t).ID)
	}

	first, err := f.svc.ListByPatient(context.Background(), f.patient.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := f.svc.ListByPatient(context.Background(), f.patient.ID)

	if len(first) != 5 {
		t.Fatalf("expected 5, got %d", len(first))
	}
	for i := range first {
		if first[i].ID != ids[i] {
			t.Errorf("position %d: expected creation order", i)
		}
		if !reflect.DeepEqual(first[i], second[i]) {
			t.Errorf("position %d differs between calls", i)
		}
	}
}

func TestService_PatientOverview(t *testing.T) {
	f := newFixture()
	f.create(t)

	views, err := f.svc.PatientOverview(context.Background(), f.patient.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].DoctorName != "Dr. Mehta" || views[0].Specialization != "Dermatology" {
		t.Errorf("expected doctor details, got %+v", views[0])
	}
}

func TestService_ListByDoctor_Enriched(t *testing.T) {
	f := newFixture()
	f.create(t)

	views, err := f.svc.ListByDoctor(context.Background(), f.doctor.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	v := views[0]
	if v.PatientName != "Riya Sharma" {
		t.Errorf("expected patient name, got %q", v.PatientName)
	}
	if v.Window == nil || v.Window.ID != f.window.ID {
		t.Error("expected the referenced window")
	}
	if !reflect.DeepEqual(v.PermittedActions, []Action{ActionAccept, ActionReject}) {
		t.Errorf("unexpected permitted actions %v", v.PermittedActions)
	}
}

// -- Transitions --

func TestService_ApplyTransition_FullFlow(t *testing.T) {
	f := newFixture()
	r := f.create(t)

	r = f.apply(t, r.ID, ActionAccept, nil)
	r = f.apply(t, r.ID, ActionProposeNewTime, &TimeProposal{Start: clock("11:00"), End: clock("11:30")})
	if r.Status != StatusAccepted {
		t.Errorf("ProposeNewTime should stay Accepted, got %s", r.Status)
	}
	r = f.apply(t, r.ID, ActionConfirm, nil)
	if r.Status != StatusConfirmed || r.ProposedStart.String() != "11:00" || r.ProposedEnd.String() != "11:30" {
		t.Errorf("expected Confirmed with proposed times retained, got %s %v %v", r.Status, r.ProposedStart, r.ProposedEnd)
	}
	r = f.apply(t, r.ID, ActionComplete, nil)
	if r.Status != StatusCompleted {
		t.Errorf("expected Completed, got %s", r.Status)
	}
	if r.VersionID != 5 {
		t.Errorf("expected version 5 after four transitions, got %d", r.VersionID)
	}

	stored, _ := f.repo.GetByID(context.Background(), r.ID)
	if stored.Status != StatusCompleted {
		t.Errorf("expected stored status Completed, got %s", stored.Status)
	}

	history, err := f.svc.History(context.Background(), r.ID, f.patient)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	wantActions := []Action{ActionAccept, ActionProposeNewTime, ActionConfirm, ActionComplete}
	if len(history) != len(wantActions) {
		t.Fatalf("expected %d history entries, got %d", len(wantActions), len(history))
	}
	for i, sc := range history {
		if sc.Action != wantActions[i] {
			t.Errorf("entry %d: expected %s, got %s", i, wantActions[i], sc.Action)
		}
		if sc.ActorID != f.doctor.ID {
			t.Errorf("entry %d: expected doctor as actor", i)
		}
	}
	if history[1].ProposedStart == nil || history[1].ProposedStart.String() != "11:00" {
		t.Error("expected proposal recorded in history")
	}
	if history[0].FromStatus != StatusRequested || history[0].ToStatus != StatusAccepted {
		t.Errorf("unexpected first entry %+v", history[0])
	}

	// one requested event plus four status changes
	if n := len(f.recorder.Events()); n != 5 {
		t.Errorf("expected 5 events, got %d", n)
	}
}

func TestService_ApplyTransition_ScenarioC(t *testing.T) {
	f := newFixture()
	r := f.create(t)

	_, err := f.svc.ApplyTransition(context.Background(), r.ID, ActionConfirm, f.doctor, nil, nil)
	var te *TransitionError
	if !errors.As(err, &te) || te.Code != CodeIllegalTransition {
		t.Fatalf("expected IllegalTransition, got %v", err)
	}
	if !reflect.DeepEqual(te.Permitted, []Action{ActionAccept, ActionReject}) {
		t.Errorf("expected [Accept Reject], got %v", te.Permitted)
	}
	stored, _ := f.repo.GetByID(context.Background(), r.ID)
	if stored.Status != StatusRequested || stored.VersionID != 1 {
		t.Error("record must be unchanged after an illegal transition")
	}
}

func TestService_ApplyTransition_PatientUnauthorized(t *testing.T) {
	f := newFixture()
	r := f.create(t)

	for _, action := range actionOrder {
		_, err := f.svc.ApplyTransition(context.Background(), r.ID, action, f.patient, nil, nil)
		var te *TransitionError
		if !errors.As(err, &te) || te.Code != CodeUnauthorized {
			t.Errorf("%s by patient: expected Unauthorized, got %v", action, err)
		}
	}
}

func TestService_ApplyTransition_StaleVersion(t *testing.T) {
	f := newFixture()
	r := f.create(t)
	f.apply(t, r.ID, ActionAccept, nil)

	stale := int64(1)
	_, err := f.svc.ApplyTransition(context.Background(), r.ID, ActionConfirm, f.doctor, nil, &stale)
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}

	fresh := int64(2)
	if _, err := f.svc.ApplyTransition(context.Background(), r.ID, ActionConfirm, f.doctor, nil, &fresh); err != nil {
		t.Errorf("fresh version should apply: %v", err)
	}
}

// A second writer commits between our read and our write: ours must lose
// with ConcurrentModification instead of overwriting.
func TestService_ApplyTransition_LosingWriter(t *testing.T) {
	f := newFixture()
	r := f.create(t)

	var innerErr error
	f.repo.beforeTransition = func() {
		_, innerErr = f.svc.ApplyTransition(context.Background(), r.ID, ActionReject, f.doctor, nil, nil)
	}

	_, err := f.svc.ApplyTransition(context.Background(), r.ID, ActionAccept, f.doctor, nil, nil)
	if innerErr != nil {
		t.Fatalf("competing writer should win: %v", innerErr)
	}
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	stored, _ := f.repo.GetByID(context.Background(), r.ID)
	if stored.Status != StatusRejected {
		t.Errorf("expected winner's Rejected to stand, got %s", stored.Status)
	}
	if h, _ := f.repo.History(context.Background(), r.ID); len(h) != 1 {
		t.Errorf("expected one history entry, got %d", len(h))
	}
}

func TestService_ApplyTransition_ConcurrentAccepts(t *testing.T) {
	f := newFixture()
	r := f.create(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ApplyTransition(context.Background(), r.ID, ActionAccept, f.doctor, nil, nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		var te *TransitionError
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConcurrentModification):
		case errors.As(err, &te) && te.Code == CodeIllegalTransition:
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one accept to win, got %d", wins)
	}
	if h, _ := f.repo.History(context.Background(), r.ID); len(h) != 1 {
		t.Errorf("expected one history entry, got %d", len(h))
	}
}

func TestService_ApplyTransition_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.ApplyTransition(context.Background(), uuid.New(), ActionAccept, f.doctor, nil, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_ApplyTransition_PersistenceError(t *testing.T) {
	f := newFixture()
	r := f.create(t)
	f.repo.beforeTransition = func() { f.repo.failWith = fmt.Errorf("disk full") }

	_, err := f.svc.ApplyTransition(context.Background(), r.ID, ActionAccept, f.doctor, nil, nil)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "transition" {
		t.Errorf("expected PersistenceError on transition, got %v", err)
	}
}

func TestService_History_Forbidden(t *testing.T) {
	f := newFixture()
	r := f.create(t)
	_, err := f.svc.History(context.Background(), r.ID, auth.Actor{ID: uuid.New(), Role: auth.RolePatient})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

// -- Metrics --

func TestService_MetricsCountOutcomes(t *testing.T) {
	f := newFixture()
	m := telemetry.New()
	f.svc.SetMetrics(m)
	ctx := context.Background()

	r := f.create(t)
	if _, err := f.svc.ApplyTransition(ctx, r.ID, ActionConfirm, f.doctor, nil, nil); err == nil {
		t.Fatal("expected illegal transition")
	}
	if _, err := f.svc.ApplyTransition(ctx, r.ID, ActionAccept, f.patient, nil, nil); err == nil {
		t.Fatal("expected unauthorized")
	}
	stale := int64(9)
	if _, err := f.svc.ApplyTransition(ctx, r.ID, ActionAccept, f.doctor, nil, &stale); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected conflict, got %v", err)
	}
	f.apply(t, r.ID, ActionAccept, nil)
	if _, err := f.svc.ApplyTransition(ctx, uuid.New(), ActionAccept, f.doctor, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	created := m.Counter("consultations_created_total", "")
	if got := created.Value(); got != 1 {
		t.Errorf("expected 1 created, got %d", got)
	}
	tr := m.Counter("consultation_transitions_total", "")
	for _, tc := range []struct {
		action, outcome string
		want            int64
	}{
		{"Confirm", "illegal", 1},
		{"Accept", "unauthorized", 1},
		{"Accept", "conflict", 1},
		{"Accept", "applied", 1},
		{"Accept", "not_found", 1},
	} {
		if got := tr.Value(tc.action, tc.outcome); got != tc.want {
			t.Errorf("%s/%s: expected %d, got %d", tc.action, tc.outcome, tc.want, got)
		}
	}
}
