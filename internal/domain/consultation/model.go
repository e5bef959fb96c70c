package consultation

import (
	"time"

	"github.com/google/uuid"

	"github.com/DeepChandMishra/Skincare/internal/domain/availability"
)

type Status string

const (
	StatusRequested Status = "Requested"
	StatusAccepted  Status = "Accepted"
	StatusRejected  Status = "Rejected"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
)

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no action can leave s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

type Action string

const (
	ActionAccept         Action = "Accept"
	ActionReject         Action = "Reject"
	ActionProposeNewTime Action = "ProposeNewTime"
	ActionConfirm        Action = "Confirm"
	ActionComplete       Action = "Complete"
)

// actionOrder fixes the order in which permitted actions are reported.
var actionOrder = []Action{ActionAccept, ActionReject, ActionProposeNewTime, ActionConfirm, ActionComplete}

func ParseAction(s string) (Action, bool) {
	for _, a := range actionOrder {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// Request is a patient's booking attempt against part of a doctor's
// availability window. Requested and proposed times are times of day on the
// window's date.
type Request struct {
	ID                   uuid.UUID           `json:"id"`
	PatientID            uuid.UUID           `json:"patient_id"`
	DoctorID             uuid.UUID           `json:"doctor_id"`
	AvailabilityWindowID uuid.UUID           `json:"availability_window_id"`
	Reason               string              `json:"reason"`
	Description          string              `json:"description"`
	AttachmentRefs       []string            `json:"attachment_refs"`
	RequestedStart       availability.Clock  `json:"requested_start"`
	RequestedEnd         availability.Clock  `json:"requested_end"`
	Status               Status              `json:"status"`
	ProposedStart        *availability.Clock `json:"proposed_start,omitempty"`
	ProposedEnd          *availability.Clock `json:"proposed_end,omitempty"`
	VersionID            int64               `json:"version_id"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func (r *Request) clone() *Request {
	out := *r
	out.AttachmentRefs = append([]string(nil), r.AttachmentRefs...)
	if r.ProposedStart != nil {
		v := *r.ProposedStart
		out.ProposedStart = &v
	}
	if r.ProposedEnd != nil {
		v := *r.ProposedEnd
		out.ProposedEnd = &v
	}
	return &out
}

// CreateInput is what a patient submits. Times are pointers so a missing
// value can be told apart from midnight.
type CreateInput struct {
	DoctorID             uuid.UUID           `json:"doctor_id"`
	AvailabilityWindowID uuid.UUID           `json:"availability_window_id"`
	Reason               string              `json:"reason"`
	Description          string              `json:"description"`
	AttachmentRefs       []string            `json:"attachment_refs"`
	RequestedStart       *availability.Clock `json:"requested_start"`
	RequestedEnd         *availability.Clock `json:"requested_end"`
}

type TimeProposal struct {
	Start *availability.Clock `json:"proposed_start"`
	End   *availability.Clock `json:"proposed_end"`
}

// StatusChange is one entry of the append-only audit trail written with
// every applied transition.
type StatusChange struct {
	ID             uuid.UUID           `json:"id"`
	ConsultationID uuid.UUID           `json:"consultation_id"`
	FromStatus     Status              `json:"from_status"`
	ToStatus       Status              `json:"to_status"`
	Action         Action              `json:"action"`
	ActorID        uuid.UUID           `json:"actor_id"`
	ProposedStart  *availability.Clock `json:"proposed_start,omitempty"`
	ProposedEnd    *availability.Clock `json:"proposed_end,omitempty"`
	ChangedAt      time.Time           `json:"changed_at"`
}

// DoctorView is a request as shown on the doctor's worklist.
type DoctorView struct {
	*Request
	PatientName      string               `json:"patient_name"`
	Window           *availability.Window `json:"availability_window,omitempty"`
	PermittedActions []Action             `json:"permitted_actions"`
}

// PatientView is a request as shown on the patient's status screen.
type PatientView struct {
	*Request
	DoctorName     string `json:"doctor_name"`
	Specialization string `json:"specialization"`
}
