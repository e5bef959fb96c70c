package consultation

import (
	"github.com/DeepChandMishra/Skincare/internal/platform/auth"
)

// transitions is the status graph: for each status, the actions that may be
// taken from it and the status each one leads to. ProposeNewTime is a
// self-loop on Accepted.
var transitions = map[Status]map[Action]Status{
	StatusRequested: {
		ActionAccept: StatusAccepted,
		ActionReject: StatusRejected,
	},
	StatusAccepted: {
		ActionProposeNewTime: StatusAccepted,
		ActionConfirm:        StatusConfirmed,
	},
	StatusConfirmed: {
		ActionComplete: StatusCompleted,
	},
	StatusRejected:  {},
	StatusCompleted: {},
}

// PermittedActions lists the actions legal from s in a stable order. It is
// empty for terminal or unknown statuses.
func PermittedActions(s Status) []Action {
	out := []Action{}
	for _, a := range actionOrder {
		if _, ok := transitions[s][a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Next returns the status action leads to from current, or an
// IllegalTransition error naming what would have been allowed.
func Next(current Status, action Action) (Status, error) {
	next, ok := transitions[current][action]
	if !ok {
		return "", &TransitionError{
			Code:      CodeIllegalTransition,
			Current:   current,
			Action:    action,
			Permitted: PermittedActions(current),
		}
	}
	return next, nil
}

// Authorize allows only the doctor assigned to r to drive its workflow.
func Authorize(r *Request, action Action, actor auth.Actor) error {
	if !actor.IsDoctor() || actor.ID != r.DoctorID {
		return &TransitionError{
			Code:      CodeUnauthorized,
			Current:   r.Status,
			Action:    action,
			Permitted: []Action{},
		}
	}
	return nil
}

// Apply checks who is acting, then whether action is legal, and returns a
// copy of r in its new state. r itself is not modified.
func Apply(r *Request, action Action, actor auth.Actor, proposal *TimeProposal) (*Request, error) {
	if err := Authorize(r, action, actor); err != nil {
		return nil, err
	}
	next, err := Next(r.Status, action)
	if err != nil {
		return nil, err
	}

	out := r.clone()
	out.Status = next
	if action == ActionProposeNewTime {
		if proposal == nil || proposal.Start == nil || proposal.End == nil {
			return nil, invalid(CodeInvalidTimeRange, "proposed_start and proposed_end are required")
		}
		if !proposal.Start.Before(*proposal.End) {
			return nil, invalid(CodeInvalidTimeRange, "proposed start %s must be before end %s", proposal.Start, proposal.End)
		}
		start, end := *proposal.Start, *proposal.End
		out.ProposedStart = &start
		out.ProposedEnd = &end
	}
	return out, nil
}
