package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/DeepChandMishra/Skincare/internal/domain/availability"
)

type WindowLookup interface {
	GetWindow(ctx context.Context, id uuid.UUID) (*availability.Window, error)
}

// Validator decides whether a booking request may be stored. Checks run in a
// fixed order and stop at the first failure, so the caller always gets the
// single most relevant problem.
type Validator struct {
	windows WindowLookup
}

func NewValidator(windows WindowLookup) *Validator {
	return &Validator{windows: windows}
}

// Validate returns nil, a *ValidationError, or a lookup failure from the
// availability store.
func (v *Validator) Validate(ctx context.Context, in CreateInput) error {
	if len(in.AttachmentRefs) == 0 {
		return invalid(CodeMissingAttachment, "at least one attachment is required")
	}
	for i, ref := range in.AttachmentRefs {
		if strings.TrimSpace(ref) == "" {
			return invalid(CodeMissingAttachment, "attachment %d is empty", i+1)
		}
	}

	if strings.TrimSpace(in.Reason) == "" {
		return invalid(CodeMissingRequiredField, "reason is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return invalid(CodeMissingRequiredField, "description is required")
	}

	if in.RequestedStart == nil || in.RequestedEnd == nil {
		return invalid(CodeInvalidTimeRange, "requested_start and requested_end are required")
	}
	if !in.RequestedStart.Before(*in.RequestedEnd) {
		return invalid(CodeInvalidTimeRange, "requested start %s must be before end %s", in.RequestedStart, in.RequestedEnd)
	}

	if in.AvailabilityWindowID == uuid.Nil {
		return invalid(CodeAvailabilityNotFound, "availability_window_id is required")
	}
	w, err := v.windows.GetWindow(ctx, in.AvailabilityWindowID)
	if errors.Is(err, availability.ErrWindowNotFound) {
		return invalid(CodeAvailabilityNotFound, "availability window %s not found", in.AvailabilityWindowID)
	}
	if err != nil {
		return fmt.Errorf("look up availability window: %w", err)
	}
	if w.DoctorID != in.DoctorID {
		return invalid(CodeAvailabilityNotFound, "availability window %s not found for doctor %s", in.AvailabilityWindowID, in.DoctorID)
	}

	if !w.Contains(*in.RequestedStart, *in.RequestedEnd) {
		return invalid(CodeOutsideAvailableHours, "requested %s-%s is outside available hours %s-%s",
			in.RequestedStart, in.RequestedEnd, w.StartTime, w.EndTime)
	}
	return nil
}
