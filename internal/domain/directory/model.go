package directory

import (
	"errors"

	"github.com/google/uuid"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Doctor is the public directory entry for a practitioner. Profiles are
// managed elsewhere; this service only reads them.
type Doctor struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
}

type Patient struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
