package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository is the booking store.
//
// InsertAppointment must refuse a second active appointment for the same doctor and
// instant and report it as ErrBookingConflict; the allocator check alone is not atomic.
type Repository interface {
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	InsertAppointment(ctx context.Context, a *Appointment) error
	// UpdateAppointmentStatus only applies when the stored status equals from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, canceledBy *string) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
