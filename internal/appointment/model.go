package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Active reports whether an appointment with this status occupies its slot.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled
}

type Appointment struct {
	ID             uuid.UUID
	DoctorID       uuid.UUID
	DoctorName     string
	PatientID      uuid.UUID
	PatientName    string
	Specialization string
	Slot           string
	Timestamp      time.Time
	Status         AppointmentStatus
	CreatedAt      time.Time
	CanceledBy     *string
}

// Filter narrows ListAppointments. Zero values are ignored; From is inclusive, To exclusive.
type Filter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	From      time.Time
	To        time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
