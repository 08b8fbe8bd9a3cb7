package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/maternity-care-booking/internal/directory"
	"github.com/hackgods/maternity-care-booking/internal/metrics"
	redisclient "github.com/hackgods/maternity-care-booking/internal/redis"
	"github.com/hackgods/maternity-care-booking/internal/validation"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

var (
	ErrSlotBeingBooked      = errors.New("slot is currently being booked, please retry")
	ErrSlotInPast           = errors.New("slot has already started")
	ErrClinicClosed         = errors.New("clinic is closed on this day")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrNotPatient           = errors.New("only patients can book appointments")
	ErrForbidden            = errors.New("appointment belongs to another user")
	ErrAppointmentCompleted = errors.New("appointment is already completed")
)

// Directory resolves doctor and patient identities.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*directory.User, error)
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role directory.Role
}

type Options struct {
	Slots          SlotConfig
	Location       *time.Location
	ClosedWeekdays []time.Weekday
	Now            func() time.Time
}

type Service struct {
	repo    Repository
	dir     Directory
	locker  redisclient.Locker
	metrics *metrics.Metrics
	log     zerolog.Logger

	grid   []string
	loc    *time.Location
	closed map[time.Weekday]bool
	now    func() time.Time
}

func NewService(repo Repository, dir Directory, locker redisclient.Locker, m *metrics.Metrics, opts Options, logger zerolog.Logger) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	closed := make(map[time.Weekday]bool, len(opts.ClosedWeekdays))
	for _, d := range opts.ClosedWeekdays {
		closed[d] = true
	}

	return &Service{
		repo:    repo,
		dir:     dir,
		locker:  locker,
		metrics: m,
		log:     logger.With().Str("component", "appointment").Logger(),
		grid:    GenerateDailySlots(opts.Slots),
		loc:     loc,
		closed:  closed,
		now:     now,
	}
}

// Grid returns the clinic's daily slot grid.
func (s *Service) Grid() []string {
	return append([]string(nil), s.grid...)
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) parseDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, raw, s.loc)
	if err != nil {
		return time.Time{}, validation.Field("date", "must match 2006-01-02")
	}
	return d, nil
}

func (s *Service) onGrid(slot string) bool {
	for _, g := range s.grid {
		if g == slot {
			return true
		}
	}
	return false
}

func (s *Service) loadDoctor(ctx context.Context, id uuid.UUID) (*directory.User, error) {
	u, err := s.dir.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !u.IsDoctor() {
		return nil, ErrDoctorNotFound
	}
	return u, nil
}

func (s *Service) dayBookings(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	return s.repo.ListAppointments(ctx, Filter{
		DoctorID: doctorID,
		From:     from,
		To:       from.AddDate(0, 0, 1),
	})
}

// AvailableSlots lists the slots doctorID can still take on date (YYYY-MM-DD).
// Closed weekdays and days already gone yield an empty list.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error) {
	d, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	now := s.clock()
	if s.closed[d.Weekday()] || (d.Before(now) && !SameDay(d, now)) {
		return []string{}, nil
	}

	bookings, err := s.dayBookings(ctx, doctorID, d)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	return ComputeAvailableSlots(s.grid, doctorID, d, bookings, now), nil
}

type BookInput struct {
	DoctorID       uuid.UUID `json:"doctor_id"`
	Specialization string    `json:"specialization" validate:"required"`
	Date           string    `json:"date" validate:"required"`
	Slot           string    `json:"slot" validate:"required"`
}

// Book reserves a slot for the patient. The conflict check and insert run under a
// per doctor and instant lock, and the store rejects a second active record regardless.
func (s *Service) Book(ctx context.Context, patient Actor, in BookInput) (*Appointment, error) {
	appt, err := s.book(ctx, patient, in)
	switch {
	case err == nil:
		s.metrics.BookingOutcome("booked")
	case errors.Is(err, ErrBookingConflict), errors.Is(err, ErrSlotBeingBooked):
		s.metrics.BookingOutcome("conflict")
	case errors.Is(err, validation.ErrInvalid), errors.Is(err, ErrSlotInPast), errors.Is(err, ErrClinicClosed):
		s.metrics.BookingOutcome("rejected")
	default:
		s.metrics.BookingOutcome("error")
	}
	return appt, err
}

func (s *Service) book(ctx context.Context, patient Actor, in BookInput) (*Appointment, error) {
	if patient.Role != directory.RolePatient {
		return nil, ErrNotPatient
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.DoctorID == uuid.Nil {
		return nil, validation.Field("doctor_id", "is required")
	}

	date, err := s.parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	if !s.onGrid(in.Slot) {
		return nil, validation.Field("slot", "is not on the clinic grid")
	}
	if s.closed[date.Weekday()] {
		return nil, ErrClinicClosed
	}

	doctor, err := s.loadDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Specialization == nil || *doctor.Specialization != in.Specialization {
		return nil, validation.Field("specialization", "does not match the selected doctor")
	}

	patientUser, err := s.dir.GetUser(ctx, patient.ID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	now := s.clock()
	startsAt, err := SlotTime(date, in.Slot)
	if err != nil {
		return nil, validation.Field("slot", err.Error())
	}
	if !startsAt.After(now) {
		return nil, ErrSlotInPast
	}

	req := BookingRequest{
		DoctorID:       doctor.ID,
		DoctorName:     doctor.DisplayName(),
		PatientID:      patientUser.ID,
		PatientName:    patientUser.DisplayName(),
		Specialization: in.Specialization,
		Slot:           in.Slot,
		Date:           date,
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, doctor.ID, startsAt, func(lockCtx context.Context) error {
		// Re-read inside the critical section.
		existing, err := s.dayBookings(lockCtx, doctor.ID, date)
		if err != nil {
			return fmt.Errorf("check existing bookings: %w", err)
		}

		appt, err := AttemptBooking(req, now, existing)
		if err != nil {
			return err
		}

		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			return err
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  appt.DoctorID.String(),
			"patient_id": appt.PatientID.String(),
			"slot":       appt.Slot,
			"starts_at":  appt.Timestamp,
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("slot", created.Slot).
		Time("starts_at", created.Timestamp).
		Msg("appointment booked")

	return created, nil
}

func (s *Service) owned(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if actor.ID != appt.PatientID && actor.ID != appt.DoctorID {
		return nil, ErrForbidden
	}
	return appt, nil
}

// Cancel cancels a pending appointment on behalf of its doctor or patient.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if DeriveDisplayStatus(*appt, s.clock()) == StatusCompleted {
		return nil, ErrAppointmentCompleted
	}

	cancelled, err := Cancel(*appt, string(actor.Role))
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, cancelled.Status, cancelled.CanceledBy)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status changed underneath us.
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.metrics.Cancelled(string(actor.Role))
	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"canceled_by": string(actor.Role),
		"actor_id":    actor.ID.String(),
	})

	return updated, nil
}

// Get returns one appointment with its display status.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	appt.Status = DeriveDisplayStatus(*appt, s.clock())
	return appt, nil
}

// ListForActor returns a doctor's schedule or a patient's bookings, latest first,
// with display statuses derived.
func (s *Service) ListForActor(ctx context.Context, actor Actor) ([]Appointment, error) {
	f := Filter{PatientID: actor.ID}
	if actor.Role == directory.RoleDoctor {
		f = Filter{DoctorID: actor.ID}
	}

	list, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	now := s.clock()
	out := make([]Appointment, len(list))
	for i, a := range list {
		a.Status = DeriveDisplayStatus(a, now)
		out[i] = a
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
