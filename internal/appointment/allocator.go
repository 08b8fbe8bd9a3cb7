package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBookingConflict  = errors.New("slot already booked, choose another")
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
	ErrInvalidSlot      = errors.New("invalid slot")
)

// SlotConfig describes the clinic day. All fields are minutes after midnight
// except Granularity. Close is inclusive, the lunch break is [LunchStart, LunchEnd).
type SlotConfig struct {
	Open        int
	Close       int
	Granularity int
	LunchStart  int
	LunchEnd    int
}

func DefaultSlotConfig() SlotConfig {
	return SlotConfig{
		Open:        9*60 + 30,
		Close:       19*60 + 30,
		Granularity: 60,
		LunchStart:  13*60 + 30,
		LunchEnd:    14*60 + 30,
	}
}

// NewSlotConfig builds a SlotConfig from HH:MM strings.
func NewSlotConfig(open, close string, granularity int, lunchStart, lunchEnd string) (SlotConfig, error) {
	var cfg SlotConfig
	var err error

	if cfg.Open, err = ParseClock(open); err != nil {
		return SlotConfig{}, fmt.Errorf("open: %w", err)
	}
	if cfg.Close, err = ParseClock(close); err != nil {
		return SlotConfig{}, fmt.Errorf("close: %w", err)
	}
	if cfg.LunchStart, err = ParseClock(lunchStart); err != nil {
		return SlotConfig{}, fmt.Errorf("lunch start: %w", err)
	}
	if cfg.LunchEnd, err = ParseClock(lunchEnd); err != nil {
		return SlotConfig{}, fmt.Errorf("lunch end: %w", err)
	}
	if granularity <= 0 {
		return SlotConfig{}, fmt.Errorf("granularity must be positive, got %d", granularity)
	}
	if cfg.Close < cfg.Open {
		return SlotConfig{}, fmt.Errorf("close %s is before open %s", close, open)
	}
	cfg.Granularity = granularity

	return cfg, nil
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// GenerateDailySlots returns the ordered slot grid for one clinic day.
func GenerateDailySlots(cfg SlotConfig) []string {
	if cfg.Granularity <= 0 {
		return nil
	}

	var slots []string
	for m := cfg.Open; m <= cfg.Close && m < 24*60; m += cfg.Granularity {
		if m >= cfg.LunchStart && m < cfg.LunchEnd {
			continue
		}
		slots = append(slots, FormatClock(m))
	}
	return slots
}

// SlotTime combines the calendar date of date (in its own location) with slot.
func SlotTime(date time.Time, slot string) (time.Time, error) {
	minutes, err := ParseClock(slot)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := date.Date()
	return time.Date(y, mo, d, minutes/60, minutes%60, 0, 0, date.Location()), nil
}

// SameDay reports whether b falls on a's calendar day, judged in a's location.
func SameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.In(a.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

type slotKey struct {
	doctorID uuid.UUID
	day      string
	slot     string
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ComputeAvailableSlots filters allSlots down to the ones doctorID can still take on date.
//
// Bookings may belong to any doctor or day. For each (doctor, day, slot) the record with
// the latest CreatedAt governs occupancy; on equal CreatedAt an active record wins. On the
// current day, slots starting at or before now are dropped.
func ComputeAvailableSlots(allSlots []string, doctorID uuid.UUID, date time.Time, bookings []Appointment, now time.Time) []string {
	loc := date.Location()
	latest := make(map[slotKey]Appointment)

	for _, b := range bookings {
		if b.DoctorID != doctorID || !SameDay(date, b.Timestamp) {
			continue
		}
		k := slotKey{doctorID: b.DoctorID, day: dayKey(b.Timestamp.In(loc)), slot: b.Slot}
		cur, ok := latest[k]
		if !ok ||
			b.CreatedAt.After(cur.CreatedAt) ||
			(b.CreatedAt.Equal(cur.CreatedAt) && b.Status.Active()) {
			latest[k] = b
		}
	}

	today := SameDay(date, now)
	day := dayKey(date)

	available := make([]string, 0, len(allSlots))
	for _, s := range allSlots {
		if winner, ok := latest[slotKey{doctorID: doctorID, day: day, slot: s}]; ok && winner.Status.Active() {
			continue
		}
		if today {
			at, err := SlotTime(date, s)
			if err != nil || !at.After(now) {
				continue
			}
		}
		available = append(available, s)
	}
	return available
}

type BookingRequest struct {
	DoctorID       uuid.UUID
	DoctorName     string
	PatientID      uuid.UUID
	PatientName    string
	Specialization string
	Slot           string
	Date           time.Time
}

// AttemptBooking checks existing for an active record at the same doctor and instant
// and, when there is none, returns the pending appointment to insert.
func AttemptBooking(req BookingRequest, now time.Time, existing []Appointment) (*Appointment, error) {
	ts, err := SlotTime(req.Date, req.Slot)
	if err != nil {
		return nil, err
	}

	for _, e := range existing {
		if e.DoctorID == req.DoctorID && e.Timestamp.Equal(ts) && e.Status.Active() {
			return nil, fmt.Errorf("%w: doctor %s at %s", ErrBookingConflict, req.DoctorID, ts.Format(time.RFC3339))
		}
	}

	return &Appointment{
		ID:             uuid.New(),
		DoctorID:       req.DoctorID,
		DoctorName:     req.DoctorName,
		PatientID:      req.PatientID,
		PatientName:    req.PatientName,
		Specialization: req.Specialization,
		Slot:           req.Slot,
		Timestamp:      ts,
		Status:         StatusPending,
		CreatedAt:      now,
	}, nil
}

// DeriveDisplayStatus reports a pending appointment that already started today as completed.
// The result is never written back.
func DeriveDisplayStatus(a Appointment, now time.Time) AppointmentStatus {
	if a.Status == StatusPending && a.Timestamp.Before(now) && SameDay(now, a.Timestamp) {
		return StatusCompleted
	}
	return a.Status
}

func Cancel(a Appointment, actingRole string) (Appointment, error) {
	if a.Status == StatusCancelled {
		return a, ErrAlreadyCancelled
	}
	role := actingRole
	a.Status = StatusCancelled
	a.CanceledBy = &role
	return a, nil
}
