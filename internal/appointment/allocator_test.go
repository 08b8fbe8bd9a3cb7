package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clinicLoc = time.FixedZone("IST", 5*3600+1800)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, clinicLoc)
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, clinicLoc)
}

func booking(doctorID uuid.UUID, date time.Time, slot string, status AppointmentStatus, createdAt time.Time) Appointment {
	ts, err := SlotTime(date, slot)
	if err != nil {
		panic(err)
	}
	return Appointment{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		Slot:      slot,
		Timestamp: ts,
		Status:    status,
		CreatedAt: createdAt,
	}
}

func TestGenerateDailySlots_Default(t *testing.T) {
	got := GenerateDailySlots(DefaultSlotConfig())

	want := []string{
		"09:30", "10:30", "11:30", "12:30",
		"14:30", "15:30", "16:30", "17:30", "18:30", "19:30",
	}
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "13:30")

	// Deterministic across calls.
	assert.Equal(t, got, GenerateDailySlots(DefaultSlotConfig()))
}

func TestGenerateDailySlots_InclusiveCloseAndPartialStep(t *testing.T) {
	cfg, err := NewSlotConfig("09:00", "11:00", 45, "00:00", "00:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:45", "10:30"}, GenerateDailySlots(cfg))

	cfg, err = NewSlotConfig("09:00", "10:30", 45, "00:00", "00:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:45", "10:30"}, GenerateDailySlots(cfg))
}

func TestGenerateDailySlots_HalfHourGridSkipsLunch(t *testing.T) {
	cfg, err := NewSlotConfig("12:00", "15:00", 30, "13:00", "14:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"12:00", "12:30", "14:00", "14:30", "15:00"}, GenerateDailySlots(cfg))
}

func TestNewSlotConfig_Invalid(t *testing.T) {
	_, err := NewSlotConfig("9h", "19:30", 60, "13:30", "14:30")
	assert.ErrorIs(t, err, ErrInvalidSlot)

	_, err = NewSlotConfig("09:30", "19:30", 0, "13:30", "14:30")
	assert.Error(t, err)

	_, err = NewSlotConfig("19:30", "09:30", 60, "13:30", "14:30")
	assert.Error(t, err)
}

func TestComputeAvailableSlots_ExcludesActiveBookings(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	doctor := uuid.New()
	date := day(2025, time.June, 12)
	now := at(2025, time.June, 10, 8, 0)

	bookings := []Appointment{
		booking(doctor, date, "10:30", StatusPending, now),
		booking(doctor, date, "15:30", StatusCancelled, now),
	}

	got := ComputeAvailableSlots(all, doctor, date, bookings, now)
	assert.NotContains(t, got, "10:30")
	assert.Contains(t, got, "15:30")
	assert.Len(t, got, len(all)-1)
}

func TestComputeAvailableSlots_ScopedPerDoctorAndDate(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	d1, d2 := uuid.New(), uuid.New()
	date := day(2025, time.June, 12)
	now := at(2025, time.June, 10, 8, 0)

	bookings := []Appointment{
		// Another doctor's active booking must not block d1.
		booking(d2, date, "10:30", StatusPending, now),
		// d1's booking on a different date must not block d1 on date.
		booking(d1, day(2025, time.June, 13), "11:30", StatusPending, now),
		// Another doctor's later cancellation must not free d1's occupied slot.
		booking(d1, date, "12:30", StatusPending, now),
		booking(d2, date, "12:30", StatusCancelled, now.Add(time.Hour)),
	}

	got := ComputeAvailableSlots(all, d1, date, bookings, now)
	assert.Contains(t, got, "10:30")
	assert.Contains(t, got, "11:30")
	assert.NotContains(t, got, "12:30")
}

func TestComputeAvailableSlots_LatestWriteWins(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	doctor := uuid.New()
	date := day(2025, time.June, 12)
	now := at(2025, time.June, 10, 8, 0)
	earlier := now.Add(-2 * time.Hour)
	later := now.Add(-time.Hour)

	rebooked := []Appointment{
		booking(doctor, date, "10:30", StatusCancelled, earlier),
		booking(doctor, date, "10:30", StatusPending, later),
	}
	assert.NotContains(t, ComputeAvailableSlots(all, doctor, date, rebooked, now), "10:30")

	cancelledLast := []Appointment{
		booking(doctor, date, "10:30", StatusPending, earlier),
		booking(doctor, date, "10:30", StatusCancelled, later),
	}
	assert.Contains(t, ComputeAvailableSlots(all, doctor, date, cancelledLast, now), "10:30")
}

func TestComputeAvailableSlots_TieOnCreatedAtPrefersActive(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	doctor := uuid.New()
	date := day(2025, time.June, 12)
	now := at(2025, time.June, 10, 8, 0)

	bookings := []Appointment{
		booking(doctor, date, "10:30", StatusPending, now),
		booking(doctor, date, "10:30", StatusCancelled, now),
	}
	assert.NotContains(t, ComputeAvailableSlots(all, doctor, date, bookings, now), "10:30")
}

func TestComputeAvailableSlots_PastSlotsToday(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	doctor := uuid.New()
	date := day(2025, time.June, 10)
	now := at(2025, time.June, 10, 11, 0)

	got := ComputeAvailableSlots(all, doctor, date, nil, now)
	assert.NotContains(t, got, "09:30")
	assert.NotContains(t, got, "10:30")
	assert.Equal(t, "11:30", got[0])

	// A slot starting exactly now is no longer offered.
	boundary := at(2025, time.June, 10, 11, 30)
	got = ComputeAvailableSlots(all, doctor, date, nil, boundary)
	assert.NotContains(t, got, "11:30")
	assert.Equal(t, "12:30", got[0])

	// One nanosecond earlier it still is.
	got = ComputeAvailableSlots(all, doctor, date, nil, boundary.Add(-time.Nanosecond))
	assert.Equal(t, "11:30", got[0])
}

func TestComputeAvailableSlots_FutureDateIgnoresClock(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	now := at(2025, time.June, 10, 23, 0)

	got := ComputeAvailableSlots(all, uuid.New(), day(2025, time.June, 11), nil, now)
	assert.Equal(t, all, got)
}

func TestComputeAvailableSlots_TodayJudgedInClinicZone(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	// 2025-06-10 05:30 UTC is 11:00 in the clinic.
	now := time.Date(2025, time.June, 10, 5, 30, 0, 0, time.UTC)

	got := ComputeAvailableSlots(all, uuid.New(), day(2025, time.June, 10), nil, now)
	assert.Equal(t, "11:30", got[0])
}

func TestComputeAvailableSlots_DoesNotMutateInputs(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	allCopy := append([]string(nil), all...)
	doctor := uuid.New()
	date := day(2025, time.June, 12)
	now := at(2025, time.June, 10, 8, 0)
	bookings := []Appointment{booking(doctor, date, "10:30", StatusPending, now)}
	bookingsCopy := append([]Appointment(nil), bookings...)

	_ = ComputeAvailableSlots(all, doctor, date, bookings, now)

	assert.Equal(t, allCopy, all)
	assert.Equal(t, bookingsCopy, bookings)
}

func TestComputeAvailableSlots_NeverOffersOccupiedSlot(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	doctors := []uuid.UUID{uuid.New(), uuid.New()}
	dates := []time.Time{day(2025, time.June, 10), day(2025, time.June, 11)}
	now := at(2025, time.June, 10, 12, 0)

	var bookings []Appointment
	statuses := []AppointmentStatus{StatusPending, StatusCancelled, StatusCompleted}
	for i, s := range all {
		for j, d := range doctors {
			for k, dt := range dates {
				created := now.Add(-time.Duration(i+j+k) * time.Minute)
				bookings = append(bookings, booking(d, dt, s, statuses[(i+j+k)%3], created))
			}
		}
	}

	for _, d := range doctors {
		for _, dt := range dates {
			for _, s := range ComputeAvailableSlots(all, d, dt, bookings, now) {
				ts, err := SlotTime(dt, s)
				require.NoError(t, err)
				for _, b := range bookings {
					if b.DoctorID == d && b.Timestamp.Equal(ts) {
						assert.False(t, b.Status.Active(), "slot %s on %s offered while active booking exists", s, dt)
					}
				}
			}
		}
	}
}

func TestAttemptBooking_Conflict(t *testing.T) {
	doctor := uuid.New()
	now := at(2025, time.June, 9, 9, 0)
	existing := []Appointment{booking(doctor, day(2025, time.June, 10), "10:30", StatusPending, now)}

	_, err := AttemptBooking(BookingRequest{
		DoctorID: doctor, PatientID: uuid.New(), Slot: "10:30", Date: day(2025, time.June, 10),
	}, now, existing)
	assert.ErrorIs(t, err, ErrBookingConflict)

	appt, err := AttemptBooking(BookingRequest{
		DoctorID: doctor, PatientID: uuid.New(), Slot: "10:30", Date: day(2025, time.June, 11),
	}, now, existing)
	require.NoError(t, err)
	assert.Equal(t, at(2025, time.June, 11, 10, 30), appt.Timestamp)
}

func TestAttemptBooking_CancelledOrOtherDoctorDoesNotConflict(t *testing.T) {
	doctor := uuid.New()
	date := day(2025, time.June, 10)
	now := at(2025, time.June, 9, 9, 0)
	existing := []Appointment{
		booking(doctor, date, "10:30", StatusCancelled, now),
		booking(uuid.New(), date, "10:30", StatusPending, now),
	}

	appt, err := AttemptBooking(BookingRequest{
		DoctorID:       doctor,
		DoctorName:     "Dr. Rao",
		PatientID:      uuid.New(),
		PatientName:    "Asha",
		Specialization: "Midwife",
		Slot:           "10:30",
		Date:           date,
	}, now, existing)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, now, appt.CreatedAt)
	assert.Equal(t, "Dr. Rao", appt.DoctorName)
	assert.Equal(t, "Asha", appt.PatientName)
	assert.Equal(t, "Midwife", appt.Specialization)
	assert.Nil(t, appt.CanceledBy)
}

func TestAttemptBooking_InvalidSlot(t *testing.T) {
	_, err := AttemptBooking(BookingRequest{DoctorID: uuid.New(), Slot: "25:00", Date: day(2025, time.June, 10)}, time.Now(), nil)
	assert.True(t, errors.Is(err, ErrInvalidSlot))
}

func TestBookThenCancelRoundTrip(t *testing.T) {
	all := GenerateDailySlots(DefaultSlotConfig())
	doctor := uuid.New()
	date := day(2025, time.June, 12)
	now := at(2025, time.June, 10, 8, 0)

	appt, err := AttemptBooking(BookingRequest{DoctorID: doctor, PatientID: uuid.New(), Slot: "16:30", Date: date}, now, nil)
	require.NoError(t, err)

	store := []Appointment{*appt}
	assert.NotContains(t, ComputeAvailableSlots(all, doctor, date, store, now), "16:30")

	cancelled, err := Cancel(store[0], "Patient")
	require.NoError(t, err)
	store[0] = cancelled
	assert.Contains(t, ComputeAvailableSlots(all, doctor, date, store, now), "16:30")

	_, err = AttemptBooking(BookingRequest{DoctorID: doctor, PatientID: uuid.New(), Slot: "16:30", Date: date}, now, store)
	assert.NoError(t, err)
}

func TestDeriveDisplayStatus(t *testing.T) {
	now := at(2025, time.June, 10, 12, 0)
	base := Appointment{Status: StatusPending}

	cases := []struct {
		name      string
		timestamp time.Time
		status    AppointmentStatus
		want      AppointmentStatus
	}{
		{"earlier today", at(2025, time.June, 10, 10, 30), StatusPending, StatusCompleted},
		{"later today", at(2025, time.June, 10, 15, 30), StatusPending, StatusPending},
		{"exactly now", now, StatusPending, StatusPending},
		{"yesterday", at(2025, time.June, 9, 10, 30), StatusPending, StatusPending},
		{"tomorrow", at(2025, time.June, 11, 10, 30), StatusPending, StatusPending},
		{"cancelled earlier today", at(2025, time.June, 10, 10, 30), StatusCancelled, StatusCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := base
			a.Timestamp = tc.timestamp
			a.Status = tc.status
			assert.Equal(t, tc.want, DeriveDisplayStatus(a, now))
			assert.Equal(t, tc.status, a.Status)
		})
	}
}

func TestCancel(t *testing.T) {
	a := Appointment{ID: uuid.New(), Status: StatusPending}

	cancelled, err := Cancel(a, "Doctor")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CanceledBy)
	assert.Equal(t, "Doctor", *cancelled.CanceledBy)
	assert.Equal(t, StatusPending, a.Status, "input must not be modified")

	again, err := Cancel(cancelled, "Patient")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, "Doctor", *again.CanceledBy)
}
