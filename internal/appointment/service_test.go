package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/maternity-care-booking/internal/directory"
	redisclient "github.com/hackgods/maternity-care-booking/internal/redis"
	"github.com/hackgods/maternity-care-booking/internal/validation"
)

// memRepo mimics the Postgres store, including the partial unique index on
// active (doctor, starts_at) pairs.
type memRepo struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]Appointment
	events []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{appts: make(map[uuid.UUID]Appointment)}
}

func (r *memRepo) ListAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if f.DoctorID != uuid.Nil && a.DoctorID != f.DoctorID {
			continue
		}
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if !f.From.IsZero() && a.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.Timestamp.Before(f.To) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) InsertAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.appts {
		if e.DoctorID == a.DoctorID && e.Timestamp.Equal(a.Timestamp) && e.Status.Active() {
			return ErrBookingConflict
		}
	}
	r.appts[a.ID] = *a
	return nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, canceledBy *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	if canceledBy != nil {
		a.CanceledBy = canceledBy
	}
	r.appts[id] = a
	return &a, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type memDirectory map[uuid.UUID]*directory.User

func (d memDirectory) GetUser(_ context.Context, id uuid.UUID) (*directory.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	return u, nil
}

// mutexLocker serialises per key in process.
type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *mutexLocker) WithBookingLock(ctx context.Context, doctorID uuid.UUID, at time.Time, fn func(ctx context.Context) error) error {
	key := redisclient.BookingLockKey(doctorID, at)
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type noLocker struct{}

func (noLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithBookingLock(context.Context, uuid.UUID, time.Time, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type fixture struct {
	svc     *Service
	repo    *memRepo
	doctor  *directory.User
	other   *directory.User
	patient *directory.User
	now     time.Time
}

func newFixture(t *testing.T, locker redisclient.Locker) *fixture {
	t.Helper()

	midwife := "Midwife"
	obstetrician := "Obstetrician"
	f := &fixture{
		repo:    newMemRepo(),
		doctor:  &directory.User{ID: uuid.New(), FullName: "Dr. Kavya Menon", Role: directory.RoleDoctor, Specialization: &midwife},
		other:   &directory.User{ID: uuid.New(), FullName: "Dr. Farah Khan", Role: directory.RoleDoctor, Specialization: &obstetrician},
		patient: &directory.User{ID: uuid.New(), FullName: "Asha Pillai", Role: directory.RolePatient},
		// Tuesday.
		now: at(2025, time.June, 10, 11, 0),
	}
	dir := memDirectory{f.doctor.ID: f.doctor, f.other.ID: f.other, f.patient.ID: f.patient}

	f.svc = NewService(f.repo, dir, locker, nil, Options{
		Slots:          DefaultSlotConfig(),
		Location:       clinicLoc,
		ClosedWeekdays: []time.Weekday{time.Sunday},
		Now:            func() time.Time { return f.now },
	}, zerolog.Nop())
	return f
}

func (f *fixture) patientActor() Actor {
	return Actor{ID: f.patient.ID, Role: directory.RolePatient}
}

func (f *fixture) doctorActor() Actor {
	return Actor{ID: f.doctor.ID, Role: directory.RoleDoctor}
}

func (f *fixture) input(date, slot string) BookInput {
	return BookInput{DoctorID: f.doctor.ID, Specialization: "Midwife", Date: date, Slot: slot}
}

func (f *fixture) addPatient() Actor {
	p := &directory.User{ID: uuid.New(), FullName: "Patient " + uuid.NewString()[:4], Role: directory.RolePatient}
	f.svc.dir.(memDirectory)[p.ID] = p
	return Actor{ID: p.ID, Role: directory.RolePatient}
}

func TestService_BookRemovesSlotFromAvailability(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	before, err := f.svc.AvailableSlots(ctx, f.doctor.ID, "2025-06-11")
	require.NoError(t, err)
	assert.Contains(t, before, "10:30")

	appt, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-11", "10:30"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, "Dr. Kavya Menon", appt.DoctorName)
	assert.Equal(t, "Asha Pillai", appt.PatientName)
	assert.Equal(t, at(2025, time.June, 11, 10, 30), appt.Timestamp)
	assert.Equal(t, f.now, appt.CreatedAt)

	after, err := f.svc.AvailableSlots(ctx, f.doctor.ID, "2025-06-11")
	require.NoError(t, err)
	assert.NotContains(t, after, "10:30")
	assert.Len(t, after, len(before)-1)

	assert.Equal(t, []string{EventAppointmentBooked}, f.repo.eventTypes())
}

func TestService_BookConflict(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-11", "10:30"))
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, f.addPatient(), f.input("2025-06-11", "10:30"))
	assert.ErrorIs(t, err, ErrBookingConflict)

	_, err = f.svc.Book(ctx, f.addPatient(), f.input("2025-06-12", "10:30"))
	assert.NoError(t, err)
}

func TestService_ConcurrentBookingsYieldOneWinner(t *testing.T) {
	for name, locker := range map[string]redisclient.Locker{
		"with lock":            &mutexLocker{},
		"store guarantee only": noLocker{},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, locker)
			ctx := context.Background()

			const attempts = 25
			patients := make([]Actor, attempts)
			for i := range patients {
				patients[i] = f.addPatient()
			}

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
			)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func(p Actor) {
					defer wg.Done()
					_, err := f.svc.Book(ctx, p, f.input("2025-06-11", "15:30"))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, ErrBookingConflict):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(patients[i])
			}
			wg.Wait()

			assert.Equal(t, 1, successes)
			assert.Equal(t, attempts-1, conflicts)

			active := 0
			list, _ := f.repo.ListAppointments(ctx, Filter{DoctorID: f.doctor.ID})
			for _, a := range list {
				if a.Status.Active() {
					active++
				}
			}
			assert.Equal(t, 1, active)
		})
	}
}

func TestService_BookLockBusy(t *testing.T) {
	f := newFixture(t, busyLocker{})

	_, err := f.svc.Book(context.Background(), f.patientActor(), f.input("2025-06-11", "10:30"))
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
}

func TestService_BookRejections(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	t.Run("doctor cannot book", func(t *testing.T) {
		_, err := f.svc.Book(ctx, f.doctorActor(), f.input("2025-06-11", "10:30"))
		assert.ErrorIs(t, err, ErrNotPatient)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.svc.Book(ctx, f.patientActor(), BookInput{})
		assert.ErrorIs(t, err, validation.ErrInvalid)
	})

	t.Run("missing doctor", func(t *testing.T) {
		in := f.input("2025-06-11", "10:30")
		in.DoctorID = uuid.Nil
		_, err := f.svc.Book(ctx, f.patientActor(), in)
		assert.ErrorIs(t, err, validation.ErrInvalid)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := f.svc.Book(ctx, f.patientActor(), f.input("11/06/2025", "10:30"))
		assert.ErrorIs(t, err, validation.ErrInvalid)
	})

	t.Run("slot off grid", func(t *testing.T) {
		_, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-11", "13:30"))
		assert.ErrorIs(t, err, validation.ErrInvalid)
	})

	t.Run("closed on sunday", func(t *testing.T) {
		_, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-15", "10:30"))
		assert.ErrorIs(t, err, ErrClinicClosed)
	})

	t.Run("specialization mismatch", func(t *testing.T) {
		in := f.input("2025-06-11", "10:30")
		in.Specialization = "Obstetrician"
		_, err := f.svc.Book(ctx, f.patientActor(), in)
		assert.ErrorIs(t, err, validation.ErrInvalid)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		in := f.input("2025-06-11", "10:30")
		in.DoctorID = uuid.New()
		_, err := f.svc.Book(ctx, f.patientActor(), in)
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("patient id is not a doctor", func(t *testing.T) {
		in := f.input("2025-06-11", "10:30")
		in.DoctorID = f.patient.ID
		_, err := f.svc.Book(ctx, f.patientActor(), in)
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("slot already started", func(t *testing.T) {
		_, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-10", "10:30"))
		assert.ErrorIs(t, err, ErrSlotInPast)
	})

	assert.Empty(t, f.repo.appts, "rejected bookings must not be stored")
}

func TestService_AvailableSlots(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	today, err := f.svc.AvailableSlots(ctx, f.doctor.ID, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, "11:30", today[0])

	sunday, err := f.svc.AvailableSlots(ctx, f.doctor.ID, "2025-06-15")
	require.NoError(t, err)
	assert.Empty(t, sunday)

	yesterday, err := f.svc.AvailableSlots(ctx, f.doctor.ID, "2025-06-09")
	require.NoError(t, err)
	assert.Empty(t, yesterday)

	_, err = f.svc.AvailableSlots(ctx, uuid.New(), "2025-06-11")
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = f.svc.AvailableSlots(ctx, f.doctor.ID, "tomorrow")
	assert.ErrorIs(t, err, validation.ErrInvalid)
}

func TestService_OtherDoctorsBookingsDoNotLeak(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.patientActor(), BookInput{
		DoctorID: f.other.ID, Specialization: "Obstetrician", Date: "2025-06-11", Slot: "10:30",
	})
	require.NoError(t, err)

	slots, err := f.svc.AvailableSlots(ctx, f.doctor.ID, "2025-06-11")
	require.NoError(t, err)
	assert.Contains(t, slots, "10:30")
}

func TestService_CancelReopensSlot(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-11", "16:30"))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.patientActor(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CanceledBy)
	assert.Equal(t, "Patient", *cancelled.CanceledBy)

	slots, err := f.svc.AvailableSlots(ctx, f.doctor.ID, "2025-06-11")
	require.NoError(t, err)
	assert.Contains(t, slots, "16:30")

	_, err = f.svc.Cancel(ctx, f.doctorActor(), appt.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	stored, err := f.repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Patient", *stored.CanceledBy, "second cancel must not overwrite canceledBy")

	rebooked, err := f.svc.Book(ctx, f.addPatient(), f.input("2025-06-11", "16:30"))
	require.NoError(t, err)
	assert.NotEqual(t, appt.ID, rebooked.ID)

	assert.Equal(t, []string{EventAppointmentBooked, EventAppointmentCancelled, EventAppointmentBooked}, f.repo.eventTypes())
}

func TestService_CancelByDoctor(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-11", "16:30"))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, f.doctorActor(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Doctor", *cancelled.CanceledBy)
}

func TestService_CancelRules(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	appt, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-10", "12:30"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.addPatient(), appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Cancel(ctx, f.patientActor(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	// Once the slot has started today the appointment reads as completed.
	f.now = at(2025, time.June, 10, 13, 0)
	_, err = f.svc.Cancel(ctx, f.patientActor(), appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentCompleted)

	stored, err := f.repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status, "completed is never persisted")
}

func TestService_ListForActor(t *testing.T) {
	f := newFixture(t, &mutexLocker{})
	ctx := context.Background()

	early, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-10", "11:30"))
	require.NoError(t, err)
	later, err := f.svc.Book(ctx, f.patientActor(), f.input("2025-06-12", "09:30"))
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, f.addPatient(), f.input("2025-06-11", "09:30"))
	require.NoError(t, err)

	f.now = at(2025, time.June, 10, 12, 0)

	mine, err := f.svc.ListForActor(ctx, f.patientActor())
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, later.ID, mine[0].ID)
	assert.Equal(t, StatusPending, mine[0].Status)
	assert.Equal(t, early.ID, mine[1].ID)
	assert.Equal(t, StatusCompleted, mine[1].Status)

	schedule, err := f.svc.ListForActor(ctx, f.doctorActor())
	require.NoError(t, err)
	assert.Len(t, schedule, 3)

	got, err := f.svc.Get(ctx, f.doctorActor(), early.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	_, err = f.svc.Get(ctx, f.addPatient(), early.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_Grid(t *testing.T) {
	f := newFixture(t, noLocker{})
	grid := f.svc.Grid()
	assert.Len(t, grid, 10)

	grid[0] = "00:00"
	assert.Equal(t, "09:30", f.svc.Grid()[0])
}
