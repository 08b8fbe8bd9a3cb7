package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/maternity-care-booking/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	Patients     int
	HotDoctors   int
	Password     string
	Date         string
}

type patientSession struct {
	ID    uuid.UUID
	Token string
}

type doctorInfo struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
}

type booking struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	Date     string
	Slot     string
	Patient  int
}

type DataPool struct {
	Patients []patientSession
	Doctors  []doctorInfo

	mu       sync.Mutex
	bookings map[uuid.UUID]booking // live (not cancelled) bookings made by the simulator
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings[b.ID] = b
}

// TakeRandomBooking removes and returns a random live booking.
func (dp *DataPool) TakeRandomBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	n := rng.Intn(len(dp.bookings))
	for id, b := range dp.bookings {
		if n == 0 {
			delete(dp.bookings, id)
			return b, true
		}
		n--
	}
	return booking{}, false
}

func (dp *DataPool) Snapshot() []booking {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	out := make([]booking, 0, len(dp.bookings))
	for _, b := range dp.bookings {
		out = append(out, b)
	}
	return out
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking OperationMetrics
	Cancel  OperationMetrics
	Slots   OperationMetrics
	List    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	_ = godotenv.Load()
	logger := logging.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	logger.Info().Msg("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Str("date", cfg.Date).
		Float64("booking", cfg.BookingRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("config loaded")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	sim.pool = dataPool

	logger.Info().Int("patients", len(dataPool.Patients)).Int("doctors", len(dataPool.Doctors)).Msg("data pool loaded")

	// Run simulation
	sim.Run()

	// Print report
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		Patients:     getInt("SIM_PATIENTS", 50),
		HotDoctors:   getInt("SIM_HOT_DOCTORS", 2),
		Password:     getEnv("SEED_PASSWORD", "maternity123"),
		Date:         getEnv("SIM_DATE", nextOpenDay(getEnv("CLINIC_TZ", "Asia/Kolkata"))),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

// nextOpenDay returns tomorrow, or the day after when tomorrow is Sunday.
func nextOpenDay(tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	d := time.Now().In(loc).AddDate(0, 0, 1)
	if d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format(time.DateOnly)
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	if _, err := time.Parse(time.DateOnly, cfg.Date); err != nil {
		return fmt.Errorf("SIM_DATE must be YYYY-MM-DD: %w", err)
	}
	return nil
}

func (s *Simulator) call(ctx context.Context, method, path, token string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dataPool := &DataPool{bookings: make(map[uuid.UUID]booking)}

	// Log in seeded patients
	for i := 0; i < s.config.Patients; i++ {
		var resp struct {
			Token string `json:"token"`
			User  struct {
				ID uuid.UUID `json:"id"`
			} `json:"user"`
		}
		status, err := s.call(ctx, http.MethodPost, "/auth/login", "", map[string]string{
			"email":    fmt.Sprintf("patient%04d@example.test", i),
			"password": s.config.Password,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("login patient %d: %w", i, err)
		}
		if status != http.StatusOK {
			s.log.Warn().Int("patient", i).Int("status", status).Msg("login failed, skipping")
			continue
		}
		dataPool.Patients = append(dataPool.Patients, patientSession{ID: resp.User.ID, Token: resp.Token})
	}

	// Load doctors; only a few are hammered so slots actually collide.
	var doctors []doctorInfo
	if _, err := s.call(ctx, http.MethodGet, "/doctors", "", nil, &doctors); err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	if len(doctors) > s.config.HotDoctors && s.config.HotDoctors > 0 {
		doctors = doctors[:s.config.HotDoctors]
	}
	dataPool.Doctors = doctors

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients logged in (run cmd/seed first)")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Select operation based on ratios
			r := rng.Float64()
			if r < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if r < s.config.BookingRatio+s.config.CancelRatio {
				s.doCancel(ctx, rng)
			} else if rng.Intn(2) == 0 {
				s.doListSlots(ctx, rng)
			} else {
				s.doListAppointments(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	pIdx := rng.Intn(len(s.pool.Patients))
	patient := s.pool.Patients[pIdx]
	doctor := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	// Pick from the currently free slots, racing the other workers for it.
	var slots struct {
		Slots []string `json:"slots"`
	}
	path := fmt.Sprintf("/doctors/%s/slots?date=%s", doctor.ID, s.config.Date)
	if status, err := s.call(ctx, http.MethodGet, path, "", nil, &slots); err != nil || status != http.StatusOK || len(slots.Slots) == 0 {
		return
	}
	slot := slots.Slots[rng.Intn(len(slots.Slots))]

	start := time.Now()

	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	status, err := s.call(ctx, http.MethodPost, "/appointments", patient.Token, map[string]string{
		"doctor_id":      doctor.ID.String(),
		"specialization": doctor.Specialization,
		"date":           s.config.Date,
		"slot":           slot,
	}, &appt)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	conflict := err == nil && status == http.StatusConflict

	if success && appt.ID != uuid.Nil {
		s.pool.AddBooking(booking{ID: appt.ID, DoctorID: doctor.ID, Date: s.config.Date, Slot: slot, Patient: pIdx})
	}
	if ctx.Err() == nil {
		s.metrics.Booking.Record(latency, success, conflict)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakeRandomBooking(rng)
	if !ok {
		return
	}
	patient := s.pool.Patients[b.Patient]

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", b.ID), patient.Token, nil, nil)
	latency := time.Since(start)

	success := err == nil && status == http.StatusOK
	if !success {
		s.pool.AddBooking(b)
	}
	if ctx.Err() == nil {
		s.metrics.Cancel.Record(latency, success, err == nil && status == http.StatusConflict)
	}
}

func (s *Simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	doctor := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/slots?date=%s", doctor.ID, s.config.Date), "", nil, nil)
	latency := time.Since(start)

	if ctx.Err() == nil {
		s.metrics.Slots.Record(latency, err == nil && status == http.StatusOK, false)
	}
}

func (s *Simulator) doListAppointments(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments", patient.Token, nil, nil)
	latency := time.Since(start)

	if ctx.Err() == nil {
		s.metrics.List.Record(latency, err == nil && status == http.StatusOK, false)
	}
}

// doubleBookings counts (doctor, date, slot) keys held by more than one live booking.
func doubleBookings(bookings []booking) int {
	seen := make(map[string]int, len(bookings))
	for _, b := range bookings {
		seen[fmt.Sprintf("%s|%s|%s", b.DoctorID, b.Date, b.Slot)]++
	}
	dups := 0
	for _, n := range seen {
		if n > 1 {
			dups++
		}
	}
	return dups
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Date: %s, doctors under contention: %d\n", s.config.Date, len(s.pool.Doctors))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Available slots", &s.metrics.Slots)
	printOperationReport("List appointments", &s.metrics.List)

	live := s.pool.Snapshot()
	dups := doubleBookings(live)
	fmt.Printf("Live bookings: %d\n", len(live))
	if dups == 0 {
		fmt.Println("Double bookings: none")
	} else {
		fmt.Printf("Double bookings: %d (allocation is broken)\n", dups)
		os.Exit(1)
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
