package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/maternity-care-booking/internal/metrics"
	"github.com/hackgods/maternity-care-booking/internal/validation"
)

var ErrNoEntryToday = errors.New("no health entry recorded today")

const weekDays = 7

type Options struct {
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo    Repository
	metrics *metrics.Metrics
	log     zerolog.Logger
	loc     *time.Location
	now     func() time.Time
}

func NewService(repo Repository, m *metrics.Metrics, opts Options, logger zerolog.Logger) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    repo,
		metrics: m,
		log:     logger.With().Str("component", "health").Logger(),
		loc:     loc,
		now:     now,
	}
}

// Report is an entry together with its derived indicators.
type Report struct {
	Entry      Entry
	Indicators Indicators
}

func (s *Service) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}

// Record stores today's readings for userID. A second submission on the same day replaces the first.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, in Metrics) (*Report, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	e := &Entry{
		ID:         uuid.New(),
		UserID:     userID,
		Date:       s.today(),
		Metrics:    in,
		RecordedAt: s.now(),
	}
	if err := s.repo.UpsertEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("record health entry: %w", err)
	}

	s.metrics.HealthEntryRecorded()
	ind := Evaluate(in)
	s.log.Debug().
		Str("user_id", userID.String()).
		Int("score", ind.Score).
		Msg("health entry recorded")

	return &Report{Entry: *e, Indicators: ind}, nil
}

func (s *Service) Today(ctx context.Context, userID uuid.UUID) (*Report, error) {
	e, err := s.repo.GetEntry(ctx, userID, s.today())
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, ErrNoEntryToday
		}
		return nil, fmt.Errorf("load today's entry: %w", err)
	}
	return &Report{Entry: *e, Indicators: Evaluate(e.Metrics)}, nil
}

func (s *Service) lastWeek(ctx context.Context, userID uuid.UUID) (from, to time.Time, entries []Entry, err error) {
	to = s.today()
	from = to.AddDate(0, 0, -(weekDays - 1))

	entries, err = s.repo.ListEntries(ctx, userID, from, to)
	if err != nil {
		return from, to, nil, fmt.Errorf("load weekly entries: %w", err)
	}
	return from, to, entries, nil
}

// Weekly returns steps in thousands for the last seven days, oldest first.
// Days without an entry report zero.
func (s *Service) Weekly(ctx context.Context, userID uuid.UUID) ([]DayPoint, error) {
	from, to, entries, err := s.lastWeek(ctx, userID)
	if err != nil {
		return nil, err
	}

	steps := make(map[string]float64, len(entries))
	for _, e := range entries {
		steps[e.Date.Format(time.DateOnly)] = e.Metrics.Steps
	}

	points := make([]DayPoint, 0, weekDays)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		points = append(points, DayPoint{
			Date:           d,
			StepsThousands: round1(steps[d.Format(time.DateOnly)] / 1000),
		})
	}
	return points, nil
}

// WeeklyAverages reports hydration, exercise and sleep over the days recorded in the last seven.
func (s *Service) WeeklyAverages(ctx context.Context, userID uuid.UUID) (*Averages, error) {
	_, _, entries, err := s.lastWeek(ctx, userID)
	if err != nil {
		return nil, err
	}
	avg := Average(entries)
	return &avg, nil
}
