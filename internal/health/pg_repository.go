package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, user_id, entry_date, steps, sleep_hours, calories, hydration_liters,
	blood_pressure_systolic, blood_pressure_diastolic, sugar_level, heart_rate, mood, stress,
	exercise_hours, body_weight_kg, height_cm, recorded_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// calendarDate pins t's calendar day to UTC midnight so DATE columns never shift.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	m := &e.Metrics

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Date,
		&m.Steps,
		&m.SleepHours,
		&m.Calories,
		&m.HydrationL,
		&m.Systolic,
		&m.Diastolic,
		&m.SugarLevel,
		&m.HeartRate,
		&m.Mood,
		&m.Stress,
		&m.ExerciseHours,
		&m.BodyWeightKg,
		&m.HeightCm,
		&e.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *PgRepository) UpsertEntry(ctx context.Context, e *Entry) error {
	m := e.Metrics
	row := r.pool.QueryRow(ctx, `
		INSERT INTO health_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (user_id, entry_date) DO UPDATE SET
			steps                    = EXCLUDED.steps,
			sleep_hours              = EXCLUDED.sleep_hours,
			calories                 = EXCLUDED.calories,
			hydration_liters         = EXCLUDED.hydration_liters,
			blood_pressure_systolic  = EXCLUDED.blood_pressure_systolic,
			blood_pressure_diastolic = EXCLUDED.blood_pressure_diastolic,
			sugar_level              = EXCLUDED.sugar_level,
			heart_rate               = EXCLUDED.heart_rate,
			mood                     = EXCLUDED.mood,
			stress                   = EXCLUDED.stress,
			exercise_hours           = EXCLUDED.exercise_hours,
			body_weight_kg           = EXCLUDED.body_weight_kg,
			height_cm                = EXCLUDED.height_cm,
			recorded_at              = EXCLUDED.recorded_at
		RETURNING id
	`,
		e.ID, e.UserID, calendarDate(e.Date),
		m.Steps, m.SleepHours, m.Calories, m.HydrationL,
		m.Systolic, m.Diastolic, m.SugarLevel, m.HeartRate, m.Mood, m.Stress,
		m.ExerciseHours, m.BodyWeightKg, m.HeightCm, e.RecordedAt,
	)

	// On conflict the existing row keeps its id.
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("upsert health entry: %w", err)
	}
	return nil
}

func (r *PgRepository) GetEntry(ctx context.Context, userID uuid.UUID, date time.Time) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM health_entries
		WHERE user_id = $1 AND entry_date = $2
	`, userID, calendarDate(date))

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get health entry: %w", err)
	}
	return e, nil
}

func (r *PgRepository) ListEntries(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM health_entries
		WHERE user_id = $1 AND entry_date BETWEEN $2 AND $3
		ORDER BY entry_date ASC
	`, userID, calendarDate(from), calendarDate(to))
	if err != nil {
		return nil, fmt.Errorf("list health entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan health entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health entries: %w", err)
	}
	return entries, nil
}
