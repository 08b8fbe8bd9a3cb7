package health

import (
	"time"

	"github.com/google/uuid"
)

// Metrics is one day's self-reported readings.
type Metrics struct {
	Steps         float64 `json:"steps" validate:"gte=0"`
	SleepHours    float64 `json:"sleep" validate:"gte=0,lte=24"`
	Calories      float64 `json:"calories" validate:"gte=0"`
	HydrationL    float64 `json:"hydration" validate:"gte=0"`
	Systolic      float64 `json:"blood_pressure_systolic" validate:"gte=0"`
	Diastolic     float64 `json:"blood_pressure_diastolic" validate:"gte=0"`
	SugarLevel    float64 `json:"sugar_level" validate:"gte=0"`
	HeartRate     float64 `json:"heart_rate" validate:"gte=0"`
	Mood          float64 `json:"mood" validate:"gte=1,lte=10"`
	Stress        float64 `json:"stress" validate:"gte=1,lte=10"`
	ExerciseHours float64 `json:"exercise" validate:"gte=0,lte=24"`
	BodyWeightKg  float64 `json:"body_weight" validate:"gte=0"`
	HeightCm      float64 `json:"height" validate:"gte=0"`
}

type Entry struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Date       time.Time
	Metrics    Metrics
	RecordedAt time.Time
}

type Band string

const (
	BandHealthy   Band = "healthy"
	BandWarning   Band = "warning"
	BandAttention Band = "attention"
)

// Indicators are derived from an entry and never stored.
type Indicators struct {
	BMI   float64 `json:"bmi"`
	Score int     `json:"score"`
	Band  Band    `json:"band"`
}

// DayPoint is one bar of the weekly steps chart.
type DayPoint struct {
	Date           time.Time `json:"date"`
	StepsThousands float64   `json:"steps_thousands"`
}

// Goal is a weekly average measured against a daily target.
type Goal struct {
	Average float64 `json:"average"`
	Target  float64 `json:"target"`
	Percent float64 `json:"percent"`
}

// Averages summarise the recorded days of the last week.
// Hydration is in litres, exercise in minutes, sleep in hours.
type Averages struct {
	DaysRecorded int  `json:"days_recorded"`
	Hydration    Goal `json:"hydration"`
	Exercise     Goal `json:"exercise"`
	Sleep        Goal `json:"sleep"`
	Overall      int  `json:"overall"`
}
