package health

import "math"

// BMI returns weight over height squared, or 0 when height is unknown.
func BMI(weightKg, heightCm float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return weightKg / (m * m)
}

// Score rates a day's readings out of 100.
func Score(m Metrics) int {
	score := 100

	if m.Steps < 5000 {
		score -= 10
	}
	if m.SleepHours < 6 || m.SleepHours > 9 {
		score -= 10
	}
	if m.HydrationL < 2 {
		score -= 5
	}
	if m.Systolic > 130 || m.Diastolic > 85 {
		score -= 10
	}
	if m.SugarLevel > 140 {
		score -= 10
	}
	if m.HeartRate < 60 || m.HeartRate > 100 {
		score -= 5
	}
	if m.Mood < 5 {
		score -= 5
	}
	if m.Stress > 6 {
		score -= 5
	}
	if m.ExerciseHours < 0.5 {
		score -= 10
	}
	if bmi := BMI(m.BodyWeightKg, m.HeightCm); bmi < 18.5 || bmi > 25 {
		score -= 10
	}

	return max(score, 0)
}

func BandFor(score int) Band {
	switch {
	case score >= 75:
		return BandHealthy
	case score >= 50:
		return BandWarning
	default:
		return BandAttention
	}
}

func Evaluate(m Metrics) Indicators {
	score := Score(m)
	return Indicators{
		BMI:   round1(BMI(m.BodyWeightKg, m.HeightCm)),
		Score: score,
		Band:  BandFor(score),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

const (
	hydrationTargetL      = 2
	exerciseTargetMinutes = 50
	sleepTargetHours      = 8
)

// Average divides totals by the number of recorded days, not by seven.
// Each goal's percent is capped at 100.
func Average(entries []Entry) Averages {
	var hydration, exercise, sleep float64
	for _, e := range entries {
		hydration += e.Metrics.HydrationL
		exercise += e.Metrics.ExerciseHours * 60
		sleep += e.Metrics.SleepHours
	}

	days := float64(max(len(entries), 1))
	goals := [3]Goal{
		goalFor(hydration/days, hydrationTargetL),
		goalFor(exercise/days, exerciseTargetMinutes),
		goalFor(sleep/days, sleepTargetHours),
	}

	var sum float64
	for i := range goals {
		sum += goals[i].Percent
		goals[i].Average = round1(goals[i].Average)
		goals[i].Percent = round1(goals[i].Percent)
	}

	return Averages{
		DaysRecorded: len(entries),
		Hydration:    goals[0],
		Exercise:     goals[1],
		Sleep:        goals[2],
		Overall:      int(math.Round(sum / float64(len(goals)))),
	}
}

func goalFor(avg, target float64) Goal {
	return Goal{
		Average: avg,
		Target:  target,
		Percent: min(avg*100/target, 100),
	}
}
