package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/maternity-care-booking/internal/appointment"
	"github.com/hackgods/maternity-care-booking/internal/directory"
	"github.com/hackgods/maternity-care-booking/internal/health"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID             uuid.UUID      `json:"id"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	FullName       string         `json:"full_name"`
	Gender         string         `json:"gender,omitempty"`
	Role           directory.Role `json:"role"`
	Specialization *string        `json:"specialization,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type CreateAppointmentRequest struct {
	DoctorID       string `json:"doctor_id"`
	Specialization string `json:"specialization"`
	Date           string `json:"date"`
	Slot           string `json:"slot"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	DoctorName     string    `json:"doctor_name"`
	PatientID      uuid.UUID `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	Specialization string    `json:"specialization"`
	Date           string    `json:"date"`
	Slot           string    `json:"slot"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	CanceledBy     *string   `json:"canceled_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type HealthReportResponse struct {
	Date       string            `json:"date"`
	Metrics    health.Metrics    `json:"metrics"`
	Indicators health.Indicators `json:"indicators"`
	RecordedAt time.Time         `json:"recorded_at"`
}

type WeeklyResponse struct {
	Days     []health.DayPoint `json:"days"`
	Averages health.Averages   `json:"averages"`
}

type ChatRequest struct {
	Question string `json:"question"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toUserResponse(u *directory.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FullName:       u.FullName,
		Gender:         u.Gender,
		Role:           u.Role,
		Specialization: u.Specialization,
		CreatedAt:      u.CreatedAt,
	}
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		DoctorID:       a.DoctorID,
		DoctorName:     a.DoctorName,
		PatientID:      a.PatientID,
		PatientName:    a.PatientName,
		Specialization: a.Specialization,
		Date:           a.Timestamp.Format(time.DateOnly),
		Slot:           a.Slot,
		Timestamp:      a.Timestamp,
		Status:         string(a.Status),
		CanceledBy:     a.CanceledBy,
		CreatedAt:      a.CreatedAt,
	}
}

func toHealthReportResponse(r *health.Report) HealthReportResponse {
	return HealthReportResponse{
		Date:       r.Entry.Date.Format(time.DateOnly),
		Metrics:    r.Entry.Metrics,
		Indicators: r.Indicators,
		RecordedAt: r.Entry.RecordedAt,
	}
}
