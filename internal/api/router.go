package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/maternity-care-booking/internal/appointment"
	"github.com/hackgods/maternity-care-booking/internal/auth"
	"github.com/hackgods/maternity-care-booking/internal/chat"
	"github.com/hackgods/maternity-care-booking/internal/directory"
	"github.com/hackgods/maternity-care-booking/internal/health"
	"github.com/hackgods/maternity-care-booking/internal/metrics"
)

type AppointmentService interface {
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]string, error)
	Book(ctx context.Context, patient appointment.Actor, in appointment.BookInput) (*appointment.Appointment, error)
	Cancel(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)
	Get(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)
	ListForActor(ctx context.Context, actor appointment.Actor) ([]appointment.Appointment, error)
}

type DirectoryService interface {
	Register(ctx context.Context, in directory.RegisterInput) (*directory.User, error)
	Login(ctx context.Context, email, password string) (*directory.User, error)
	FindDoctors(ctx context.Context, specialization string) ([]directory.Doctor, error)
	Specializations() []string
}

type HealthService interface {
	Record(ctx context.Context, userID uuid.UUID, in health.Metrics) (*health.Report, error)
	Today(ctx context.Context, userID uuid.UUID) (*health.Report, error)
	Weekly(ctx context.Context, userID uuid.UUID) ([]health.DayPoint, error)
	WeeklyAverages(ctx context.Context, userID uuid.UUID) (*health.Averages, error)
}

type ChatService interface {
	Ask(ctx context.Context, question string) (*chat.Answer, error)
}

type TokenIssuer interface {
	Issue(u *directory.User) (string, time.Time, error)
	Parse(raw string) (*auth.Principal, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	Directory    DirectoryService
	Health       HealthService
	Chat         ChatService
	Tokens       TokenIssuer

	PostgresPing PingFunc
	RedisPing    PingFunc

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger

	ChatRatePerMin int
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	// Health endpoints
	hh := NewHealthHandler(cfg.PostgresPing, cfg.RedisPing, cfg.Env, cfg.Version)
	r.Get("/health/live", hh.Liveness)
	r.Get("/health/ready", hh.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/auth/register", registerHandler(cfg.Directory))
	r.Post("/auth/login", loginHandler(cfg.Directory, cfg.Tokens))

	r.Get("/specializations", listSpecializationsHandler(cfg.Directory))
	r.Get("/doctors", listDoctorsHandler(cfg.Directory))
	r.Get("/doctors/{id}/slots", availableSlotsHandler(cfg.Appointments))

	chatLimiter := NewClientRateLimiter(cfg.ChatRatePerMin)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))

		// Appointment endpoints
		r.With(RequireRole(directory.RolePatient)).Post("/appointments", createAppointmentHandler(cfg.Appointments))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))

		r.Post("/health-data", recordHealthHandler(cfg.Health))
		r.Get("/health-data/today", todayHealthHandler(cfg.Health))
		r.Get("/health-data/weekly", weeklyHealthHandler(cfg.Health))

		r.With(chatLimiter.Middleware).Post("/chat", chatHandler(cfg.Chat))
	})

	return r
}
