package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/hackgods/maternity-care-booking/internal/api"
	"github.com/hackgods/maternity-care-booking/internal/appointment"
	"github.com/hackgods/maternity-care-booking/internal/auth"
	"github.com/hackgods/maternity-care-booking/internal/chat"
	"github.com/hackgods/maternity-care-booking/internal/config"
	"github.com/hackgods/maternity-care-booking/internal/db"
	"github.com/hackgods/maternity-care-booking/internal/directory"
	"github.com/hackgods/maternity-care-booking/internal/health"
	"github.com/hackgods/maternity-care-booking/internal/logging"
	"github.com/hackgods/maternity-care-booking/internal/metrics"
	redisclient "github.com/hackgods/maternity-care-booking/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migrateCtx, pgPool)
	cancelMigrate()
	if err != nil {
		logger.Fatal().Err(err).Msg("schema migration failed")
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		// Bookings fail until Redis answers; readiness reports degraded meanwhile.
		logger.Warn().Err(err).Msg("redis unavailable at startup")
		rdb = redisclient.NewLazyRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	} else {
		logger.Info().Msg("connected to Redis")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()

	slots, err := appointment.NewSlotConfig(cfg.ClinicOpen, cfg.ClinicClose, cfg.SlotMinutes, cfg.LunchStart, cfg.LunchEnd)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid clinic hours")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("maternity", reg)

	dirSvc := directory.NewService(directory.NewPgRepository(pgPool), directory.Options{
		DoctorCacheTTL: cfg.DoctorCacheTTL,
	}, logger)

	apptSvc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		dirSvc,
		redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL),
		m,
		appointment.Options{
			Slots:          slots,
			Location:       cfg.Location(),
			ClosedWeekdays: cfg.ClosedWeekdays,
		},
		logger,
	)

	healthSvc := health.NewService(health.NewPgRepository(pgPool), m, health.Options{
		Location: cfg.Location(),
	}, logger)

	chatSvc := chat.NewService(chat.NewOpenAIClient(chat.OpenAIConfig{
		BaseURL:   cfg.OpenAIBaseURL,
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.OpenAIModel,
		MaxTokens: cfg.OpenAIMaxTokens,
		Timeout:   cfg.ChatTimeout,
	}), m, logger)
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY not set; chat requests will fail upstream")
	}

	router := api.NewRouter(api.RouterConfig{
		Appointments:   apptSvc,
		Directory:      dirSvc,
		Health:         healthSvc,
		Chat:           chatSvc,
		Tokens:         auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		PostgresPing:   pgPool.Ping,
		RedisPing:      func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		Metrics:        m,
		Gatherer:       reg,
		Logger:         logger,
		ChatRatePerMin: cfg.ChatRatePerMin,
		Env:            cfg.Env,
		Version:        cfg.Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ChatTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Strs("grid", apptSvc.Grid()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("api-server stopped")
}
