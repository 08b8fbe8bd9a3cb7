package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/maternity-care-booking/internal/db"
	"github.com/hackgods/maternity-care-booking/internal/directory"
	"github.com/hackgods/maternity-care-booking/internal/logging"
)

func main() {
	_ = godotenv.Load()
	logger := logging.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	doctorsPerSpec := getInt("SEED_DOCTORS_PER_SPECIALIZATION", 3)
	patients := getInt("SEED_PATIENTS", 200)
	password := getEnv("SEED_PASSWORD", "maternity123")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate schema")
	}

	// Minimum bcrypt cost for bulk registration.
	svc := directory.NewService(directory.NewPgRepository(pool), directory.Options{BcryptCost: 4}, zerolog.Nop())
	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	if err := seedDoctors(ctx, svc, faker, doctorsPerSpec, password, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(ctx, svc, faker, patients, password, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Str("password", password).Msg("seed complete")
}

func seedDoctors(ctx context.Context, svc *directory.Service, faker *gofakeit.Faker, perSpec int, password string, logger zerolog.Logger) error {
	logger.Info().Int("per_specialization", perSpec).Msg("seeding doctors")

	for _, spec := range svc.Specializations() {
		for i := 0; i < perSpec; i++ {
			first, last := faker.FirstName(), faker.LastName()
			in := directory.RegisterInput{
				Username:       slug(first) + "." + slug(last),
				Email:          fmt.Sprintf("dr.%s.%s.%d@clinic.test", slug(first), slug(last), faker.Number(1000, 9999)),
				Password:       password,
				FullName:       "Dr. " + first + " " + last,
				Gender:         faker.RandomString([]string{"Male", "Female"}),
				Role:           directory.RoleDoctor,
				Specialization: spec,
			}
			if err := register(ctx, svc, in); err != nil {
				return err
			}
		}
		logger.Info().Str("specialization", spec).Msg("doctors seeded")
	}
	return nil
}

func seedPatients(ctx context.Context, svc *directory.Service, faker *gofakeit.Faker, count int, password string, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	for i := 0; i < count; i++ {
		first, last := faker.FirstName(), faker.LastName()
		in := directory.RegisterInput{
			Username: faker.Username(),
			Email:    fmt.Sprintf("patient%04d@example.test", i),
			Password: password,
			FullName: first + " " + last,
			Gender:   "Female",
			Role:     directory.RolePatient,
		}
		if err := register(ctx, svc, in); err != nil {
			return err
		}

		if (i+1)%100 == 0 {
			logger.Info().Msgf("patients seeded: %d/%d", i+1, count)
		}
	}
	return nil
}

// register tolerates reruns: an existing email is skipped.
func register(ctx context.Context, svc *directory.Service, in directory.RegisterInput) error {
	if len(in.Username) < 3 {
		in.Username += "user"
	}
	if len(in.Username) > 50 {
		in.Username = in.Username[:50]
	}

	_, err := svc.Register(ctx, in)
	if err != nil && !errors.Is(err, directory.ErrEmailTaken) {
		return fmt.Errorf("register %s: %w", in.Email, err)
	}
	return nil
}

// slug keeps the ASCII letters of s, lower-cased.
func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, s)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
