package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/maternity-care-booking/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Options struct {
	DoctorCacheTTL time.Duration
	BcryptCost     int
}

type Service struct {
	repo    Repository
	doctors *gocache.Cache
	cost    int
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, opts Options, logger zerolog.Logger) *Service {
	cost := opts.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	ttl := opts.DoctorCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Service{
		repo:    repo,
		doctors: gocache.New(ttl, 2*ttl),
		cost:    cost,
		log:     logger.With().Str("component", "directory").Logger(),
		now:     time.Now,
	}
}

type RegisterInput struct {
	Username       string `json:"username" validate:"required,min=3,max=50"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	FullName       string `json:"full_name" validate:"required,max=120"`
	Gender         string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	Role           Role   `json:"role" validate:"required,oneof=Doctor Patient"`
	Specialization string `json:"specialization" validate:"required_if=Role Doctor"`
}

// Register creates a doctor or patient account. Passwords are stored as bcrypt hashes.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Specialization = strings.TrimSpace(in.Specialization)

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Role == RoleDoctor && !IsSpecialization(in.Specialization) {
		return nil, validation.Field("specialization", "must be one of the clinic specializations")
	}

	if _, err := s.repo.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Gender:       in.Gender,
		Role:         in.Role,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if in.Role == RoleDoctor {
		spec := in.Specialization
		u.Specialization = &spec
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if u.IsDoctor() {
		s.doctors.Delete("")
		s.doctors.Delete(in.Specialization)
	}

	s.log.Info().Str("user_id", u.ID.String()).Str("role", string(u.Role)).Msg("user registered")
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	// Passwords are compared exactly as registered.
	if email == "" || password == "" {
		return nil, validation.Field("email", "email and password are required")
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// FindDoctors lists doctors for a specialization, or all doctors when it is empty.
// Results are cached for the configured TTL.
func (s *Service) FindDoctors(ctx context.Context, specialization string) ([]Doctor, error) {
	specialization = strings.TrimSpace(specialization)
	if specialization != "" && !IsSpecialization(specialization) {
		return nil, validation.Field("specialization", "must be one of the clinic specializations")
	}

	if cached, ok := s.doctors.Get(specialization); ok {
		return cached.([]Doctor), nil
	}

	users, err := s.repo.ListDoctors(ctx, specialization)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	doctors := make([]Doctor, 0, len(users))
	for _, u := range users {
		d := Doctor{ID: u.ID, Name: u.FullName}
		if d.Name == "" {
			d.Name = "Unnamed Doctor"
		}
		if u.Specialization != nil {
			d.Specialization = *u.Specialization
		}
		doctors = append(doctors, d)
	}

	s.doctors.SetDefault(specialization, doctors)
	return doctors, nil
}

func (s *Service) Specializations() []string {
	return append([]string(nil), Specializations...)
}
