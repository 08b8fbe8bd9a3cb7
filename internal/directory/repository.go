package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("this email is already registered")
)

type Repository interface {
	// CreateUser returns ErrEmailTaken when the email already exists.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// ListDoctors returns every doctor when specialization is empty.
	ListDoctors(ctx context.Context, specialization string) ([]User, error)
}
