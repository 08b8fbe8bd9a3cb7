package directory

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor  Role = "Doctor"
	RolePatient Role = "Patient"
)

// Specializations offered by the clinic.
var Specializations = []string{
	"Obstetrician",
	"Gynecologist",
	"Prenatal Care Specialist",
	"Maternal-Fetal Medicine Specialist",
	"Midwife",
	"Reproductive Endocrinologist",
}

func IsSpecialization(s string) bool {
	for _, v := range Specializations {
		if v == s {
			return true
		}
	}
	return false
}

type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	FullName       string
	Gender         string
	Role           Role
	Specialization *string
	PasswordHash   string
	CreatedAt      time.Time
}

func (u *User) IsDoctor() bool {
	return u.Role == RoleDoctor
}

// DisplayName falls back to the username when no full name was given.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

type Doctor struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
}
