package health

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrEntryNotFound = errors.New("health entry not found")

type Repository interface {
	// UpsertEntry stores e, replacing any entry for the same user and date.
	UpsertEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, userID uuid.UUID, date time.Time) (*Entry, error)
	// ListEntries returns entries with from <= date <= to, oldest first.
	ListEntries(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]Entry, error)
}
