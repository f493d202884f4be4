package prediction

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one served prediction, kept for auditing. Rate and Confidence
// are stored on the [0,1] scale the core produces, not as percentages.
type Record struct {
	ID         uuid.UUID `db:"id"`
	Origin     string    `db:"origin"`
	Asylum     string    `db:"asylum"`
	Year       int       `db:"year"`
	Procedure  string    `db:"procedure"`
	Rate       float64   `db:"rate"`
	Confidence float64   `db:"confidence"`
	CreatedAt  time.Time `db:"created_at"`
}

// Repository persists served predictions.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}
