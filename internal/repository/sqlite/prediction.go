package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"refuge/internal/domain/prediction"
	"refuge/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id         TEXT PRIMARY KEY,
	origin     TEXT NOT NULL,
	asylum     TEXT NOT NULL,
	year       INTEGER NOT NULL,
	procedure  TEXT NOT NULL,
	rate       REAL NOT NULL,
	confidence REAL NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions (created_at);
`

// Open connects to the sqlite database at path and ensures the schema exists.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply predictions schema")
	}

	return db, nil
}

// Compile-time check
var _ prediction.Repository = (*PredictionRepository)(nil)

// PredictionRepository implements prediction.Repository using sqlx
type PredictionRepository struct {
	db *sqlx.DB
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *sqlx.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// Create inserts a served prediction
func (r *PredictionRepository) Create(ctx context.Context, rec *prediction.Record) error {
	query := `
		INSERT INTO predictions (
			id, origin, asylum, year, procedure, rate, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.Origin, rec.Asylum, rec.Year, rec.Procedure,
		rec.Rate, rec.Confidence, rec.CreatedAt,
	)

	return err
}

// ListRecent retrieves the most recently served predictions
func (r *PredictionRepository) ListRecent(ctx context.Context, limit int) ([]prediction.Record, error) {
	var records []prediction.Record

	query := `
		SELECT id, origin, asylum, year, procedure, rate, confidence, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT ?`

	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, err
	}

	return records, nil
}
