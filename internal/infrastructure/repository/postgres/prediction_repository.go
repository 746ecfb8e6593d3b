package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
)

// PredictionRepository is the Postgres backend of the prediction log.
type PredictionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPredictionRepository(db *sql.DB) *PredictionRepository {
	return &PredictionRepository{db: db, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *PredictionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS prediction_log (
	id BIGSERIAL PRIMARY KEY,
	kepid BIGINT NOT NULL,
	prediction TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_prediction_log_kepid ON prediction_log(kepid, id DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Append writes all predictions in one transaction, in order.
func (r *PredictionRepository) Append(ctx context.Context, predictions []domain.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO prediction_log (kepid, prediction, created_at) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := r.now().UTC()
	for _, p := range predictions {
		if _, err := stmt.ExecContext(ctx, p.KepID, string(p.Prediction), createdAt); err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *PredictionRepository) Latest(ctx context.Context, kepID int64) (*domain.Prediction, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT kepid, prediction
FROM prediction_log
WHERE kepid = $1
ORDER BY id DESC
LIMIT 1
`, kepID)

	var p domain.Prediction
	var label string
	if err := row.Scan(&p.KepID, &label); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPredictionNotFound, "latest prediction", fmt.Errorf("kepid %d", kepID))
		}
		return nil, fmt.Errorf("select prediction: %w", err)
	}
	p.Prediction = domain.Disposition(label)
	return &p, nil
}
