package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RMahshie/tonewood/internal/repository"
	"github.com/RMahshie/tonewood/pkg/models"
	"github.com/google/uuid"
)

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgreSQL run repository
func NewPostgresRunRepository(db *sql.DB) repository.RunRepository {
	return &PostgresRunRepository{db: db}
}

// CreateResponse inserts a computed response run
func (r *PostgresRunRepository) CreateResponse(ctx context.Context, run *models.ResponseRun) error {
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	response, err := json.Marshal(run.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	query := `
		INSERT INTO response_runs (id, parameters, model_order, strategy, fallback, response, export_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		string(params),
		run.ModelOrder,
		run.Strategy,
		run.Fallback,
		string(response),
		run.ExportKey,
		run.CreatedAt)

	return err
}

// GetResponse retrieves a response run by ID
func (r *PostgresRunRepository) GetResponse(ctx context.Context, id uuid.UUID) (*models.ResponseRun, error) {
	query := `
		SELECT id, parameters, model_order, strategy, fallback, response, export_key, created_at
		FROM response_runs
		WHERE id = $1`

	var run models.ResponseRun
	var params, response []byte
	var exportKey sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&params,
		&run.ModelOrder,
		&run.Strategy,
		&run.Fallback,
		&response,
		&exportKey,
		&run.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("response run %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &run.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal(response, &run.Response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if exportKey.Valid {
		run.ExportKey = &exportKey.String
	}

	return &run, nil
}

// SetExportKey records where the curve of a response run was exported
func (r *PostgresRunRepository) SetExportKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `UPDATE response_runs SET export_key = $1 WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, key, id)
	if err != nil {
		return err
	}
	return requireRow(res, "response run", id)
}

// CreateFit inserts a new fit run
func (r *PostgresRunRepository) CreateFit(ctx context.Context, run *models.FitRun) error {
	targets, err := json.Marshal(run.Targets)
	if err != nil {
		return fmt.Errorf("failed to marshal targets: %w", err)
	}
	baseline, err := json.Marshal(run.Baseline)
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	query := `
		INSERT INTO fit_runs (id, status, progress, targets, baseline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.Progress,
		string(targets),
		string(baseline),
		run.CreatedAt,
		run.UpdatedAt)

	return err
}

// GetFit retrieves a fit run by ID
func (r *PostgresRunRepository) GetFit(ctx context.Context, id uuid.UUID) (*models.FitRun, error) {
	query := `
		SELECT id, status, progress, targets, baseline, parameters, peaks, fit_error, baseline_error,
		       evaluations, response, error_message, created_at, updated_at, completed_at
		FROM fit_runs
		WHERE id = $1`

	var run models.FitRun
	var targets, baseline, params, peaks, response []byte
	var fitErr, baseErr sql.NullFloat64
	var evaluations sql.NullInt64
	var errorMsg sql.NullString
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Status,
		&run.Progress,
		&targets,
		&baseline,
		&params,
		&peaks,
		&fitErr,
		&baseErr,
		&evaluations,
		&response,
		&errorMsg,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fit run %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	for _, col := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"targets", targets, &run.Targets},
		{"baseline", baseline, &run.Baseline},
		{"parameters", params, &run.Parameters},
		{"peaks", peaks, &run.Peaks},
		{"response", response, &run.Response},
	} {
		if col.raw == nil {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", col.name, err)
		}
	}

	if fitErr.Valid {
		run.FitError = &fitErr.Float64
	}
	if baseErr.Valid {
		run.BaselineError = &baseErr.Float64
	}
	if evaluations.Valid {
		run.Evaluations = int(evaluations.Int64)
	}
	if errorMsg.Valid {
		run.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}

// UpdateFitStatus updates the status and progress of a fit
func (r *PostgresRunRepository) UpdateFitStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE fit_runs
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, status, progress, id)
	if err != nil {
		return err
	}
	return requireRow(res, "fit run", id)
}

// UpdateFitError marks a fit as failed with the given message
func (r *PostgresRunRepository) UpdateFitError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE fit_runs
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, errorMsg, id)
	return err
}

// StoreFitResult stores the outcome of a completed fit
func (r *PostgresRunRepository) StoreFitResult(ctx context.Context, run *models.FitRun) error {
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}
	peaks, err := json.Marshal(run.Peaks)
	if err != nil {
		return fmt.Errorf("failed to marshal peaks: %w", err)
	}
	response, err := json.Marshal(run.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	query := `
		UPDATE fit_runs
		SET parameters = $1, peaks = $2, fit_error = $3, baseline_error = $4, evaluations = $5,
		    response = $6, updated_at = NOW()
		WHERE id = $7`

	res, err := r.db.ExecContext(ctx, query,
		string(params),
		string(peaks),
		run.FitError,
		run.BaselineError,
		run.Evaluations,
		string(response),
		run.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "fit run", run.ID)
}

func requireRow(res sql.Result, kind string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", kind, id, repository.ErrNotFound)
	}
	return nil
}
