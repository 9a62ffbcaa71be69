package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/tonewood/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("not found")

// ResponseRepository defines the interface for response run operations
type ResponseRepository interface {
	CreateResponse(ctx context.Context, run *models.ResponseRun) error
	GetResponse(ctx context.Context, id uuid.UUID) (*models.ResponseRun, error)
	SetExportKey(ctx context.Context, id uuid.UUID, key string) error
}

// FitRepository defines the interface for fit run operations
type FitRepository interface {
	CreateFit(ctx context.Context, run *models.FitRun) error
	GetFit(ctx context.Context, id uuid.UUID) (*models.FitRun, error)
	UpdateFitStatus(ctx context.Context, id uuid.UUID, status string, progress int) error
	UpdateFitError(ctx context.Context, id uuid.UUID, errorMsg string) error
	StoreFitResult(ctx context.Context, run *models.FitRun) error
}

// RunRepository is the full persistence surface used by the service
type RunRepository interface {
	ResponseRepository
	FitRepository
}
