package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/RMahshie/tonewood/internal/processing"
	"github.com/RMahshie/tonewood/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRunRepository implements repository.RunRepository for testing
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) CreateResponse(ctx context.Context, run *models.ResponseRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetResponse(ctx context.Context, id uuid.UUID) (*models.ResponseRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*models.ResponseRun)
	return run, args.Error(1)
}

func (m *MockRunRepository) SetExportKey(ctx context.Context, id uuid.UUID, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

func (m *MockRunRepository) CreateFit(ctx context.Context, run *models.FitRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetFit(ctx context.Context, id uuid.UUID) (*models.FitRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*models.FitRun)
	return run, args.Error(1)
}

func (m *MockRunRepository) UpdateFitStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	args := m.Called(ctx, id, status, progress)
	return args.Error(0)
}

func (m *MockRunRepository) UpdateFitError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *MockRunRepository) StoreFitResult(ctx context.Context, run *models.FitRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// MockCurveStore implements storage.CurveStore for testing
type MockCurveStore struct {
	mock.Mock
}

func (m *MockCurveStore) PutCurve(ctx context.Context, key string, body []byte) error {
	args := m.Called(ctx, key, body)
	return args.Error(0)
}

func (m *MockCurveStore) GetCurve(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func (m *MockCurveStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCurveStore) DeleteCurve(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockProcessingService implements processing.ProcessingService for testing
type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ComputeResponse(ctx context.Context, params models.PhysicalParameters, axis []float64) (*models.ResponseRun, error) {
	args := m.Called(ctx, params, axis)
	run, _ := args.Get(0).(*models.ResponseRun)
	return run, args.Error(1)
}

func (m *MockProcessingService) ExportResponse(ctx context.Context, run *models.ResponseRun) (string, error) {
	args := m.Called(ctx, run)
	return args.String(0), args.Error(1)
}

func (m *MockProcessingService) ProcessFit(ctx context.Context, fitID uuid.UUID, spec processing.FitSpec) error {
	args := m.Called(ctx, fitID, spec)
	return args.Error(0)
}

// requireStatus asserts that err is a huma error carrying status
func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "expected a huma status error, got %T", err)
	require.Equal(t, status, se.GetStatus())
}
