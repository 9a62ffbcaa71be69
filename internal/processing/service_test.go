package processing

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RMahshie/tonewood/internal/metrics"
	"github.com/RMahshie/tonewood/internal/solver"
	"github.com/RMahshie/tonewood/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
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

// failingStrategy always reports the given error
type failingStrategy struct {
	name string
	err  error
}

func (f failingStrategy) Name() string             { return f.name }
func (f failingStrategy) Order() solver.ModelOrder { return solver.ModelFourDOF }
func (f failingStrategy) Solve(solver.Body, []float64) (*models.FrequencyResponse, error) {
	return nil, f.err
}

func testAxis(t *testing.T) []float64 {
	t.Helper()
	axis, err := solver.FrequencyAxis(0, 400, 1)
	require.NoError(t, err)
	return axis
}

// singularDipole disables every dipole term so order 5 leaves an isolated node
func singularDipole() models.PhysicalParameters {
	return models.DefaultParameters().Merge(models.PhysicalParameters{
		models.ParamModelOrder: 5,
		"mass_dipole":          0,
		"stiffness_dipole":     0,
		"damping_dipole":       0,
		"coupling_dipole":      0,
	})
}

func TestResolveParameters(t *testing.T) {
	order := 2
	alt, temp := 1500.0, 10.0

	tests := []struct {
		name      string
		overrides models.PhysicalParameters
		order     *int
		atm       models.Atmosphere
		check     func(t *testing.T, p models.PhysicalParameters)
	}{
		{
			name: "defaults only",
			check: func(t *testing.T, p models.PhysicalParameters) {
				assert.Equal(t, models.DefaultParameters(), p)
			},
		},
		{
			name:      "override and order",
			overrides: models.PhysicalParameters{models.ParamStiffnessTop: 42000},
			order:     &order,
			check: func(t *testing.T, p models.PhysicalParameters) {
				assert.Equal(t, 42000.0, p[models.ParamStiffnessTop])
				assert.Equal(t, 2.0, p[models.ParamModelOrder])
				_, ok := p[models.ParamAirDensity]
				assert.False(t, ok)
			},
		},
		{
			name: "altitude and temperature",
			atm:  models.Atmosphere{AltitudeM: &alt, TemperatureC: &temp},
			check: func(t *testing.T, p models.PhysicalParameters) {
				assert.InDelta(t, 1.040, p[models.ParamAirDensity], 1e-3)
				assert.InDelta(t, 337.3, p[models.ParamSpeedOfSound], 0.1)
			},
		},
		{
			name: "temperature only stays at sea level pressure",
			atm:  models.Atmosphere{TemperatureC: &temp},
			check: func(t *testing.T, p models.PhysicalParameters) {
				assert.InDelta(t, 1.247, p[models.ParamAirDensity], 1e-3)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := models.DefaultParameters()
			p := ResolveParameters(base, tt.overrides, tt.order, tt.atm)
			tt.check(t, p)
			assert.Equal(t, models.DefaultParameters(), base, "base must not be modified")
		})
	}
}

func TestSafeCompute(t *testing.T) {
	params := models.DefaultParameters()
	axis := testAxis(t)
	boom := failingStrategy{name: "boom", err: errors.New("boom")}
	bust := failingStrategy{name: "bust", err: solver.ErrSingularSystem}

	t.Run("primary answers", func(t *testing.T) {
		resp, used, err := SafeCompute(solver.GeneralizedStrategy(solver.ModelFourDOF), solver.LegacyStrategy(), params, axis)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "generalized/4dof", used.Name())
	})

	t.Run("secondary answers after primary failure", func(t *testing.T) {
		resp, used, err := SafeCompute(boom, solver.LegacyStrategy(), params, axis)
		require.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "closed-form/4dof", used.Name())
		assert.Len(t, resp.Total, len(axis))
	})

	t.Run("both fail", func(t *testing.T) {
		resp, used, err := SafeCompute(boom, bust, params, axis)
		assert.Nil(t, resp)
		assert.Nil(t, used)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.ErrorIs(t, err, solver.ErrSingularSystem)
	})

	t.Run("identical secondary is not retried", func(t *testing.T) {
		_, _, err := SafeCompute(boom, boom, params, axis)
		require.Error(t, err)
		assert.Equal(t, "boom: boom", err.Error())
	})

	t.Run("no strategies", func(t *testing.T) {
		_, _, err := SafeCompute(nil, nil, params, axis)
		assert.Error(t, err)
	})
}

func TestComputeResponse(t *testing.T) {
	tests := []struct {
		name         string
		params       models.PhysicalParameters
		wantStrategy string
		wantOrder    int
		wantFallback bool
	}{
		{
			name:         "default body",
			params:       models.DefaultParameters(),
			wantStrategy: "closed-form/4dof",
			wantOrder:    4,
		},
		{
			name:         "unspecified order",
			params:       withoutOrder(),
			wantStrategy: "closed-form/4dof",
			wantOrder:    4,
		},
		{
			name:         "top and air",
			params:       models.DefaultParameters().With(models.ParamModelOrder, 2),
			wantStrategy: "closed-form/top+air",
			wantOrder:    2,
		},
		{
			name:         "dipole",
			params:       models.DefaultParameters().With(models.ParamModelOrder, 5),
			wantStrategy: "generalized/4dof+dipole",
			wantOrder:    5,
		},
		{
			name:         "singular dipole falls back",
			params:       singularDipole(),
			wantStrategy: "closed-form/4dof",
			wantOrder:    5,
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRunRepository{}
			repo.On("CreateResponse", mock.Anything, mock.AnythingOfType("*models.ResponseRun")).Return(nil)

			svc := NewProcessingService(nil, repo, Options{Axis: testAxis(t)})
			run, err := svc.ComputeResponse(context.Background(), tt.params, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStrategy, run.Strategy)
			assert.Equal(t, tt.wantOrder, run.ModelOrder)
			assert.Equal(t, tt.wantFallback, run.Fallback)
			assert.Len(t, run.Response.Total, 401)
			_, err = uuid.Parse(run.ID)
			assert.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestComputeResponse_RecordsMetrics(t *testing.T) {
	pm := metrics.NewPrometheusMetrics()
	repo := &MockRunRepository{}
	repo.On("CreateResponse", mock.Anything, mock.Anything).Return(nil)

	svc := NewProcessingService(nil, repo, Options{Axis: testAxis(t), Metrics: pm})
	_, err := svc.ComputeResponse(context.Background(), singularDipole(), nil)
	require.NoError(t, err)

	body := scrape(t, pm)
	assert.Contains(t, body, "tonewood_solve_fallbacks_total 1")
	assert.Contains(t, body, "tonewood_singular_systems_total 1")
	assert.Contains(t, body, `tonewood_solves_total{outcome="error",strategy="generalized/4dof+dipole"} 1`)
	assert.Contains(t, body, `tonewood_solves_total{outcome="ok",strategy="closed-form/4dof"} 1`)
}

func TestComputeResponse_Errors(t *testing.T) {
	t.Run("unsupported order", func(t *testing.T) {
		repo := &MockRunRepository{}
		svc := NewProcessingService(nil, repo, Options{})

		_, err := svc.ComputeResponse(context.Background(), models.DefaultParameters().With(models.ParamModelOrder, 7), nil)
		assert.ErrorIs(t, err, solver.ErrUnsupportedModelOrder)
		repo.AssertNotCalled(t, "CreateResponse", mock.Anything, mock.Anything)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := &MockRunRepository{}
		repo.On("CreateResponse", mock.Anything, mock.Anything).Return(assert.AnError)
		svc := NewProcessingService(nil, repo, Options{Axis: testAxis(t)})

		_, err := svc.ComputeResponse(context.Background(), models.DefaultParameters(), nil)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestExportResponse(t *testing.T) {
	id := uuid.New()
	run := &models.ResponseRun{
		ID:       id.String(),
		Response: &models.FrequencyResponse{Total: models.Series{{Frequency: 1, Magnitude: 2}}},
	}
	key := "responses/" + id.String() + ".json"

	t.Run("uploads and records key", func(t *testing.T) {
		store := &MockCurveStore{}
		repo := &MockRunRepository{}
		store.On("PutCurve", mock.Anything, key, mock.MatchedBy(func(b []byte) bool {
			return len(b) > 0 && b[0] == '{'
		})).Return(nil)
		repo.On("SetExportKey", mock.Anything, id, key).Return(nil)

		svc := NewProcessingService(store, repo, Options{})
		got, err := svc.ExportResponse(context.Background(), run)
		require.NoError(t, err)
		assert.Equal(t, key, got)
		require.NotNil(t, run.ExportKey)
		assert.Equal(t, key, *run.ExportKey)
		store.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("storage failure", func(t *testing.T) {
		store := &MockCurveStore{}
		repo := &MockRunRepository{}
		store.On("PutCurve", mock.Anything, key, mock.Anything).Return(assert.AnError)

		svc := NewProcessingService(store, repo, Options{})
		_, err := svc.ExportResponse(context.Background(), run)
		assert.ErrorIs(t, err, assert.AnError)
		repo.AssertNotCalled(t, "SetExportKey", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no storage configured", func(t *testing.T) {
		svc := NewProcessingService(nil, &MockRunRepository{}, Options{})
		_, err := svc.ExportResponse(context.Background(), run)
		assert.Error(t, err)
	})
}

func TestProcessFit(t *testing.T) {
	id := uuid.New()
	newRun := func(targets map[string]float64) *models.FitRun {
		return &models.FitRun{
			ID:       id.String(),
			Status:   models.StatusPending,
			Targets:  targets,
			Baseline: models.DefaultParameters(),
		}
	}

	t.Run("completes", func(t *testing.T) {
		repo := &MockRunRepository{}
		repo.On("UpdateFitStatus", mock.Anything, id, models.StatusProcessing, mock.AnythingOfType("int")).Return(nil)
		repo.On("GetFit", mock.Anything, id).Return(newRun(map[string]float64{"top": 195}), nil)
		repo.On("StoreFitResult", mock.Anything, mock.MatchedBy(func(r *models.FitRun) bool {
			return r.FitError != nil && r.BaselineError != nil && *r.FitError < *r.BaselineError &&
				r.Parameters[models.ParamStiffnessTop] > 38000 && r.Evaluations > 2 && r.Response != nil
		})).Return(nil)
		repo.On("UpdateFitStatus", mock.Anything, id, models.StatusCompleted, 100).Return(nil)

		pm := metrics.NewPrometheusMetrics()
		svc := NewProcessingService(nil, repo, Options{Metrics: pm})
		err := svc.ProcessFit(context.Background(), id, FitSpec{MaxIter: 4})
		require.NoError(t, err)

		repo.AssertExpectations(t)
		assert.Contains(t, scrape(t, pm), `tonewood_fits_total{outcome="completed"} 1`)
	})

	t.Run("no usable target", func(t *testing.T) {
		repo := &MockRunRepository{}
		repo.On("UpdateFitStatus", mock.Anything, id, models.StatusProcessing, mock.AnythingOfType("int")).Return(nil)
		repo.On("GetFit", mock.Anything, id).Return(newRun(map[string]float64{"top": math.NaN()}), nil)
		repo.On("UpdateFitError", mock.Anything, id, mock.AnythingOfType("string")).Return(nil)

		svc := NewProcessingService(nil, repo, Options{})
		err := svc.ProcessFit(context.Background(), id, FitSpec{})
		assert.ErrorIs(t, err, ErrNoFitResult)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "StoreFitResult", mock.Anything, mock.Anything)
	})

	t.Run("missing run", func(t *testing.T) {
		repo := &MockRunRepository{}
		repo.On("UpdateFitStatus", mock.Anything, id, models.StatusProcessing, 10).Return(nil)
		repo.On("GetFit", mock.Anything, id).Return(nil, assert.AnError)

		pm := metrics.NewPrometheusMetrics()
		svc := NewProcessingService(nil, repo, Options{Metrics: pm})
		err := svc.ProcessFit(context.Background(), id, FitSpec{})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, scrape(t, pm), `tonewood_fits_total{outcome="failed"} 1`)
	})

	t.Run("clamp directive is honoured", func(t *testing.T) {
		repo := &MockRunRepository{}
		repo.On("UpdateFitStatus", mock.Anything, id, mock.Anything, mock.Anything).Return(nil)
		repo.On("GetFit", mock.Anything, id).Return(newRun(map[string]float64{"top": 220}), nil)
		repo.On("StoreFitResult", mock.Anything, mock.MatchedBy(func(r *models.FitRun) bool {
			return r.Parameters[models.ParamStiffnessTop] <= 38000
		})).Return(nil)

		svc := NewProcessingService(nil, repo, Options{})
		err := svc.ProcessFit(context.Background(), id, FitSpec{
			MaxIter: 2,
			Clamp:   map[string]string{models.ParamStiffnessTop: "ceiling"},
		})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func scrape(t *testing.T, pm *metrics.PrometheusMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func withoutOrder() models.PhysicalParameters {
	p := models.DefaultParameters()
	delete(p, models.ParamModelOrder)
	return p
}
