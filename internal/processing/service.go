package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RMahshie/tonewood/internal/atmosphere"
	"github.com/RMahshie/tonewood/internal/fitter"
	"github.com/RMahshie/tonewood/internal/metrics"
	"github.com/RMahshie/tonewood/internal/repository"
	"github.com/RMahshie/tonewood/internal/solver"
	"github.com/RMahshie/tonewood/internal/storage"
	"github.com/RMahshie/tonewood/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNoFitResult is recorded when the fitter cannot establish a finite baseline
var ErrNoFitResult = errors.New("fit produced no result")

// FitSpec carries the per-request fitter options that are not persisted
type FitSpec struct {
	MaxIter  int
	TweakIDs []string
	Clamp    map[string]string
}

type ProcessingService interface {
	ComputeResponse(ctx context.Context, params models.PhysicalParameters, axis []float64) (*models.ResponseRun, error)
	ExportResponse(ctx context.Context, run *models.ResponseRun) (string, error)
	ProcessFit(ctx context.Context, fitID uuid.UUID, spec FitSpec) error
}

// Options configure the processing service
type Options struct {
	Axis    []float64
	Fit     fitter.Options
	Metrics *metrics.PrometheusMetrics
}

type processingService struct {
	store      storage.CurveStore
	repository repository.RunRepository
	opts       Options
}

func NewProcessingService(store storage.CurveStore, repo repository.RunRepository, opts Options) ProcessingService {
	if len(opts.Axis) == 0 {
		opts.Axis = solver.DefaultAxis()
	}
	return &processingService{
		store:      store,
		repository: repo,
		opts:       opts,
	}
}

// ResolveParameters merges caller overrides over base, applies an explicit
// model order and stamps the atmosphere when altitude or temperature is given.
func ResolveParameters(base, overrides models.PhysicalParameters, order *int, atm models.Atmosphere) models.PhysicalParameters {
	p := base.Merge(overrides)
	if order != nil {
		p[models.ParamModelOrder] = float64(*order)
	}
	if atm.AltitudeM == nil && atm.TemperatureC == nil {
		return p
	}
	alt, temp := 0.0, math.NaN()
	if atm.AltitudeM != nil {
		alt = *atm.AltitudeM
	}
	if atm.TemperatureC != nil {
		temp = *atm.TemperatureC
	}
	return atmosphere.Derive(alt, temp).Apply(p)
}

// SafeCompute runs primary and, if it fails, secondary. Both failures are
// logged; the strategy that answered is returned with the response, and the
// joined errors only when neither could.
func SafeCompute(primary, secondary solver.Strategy, params models.PhysicalParameters, axis []float64) (*models.FrequencyResponse, solver.Strategy, error) {
	resp, used, _, err := safeCompute(nil, primary, secondary, params, axis)
	return resp, used, err
}

func safeCompute(m *metrics.PrometheusMetrics, primary, secondary solver.Strategy, params models.PhysicalParameters, axis []float64) (*models.FrequencyResponse, solver.Strategy, bool, error) {
	var errs []error
	for i, s := range []solver.Strategy{primary, secondary} {
		if s == nil {
			continue
		}
		// a secondary identical to the failed primary would fail the same way
		if i > 0 && primary != nil && s.Name() == primary.Name() {
			continue
		}
		start := time.Now()
		resp, err := solver.ComputeWithStrategy(s, params, axis)
		m.RecordSolve(s.Name(), time.Since(start), err)
		if err == nil {
			if i > 0 {
				m.RecordFallback()
			}
			return resp, s, i > 0, nil
		}
		if errors.Is(err, solver.ErrSingularSystem) {
			m.RecordSingular()
		}
		log.Warn().Err(err).Str("strategy", s.Name()).Bool("fallback", i > 0).Msg("Response solve failed")
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return nil, nil, false, errors.New("no solver strategy supplied")
	}
	return nil, nil, false, errors.Join(errs...)
}

// ComputeResponse solves params with the strategy for its model order,
// falling back to the legacy 4-DOF closed form, and stores the run.
func (s *processingService) ComputeResponse(ctx context.Context, params models.PhysicalParameters, axis []float64) (*models.ResponseRun, error) {
	if len(axis) == 0 {
		axis = s.opts.Axis
	}

	body, err := solver.NewBody(params)
	if err != nil {
		return nil, err
	}
	primary, err := solver.StrategyFor(body.Order)
	if err != nil {
		return nil, err
	}

	resp, used, fallback, err := safeCompute(s.opts.Metrics, primary, solver.LegacyStrategy(), params, axis)
	if err != nil {
		return nil, err
	}

	run := &models.ResponseRun{
		ID:         uuid.New().String(),
		Parameters: params,
		ModelOrder: int(primary.Order()),
		Strategy:   used.Name(),
		Fallback:   fallback,
		Response:   resp,
		CreatedAt:  time.Now(),
	}
	if err := s.repository.CreateResponse(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to store response run: %w", err)
	}

	log.Info().Str("runID", run.ID).Str("strategy", run.Strategy).Bool("fallback", run.Fallback).Int("points", len(axis)).Msg("Response computed")
	return run, nil
}

// ExportResponse writes the run's curve to object storage and records its key
func (s *processingService) ExportResponse(ctx context.Context, run *models.ResponseRun) (string, error) {
	if s.store == nil {
		return "", errors.New("curve storage is not configured")
	}
	runID, err := uuid.Parse(run.ID)
	if err != nil {
		return "", fmt.Errorf("invalid run ID: %w", err)
	}

	body, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("failed to encode curve: %w", err)
	}

	key := storage.CurveKey(run.ID)
	if err := s.store.PutCurve(ctx, key, body); err != nil {
		return "", err
	}
	if err := s.repository.SetExportKey(ctx, runID, key); err != nil {
		return "", fmt.Errorf("failed to record export: %w", err)
	}
	run.ExportKey = &key

	log.Info().Str("runID", run.ID).Str("key", key).Int("bytes", len(body)).Msg("Curve exported")
	return key, nil
}

// ProcessFit runs the fitter for a stored fit run and records the outcome
func (s *processingService) ProcessFit(ctx context.Context, fitID uuid.UUID, spec FitSpec) (err error) {
	start := time.Now()
	defer func() {
		if err != nil && !errors.Is(err, ErrNoFitResult) {
			s.opts.Metrics.RecordFit(metrics.FitFailed, 0, time.Since(start))
		}
	}()

	// Step 1: Update to processing status
	if err := s.repository.UpdateFitStatus(ctx, fitID, models.StatusProcessing, 10); err != nil {
		return err
	}

	// Step 2: Load targets and baseline
	run, err := s.repository.GetFit(ctx, fitID)
	if err != nil {
		return err
	}

	target := fitter.Target{}
	for mode, f := range run.Targets {
		target[fitter.Mode(mode)] = f
	}

	opts := s.opts.Fit
	if spec.MaxIter > 0 {
		opts.MaxIter = spec.MaxIter
	}
	if len(spec.TweakIDs) > 0 {
		opts.TweakIDs = spec.TweakIDs
	}
	if len(spec.Clamp) > 0 {
		opts.Clamp = make(map[string]fitter.ClampDirective, len(spec.Clamp))
		for id, d := range spec.Clamp {
			opts.Clamp[id] = fitter.ClampDirective(d)
		}
	}
	if len(opts.Axis) == 0 {
		opts.Axis = s.opts.Axis
	}

	if err := s.repository.UpdateFitStatus(ctx, fitID, models.StatusProcessing, 20); err != nil {
		return err
	}

	// Step 3: Fit
	log.Info().Str("fitID", run.ID).Int("targets", len(target)).Int("maxIter", opts.MaxIter).Msg("Starting fit")
	result := fitter.Fit(target, run.Baseline, opts)
	if result == nil {
		s.opts.Metrics.RecordFit(metrics.FitNoResult, 0, time.Since(start))
		if err := s.repository.UpdateFitError(ctx, fitID, "No usable targets or the baseline could not be evaluated"); err != nil {
			return err
		}
		return ErrNoFitResult
	}

	// Step 4: Store results
	if err := s.repository.UpdateFitStatus(ctx, fitID, models.StatusProcessing, 90); err != nil {
		return err
	}

	fitErr, baseErr := result.Error, result.BaselineError
	run.Parameters = result.RawParameters
	run.Peaks = finitePeaks(result.Peaks)
	run.FitError = &fitErr
	run.BaselineError = &baseErr
	run.Evaluations = result.Evaluations
	run.Response = result.Response
	if err := s.repository.StoreFitResult(ctx, run); err != nil {
		return err
	}

	// Step 5: Mark complete
	if err := s.repository.UpdateFitStatus(ctx, fitID, models.StatusCompleted, 100); err != nil {
		return err
	}

	s.opts.Metrics.RecordFit(metrics.FitCompleted, result.Evaluations, time.Since(start))
	log.Info().
		Str("fitID", run.ID).
		Float64("error", result.Error).
		Float64("baselineError", result.BaselineError).
		Int("evaluations", result.Evaluations).
		Dur("elapsed", time.Since(start)).
		Msg("Fit completed")
	return nil
}

// finitePeaks keeps the detected peaks that can be encoded as JSON numbers
func finitePeaks(peaks map[fitter.Mode]float64) map[string]float64 {
	out := make(map[string]float64, len(peaks))
	for mode, f := range peaks {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out[string(mode)] = f
	}
	return out
}
