package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RMahshie/tonewood/internal/fitter"
	"github.com/RMahshie/tonewood/internal/processing"
	"github.com/RMahshie/tonewood/internal/repository"
	"github.com/RMahshie/tonewood/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FitHandler handles fit-related HTTP requests
type FitHandler struct {
	repo          repository.FitRepository
	processingSvc processing.ProcessingService
}

// NewFitHandler creates a new fit handler
func NewFitHandler(repo repository.FitRepository, processingSvc processing.ProcessingService) *FitHandler {
	return &FitHandler{
		repo:          repo,
		processingSvc: processingSvc,
	}
}

// CreateFit stores a pending fit and starts it in the background
func (h *FitHandler) CreateFit(ctx context.Context, req *models.CreateFitRequest) (*models.CreateFitResponse, error) {
	targets := req.Body.Targets.Map()
	if len(targets) == 0 {
		return nil, huma.Error400BadRequest("At least one target frequency is required")
	}
	for id, d := range req.Body.Clamp {
		switch fitter.ClampDirective(d) {
		case fitter.ClampFloor, fitter.ClampCeiling:
		default:
			return nil, huma.Error400BadRequest(fmt.Sprintf("Clamp for %s must be floor or ceiling, got %q", id, d))
		}
	}

	fitID := uuid.New()
	now := time.Now()
	run := &models.FitRun{
		ID:        fitID.String(),
		Status:    models.StatusPending,
		Progress:  0,
		Targets:   targets,
		Baseline:  processing.ResolveParameters(models.DefaultParameters(), req.Body.Baseline, nil, req.Body.Atmosphere),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.CreateFit(ctx, run); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create fit", err)
	}

	spec := processing.FitSpec{
		MaxIter:  req.Body.MaxIter,
		TweakIDs: req.Body.TweakIDs,
		Clamp:    req.Body.Clamp,
	}

	// Run in background (don't wait for completion)
	log.Info().Str("fitID", run.ID).Int("targets", len(targets)).Msg("Starting background fit")
	go func() {
		err := h.processingSvc.ProcessFit(context.Background(), fitID, spec)
		if err != nil && !errors.Is(err, processing.ErrNoFitResult) {
			if uerr := h.repo.UpdateFitError(context.Background(), fitID, fmt.Sprintf("Fit failed: %v", err)); uerr != nil {
				log.Error().Err(uerr).Str("fitID", fitID.String()).Msg("Failed to record fit error")
			}
		}
	}()

	resp := &models.CreateFitResponse{}
	resp.Body.ID = run.ID
	resp.Body.Status = run.Status
	return resp, nil
}

// GetFit returns the status of a fit and its result once complete
func (h *FitHandler) GetFit(ctx context.Context, req *models.GetFitRequest) (*models.GetFitResponse, error) {
	fitID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid fit ID", err)
	}

	run, err := h.repo.GetFit(ctx, fitID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, huma.Error404NotFound("Fit not found", err)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load fit", err)
	}

	resp := &models.GetFitResponse{}
	resp.Body.Message = statusMessage(run.Status, run.Progress)
	resp.Body.Run = run
	return resp, nil
}

// statusMessage creates a human-readable status message
func statusMessage(status string, progress int) string {
	switch status {
	case models.StatusPending:
		return "Fit queued..."
	case models.StatusProcessing:
		if progress < 20 {
			return "Loading baseline..."
		} else if progress < 90 {
			return "Searching parameters..."
		}
		return "Storing results..."
	case models.StatusCompleted:
		return "Fit complete!"
	case models.StatusFailed:
		return "Fit failed."
	default:
		return "Unknown status"
	}
}
