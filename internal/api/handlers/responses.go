package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RMahshie/tonewood/internal/processing"
	"github.com/RMahshie/tonewood/internal/repository"
	"github.com/RMahshie/tonewood/internal/solver"
	"github.com/RMahshie/tonewood/internal/storage"
	"github.com/RMahshie/tonewood/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ResponseOptions bound what a single request may ask the solver for
type ResponseOptions struct {
	MaxPoints int
	URLExpiry time.Duration
}

// ResponseHandler handles response-run HTTP requests
type ResponseHandler struct {
	repo          repository.ResponseRepository
	store         storage.CurveStore
	processingSvc processing.ProcessingService
	opts          ResponseOptions
}

// NewResponseHandler creates a new response handler
func NewResponseHandler(repo repository.ResponseRepository, store storage.CurveStore, processingSvc processing.ProcessingService, opts ResponseOptions) *ResponseHandler {
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = 24 * time.Hour
	}
	return &ResponseHandler{
		repo:          repo,
		store:         store,
		processingSvc: processingSvc,
		opts:          opts,
	}
}

// GetDefaultParameters returns the reference body
func (h *ResponseHandler) GetDefaultParameters(ctx context.Context, _ *struct{}) (*models.GetDefaultParametersResponse, error) {
	resp := &models.GetDefaultParametersResponse{}
	resp.Body.Parameters = models.DefaultParameters()
	return resp, nil
}

// CreateResponse computes and stores a frequency response
func (h *ResponseHandler) CreateResponse(ctx context.Context, req *models.CreateResponseRequest) (*models.CreateResponseResponse, error) {
	axis, err := h.axis(req.Body.Sweep)
	if err != nil {
		return nil, err
	}

	params := processing.ResolveParameters(models.DefaultParameters(), req.Body.Parameters, req.Body.ModelOrder, req.Body.Atmosphere)
	log.Info().Int("overrides", len(req.Body.Parameters)).Int("points", len(axis)).Bool("export", req.Body.Export).Msg("Computing response")

	run, err := h.processingSvc.ComputeResponse(ctx, params, axis)
	if err != nil {
		switch {
		case errors.Is(err, solver.ErrUnsupportedModelOrder), errors.Is(err, solver.ErrUnknownDOF):
			return nil, huma.Error400BadRequest("Unsupported body configuration", err)
		case errors.Is(err, solver.ErrSingularSystem):
			return nil, huma.Error422UnprocessableEntity("Body parameters produce a singular system", err)
		}
		return nil, huma.Error500InternalServerError("Failed to compute response", err)
	}

	if req.Body.Export {
		// The run is already stored; a failed export can be retried through the export endpoint
		if _, err := h.processingSvc.ExportResponse(ctx, run); err != nil {
			log.Warn().Err(err).Str("runID", run.ID).Msg("Curve export failed")
		}
	}

	return &models.CreateResponseResponse{Body: run}, nil
}

// GetResponse returns a stored response run
func (h *ResponseHandler) GetResponse(ctx context.Context, req *models.GetResponseRequest) (*models.GetResponseResponse, error) {
	run, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &models.GetResponseResponse{Body: run}, nil
}

// ExportResponse returns a download URL for the run's curve, exporting it first if needed
func (h *ResponseHandler) ExportResponse(ctx context.Context, req *models.ExportResponseRequest) (*models.ExportResponseResponse, error) {
	if h.store == nil {
		return nil, huma.Error503ServiceUnavailable("Curve storage is not configured")
	}

	run, err := h.lookup(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	key := ""
	if run.ExportKey != nil {
		key = *run.ExportKey
	} else {
		log.Info().Str("runID", run.ID).Msg("Exporting curve on demand")
		if key, err = h.processingSvc.ExportResponse(ctx, run); err != nil {
			return nil, huma.Error500InternalServerError("Failed to export curve", err)
		}
	}

	url, err := h.store.GenerateDownloadURL(ctx, key)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to generate download URL", err)
	}

	resp := &models.ExportResponseResponse{}
	resp.Body.Key = key
	resp.Body.DownloadURL = url
	resp.Body.ExpiresIn = int(h.opts.URLExpiry.Seconds())
	return resp, nil
}

func (h *ResponseHandler) lookup(ctx context.Context, id string) (*models.ResponseRun, error) {
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid response ID", err)
	}
	run, err := h.repo.GetResponse(ctx, runID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, huma.Error404NotFound("Response not found", err)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load response", err)
	}
	return run, nil
}

// axis returns nil for the service default, or the requested sweep if it fits the point limit
func (h *ResponseHandler) axis(sweep *models.Sweep) ([]float64, error) {
	if sweep == nil {
		return nil, nil
	}
	if h.opts.MaxPoints > 0 && sweep.Step > 0 && (sweep.End-sweep.Start)/sweep.Step+1 > float64(h.opts.MaxPoints) {
		return nil, huma.Error400BadRequest(fmt.Sprintf("Sweep exceeds %d points", h.opts.MaxPoints))
	}
	axis, err := solver.FrequencyAxis(sweep.Start, sweep.End, sweep.Step)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid sweep", err)
	}
	return axis, nil
}
