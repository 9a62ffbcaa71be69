package api

import (
	"net/http"

	"github.com/RMahshie/tonewood/internal/api/handlers"
	"github.com/RMahshie/tonewood/internal/processing"
	"github.com/RMahshie/tonewood/internal/repository"
	"github.com/RMahshie/tonewood/internal/storage"
	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, repo repository.RunRepository, store storage.CurveStore, processingSvc processing.ProcessingService, opts handlers.ResponseOptions) {
	// Initialize handlers
	responseHandler := handlers.NewResponseHandler(repo, store, processingSvc, opts)
	fitHandler := handlers.NewFitHandler(repo, processingSvc)

	huma.Register(api, huma.Operation{
		OperationID: "getDefaultParameters",
		Method:      http.MethodGet,
		Path:        "/api/parameters/default",
		Summary:     "Get default parameters",
		Description: "Returns the reference guitar body; masses in grams, everything else SI",
		Tags:        []string{"Parameters"},
	}, responseHandler.GetDefaultParameters)

	// Register response routes
	huma.Register(api, huma.Operation{
		OperationID: "createResponse",
		Method:      http.MethodPost,
		Path:        "/api/responses",
		Summary:     "Compute a frequency response",
		Description: "Solves the coupled-oscillator model for the given body and stores the run",
		Tags:        []string{"Responses"},
	}, responseHandler.CreateResponse)

	huma.Register(api, huma.Operation{
		OperationID: "getResponse",
		Method:      http.MethodGet,
		Path:        "/api/responses/{id}",
		Summary:     "Get a response run",
		Description: "Returns a stored frequency response with the parameters it was computed from",
		Tags:        []string{"Responses"},
	}, responseHandler.GetResponse)

	huma.Register(api, huma.Operation{
		OperationID: "exportResponse",
		Method:      http.MethodGet,
		Path:        "/api/responses/{id}/export",
		Summary:     "Export a response curve",
		Description: "Exports the curve to object storage if needed and returns a pre-signed download URL",
		Tags:        []string{"Responses"},
	}, responseHandler.ExportResponse)

	// Register fit routes
	huma.Register(api, huma.Operation{
		OperationID: "createFit",
		Method:      http.MethodPost,
		Path:        "/api/fits",
		Summary:     "Start a parameter fit",
		Description: "Queues a fit that moves body parameters until the peaks approach the targets",
		Tags:        []string{"Fits"},
	}, fitHandler.CreateFit)

	huma.Register(api, huma.Operation{
		OperationID: "getFit",
		Method:      http.MethodGet,
		Path:        "/api/fits/{id}",
		Summary:     "Get fit status",
		Description: "Returns the progress of a fit and, once complete, the fitted parameters and peaks",
		Tags:        []string{"Fits"},
	}, fitHandler.GetFit)
}
