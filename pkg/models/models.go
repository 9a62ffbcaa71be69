package models

import (
	"time"
)

// Fit run statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// Atmosphere carries the optional altitude/temperature inputs that are turned
// into air density and speed of sound before solving
type Atmosphere struct {
	AltitudeM    *float64 `json:"altitude_m,omitempty" minimum:"0" maximum:"11000" doc:"Altitude above sea level in meters"`
	TemperatureC *float64 `json:"temperature_c,omitempty" minimum:"-60" maximum:"60" doc:"Air temperature in °C"`
}

// Sweep describes a custom frequency axis
type Sweep struct {
	Start float64 `json:"start" minimum:"0" doc:"First frequency in Hz"`
	End   float64 `json:"end" exclusiveMinimum:"0" doc:"Last frequency in Hz (inclusive)"`
	Step  float64 `json:"step" exclusiveMinimum:"0" doc:"Frequency step in Hz"`
}

// GetDefaultParametersResponse returns the reference body
type GetDefaultParametersResponse struct {
	Body struct {
		Parameters PhysicalParameters `json:"parameters" doc:"Reference body parameters; masses of top, back, sides and air in grams"`
	}
}

// CreateResponseRequest represents a request to compute a frequency response
type CreateResponseRequest struct {
	Body struct {
		Parameters PhysicalParameters `json:"parameters,omitempty" doc:"Body parameters merged over the defaults"`
		ModelOrder *int               `json:"model_order,omitempty" minimum:"1" maximum:"6" doc:"Number of oscillators (1-6)"`
		Sweep      *Sweep             `json:"sweep,omitempty" doc:"Custom frequency axis, default 0-500 Hz at 0.1 Hz"`
		Export     bool               `json:"export,omitempty" doc:"Export the curve to object storage"`
		Atmosphere
	}
}

// CreateResponseResponse returns the stored run
type CreateResponseResponse struct {
	Body *ResponseRun
}

// GetResponseRequest identifies a stored response run
type GetResponseRequest struct {
	ID string `path:"id" doc:"Response run ID"`
}

// GetResponseResponse returns a stored response run
type GetResponseResponse struct {
	Body *ResponseRun
}

// ExportResponseRequest identifies the run whose curve should be exported
type ExportResponseRequest struct {
	ID string `path:"id" doc:"Response run ID"`
}

// ExportResponseResponse carries a download URL for the exported curve
type ExportResponseResponse struct {
	Body struct {
		Key         string `json:"key" doc:"Object key of the exported curve"`
		DownloadURL string `json:"download_url" doc:"Pre-signed download URL"`
		ExpiresIn   int    `json:"expires_in" doc:"URL expiration time in seconds"`
	}
}

// FitTargets are the desired peak frequencies; omitted modes are not fitted
type FitTargets struct {
	Air  *float64 `json:"air,omitempty" exclusiveMinimum:"0" doc:"Desired air resonance in Hz"`
	Top  *float64 `json:"top,omitempty" exclusiveMinimum:"0" doc:"Desired top resonance in Hz"`
	Back *float64 `json:"back,omitempty" exclusiveMinimum:"0" doc:"Desired back resonance in Hz"`
}

// Map returns the supplied targets keyed by mode name.
func (t FitTargets) Map() map[string]float64 {
	out := make(map[string]float64, 3)
	if t.Air != nil {
		out[ChannelAir] = *t.Air
	}
	if t.Top != nil {
		out[ChannelTop] = *t.Top
	}
	if t.Back != nil {
		out[ChannelBack] = *t.Back
	}
	return out
}

// CreateFitRequest represents a request to start a parameter fit
type CreateFitRequest struct {
	Body struct {
		Targets  FitTargets         `json:"targets" required:"true" doc:"Desired peak frequencies"`
		Baseline PhysicalParameters `json:"baseline,omitempty" doc:"Starting parameters merged over the defaults"`
		MaxIter  int                `json:"max_iter,omitempty" minimum:"0" maximum:"100" doc:"Coordinate descent rounds, 0 for the default"`
		TweakIDs []string           `json:"tweak_ids,omitempty" doc:"Parameters the fit may move"`
		Clamp    map[string]string  `json:"clamp,omitempty" doc:"Per-parameter floor or ceiling at the baseline value"`
		Atmosphere
	}
}

// CreateFitResponse returns the ID of the queued fit
type CreateFitResponse struct {
	Body struct {
		ID     string `json:"id" doc:"Fit run ID"`
		Status string `json:"status" enum:"pending,processing,completed,failed" doc:"Fit status"`
	}
}

// GetFitRequest identifies a fit run
type GetFitRequest struct {
	ID string `path:"id" doc:"Fit run ID"`
}

// GetFitResponse reports the status and, once complete, the result of a fit
type GetFitResponse struct {
	Body struct {
		Message string  `json:"message" doc:"Human-readable status message"`
		Run     *FitRun `json:"run" doc:"Fit run"`
	}
}

// ResponseRun is one stored response computation (for internal use and API output)
type ResponseRun struct {
	ID         string             `json:"id" doc:"Response run ID"`
	Parameters PhysicalParameters `json:"parameters" doc:"Parameters the response was computed from"`
	ModelOrder int                `json:"model_order" doc:"Requested model order"`
	Strategy   string             `json:"strategy" doc:"Solver that produced the response"`
	Fallback   bool               `json:"fallback" doc:"Whether the secondary solver answered"`
	Response   *FrequencyResponse `json:"response" doc:"Frequency response per channel"`
	ExportKey  *string            `json:"export_key,omitempty" doc:"Object key of the exported curve"`
	CreatedAt  time.Time          `json:"created_at" doc:"Creation timestamp"`
}

// FitRun is the fit lifecycle entity
type FitRun struct {
	ID            string             `json:"id" doc:"Fit run ID"`
	Status        string             `json:"status" enum:"pending,processing,completed,failed" doc:"Fit status"`
	Progress      int                `json:"progress" minimum:"0" maximum:"100" doc:"Fit progress percentage"`
	Targets       map[string]float64 `json:"targets" doc:"Desired peak frequencies by mode"`
	Baseline      PhysicalParameters `json:"baseline" doc:"Starting parameters"`
	Parameters    PhysicalParameters `json:"parameters,omitempty" doc:"Best parameters found"`
	Peaks         map[string]float64 `json:"peaks,omitempty" doc:"Achieved peak frequencies by mode"`
	FitError      *float64           `json:"fit_error,omitempty" doc:"Sum of squared peak errors in Hz²"`
	BaselineError *float64           `json:"baseline_error,omitempty" doc:"Squared error of the baseline"`
	Evaluations   int                `json:"evaluations,omitempty" doc:"Solver evaluations spent"`
	Response      *FrequencyResponse `json:"response,omitempty" doc:"Response of the best parameters"`
	ErrorMsg      *string            `json:"error_message,omitempty" doc:"Failure reason"`
	CreatedAt     time.Time          `json:"created_at" doc:"Creation timestamp"`
	UpdatedAt     time.Time          `json:"updated_at" doc:"Last update timestamp"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty" doc:"Completion timestamp"`
}
