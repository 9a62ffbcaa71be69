// Package atmosphere derives air density and speed of sound from altitude and
// temperature and stamps them onto body parameters for the solver.
package atmosphere

import (
	"math"

	"github.com/RMahshie/tonewood/pkg/models"
)

// ISA troposphere constants.
const (
	SeaLevelPressure    = 101325.0 // Pa
	SeaLevelTemperature = 288.15   // K
	LapseRate           = 0.0065   // K/m
	GasConstant         = 287.05   // J/(kg·K), dry air
	HeatRatio           = 1.4
	Gravity             = 9.80665 // m/s²

	// TroposphereCeiling is the highest altitude the lapse model covers.
	TroposphereCeiling = 11000.0 // m
	kelvinOffset       = 273.15
)

// ReferenceDensity is the ISA sea-level air density in kg/m³.
var ReferenceDensity = SeaLevelPressure / (GasConstant * SeaLevelTemperature)

// Conditions is the air state at one altitude and temperature.
type Conditions struct {
	Rho      float64 `json:"rho" doc:"Air density in kg/m³"`
	C        float64 `json:"c" doc:"Speed of sound in m/s"`
	Pressure float64 `json:"pressure" doc:"Static pressure in Pa"`
	TempK    float64 `json:"temp_k" doc:"Air temperature in K"`
}

// Derive returns the conditions at altitudeMeters. Pressure follows the ISA
// lapse model; temperatureC overrides the ISA temperature when finite.
// Altitudes are clamped to [0, TroposphereCeiling].
func Derive(altitudeMeters, temperatureC float64) Conditions {
	h := altitudeMeters
	if math.IsNaN(h) || h < 0 {
		h = 0
	}
	h = math.Min(h, TroposphereCeiling)

	isaTemp := SeaLevelTemperature - LapseRate*h
	pressure := SeaLevelPressure * math.Pow(isaTemp/SeaLevelTemperature, Gravity/(GasConstant*LapseRate))

	temp := isaTemp
	if !math.IsNaN(temperatureC) && !math.IsInf(temperatureC, 0) {
		temp = temperatureC + kelvinOffset
	}

	return Conditions{
		Rho:      pressure / (GasConstant * temp),
		C:        math.Sqrt(HeatRatio * GasConstant * temp),
		Pressure: pressure,
		TempK:    temp,
	}
}

// Apply returns a copy of p with air_density and speed_of_sound set.
func (c Conditions) Apply(p models.PhysicalParameters) models.PhysicalParameters {
	out := p.Clone()
	out[models.ParamAirDensity] = c.Rho
	out[models.ParamSpeedOfSound] = c.C
	return out
}
