package models

// FrequencyPoint represents a single frequency measurement
type FrequencyPoint struct {
	Frequency float64 `json:"frequency" doc:"Frequency in Hz"`
	Magnitude float64 `json:"magnitude" doc:"Magnitude in dB"`
}

// Series is an ordered frequency response for one channel
type Series []FrequencyPoint

// Channel names used in a FrequencyResponse
const (
	ChannelTotal   = "total"
	ChannelTop     = "top"
	ChannelBack    = "back"
	ChannelAir     = "air"
	ChannelSides   = "sides"
	ChannelDipole  = "dipole"
	ChannelTripole = "tripole"
)

// FrequencyResponse holds the radiated pressure level of the whole body and of
// each contributing degree of freedom
type FrequencyResponse struct {
	Total   Series `json:"total" doc:"Summed radiated pressure in dB"`
	Top     Series `json:"top" doc:"Top plate contribution in dB"`
	Back    Series `json:"back" doc:"Back plate contribution in dB"`
	Air     Series `json:"air" doc:"Sound hole contribution in dB"`
	Sides   Series `json:"sides" doc:"Sides contribution in dB"`
	Dipole  Series `json:"dipole,omitempty" doc:"Dipole mode contribution in dB (model order 5 and 6)"`
	Tripole Series `json:"tripole,omitempty" doc:"Tripole mode contribution in dB (model order 6)"`
}

// Channel returns the series with the given name, or nil if it is not present.
func (r *FrequencyResponse) Channel(name string) Series {
	if r == nil {
		return nil
	}
	switch name {
	case ChannelTotal:
		return r.Total
	case ChannelTop:
		return r.Top
	case ChannelBack:
		return r.Back
	case ChannelAir:
		return r.Air
	case ChannelSides:
		return r.Sides
	case ChannelDipole:
		return r.Dipole
	case ChannelTripole:
		return r.Tripole
	}
	return nil
}

// SetChannel stores s under the given channel name. Unknown names are ignored.
func (r *FrequencyResponse) SetChannel(name string, s Series) {
	switch name {
	case ChannelTotal:
		r.Total = s
	case ChannelTop:
		r.Top = s
	case ChannelBack:
		r.Back = s
	case ChannelAir:
		r.Air = s
	case ChannelSides:
		r.Sides = s
	case ChannelDipole:
		r.Dipole = s
	case ChannelTripole:
		r.Tripole = s
	}
}

// Magnitudes returns the dB values of the series.
func (s Series) Magnitudes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Magnitude
	}
	return out
}
