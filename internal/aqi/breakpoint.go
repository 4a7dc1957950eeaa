package aqi

import "errors"

// Breakpoint is one linear segment of an AQI curve.
type Breakpoint struct {
	ConcLow   float64 `json:"concentration_low"`
	ConcHigh  float64 `json:"concentration_high"`
	IndexLow  int     `json:"index_low"`
	IndexHigh int     `json:"index_high"`
}

func (b Breakpoint) validate() error {
	if b.ConcHigh <= b.ConcLow {
		return errors.New("concentration range is empty")
	}
	if b.IndexHigh <= b.IndexLow {
		return errors.New("index range is empty")
	}
	if b.IndexLow < 0 {
		return errors.New("negative index")
	}
	return nil
}

func (b Breakpoint) interpolate(c float64) float64 {
	slope := float64(b.IndexHigh-b.IndexLow) / (b.ConcHigh - b.ConcLow)
	return float64(b.IndexLow) + slope*(c-b.ConcLow)
}
