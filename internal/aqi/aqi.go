package aqi

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned for negative, NaN or infinite concentrations.
var ErrInvalidInput = errors.New("invalid concentration")

// Pollutant identifies the measured species a converter applies to.
type Pollutant string

const (
	PM25 Pollutant = "pm25"
	PM10 Pollutant = "pm10"
)

// MaxIndex is the ceiling for extrapolated indices. Concentrations far above
// the table saturate here instead of overflowing int.
const MaxIndex = math.MaxInt32

// epsilon absorbs binary representation error when truncating and comparing
// decimal concentrations such as 35.4.
const epsilon = 1e-9

// Result is the AQI of a single concentration.
type Result struct {
	Pollutant     Pollutant `json:"pollutant"`
	Concentration float64   `json:"concentration"` // truncated to table precision
	Index         int       `json:"index"`
	Category      Category  `json:"category"`
}

// Color returns the display color of the result's category.
func (r Result) Color() Color {
	return r.Category.Color()
}

// Converter holds one pollutant's breakpoint table. It is immutable and safe
// for concurrent use.
type Converter struct {
	pollutant   Pollutant
	scale       float64
	breakpoints []Breakpoint
}

// NewConverter validates a breakpoint table and returns a converter for it.
// decimals is the number of decimal places concentrations are truncated to;
// adjacent segments must be separated by exactly one step at that precision.
func NewConverter(p Pollutant, decimals int, breakpoints ...Breakpoint) (*Converter, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("%s table: negative precision %d", p, decimals)
	}
	if len(breakpoints) == 0 {
		return nil, fmt.Errorf("%s table: no breakpoints", p)
	}
	scale := math.Pow10(decimals)
	step := 1 / scale

	if breakpoints[0].ConcLow != 0 {
		return nil, fmt.Errorf("%s table: first segment starts at %g, want 0", p, breakpoints[0].ConcLow)
	}
	for i, bp := range breakpoints {
		if err := bp.validate(); err != nil {
			return nil, fmt.Errorf("%s table: segment %d: %w", p, i, err)
		}
		if i == 0 {
			continue
		}
		prev := breakpoints[i-1]
		if math.Abs(bp.ConcLow-(prev.ConcHigh+step)) > epsilon {
			return nil, fmt.Errorf("%s table: segment %d starts at %g, want %g", p, i, bp.ConcLow, prev.ConcHigh+step)
		}
		if bp.IndexLow != prev.IndexHigh+1 {
			return nil, fmt.Errorf("%s table: segment %d index starts at %d, want %d", p, i, bp.IndexLow, prev.IndexHigh+1)
		}
	}

	bps := make([]Breakpoint, len(breakpoints))
	copy(bps, breakpoints)
	return &Converter{pollutant: p, scale: scale, breakpoints: bps}, nil
}

func mustConverter(p Pollutant, decimals int, breakpoints ...Breakpoint) *Converter {
	c, err := NewConverter(p, decimals, breakpoints...)
	if err != nil {
		panic(err)
	}
	return c
}

// Pollutant returns the pollutant the table applies to.
func (c *Converter) Pollutant() Pollutant { return c.pollutant }

// Breakpoints returns a copy of the table in ascending order.
func (c *Converter) Breakpoints() []Breakpoint {
	out := make([]Breakpoint, len(c.breakpoints))
	copy(out, c.breakpoints)
	return out
}

// Convert computes the AQI of a concentration.
func (c *Converter) Convert(concentration float64) (Result, error) {
	if math.IsNaN(concentration) || math.IsInf(concentration, 0) || concentration < 0 {
		return Result{}, fmt.Errorf("%w: %s %v", ErrInvalidInput, c.pollutant, concentration)
	}

	truncated := c.truncate(concentration)
	index := roundIndex(c.segment(truncated).interpolate(truncated))

	return Result{
		Pollutant:     c.pollutant,
		Concentration: truncated,
		Index:         index,
		Category:      Categorize(index),
	}, nil
}

// ConvertOptional converts a possibly absent concentration. A nil value is
// converted as 0.
func (c *Converter) ConvertOptional(concentration *float64) (Result, error) {
	if concentration == nil {
		return c.Convert(0)
	}
	return c.Convert(*concentration)
}

func (c *Converter) truncate(v float64) float64 {
	// Above 2^52 a float64 has no fractional digits left to drop, and scaling
	// could overflow to +Inf.
	if v >= 1<<52 {
		return v
	}
	return math.Floor(v*c.scale+epsilon) / c.scale
}

func roundIndex(v float64) int {
	r := math.Round(v)
	if r >= MaxIndex {
		return MaxIndex
	}
	return int(r)
}

// segment returns the breakpoint containing v, or the last one when v lies
// above the table.
func (c *Converter) segment(v float64) Breakpoint {
	for _, bp := range c.breakpoints {
		if v <= bp.ConcHigh+epsilon {
			return bp
		}
	}
	return c.breakpoints[len(c.breakpoints)-1]
}

var (
	pm25Converter = mustConverter(PM25, 1,
		Breakpoint{ConcLow: 0.0, ConcHigh: 12.0, IndexLow: 0, IndexHigh: 50},
		Breakpoint{ConcLow: 12.1, ConcHigh: 35.4, IndexLow: 51, IndexHigh: 100},
		Breakpoint{ConcLow: 35.5, ConcHigh: 55.4, IndexLow: 101, IndexHigh: 150},
		Breakpoint{ConcLow: 55.5, ConcHigh: 150.4, IndexLow: 151, IndexHigh: 200},
		Breakpoint{ConcLow: 150.5, ConcHigh: 250.4, IndexLow: 201, IndexHigh: 300},
		Breakpoint{ConcLow: 250.5, ConcHigh: 350.4, IndexLow: 301, IndexHigh: 400},
		Breakpoint{ConcLow: 350.5, ConcHigh: 500.4, IndexLow: 401, IndexHigh: 500},
	)

	pm10Converter = mustConverter(PM10, 0,
		Breakpoint{ConcLow: 0, ConcHigh: 54, IndexLow: 0, IndexHigh: 50},
		Breakpoint{ConcLow: 55, ConcHigh: 154, IndexLow: 51, IndexHigh: 100},
		Breakpoint{ConcLow: 155, ConcHigh: 254, IndexLow: 101, IndexHigh: 150},
		Breakpoint{ConcLow: 255, ConcHigh: 354, IndexLow: 151, IndexHigh: 200},
		Breakpoint{ConcLow: 355, ConcHigh: 424, IndexLow: 201, IndexHigh: 300},
		Breakpoint{ConcLow: 425, ConcHigh: 504, IndexLow: 301, IndexHigh: 400},
		Breakpoint{ConcLow: 505, ConcHigh: 604, IndexLow: 401, IndexHigh: 500},
	)
)

// ForPollutant returns the canonical converter for p.
func ForPollutant(p Pollutant) (*Converter, error) {
	switch p {
	case PM25:
		return pm25Converter, nil
	case PM10:
		return pm10Converter, nil
	default:
		return nil, fmt.Errorf("unsupported pollutant %q", p)
	}
}

// Compute converts a PM2.5 concentration (µg/m³) using the EPA table.
func Compute(pm25 float64) (Result, error) {
	return pm25Converter.Convert(pm25)
}

// ComputeOptional converts a possibly absent PM2.5 concentration. A missing
// reading is converted as 0.
func ComputeOptional(pm25 *float64) (Result, error) {
	return pm25Converter.ConvertOptional(pm25)
}

// ComputePM10 converts a PM10 concentration (µg/m³) using the EPA table.
func ComputePM10(pm10 float64) (Result, error) {
	return pm10Converter.Convert(pm10)
}

// Overall returns the result with the highest index. Ties keep the earliest
// result. It returns false when no results are given.
func Overall(results ...Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Index > best.Index {
			best = r
		}
	}
	return best, true
}
