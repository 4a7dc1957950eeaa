// Package aqi converts particulate-matter concentrations into US EPA Air
// Quality Index values.
//
// # Breakpoints
//
// Each pollutant has a table of contiguous linear segments. A segment maps a
// concentration range onto an index range:
//
//	index = Ilo + (Ihi - Ilo) / (Chi - Clo) * (C - Clo)
//
// The result is rounded to the nearest integer. Before the segment lookup the
// concentration is truncated to the table precision (0.1 µg/m³ for PM2.5,
// 1 µg/m³ for PM10) so that values such as 12.05 fall on a segment instead of
// between two of them. Concentrations above the last segment extrapolate its
// slope; the index is never clamped at 500. Extrapolation saturates at
// [MaxIndex] so that every finite concentration yields a Hazardous index
// rather than an overflowed one.
//
// PM2.5 (µg/m³, 24-hour):
//
//	  0.0 –  12.0   →   0 –  50
//	 12.1 –  35.4   →  51 – 100
//	 35.5 –  55.4   → 101 – 150
//	 55.5 – 150.4   → 151 – 200
//	150.5 – 250.4   → 201 – 300
//	250.5 – 350.4   → 301 – 400
//	350.5 – 500.4   → 401 – 500
//
// PM10 (µg/m³, 24-hour):
//
//	  0 –  54 →   0 –  50
//	 55 – 154 →  51 – 100
//	155 – 254 → 101 – 150
//	255 – 354 → 151 – 200
//	355 – 424 → 201 – 300
//	425 – 504 → 301 – 400
//	505 – 604 → 401 – 500
//
// # Categories
//
// The category is a step function of the rounded index, evaluated after
// interpolation: ≤50 Good, ≤100 Moderate, ≤150 Unhealthy for Sensitive
// Groups, ≤200 Unhealthy, ≤300 Very Unhealthy, otherwise Hazardous.
//
// # Input policy
//
// Negative, NaN and infinite concentrations are rejected with
// [ErrInvalidInput]. An absent concentration is passed as a nil pointer to
// [ComputeOptional], which converts it as 0.
package aqi
