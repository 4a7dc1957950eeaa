package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/aqi"
)

// timestampLayouts are tried in order when parsing reading timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseReading decodes a monitoring API record from the given collection.
func ParseReading(source Source, payload []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return Reading{}, fmt.Errorf("parse %s reading: %w", source, err)
	}
	r.Source = source
	r.RawPayload = payload
	return r, nil
}

// ParseRawEvent deserializes a RawEvent's value into a Reading. The collection
// comes from the "source" header; the message timestamp is kept as the
// fallback observation time.
func ParseRawEvent(raw RawEvent) (Reading, error) {
	source, ok := ParseSource(raw.Headers["source"])
	if !ok {
		return Reading{}, fmt.Errorf("parse raw event: unknown source %q", raw.Headers["source"])
	}

	r, err := ParseReading(source, raw.Value)
	if err != nil {
		return Reading{}, fmt.Errorf("parse raw event: %w", err)
	}
	r.ReceivedAt = raw.Timestamp
	return r, nil
}

// EnrichReading computes the AQI sub-indices of a reading and derives the
// overall index, category, dominant pollutant, reported drift, time bucket,
// and a deterministic ID.
func EnrichReading(r Reading) (AQIReading, error) {
	pm25, err := aqi.ComputeOptional(r.PM25)
	if err != nil {
		return AQIReading{}, fmt.Errorf("enrich %s reading %d: %w", r.Source, r.ID, err)
	}
	results := []aqi.Result{pm25}

	var pm10 *aqi.Result
	if r.PM10 != nil {
		res, err := aqi.ComputePM10(*r.PM10)
		if err != nil {
			return AQIReading{}, fmt.Errorf("enrich %s reading %d: %w", r.Source, r.ID, err)
		}
		pm10 = &res
		results = append(results, res)
	}

	overall, _ := aqi.Overall(results...)
	observed := parseTimestamp(r.observedRaw(), r.ReceivedAt)

	source := r.Source
	if source == "" {
		source = SourceAQICN
	}

	out := AQIReading{
		ID:                generateID(source, r.ID, r.observedRaw(), r.PM25, r.PM10),
		Source:            source,
		SourceID:          r.ID,
		Station:           r.StationName,
		ObservedAt:        observed,
		TimeBucket:        deriveTimeBucket(observed),
		PM25:              pm25,
		PM25Missing:       r.PM25 == nil,
		PM10:              pm10,
		AQI:               overall.Index,
		Category:          overall.Category,
		Color:             overall.Color().Hex,
		DominantPollutant: overall.Pollutant,
		Temperature:       r.Temperature,
		Humidity:          r.Humidity,
		RawPayload:        r.RawPayload,
		ProcessedAt:       clock.Now().UTC(),
	}

	if r.AQIScore != nil {
		reported := *r.AQIScore
		delta := overall.Index - reported
		out.ReportedAQI = &reported
		out.ReportedDelta = &delta
	}
	if r.Latitude != nil && r.Longitude != nil {
		out.Geo = &Geo{Lat: *r.Latitude, Lon: *r.Longitude}
	}

	return out, nil
}

// SerializeReading marshals an enriched reading into a sink message keyed by
// its ID.
func SerializeReading(r AQIReading) (OutputEvent, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize aqi reading: %w", err)
	}
	return OutputEvent{
		Key:   []byte(r.ID),
		Value: data,
		Headers: map[string]string{
			"category":     r.Category.String(),
			"source":       string(r.Source),
			"processed_at": r.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

// parseTimestamp parses a reading timestamp as UTC, returning fallback when
// the value is empty or matches no known layout.
func parseTimestamp(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// generateID produces a deterministic ID from the reading's identifying fields.
// Reprocessing the same record yields the same ID.
func generateID(source Source, sourceID int64, ts string, pm25, pm10 *float64) string {
	input := fmt.Sprintf("%s|%d|%s|%s|%s", source, sourceID, ts, formatOptional(pm25), formatOptional(pm10))
	hash := sha256.Sum256([]byte(input))
	return string(source) + "-" + hex.EncodeToString(hash[:8])
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// deriveTimeBucket truncates the observation time to the hour in UTC.
// Returns zero time if the input is zero.
func deriveTimeBucket(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Hour)
}
