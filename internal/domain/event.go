package domain

import (
	"context"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/aqi"
)

// Source names the monitoring API collection a reading belongs to.
type Source string

const (
	SourceAQICN  Source = "aqicn"  // outdoor station
	SourceSensor Source = "sensor" // indoor sensor
)

// ParseSource validates a source name. An empty name defaults to aqicn.
func ParseSource(s string) (Source, bool) {
	switch Source(s) {
	case "", SourceAQICN:
		return SourceAQICN, true
	case SourceSensor:
		return SourceSensor, true
	default:
		return "", false
	}
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Reading is a record as served by the monitoring API. Concentrations are
// pointers because the API returns null for missing measurements.
type Reading struct {
	ID          int64    `json:"id"`
	TS          string   `json:"ts,omitempty"`        // aqicn
	Timestamp   string   `json:"timestamp,omitempty"` // sensor
	StationName string   `json:"station_name,omitempty"`
	PM25        *float64 `json:"pm25"`
	PM10        *float64 `json:"pm10"`
	AQIScore    *int     `json:"aqi_score,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`

	Source     Source    `json:"-"`
	ReceivedAt time.Time `json:"-"`
	RawPayload []byte    `json:"-"`
}

// observedRaw returns whichever timestamp field the source populates.
func (r Reading) observedRaw() string {
	if r.TS != "" {
		return r.TS
	}
	return r.Timestamp
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AQIReading is a reading enriched with AQI sub-indices.
type AQIReading struct {
	ID         string    `json:"id"`
	Source     Source    `json:"source"`
	SourceID   int64     `json:"source_id"`
	Station    string    `json:"station,omitempty"`
	Geo        *Geo      `json:"geo,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	TimeBucket time.Time `json:"time_bucket"`

	PM25        aqi.Result  `json:"pm25"`
	PM25Missing bool        `json:"pm25_missing,omitempty"`
	PM10        *aqi.Result `json:"pm10,omitempty"`

	AQI               int           `json:"aqi"`
	Category          aqi.Category  `json:"category"`
	Color             string        `json:"color"`
	DominantPollutant aqi.Pollutant `json:"dominant_pollutant"`

	ReportedAQI   *int `json:"reported_aqi,omitempty"`
	ReportedDelta *int `json:"reported_delta,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
