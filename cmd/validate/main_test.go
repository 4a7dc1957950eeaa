package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const (
	mockCSV = "../../data/mock/aqicn_readings.csv"
	mockRaw = "../../data/mock/aqicn_readings.json"
)

// writeEnrichedFixture enriches the shipped raw fixture the way genmock does.
func writeEnrichedFixture(t *testing.T) string {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.March, 2, 6, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	raw, err := loadJSON[json.RawMessage](mockRaw)
	require.NoError(t, err)

	enriched := make([]domain.AQIReading, 0, len(raw))
	for _, r := range raw {
		parsed, err := domain.ParseRawEvent(domain.RawEvent{Value: r})
		require.NoError(t, err)
		e, err := domain.EnrichReading(parsed)
		require.NoError(t, err)
		enriched = append(enriched, e)
	}

	data, err := json.Marshal(enriched)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "aqicn_readings_enriched.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRun_ShippedFixturesPass(t *testing.T) {
	enriched := writeEnrichedFixture(t)
	require.Equal(t, 0, run(mockCSV, mockRaw, enriched, 5))
}

func TestRun_DriftLimitEnforced(t *testing.T) {
	enriched := writeEnrichedFixture(t)
	// Two shipped records differ from the reported aqi_score by one point.
	require.Equal(t, 1, run(mockCSV, mockRaw, enriched, 0))
}

func TestRun_MissingEnrichedFixture(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.json")
	require.Equal(t, 1, run(mockCSV, mockRaw, missing, 5))
}
