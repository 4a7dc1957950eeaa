package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ConvertsPM25(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-pm25", "35.4"}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "AQI 100  Moderate  #ffff00")
	assert.NotContains(t, stdout.String(), "pm10")
}

func TestRun_JSONWithPM10(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-pm25", "6", "-pm10", "160", "-json"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &body))
	assert.InDelta(t, 103, body["aqi"], 0)
	assert.Equal(t, "Unhealthy for Sensitive Groups", body["category"])
	assert.Equal(t, "pm10", body["dominant_pollutant"])
}

func TestRun_MissingPM25(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, &stdout, &stderr)

	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "AQI 0  Good")
	assert.Contains(t, stdout.String(), "missing")
}

func TestRun_InvalidInput(t *testing.T) {
	for _, args := range [][]string{{"-pm25", "-5"}, {"-pm25", "abc"}} {
		var stdout, stderr bytes.Buffer
		code := run(args, &stdout, &stderr)

		assert.Equal(t, 2, code, args)
		assert.Contains(t, stderr.String(), "invalid concentration")
		assert.Empty(t, stdout.String())
	}
}

func TestRun_Table(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"-table"}, &stdout, &stderr))

	out := stdout.String()
	assert.Contains(t, out, "12.1-35.4")
	assert.Contains(t, out, "155-254")
	assert.Contains(t, out, "301+")
	assert.Contains(t, out, "#7e0023")
}

func TestRun_LatestFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sensor/latest", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":3,"timestamp":"2025-03-01T14:05:00","pm25":37,"pm10":20}`)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-api", srv.URL, "-source", "sensor"}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "AQI 105  Unhealthy for Sensitive Groups")
}

func TestRun_UnknownSource(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-api", "http://localhost:1", "-source", "weather"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unknown source")
}

func TestRun_ByDateFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/aqicn/date/2025-03-01", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"id":1,"ts":"2025-03-01 00:00:00","pm25":8.4},
			{"id":2,"ts":"2025-03-01 01:00:00","pm25":-4},
			{"id":3,"ts":"2025-03-01 02:00:00","pm25":37}
		]`)
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-api", srv.URL, "-date", "2025-03-01", "-json"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var body []map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &body))
	require.Len(t, body, 2)
	assert.InDelta(t, 35, body[0]["aqi"], 0)
	assert.InDelta(t, 105, body[1]["aqi"], 0)
	assert.Contains(t, stderr.String(), "skipping reading 2")
}

func TestRun_ByDateBadDate(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-api", "http://localhost:1", "-date", "yesterday"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "want YYYY-MM-DD")
}
