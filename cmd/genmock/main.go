// Command genmock reads an AQICN CSV export and generates the mock data
// fixtures used by the pipeline tests: the raw monitoring API records and the
// enriched readings the pipeline produces for them. It runs the real domain
// transformation so the enriched output matches pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/aqicn_readings.csv \
//	  -raw-out data/mock/aqicn_readings.json \
//	  -enriched-out data/mock/aqicn_readings_enriched.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/aqi"
	"github.com/couchcryptid/air-quality-aqi/internal/domain"
	"github.com/jonboulle/clockwork"
)

// fixtureProcessedAt pins ProcessedAt so regenerated fixtures are stable.
var fixtureProcessedAt = time.Date(2025, time.March, 2, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "AQICN CSV export (id,ts,pm25,pm10,aqi_score)")
	rawOut := flag.String("raw-out", "", "output path for the raw JSON fixture")
	enrichedOut := flag.String("enriched-out", "", "output path for the enriched JSON fixture")
	flag.Parse()

	if *csvPath == "" || *rawOut == "" || *enrichedOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv, -raw-out, -enriched-out")
	}

	domain.SetClock(clockwork.NewFakeClockAt(fixtureProcessedAt))
	defer domain.SetClock(nil)

	records, readings, err := processCSV(*csvPath)
	if err != nil {
		return fmt.Errorf("processing %s: %w", *csvPath, err)
	}
	log.Printf("aqicn: %d records", len(records))

	if err := writeJSON(*rawOut, records); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	if err := writeJSON(*enrichedOut, readings); err != nil {
		return fmt.Errorf("writing enriched fixture: %w", err)
	}
	log.Printf("wrote enriched fixture: %s", *enrichedOut)

	printStats(readings)
	return nil
}

func processCSV(path string) ([]domain.Reading, []domain.AQIReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("no data rows")
	}

	colIdx := map[string]int{}
	for i, h := range rows[0] {
		colIdx[strings.TrimSpace(h)] = i
	}

	records := make([]domain.Reading, 0, len(rows)-1)
	readings := make([]domain.AQIReading, 0, len(rows)-1)

	for line, row := range rows[1:] {
		rec, err := recordFromRow(row, colIdx)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		records = append(records, rec)

		rawJSON, err := json.Marshal(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal record: %w", err)
		}
		parsed, err := domain.ParseRawEvent(domain.RawEvent{Value: rawJSON})
		if err != nil {
			return nil, nil, err
		}
		enriched, err := domain.EnrichReading(parsed)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		readings = append(readings, enriched)
	}

	return records, readings, nil
}

func recordFromRow(row []string, colIdx map[string]int) (domain.Reading, error) {
	id, err := strconv.ParseInt(get(row, colIdx, "id"), 10, 64)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("id: %w", err)
	}
	rec := domain.Reading{ID: id, TS: get(row, colIdx, "ts")}

	if rec.PM25, err = optionalFloat(get(row, colIdx, "pm25")); err != nil {
		return domain.Reading{}, fmt.Errorf("pm25: %w", err)
	}
	if rec.PM10, err = optionalFloat(get(row, colIdx, "pm10")); err != nil {
		return domain.Reading{}, fmt.Errorf("pm10: %w", err)
	}
	if s := get(row, colIdx, "aqi_score"); s != "" {
		score, err := strconv.Atoi(s)
		if err != nil {
			return domain.Reading{}, fmt.Errorf("aqi_score: %w", err)
		}
		rec.AQIScore = &score
	}
	return rec, nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func get(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(readings []domain.AQIReading) {
	counts := map[aqi.Category]int{}
	dominant := map[aqi.Pollutant]int{}
	var missing, maxDrift int
	for i := range readings {
		r := &readings[i]
		counts[r.Category]++
		dominant[r.DominantPollutant]++
		if r.PM25Missing {
			missing++
		}
		if r.ReportedDelta != nil && abs(*r.ReportedDelta) > abs(maxDrift) {
			maxDrift = *r.ReportedDelta
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(readings))
	fmt.Print("By category:")
	for _, c := range aqi.Categories() {
		fmt.Printf(" %q=%d", c.String(), counts[c])
	}
	fmt.Println()
	fmt.Printf("Dominant: pm25=%d, pm10=%d\n", dominant[aqi.PM25], dominant[aqi.PM10])
	fmt.Printf("Missing pm25: %d\n", missing)
	fmt.Printf("Largest drift from reported aqi_score: %+d\n", maxDrift)

	fmt.Println("\nIndices in fixture order:")
	for i := range readings {
		r := &readings[i]
		fmt.Printf("  %3d  %-4s %3d  %s\n", r.SourceID, r.DominantPollutant, r.AQI, r.Category)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
