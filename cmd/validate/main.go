// Command validate checks the AQI mock fixtures for consistency: the CSV
// export, the raw JSON records, and the enriched JSON readings. It verifies
// row parity, re-runs the enrichment to detect stale fixtures, checks the
// category and color rules, and reports drift from the upstream aqi_score.
//
// The enriched fixture is generated, not committed. Usage:
//
//	go run ./cmd/genmock \
//	  -csv data/mock/aqicn_readings.csv \
//	  -raw-out data/mock/aqicn_readings.json \
//	  -enriched-out data/mock/aqicn_readings_enriched.json
//	go run ./cmd/validate \
//	  -csv data/mock/aqicn_readings.csv \
//	  -raw-json data/mock/aqicn_readings.json \
//	  -enriched-json data/mock/aqicn_readings_enriched.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/aqi"
	"github.com/couchcryptid/air-quality-aqi/internal/domain"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "AQICN CSV export")
	rawJSON := flag.String("raw-json", "", "path to the raw JSON fixture")
	enrichedJSON := flag.String("enriched-json", "", "path to the enriched JSON fixture")
	maxDrift := flag.Int("max-drift", 5, "largest tolerated difference from the reported aqi_score")
	flag.Parse()

	if *csvPath == "" || *rawJSON == "" || *enrichedJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*csvPath, *rawJSON, *enrichedJSON, *maxDrift))
}

func run(csvPath, rawPath, enrichedPath string, maxDrift int) int {
	// ProcessedAt must match genmock for re-enrichment to compare equal.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, time.March, 2, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Println("=== AQI Fixture Validation ===")
	fmt.Println()

	rows, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}
	raw, err := loadJSON[json.RawMessage](rawPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw JSON: %v\n", err)
		return 1
	}
	enriched, err := loadJSON[domain.AQIReading](enrichedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load enriched JSON: %v\n", err)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "generate it first with go run ./cmd/genmock -enriched-out", enrichedPath)
		}
		return 1
	}

	phases := []*phase{
		validateSourceParity(rows, raw),
		validateEnrichment(raw, enriched),
		validateCategoryRules(enriched),
		validateReportedDrift(enriched, maxDrift),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d CSV, %d raw JSON, %d enriched JSON\n", len(rows), len(raw), len(enriched))

	for _, p := range phases {
		if len(p.notes) == 0 && p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Printf("  note: %s\n", n)
		}
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[strings.TrimSpace(h)] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Source Parity ──
// The raw JSON fixture must carry exactly the CSV rows.

func validateSourceParity(rows []csvRow, raw []json.RawMessage) *phase {
	p := &phase{name: "Phase 1: Source Parity (CSV vs raw JSON)"}

	if len(rows) != len(raw) {
		p.errorf("CSV has %d rows, raw JSON has %d records", len(rows), len(raw))
		return p
	}

	for i, row := range rows {
		rec, err := domain.ParseReading(domain.SourceAQICN, raw[i])
		if err != nil {
			p.errorf("raw record %d: %v", i, err)
			continue
		}
		if id := strconv.FormatInt(rec.ID, 10); id != row.fields["id"] {
			p.errorf("line %d: id: csv=%q, json=%q", row.lineNum, row.fields["id"], id)
		}
		if rec.TS != row.fields["ts"] {
			p.errorf("line %d: ts: csv=%q, json=%q", row.lineNum, row.fields["ts"], rec.TS)
		}
		checkOptionalFloat(p, row, "pm25", rec.PM25)
		checkOptionalFloat(p, row, "pm10", rec.PM10)
	}
	return p
}

func checkOptionalFloat(p *phase, row csvRow, col string, got *float64) {
	want := row.fields[col]
	switch {
	case want == "" && got == nil:
	case want == "":
		p.errorf("line %d: %s: csv empty, json=%g", row.lineNum, col, *got)
	case got == nil:
		p.errorf("line %d: %s: csv=%s, json null", row.lineNum, col, want)
	default:
		v, err := strconv.ParseFloat(want, 64)
		if err != nil || !floatEq(v, *got) {
			p.errorf("line %d: %s: csv=%s, json=%g", row.lineNum, col, want, *got)
		}
	}
}

// ── Phase 2: Enrichment ──
// Re-running the transformation over the raw records must reproduce the
// enriched fixture.

func validateEnrichment(raw []json.RawMessage, enriched []domain.AQIReading) *phase {
	p := &phase{name: "Phase 2: Enrichment (raw vs enriched)"}

	byID := make(map[string]*domain.AQIReading, len(enriched))
	for i := range enriched {
		if enriched[i].ID == "" {
			p.errorf("enriched record %d: missing ID", i)
			continue
		}
		byID[enriched[i].ID] = &enriched[i]
	}
	if len(raw) != len(enriched) {
		p.errorf("raw has %d records, enriched has %d", len(raw), len(enriched))
	}

	for i := range raw {
		parsed, err := domain.ParseRawEvent(domain.RawEvent{Value: raw[i]})
		if err != nil {
			p.errorf("raw record %d: %v", i, err)
			continue
		}
		want, err := domain.EnrichReading(parsed)
		if err != nil {
			p.errorf("raw record %d: %v", i, err)
			continue
		}
		got, ok := byID[want.ID]
		if !ok {
			p.errorf("raw record %d: ID %q not found in enriched JSON", i, want.ID)
			continue
		}
		compareReadings(p, want, got)
	}
	return p
}

func compareReadings(p *phase, want domain.AQIReading, got *domain.AQIReading) {
	id := want.ID

	if got.AQI != want.AQI {
		p.errorf("ID %s: aqi: expected %d, got %d", id, want.AQI, got.AQI)
	}
	if got.Category != want.Category {
		p.errorf("ID %s: category: expected %s, got %s", id, want.Category, got.Category)
	}
	if got.DominantPollutant != want.DominantPollutant {
		p.errorf("ID %s: dominant: expected %s, got %s", id, want.DominantPollutant, got.DominantPollutant)
	}
	if got.PM25.Index != want.PM25.Index || !floatEq(got.PM25.Concentration, want.PM25.Concentration) {
		p.errorf("ID %s: pm25: expected %d (%g), got %d (%g)", id,
			want.PM25.Index, want.PM25.Concentration, got.PM25.Index, got.PM25.Concentration)
	}
	if got.PM25Missing != want.PM25Missing {
		p.errorf("ID %s: pm25_missing: expected %t, got %t", id, want.PM25Missing, got.PM25Missing)
	}
	if (got.PM10 == nil) != (want.PM10 == nil) || (got.PM10 != nil && got.PM10.Index != want.PM10.Index) {
		p.errorf("ID %s: pm10 sub-index mismatch", id)
	}
	if !got.ObservedAt.Equal(want.ObservedAt) {
		p.errorf("ID %s: observed_at: expected %s, got %s", id,
			want.ObservedAt.Format(time.RFC3339), got.ObservedAt.Format(time.RFC3339))
	}
	if !got.TimeBucket.Equal(want.TimeBucket) {
		p.errorf("ID %s: time_bucket: expected %s, got %s", id,
			want.TimeBucket.Format(time.RFC3339), got.TimeBucket.Format(time.RFC3339))
	}
}

// ── Phase 3: Category Rules ──

func validateCategoryRules(enriched []domain.AQIReading) *phase {
	p := &phase{name: "Phase 3: Category Rules"}
	for i := range enriched {
		checkCategoryRecord(p, i, &enriched[i])
	}
	return p
}

func checkCategoryRecord(p *phase, i int, r *domain.AQIReading) {
	pf := func(format string, args ...any) {
		p.errorf("record %d (ID %s): "+format, append([]any{i, r.ID}, args...)...)
	}

	if r.AQI < 0 {
		pf("aqi %d is negative", r.AQI)
	}
	if c := aqi.Categorize(r.AQI); c != r.Category {
		pf("category %s does not match aqi %d (want %s)", r.Category, r.AQI, c)
	}
	if r.Color != r.Category.Color().Hex {
		pf("color %s does not match category %s", r.Color, r.Category)
	}
	if r.AQI < r.PM25.Index {
		pf("aqi %d below pm25 sub-index %d", r.AQI, r.PM25.Index)
	}
	if r.PM10 != nil && r.AQI < r.PM10.Index {
		pf("aqi %d below pm10 sub-index %d", r.AQI, r.PM10.Index)
	}
	if r.PM25Missing && r.PM25.Index != 0 {
		pf("pm25 missing but sub-index is %d", r.PM25.Index)
	}
	if !strings.HasPrefix(r.ID, string(r.Source)+"-") {
		pf("id %q doesn't start with source prefix %q-", r.ID, r.Source)
	}
	if r.ProcessedAt.IsZero() {
		pf("processed_at is zero")
	}
}

// ── Phase 4: Reported Drift ──
// Compares the computed index with the aqi_score the upstream API stored.

func validateReportedDrift(enriched []domain.AQIReading, maxDrift int) *phase {
	p := &phase{name: "Phase 4: Reported Drift (aqi_score)"}

	var compared int
	for i := range enriched {
		r := &enriched[i]
		if r.ReportedAQI == nil || r.ReportedDelta == nil {
			continue
		}
		compared++
		if *r.ReportedAQI+*r.ReportedDelta != r.AQI {
			p.errorf("ID %s: reported %d + delta %d != aqi %d", r.ID, *r.ReportedAQI, *r.ReportedDelta, r.AQI)
		}
		d := *r.ReportedDelta
		switch {
		case d > maxDrift || d < -maxDrift:
			p.errorf("ID %s: computed %d differs from reported %d by %+d", r.ID, r.AQI, *r.ReportedAQI, d)
		case d != 0:
			p.notef("ID %s: computed %d, reported %d (%+d)", r.ID, r.AQI, *r.ReportedAQI, d)
		}
	}
	p.notef("%d of %d records carry a reported aqi_score", compared, len(enriched))
	return p
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
