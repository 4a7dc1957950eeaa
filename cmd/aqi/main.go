// Command aqi converts particulate concentrations to the US EPA Air Quality
// Index.
//
// Usage:
//
//	go run ./cmd/aqi -pm25 35.4
//	go run ./cmd/aqi -pm25 6 -pm10 160 -json
//	go run ./cmd/aqi -table
//	go run ./cmd/aqi -api http://localhost:8000 -source sensor
//	go run ./cmd/aqi -api http://localhost:8000 -date 2025-03-01
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/adapter/upstream"
	"github.com/couchcryptid/air-quality-aqi/internal/aqi"
	"github.com/couchcryptid/air-quality-aqi/internal/domain"
	"github.com/couchcryptid/air-quality-aqi/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	pm25    string
	pm10    string
	asJSON  bool
	table   bool
	api     string
	source  string
	date    string
	timeout time.Duration
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aqi", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.pm25, "pm25", "", "PM2.5 concentration in µg/m³ (empty converts as missing)")
	fs.StringVar(&opts.pm10, "pm10", "", "PM10 concentration in µg/m³")
	fs.BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	fs.BoolVar(&opts.table, "table", false, "print the breakpoint tables and categories")
	fs.StringVar(&opts.api, "api", "", "monitoring API base URL; converts the latest reading")
	fs.StringVar(&opts.source, "source", "aqicn", "monitoring API source: aqicn or sensor")
	fs.StringVar(&opts.date, "date", "", "with -api, convert every reading from this day (YYYY-MM-DD)")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "monitoring API request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var err error
	switch {
	case opts.table:
		err = printTables(stdout)
	case opts.api != "" && opts.date != "":
		err = convertByDate(opts, stdout, stderr)
	case opts.api != "":
		err = convertLatest(opts, stdout, stderr)
	default:
		err = convertFlags(opts, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "aqi: %v\n", err)
		if errors.Is(err, aqi.ErrInvalidInput) {
			return 2
		}
		return 1
	}
	return 0
}

func convertFlags(opts options, stdout io.Writer) error {
	var r domain.Reading
	var err error
	if r.PM25, err = parseOptional("pm25", opts.pm25); err != nil {
		return err
	}
	if r.PM10, err = parseOptional("pm10", opts.pm10); err != nil {
		return err
	}

	enriched, err := domain.EnrichReading(r)
	if err != nil {
		return err
	}
	return printReading(stdout, enriched, opts.asJSON)
}

func newClient(opts options, stderr io.Writer) (*upstream.Client, domain.Source, error) {
	source, ok := domain.ParseSource(opts.source)
	if !ok {
		return nil, "", fmt.Errorf("unknown source %q", opts.source)
	}
	logger := observability.NewConsoleLogger(stderr, "warn")
	// Request metrics are not exported from a one-shot command.
	metrics := observability.NewMetricsFor(prometheus.NewRegistry())
	return upstream.NewClient(opts.api, opts.timeout, metrics, logger), source, nil
}

func convertLatest(opts options, stdout, stderr io.Writer) error {
	client, source, err := newClient(opts, stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	reading, err := client.LatestReading(ctx, source)
	if err != nil {
		return err
	}
	enriched, err := domain.EnrichReading(reading)
	if err != nil {
		return err
	}
	return printReading(stdout, enriched, opts.asJSON)
}

// convertByDate prints every reading of one day. Readings that cannot be
// converted are reported on stderr and skipped.
func convertByDate(opts options, stdout, stderr io.Writer) error {
	day, err := time.Parse(time.DateOnly, opts.date)
	if err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD", opts.date)
	}
	client, source, err := newClient(opts, stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	readings, err := client.ReadingsByDate(ctx, source, day)
	if err != nil {
		return err
	}

	enriched := make([]domain.AQIReading, 0, len(readings))
	for _, r := range readings {
		e, err := domain.EnrichReading(r)
		if err != nil {
			fmt.Fprintf(stderr, "aqi: skipping reading %d: %v\n", r.ID, err)
			continue
		}
		enriched = append(enriched, e)
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(enriched)
	}
	for i := range enriched {
		fmt.Fprintf(stdout, "%s  ", enriched[i].ObservedAt.Format(time.DateTime))
		if err := printReading(stdout, enriched[i], false); err != nil {
			return err
		}
	}
	return nil
}

func parseOptional(name, v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a number", aqi.ErrInvalidInput, name, v)
	}
	return &f, nil
}

func printReading(w io.Writer, r domain.AQIReading, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintf(w, "AQI %d  %s  %s\n", r.AQI, r.Category, r.Color)
	pm25 := fmt.Sprintf("%g µg/m³", r.PM25.Concentration)
	if r.PM25Missing {
		pm25 = "missing"
	}
	fmt.Fprintf(w, "  pm25  %-14s index %d\n", pm25, r.PM25.Index)
	if r.PM10 != nil {
		fmt.Fprintf(w, "  pm10  %-14s index %d\n", fmt.Sprintf("%g µg/m³", r.PM10.Concentration), r.PM10.Index)
	}
	if r.ReportedAQI != nil {
		fmt.Fprintf(w, "  reported %d (%+d)\n", *r.ReportedAQI, *r.ReportedDelta)
	}
	fmt.Fprintf(w, "  %s\n", r.Category.Description())
	return nil
}

func printTables(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range []aqi.Pollutant{aqi.PM25, aqi.PM10} {
		conv, err := aqi.ForPollutant(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\tconcentration\tindex\n", p)
		for _, bp := range conv.Breakpoints() {
			fmt.Fprintf(tw, "\t%g-%g\t%d-%d\n", bp.ConcLow, bp.ConcHigh, bp.IndexLow, bp.IndexHigh)
		}
		fmt.Fprintln(tw)
	}

	fmt.Fprintln(tw, "category\trange\tcolor")
	for _, c := range aqi.Categories() {
		lo, hi := c.Range()
		rng := fmt.Sprintf("%d-%d", lo, hi)
		if c == aqi.Hazardous {
			rng = fmt.Sprintf("%d+", lo)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s (%s)\n", c, rng, c.Color().Name, c.Color().Hex)
	}
	return tw.Flush()
}
