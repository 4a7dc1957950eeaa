package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/adapter/upstream"
	"github.com/couchcryptid/air-quality-aqi/internal/aqi"
	"github.com/couchcryptid/air-quality-aqi/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadingSource fetches readings from the monitoring API.
type ReadingSource interface {
	LatestReading(ctx context.Context, source domain.Source) (domain.Reading, error)
	ReadingsByDate(ctx context.Context, source domain.Source, day time.Time) ([]domain.Reading, error)
}

// Server exposes health, readiness, metrics and AQI query endpoints.
type Server struct {
	httpServer *http.Server
	readings   ReadingSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1/aqi routes. readings may be nil, in which case the upstream-backed
// routes answer 503.
func NewServer(addr string, ready sharedobs.ReadinessChecker, readings ReadingSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		readings: readings,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/aqi", s.handleCompute)
	mux.HandleFunc("GET /v1/aqi/breakpoints", s.handleBreakpoints)
	mux.HandleFunc("GET /v1/aqi/categories", s.handleCategories)
	mux.HandleFunc("GET /v1/aqi/latest", s.handleLatest)
	mux.HandleFunc("GET /v1/aqi/date/{date}", s.handleByDate)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type resultBody struct {
	Pollutant     aqi.Pollutant `json:"pollutant"`
	Concentration float64       `json:"concentration"`
	Index         int           `json:"index"`
	Category      aqi.Category  `json:"category"`
	Color         string        `json:"color"`
}

func newResultBody(r aqi.Result) resultBody {
	return resultBody{
		Pollutant:     r.Pollutant,
		Concentration: r.Concentration,
		Index:         r.Index,
		Category:      r.Category,
		Color:         r.Color().Hex,
	}
}

type computeResponse struct {
	AQI               int           `json:"aqi"`
	Category          aqi.Category  `json:"category"`
	Color             string        `json:"color"`
	DominantPollutant aqi.Pollutant `json:"dominant_pollutant"`
	PM25              resultBody    `json:"pm25"`
	PM25Missing       bool          `json:"pm25_missing,omitempty"`
	PM10              *resultBody   `json:"pm10,omitempty"`
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	pm25, err := parseConcentration(q.Get("pm25"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("pm25: %w", err))
		return
	}
	pm10, err := parseConcentration(q.Get("pm10"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("pm10: %w", err))
		return
	}

	pm25Result, err := aqi.ComputeOptional(pm25)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp := computeResponse{PM25: newResultBody(pm25Result), PM25Missing: pm25 == nil}
	results := []aqi.Result{pm25Result}

	if pm10 != nil {
		pm10Result, err := aqi.ComputePM10(*pm10)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		body := newResultBody(pm10Result)
		resp.PM10 = &body
		results = append(results, pm10Result)
	}

	overall, _ := aqi.Overall(results...)
	resp.AQI = overall.Index
	resp.Category = overall.Category
	resp.Color = overall.Color().Hex
	resp.DominantPollutant = overall.Pollutant

	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

type breakpointsResponse struct {
	Pollutant   aqi.Pollutant    `json:"pollutant"`
	Breakpoints []aqi.Breakpoint `json:"breakpoints"`
}

func (s *Server) handleBreakpoints(w http.ResponseWriter, r *http.Request) {
	p := aqi.Pollutant(r.URL.Query().Get("pollutant"))
	if p == "" {
		p = aqi.PM25
	}
	conv, err := aqi.ForPollutant(p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, breakpointsResponse{Pollutant: p, Breakpoints: conv.Breakpoints()})
}

type categoryBody struct {
	Name        aqi.Category `json:"name"`
	Min         int          `json:"min"`
	Max         *int         `json:"max,omitempty"`
	Color       string       `json:"color"`
	ColorName   string       `json:"color_name"`
	Description string       `json:"description"`
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	cats := aqi.Categories()
	out := make([]categoryBody, 0, len(cats))
	for _, c := range cats {
		lo, hi := c.Range()
		body := categoryBody{
			Name:        c,
			Min:         lo,
			Color:       c.Color().Hex,
			ColorName:   c.Color().Name,
			Description: c.Description(),
		}
		if hi != math.MaxInt {
			body.Max = &hi
		}
		out = append(out, body)
	}
	sharedobs.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	source, ok := s.upstreamSource(w, r)
	if !ok {
		return
	}

	reading, err := s.readings.LatestReading(r.Context(), source)
	if err != nil {
		s.writeUpstreamError(w, source, err)
		return
	}

	enriched, err := domain.EnrichReading(reading)
	if err != nil {
		s.logger.Warn("latest reading rejected", "source", source, "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, enriched)
}

type byDateResponse struct {
	Source   domain.Source       `json:"source"`
	Date     string              `json:"date"`
	Readings []domain.AQIReading `json:"readings"`
	Skipped  int                 `json:"skipped"`
}

// handleByDate enriches every reading a source collected on one day.
// Readings that fail enrichment are counted and left out.
func (s *Server) handleByDate(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse(time.DateOnly, r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("date %q: want YYYY-MM-DD", r.PathValue("date")))
		return
	}
	source, ok := s.upstreamSource(w, r)
	if !ok {
		return
	}

	readings, err := s.readings.ReadingsByDate(r.Context(), source, day)
	if err != nil {
		s.writeUpstreamError(w, source, err)
		return
	}

	resp := byDateResponse{
		Source:   source,
		Date:     day.Format(time.DateOnly),
		Readings: make([]domain.AQIReading, 0, len(readings)),
	}
	for _, reading := range readings {
		enriched, err := domain.EnrichReading(reading)
		if err != nil {
			s.logger.Warn("dated reading rejected", "source", source, "id", reading.ID, "error", err)
			resp.Skipped++
			continue
		}
		resp.Readings = append(resp.Readings, enriched)
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

// upstreamSource resolves the source query parameter, writing an error
// response when the upstream API is disabled or the source is unknown.
func (s *Server) upstreamSource(w http.ResponseWriter, r *http.Request) (domain.Source, bool) {
	if s.readings == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("upstream API not configured"))
		return "", false
	}
	source, ok := domain.ParseSource(r.URL.Query().Get("source"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown source %q", r.URL.Query().Get("source")))
		return "", false
	}
	return source, true
}

func (s *Server) writeUpstreamError(w http.ResponseWriter, source domain.Source, err error) {
	if errors.Is(err, upstream.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.logger.Warn("upstream request failed", "source", source, "error", err)
	writeError(w, http.StatusBadGateway, err)
}

// parseConcentration returns nil for an empty value.
func parseConcentration(v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", aqi.ErrInvalidInput, v)
	}
	return &f, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
