package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/air-quality-aqi/internal/aqi"
	"github.com/couchcryptid/air-quality-aqi/internal/domain"
	"github.com/couchcryptid/air-quality-aqi/internal/observability"
	"github.com/couchcryptid/air-quality-aqi/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawEvent
	errs    []error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return nil, err
	}
	if len(m.batches) > 0 {
		b := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	// block until context cancelled to simulate waiting for messages
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.AQIReading, error) {
	if m.err != nil {
		return domain.AQIReading{}, m.err
	}
	return domain.AQIReading{ID: string(raw.Key), Source: domain.SourceAQICN, AQI: 42, Category: aqi.Good}, nil
}

type mockLoader struct {
	mu      sync.Mutex
	loaded  []domain.AQIReading
	calls   int
	failFor int
}

func (m *mockLoader) LoadBatch(_ context.Context, readings []domain.AQIReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failFor {
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, readings...)
	return nil
}

func (m *mockLoader) snapshot() []domain.AQIReading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AQIReading(nil), m.loaded...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawReading(key, payload string) domain.RawEvent {
	return domain.RawEvent{Key: []byte(key), Value: []byte(payload), Topic: "raw-air-quality-readings"}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawReading("r-1", "{}"), rawReading("r-2", "{}")}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 10)
	require.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	loaded := ldr.snapshot()
	require.Len(t, loaded, 2)
	assert.Equal(t, "r-1", loaded[0].ID)
	assert.True(t, p.Ready())
	require.NoError(t, p.CheckReadiness(context.Background()))

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesProduced), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ReadingsByCategory.WithLabelValues("aqicn", "Good")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits int
	raw := rawReading("bad", "not json")
	raw.Commit = func(_ context.Context) error {
		commits++
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
	assert.False(t, p.Ready())
	assert.Equal(t, 1, commits, "poison message should be committed")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	commitCalled := false

	raw := rawReading("r-5", "{}")
	raw.Commit = func(_ context.Context) error {
		commitCalled = true
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, commitCalled)
}

func TestPipeline_Run_RecoversFromExtractError(t *testing.T) {
	ext := &mockExtractor{
		errs:    []error{errors.New("leader not available")},
		batches: [][]domain.RawEvent{{rawReading("r-6", "{}")}},
	}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Len(t, ldr.snapshot(), 1)
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	commits := 0
	raw := rawReading("r-7", "{}")
	raw.Commit = func(_ context.Context) error {
		commits++
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{failFor: 1}
	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.snapshot())
	assert.Zero(t, commits)
	assert.False(t, p.Ready())
}

func TestReadingTransformer_Transform(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2025, time.March, 2, 6, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	raw := domain.RawEvent{
		Key:     []byte("sensor-3"),
		Value:   []byte(`{"id":3,"timestamp":"2025-03-01T14:05:00","pm25":37,"pm10":20}`),
		Headers: map[string]string{"source": "sensor"},
	}

	out, err := pipeline.NewTransformer(discardLogger()).Transform(context.Background(), raw)
	require.NoError(t, err)

	type summary struct {
		Source    domain.Source
		SourceID  int64
		AQI       int
		Category  aqi.Category
		Dominant  aqi.Pollutant
		Processed time.Time
	}
	want := summary{
		Source:    domain.SourceSensor,
		SourceID:  3,
		AQI:       105,
		Category:  aqi.UnhealthyForSensitiveGroups,
		Dominant:  aqi.PM25,
		Processed: fakeClock.Now(),
	}
	got := summary{
		Source:    out.Source,
		SourceID:  out.SourceID,
		AQI:       out.AQI,
		Category:  out.Category,
		Dominant:  out.DominantPollutant,
		Processed: out.ProcessedAt,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("transform mismatch (-want +got):\n%s", diff)
	}
}

func TestReadingTransformer_RejectsNegativeConcentration(t *testing.T) {
	raw := domain.RawEvent{Value: []byte(`{"id":4,"ts":"2025-03-01 00:00:00","pm25":-1}`)}

	_, err := pipeline.NewTransformer(discardLogger()).Transform(context.Background(), raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, aqi.ErrInvalidInput)
}
