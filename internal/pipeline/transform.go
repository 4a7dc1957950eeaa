package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/air-quality-aqi/internal/domain"
)

// ReadingTransformer implements Transformer by parsing monitoring API records
// and enriching them with AQI values.
type ReadingTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates a ReadingTransformer.
func NewTransformer(logger *slog.Logger) *ReadingTransformer {
	return &ReadingTransformer{logger: logger}
}

func (t *ReadingTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.AQIReading, error) {
	reading, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.AQIReading{}, err
	}

	enriched, err := domain.EnrichReading(reading)
	if err != nil {
		return domain.AQIReading{}, err
	}

	if enriched.PM25Missing {
		t.logger.Debug("reading has no pm2.5, converted as zero",
			"source", enriched.Source,
			"source_id", enriched.SourceID,
		)
	}
	return enriched, nil
}
