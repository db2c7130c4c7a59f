package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	TokensUsed      metric.Int64Counter
	KeyRotations    metric.Int64Counter
	IndexSearches   metric.Int64Counter
	IndexSize       metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("exam-tutor-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	keyRotations, err := meter.Int64Counter(
		"gemini.key_rotations",
		metric.WithDescription("API key rotations triggered by rate limits"),
	)
	if err != nil {
		return nil, err
	}

	indexSearches, err := meter.Int64Counter(
		"index.searches.total",
		metric.WithDescription("Total vector index searches"),
	)
	if err != nil {
		return nil, err
	}

	indexSize, err := meter.Int64Counter(
		"index.documents.added",
		metric.WithDescription("Documents added to the vector index"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		TokensUsed:      tokensUsed,
		KeyRotations:    keyRotations,
		IndexSearches:   indexSearches,
		IndexSize:       indexSize,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordKeyRotation records a credential rotation
func (m *Metrics) RecordKeyRotation(reason string) {
	m.KeyRotations.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("rotation.reason", reason)))
}

// RecordIndexSearch records a vector index search
func (m *Metrics) RecordIndexSearch(subject string, results int) {
	attrs := []attribute.KeyValue{
		attribute.String("index.subject_filter", subject),
		attribute.Int("index.results", results),
	}

	m.IndexSearches.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordDocumentsAdded records documents ingested into the index
func (m *Metrics) RecordDocumentsAdded(count int64, source string) {
	m.IndexSize.Add(context.Background(), count,
		metric.WithAttributes(attribute.String("index.source", source)))
}
