// Package oracle queries the external belief oracles over HTTP. Each oracle
// answers GET {endpoint}/{domain} with a JSON object carrying one score.
package oracle

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"Preda/internal/domain/models"
	drepo "Preda/internal/domain/repository"
	xhttp "Preda/pkg/http"
)

const (
	DefaultSentimentEndpoint = "https://api.preda.io/sentiment"
	DefaultNarrativeEndpoint = "https://api.preda.io/narrative"
	DefaultForecastEndpoint  = "https://api.preda.io/forecast"
	DefaultConsensusEndpoint = "https://api.preda.io/consensus"
)

// Spec describes one oracle kind.
type Spec struct {
	Name       string
	Source     string
	Kind       string
	Field      string
	SignalType models.SignalType
	Weight     float64
	Frequency  time.Duration
}

var (
	SentimentSpec = Spec{
		Name: "Sentiment Oracle", Source: "sentiment_oracle", Kind: "sentiment",
		Field: "sentiment_score", SignalType: models.SignalSentiment, Weight: 1.0, Frequency: 5 * time.Minute,
	}
	NarrativeSpec = Spec{
		Name: "Narrative Oracle", Source: "narrative_oracle", Kind: "narrative",
		Field: "narrative_score", SignalType: models.SignalNarrative, Weight: 0.8, Frequency: 10 * time.Minute,
	}
	ForecastSpec = Spec{
		Name: "Forecast Oracle", Source: "forecast_oracle", Kind: "forecast",
		Field: "probability", SignalType: models.SignalProbability, Weight: 1.2, Frequency: 5 * time.Minute,
	}
	ConsensusSpec = Spec{
		Name: "Consensus Oracle", Source: "consensus_oracle", Kind: "consensus",
		Field: "consensus_score", SignalType: models.SignalConsensusMetric, Weight: 1.3, Frequency: 5 * time.Minute,
	}
)

// HTTPOracle is a SignalSource backed by one oracle endpoint.
type HTTPOracle struct {
	spec Spec
	base *httpBase
	now  func() time.Time
}

type Option func(*HTTPOracle)

func WithClient(c *xhttp.Client) Option {
	return func(o *HTTPOracle) { o.base.client = c }
}

// WithRetries sets the attempt count for transient failures.
func WithRetries(attempts int) Option {
	return func(o *HTTPOracle) {
		if attempts > 0 {
			o.base.attempts = attempts
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *HTTPOracle) { o.now = now }
}

func New(spec Spec, endpoint string, opts ...Option) *HTTPOracle {
	o := &HTTPOracle{spec: spec, base: newHTTPBase(endpoint, nil, 1), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func NewSentiment(endpoint string, opts ...Option) *HTTPOracle {
	return New(SentimentSpec, orDefault(endpoint, DefaultSentimentEndpoint), opts...)
}

func NewNarrative(endpoint string, opts ...Option) *HTTPOracle {
	return New(NarrativeSpec, orDefault(endpoint, DefaultNarrativeEndpoint), opts...)
}

func NewForecast(endpoint string, opts ...Option) *HTTPOracle {
	return New(ForecastSpec, orDefault(endpoint, DefaultForecastEndpoint), opts...)
}

func NewConsensus(endpoint string, opts ...Option) *HTTPOracle {
	return New(ConsensusSpec, orDefault(endpoint, DefaultConsensusEndpoint), opts...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (o *HTTPOracle) Name() string { return o.spec.Name }

func (o *HTTPOracle) UpdateFrequency() time.Duration { return o.spec.Frequency }

func (o *HTTPOracle) Endpoint() string { return o.base.endpoint }

// Query fetches the current score for domain.
func (o *HTTPOracle) Query(ctx context.Context, domain string) (models.BeliefSignal, error) {
	var data map[string]interface{}
	if err := o.base.getJSONWithRetry(ctx, url.PathEscape(domain), &data); err != nil {
		return models.BeliefSignal{}, fmt.Errorf("%s: %w", o.spec.Kind, err)
	}
	v, err := o.parse(data)
	if err != nil {
		return models.BeliefSignal{}, err
	}
	return models.BeliefSignal{
		Source:     o.spec.Source,
		SignalType: o.spec.SignalType,
		Value:      v,
		Weight:     o.spec.Weight,
		Timestamp:  o.now().Unix(),
		Metadata: []models.MetadataEntry{
			{Key: "domain", Value: domain},
			{Key: "oracle", Value: o.spec.Kind},
		},
	}, nil
}

func (o *HTTPOracle) parse(data map[string]interface{}) (float64, error) {
	v, ok := data[o.spec.Field].(float64)
	if !ok {
		return 0, fmt.Errorf("%s: invalid %s data: missing numeric %q", o.spec.Kind, o.spec.Kind, o.spec.Field)
	}
	return v, nil
}

var _ drepo.SignalSource = (*HTTPOracle)(nil)
