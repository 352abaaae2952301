package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"Preda/internal/domain/models"
	xhttp "Preda/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed() time.Time { return time.Unix(1_700_000_000, 0) }

func TestConstructorsCarryOracleConstants(t *testing.T) {
	cases := []struct {
		o        *HTTPOracle
		name     string
		endpoint string
		freq     time.Duration
	}{
		{NewSentiment(""), "Sentiment Oracle", DefaultSentimentEndpoint, 300 * time.Second},
		{NewNarrative(""), "Narrative Oracle", DefaultNarrativeEndpoint, 600 * time.Second},
		{NewForecast(""), "Forecast Oracle", DefaultForecastEndpoint, 300 * time.Second},
		{NewConsensus("http://x"), "Consensus Oracle", "http://x", 300 * time.Second},
	}
	for _, c := range cases {
		assert.Equal(t, c.name, c.o.Name())
		assert.Equal(t, c.endpoint, c.o.Endpoint())
		assert.Equal(t, c.freq, c.o.UpdateFrequency())
	}
}

func TestQueryBuildsSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/narrative/BTC", r.URL.Path)
		_, _ = w.Write([]byte(`{"narrative_score": -0.35, "other": 1}`))
	}))
	defer srv.Close()

	o := NewNarrative(srv.URL+"/narrative", WithClock(fixed))
	s, err := o.Query(context.Background(), "BTC")
	require.NoError(t, err)

	assert.Equal(t, "narrative_oracle", s.Source)
	assert.Equal(t, models.SignalNarrative, s.SignalType)
	assert.Equal(t, -0.35, s.Value)
	assert.Equal(t, 0.8, s.Weight)
	assert.Equal(t, int64(1_700_000_000), s.Timestamp)
	assert.Equal(t, []models.MetadataEntry{{Key: "domain", Value: "BTC"}, {Key: "oracle", Value: "narrative"}}, s.Metadata)
}

func TestQueryMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"sentiment_score": "high"}`))
	}))
	defer srv.Close()

	_, err := NewSentiment(srv.URL).Query(context.Background(), "BTC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentiment_score")
}

func TestQueryNonSuccessStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewForecast(srv.URL, WithRetries(3)).Query(context.Background(), "ETH")
	var se *xhttp.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}

func TestQueryRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"consensus_score": 0.9}`))
	}))
	defer srv.Close()

	s, err := NewConsensus(srv.URL, WithRetries(3)).Query(context.Background(), "SOL")
	require.NoError(t, err)
	assert.Equal(t, 0.9, s.Value)
	assert.Equal(t, 1.3, s.Weight)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueryEmptyEndpoint(t *testing.T) {
	o := New(SentimentSpec, "")
	_, err := o.Query(context.Background(), "BTC")
	assert.Error(t, err)
}
