package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"Preda/internal/domain/models"
	"Preda/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewDispatcherValidatesBackend(t *testing.T) {
	_, err := NewInflectionDispatcher(BackendKafka, nil, nil, metrics.Noop{}, nil, 0, 0)
	assert.Error(t, err)
	_, err = NewInflectionDispatcher(BackendClickHouse, nil, nil, metrics.Noop{}, nil, 0, 0)
	assert.Error(t, err)
	_, err = NewInflectionDispatcher("s3", nil, nil, metrics.Noop{}, nil, 0, 0)
	assert.Error(t, err)

	d, err := NewInflectionDispatcher("", nil, nil, metrics.Noop{}, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, BackendNone, d.Backend())
}

func update(domain string, v float64) models.BsiUpdate {
	return models.BsiUpdate{Bsi: models.BeliefStateIndex{Domain: domain, Value: v}}
}

func TestDispatcherKafkaBatchesBySize(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	pub := &recordingPublisher{}
	d, err := NewInflectionDispatcher(BackendKafka, pub, nil, metrics.Noop{}, nil, 2, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	d.HandleUpdate(ctx, update("BTC", 0.1))
	d.HandleUpdate(ctx, update("ETH", 0.2))
	d.Dispatch(models.InflectionEvent{ID: "a", Domain: "BTC", Status: models.InflectionDetected})

	require.Eventually(t, func() bool {
		us, evs := pub.snapshot()
		return len(us) == 2 && len(evs) == 1
	}, time.Second, 5*time.Millisecond)

	d.HandleUpdate(ctx, update("BTC", 0.3))
	cancel()
	d.Wait()

	us, _ := pub.snapshot()
	assert.Len(t, us, 3, "pending batch is drained on shutdown")

	d.Close()
	assert.True(t, pub.closed)
}

func TestDispatcherClickHouseFlushesOnTimeout(t *testing.T) {
	archive := &recordingArchive{}
	d, err := NewInflectionDispatcher(BackendClickHouse, nil, archive, metrics.Noop{}, nil, 100, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		d.Wait()
	}()
	go d.Run(ctx)

	d.HandleUpdate(ctx, update("BTC", 0.4))
	d.Dispatch(models.InflectionEvent{ID: "x", Domain: "BTC", Status: models.InflectionValidated})

	require.Eventually(t, func() bool {
		archive.mu.Lock()
		defer archive.mu.Unlock()
		return len(archive.batches) == 1 && len(archive.inflections) == 1
	}, time.Second, 5*time.Millisecond)

	archive.mu.Lock()
	defer archive.mu.Unlock()
	assert.Equal(t, "BTC", archive.batches[0][0].Domain)
	assert.Equal(t, "x", archive.inflections[0].ID)
}

func TestDispatcherSurvivesPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d, err := NewInflectionDispatcher(BackendKafka, pub, nil, metrics.Noop{}, nil, 1, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	d.HandleUpdate(ctx, update("BTC", 0.1))
	d.Dispatch(models.InflectionEvent{ID: "a"})
	cancel()
	d.Wait()

	us, evs := pub.snapshot()
	assert.Empty(t, us)
	assert.Empty(t, evs)
}

func TestDispatcherNoneIgnoresUpdates(t *testing.T) {
	d, err := NewInflectionDispatcher(BackendNone, nil, nil, metrics.Noop{}, nil, 1, time.Hour)
	require.NoError(t, err)
	d.HandleUpdate(context.Background(), update("BTC", 0.1))
	assert.Zero(t, len(d.updates))
}
