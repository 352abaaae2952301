package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"Preda/internal/domain/models"
	drepo "Preda/internal/domain/repository"
	applogger "Preda/pkg/logger"

	"github.com/google/uuid"
)

// EventSink receives inflection lifecycle events.
type EventSink interface {
	Dispatch(ev models.InflectionEvent)
}

type persistenceChecker interface {
	Validate(domain string, inf models.BeliefInflection) (models.BeliefInflection, bool, error)
}

type pendingInflection struct {
	id     string
	domain string
	inf    models.BeliefInflection
}

// PersistenceValidator follows detected inflections until they either
// persist long enough (validated) or age past the timeout (discarded).
// Validation only advances when Tick is called.
type PersistenceValidator struct {
	checker persistenceChecker
	sink    EventSink
	metrics drepo.Metrics
	log     *applogger.Logger
	timeout time.Duration
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	pending map[string]*pendingInflection
}

type ValidatorOption func(*PersistenceValidator)

func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *PersistenceValidator) { v.now = now }
}

func WithIDGenerator(fn func() string) ValidatorOption {
	return func(v *PersistenceValidator) { v.newID = fn }
}

func NewPersistenceValidator(checker persistenceChecker, sink EventSink, metrics drepo.Metrics, log *applogger.Logger, timeout time.Duration, opts ...ValidatorOption) *PersistenceValidator {
	if log == nil {
		log = applogger.Nop()
	}
	v := &PersistenceValidator{
		checker: checker,
		sink:    sink,
		metrics: metrics,
		log:     log.With(applogger.String("component", "persistence_validator")),
		timeout: timeout,
		now:     time.Now,
		newID:   uuid.NewString,
		pending: make(map[string]*pendingInflection),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// OnInflection starts tracking inf and emits its detected event.
func (v *PersistenceValidator) OnInflection(domain string, inf models.BeliefInflection) {
	p := &pendingInflection{id: v.newID(), domain: domain, inf: inf}
	v.mu.Lock()
	v.pending[p.id] = p
	v.mu.Unlock()
	v.emit(p, models.InflectionDetected, inf)
}

// Tick re-checks every pending inflection and returns the events it emitted.
func (v *PersistenceValidator) Tick(ctx context.Context) []models.InflectionEvent {
	v.mu.Lock()
	batch := make([]*pendingInflection, 0, len(v.pending))
	for _, p := range v.pending {
		batch = append(batch, p)
	}
	v.mu.Unlock()
	sort.Slice(batch, func(i, j int) bool { return batch[i].inf.Timestamp < batch[j].inf.Timestamp })

	now := v.now().Unix()
	var out []models.InflectionEvent
	for _, p := range batch {
		if ctx.Err() != nil {
			break
		}
		validated, ok, err := v.checker.Validate(p.domain, p.inf)
		switch {
		case err != nil:
			v.log.Warn("persistence check failed", applogger.String("domain", p.domain), applogger.Error(err))
			v.drop(p.id)
			out = append(out, v.emit(p, models.InflectionDiscarded, p.inf))
		case ok:
			v.drop(p.id)
			out = append(out, v.emit(p, models.InflectionValidated, validated))
		case v.timeout > 0 && time.Duration(now-p.inf.Timestamp)*time.Second >= v.timeout:
			v.drop(p.id)
			discarded := p.inf
			discarded.PersistenceDuration = validated.PersistenceDuration
			out = append(out, v.emit(p, models.InflectionDiscarded, discarded))
		}
	}
	return out
}

// Pending returns the number of inflections awaiting a verdict.
func (v *PersistenceValidator) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

func (v *PersistenceValidator) drop(id string) {
	v.mu.Lock()
	delete(v.pending, id)
	v.mu.Unlock()
}

func (v *PersistenceValidator) emit(p *pendingInflection, status models.InflectionStatus, inf models.BeliefInflection) models.InflectionEvent {
	ev := models.InflectionEvent{
		ID:         p.id,
		Domain:     p.domain,
		Status:     status,
		Inflection: inf,
		EmittedAt:  v.now().Unix(),
	}
	if status != models.InflectionDetected {
		v.metrics.RecordInflection(p.domain, inf.InflectionType, status)
	}
	v.log.Info("inflection "+string(status),
		applogger.String("id", ev.ID),
		applogger.String("domain", ev.Domain),
		applogger.String("type", inf.InflectionType.String()),
		applogger.Float64("bsi", inf.BsiValue),
		applogger.Int64("persistence_s", inf.PersistenceDuration))
	if v.sink != nil {
		v.sink.Dispatch(ev)
	}
	return ev
}
