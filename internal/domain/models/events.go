package models

// BsiUpdate is emitted for every computed index sample together with the
// signals that produced it.
type BsiUpdate struct {
	Bsi       BeliefStateIndex `json:"bsi"`
	Signals   []BeliefSignal   `json:"signals"`
	Timestamp int64            `json:"timestamp"`
}

// InflectionStatus is the lifecycle state of an inflection event.
type InflectionStatus string

const (
	InflectionDetected  InflectionStatus = "detected"
	InflectionValidated InflectionStatus = "validated"
	InflectionDiscarded InflectionStatus = "discarded"
)

// InflectionEvent wraps an inflection for transport and archival.
// Note: no transport (json/http) concerns beyond tags here.
type InflectionEvent struct {
	ID         string           `json:"id"`
	Domain     string           `json:"domain"`
	Status     InflectionStatus `json:"status"`
	Inflection BeliefInflection `json:"inflection"`
	EmittedAt  int64            `json:"emitted_at"`
}

// SignalEnvelope carries a signal together with the domain it belongs to.
// It is the wire shape of the signals topic and the stream feed.
type SignalEnvelope struct {
	Domain string `json:"domain"`
	BeliefSignal
}
