package models

// Requests for belief HTTP endpoints. Defined in domain for consistency and reuse.

type BsiRequest struct {
	Domain string `query:"domain" json:"domain" validate:"required"`
}

type HistoryRequest struct {
	Domain string `query:"domain" json:"domain" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type ArchiveRequest struct {
	Domain string `query:"domain" json:"domain" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	TF     string `query:"tf" json:"tf" default:"raw" validate:"oneof=raw 1m 5m 15m 1h 4h 1d"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type StatsRequest struct {
	Domain string `query:"domain" json:"domain" validate:"required"`
}

type IngestSignal struct {
	Source     string          `json:"source" validate:"required"`
	SignalType SignalType      `json:"signal_type" validate:"gte=0,lte=4"`
	Value      float64         `json:"value"`
	Weight     float64         `json:"weight" validate:"gt=0"`
	Timestamp  int64           `json:"timestamp"`
	Metadata   []MetadataEntry `json:"metadata"`
}

type IngestRequest struct {
	Domain  string         `json:"domain" validate:"required"`
	Signals []IngestSignal `json:"signals" validate:"required,min=1,max=500,dive"`
}

type ComputeRequest struct {
	Domain string `json:"domain" validate:"required"`
}

type ValidateInflectionRequest struct {
	Domain     string           `json:"domain" validate:"required"`
	Inflection BeliefInflection `json:"inflection"`
}
