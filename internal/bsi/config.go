package bsi

import (
	"errors"
	"fmt"

	"Preda/internal/domain/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is matched by every ConfigurationError.
var ErrInvalidConfig = errors.New("invalid bsi configuration")

// ConfigurationError reports the first configuration field that failed validation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfig }

// SignalWeights holds the per-type multiplier applied on top of each signal's own weight.
type SignalWeights struct {
	Sentiment       float64 `yaml:"sentiment" json:"sentiment" default:"1.0" validate:"gt=0"`
	Probability     float64 `yaml:"probability" json:"probability" default:"1.2" validate:"gt=0"`
	Narrative       float64 `yaml:"narrative" json:"narrative" default:"0.8" validate:"gt=0"`
	ModelForecast   float64 `yaml:"model_forecast" json:"model_forecast" default:"1.5" validate:"gt=0"`
	ConsensusMetric float64 `yaml:"consensus_metric" json:"consensus_metric" default:"1.3" validate:"gt=0"`
}

// For returns the multiplier for t. Unknown types weigh 0.
func (w SignalWeights) For(t models.SignalType) float64 {
	switch t {
	case models.SignalSentiment:
		return w.Sentiment
	case models.SignalProbability:
		return w.Probability
	case models.SignalNarrative:
		return w.Narrative
	case models.SignalModelForecast:
		return w.ModelForecast
	case models.SignalConsensusMetric:
		return w.ConsensusMetric
	default:
		return 0
	}
}

// Config tunes the calculator.
//
// SmoothingWindow only affects the velocity lookback, DecayFactor only
// affects ApplyDecay.
type Config struct {
	SmoothingWindow  int64         `yaml:"smoothing_window" json:"smoothing_window" default:"300" validate:"gt=0"`
	DecayFactor      float64       `yaml:"decay_factor" json:"decay_factor" default:"0.95" validate:"gt=0,lte=1"`
	MinSignalCount   uint32        `yaml:"min_signal_count" json:"min_signal_count" default:"3" validate:"gt=0"`
	OutlierThreshold float64       `yaml:"outlier_threshold" json:"outlier_threshold" default:"2.5" validate:"gt=0"`
	SignalWeights    SignalWeights `yaml:"signal_weights" json:"signal_weights"`
}

var validate = validator.New()

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// only reachable with malformed default tags
		panic(fmt.Sprintf("bsi: default config: %v", err))
	}
	return c
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() error {
	return defaults.Set(c)
}

// Validate checks every field independently and returns a *ConfigurationError
// for the first violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigurationError{Reason: err.Error()}
	}
	fe := verrs[0]
	return &ConfigurationError{Field: fe.Field(), Reason: reasonFor(fe)}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Field() {
	case "SmoothingWindow":
		return "smoothing window must be greater than 0"
	case "DecayFactor":
		return "decay factor must be between 0.0 and 1.0"
	case "MinSignalCount":
		return "minimum signal count must be greater than 0"
	case "OutlierThreshold":
		return "outlier threshold must be positive"
	default:
		return fmt.Sprintf("signal weight %s must be positive", fe.Field())
	}
}
