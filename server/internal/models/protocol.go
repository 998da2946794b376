package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultResponseKey is the only key that counts as a response.
	DefaultResponseKey = " "
	// DefaultTimeoutGraceMs is added to the latest possible onset to get the
	// trial timeout.
	DefaultTimeoutGraceMs = 500.0
)

// Protocol is the experiment configuration. It is fixed for the lifetime of
// a session.
type Protocol struct {
	PredictableTime         float64     `yaml:"predictable_time" json:"predictableTime" validate:"gt=0"`
	SemiPredictableTimes    []float64   `yaml:"semi_predictable_times" json:"semiPredictableTimes" validate:"required,min=1,dive,gt=0"`
	UnpredictableRange      []float64   `yaml:"unpredictable_range" json:"unpredictableRange" validate:"len=2,dive,gt=0"`
	TrialsPerCondition      int         `yaml:"trials_per_condition" json:"trialsPerCondition" validate:"gt=0"`
	IntertrialIntervalRange []float64   `yaml:"intertrial_interval_range" json:"intertrialIntervalRange" validate:"min=1,max=2,dive,gte=0"`
	Conditions              []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	ResponseKey             string      `yaml:"response_key,omitempty" json:"responseKey,omitempty"`
	TimeoutGraceMs          *float64    `yaml:"timeout_grace_ms,omitempty" json:"timeoutGraceMs,omitempty" validate:"omitempty,gte=0"`
}

// DefaultProtocol returns the reference configuration.
func DefaultProtocol() Protocol {
	grace := DefaultTimeoutGraceMs
	return Protocol{
		PredictableTime:         4900,
		SemiPredictableTimes:    []float64{1700, 4900},
		UnpredictableRange:      []float64{1700, 4900},
		TrialsPerCondition:      20,
		IntertrialIntervalRange: []float64{2100},
		Conditions:              append([]Condition(nil), AllConditions...),
		ResponseKey:             DefaultResponseKey,
		TimeoutGraceMs:          &grace,
	}
}

// WithDefaults fills the optional fields that were left empty.
func (p Protocol) WithDefaults() Protocol {
	if len(p.Conditions) == 0 {
		p.Conditions = append([]Condition(nil), AllConditions...)
	}
	if p.ResponseKey == "" {
		p.ResponseKey = DefaultResponseKey
	}
	if p.TimeoutGraceMs == nil {
		grace := DefaultTimeoutGraceMs
		p.TimeoutGraceMs = &grace
	}
	return p
}

// TimeoutGrace returns the configured grace, which may be zero, or the
// default when none was set.
func (p Protocol) TimeoutGrace() float64 {
	if p.TimeoutGraceMs == nil {
		return DefaultTimeoutGraceMs
	}
	return *p.TimeoutGraceMs
}

// TimeoutMs is the elapsed time after which an unanswered trial ends.
func (p Protocol) TimeoutMs() float64 { return p.UnpredictableHigh() + p.TimeoutGrace() }

// UnpredictableLow is the lower bound of the unpredictable onset range.
func (p Protocol) UnpredictableLow() float64 { return p.UnpredictableRange[0] }

// UnpredictableHigh is the upper bound of the unpredictable onset range. It
// is also the latest onset any condition can have.
func (p Protocol) UnpredictableHigh() float64 { return p.UnpredictableRange[1] }

// LoadProtocol reads and parses a protocol YAML file. Missing optional
// fields get their defaults; validation is left to the caller.
func LoadProtocol(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol file: %w", err)
	}

	var protocol Protocol
	if err := yaml.Unmarshal(data, &protocol); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protocol YAML: %w", err)
	}

	protocol = protocol.WithDefaults()
	return &protocol, nil
}
