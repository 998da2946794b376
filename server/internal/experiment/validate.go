package experiment

import (
	"errors"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that p can run to completion. It returns a *ConfigError
// describing the first problem found.
func Validate(p models.Protocol) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return configErrorf(fe.Namespace(), "failed %q constraint (value %v)", fe.Tag(), fe.Value())
		}
		return configErrorf("", "%v", err)
	}

	low, high := p.UnpredictableLow(), p.UnpredictableHigh()
	if low >= high {
		return configErrorf("unpredictable_range", "range [%g, %g] is inverted or degenerate", low, high)
	}
	if len(p.IntertrialIntervalRange) == 2 && p.IntertrialIntervalRange[0] > p.IntertrialIntervalRange[1] {
		return configErrorf("intertrial_interval_range", "range %v is inverted", p.IntertrialIntervalRange)
	}
	if p.ResponseKey == "" {
		return configErrorf("response_key", "must not be empty")
	}

	if len(p.Conditions) == 0 {
		return configErrorf("conditions", "at least one condition is required")
	}
	for i, c := range p.Conditions {
		if !c.Valid() {
			return configErrorf("conditions", "unknown condition %d", int(c))
		}
		if i > 0 && c <= p.Conditions[i-1] {
			return configErrorf("conditions", "%s must come after %s and appear once", p.Conditions[i-1], c)
		}
	}

	if p.PredictableTime > high {
		return configErrorf("predictable_time", "%g is later than the last possible onset %g", p.PredictableTime, high)
	}

	seen := make(map[float64]bool, len(p.SemiPredictableTimes))
	for _, t := range p.SemiPredictableTimes {
		if seen[t] {
			return configErrorf("semi_predictable_times", "duplicate candidate %g", t)
		}
		seen[t] = true
		if t > high {
			return configErrorf("semi_predictable_times", "%g is later than the last possible onset %g", t, high)
		}
	}

	if runs(p, models.SemiPredictable) {
		n := len(p.SemiPredictableTimes)
		if p.TrialsPerCondition%n != 0 {
			return configErrorf("trials_per_condition",
				"%d trials cannot be split evenly over %d semi-predictable candidates", p.TrialsPerCondition, n)
		}
	}

	return nil
}

func runs(p models.Protocol, c models.Condition) bool {
	for _, pc := range p.Conditions {
		if pc == c {
			return true
		}
	}
	return false
}
