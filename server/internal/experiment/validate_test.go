package experiment

import (
	"errors"
	"testing"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultProtocol(t *testing.T) {
	require.NoError(t, Validate(models.DefaultProtocol()))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.Protocol)
		field  string
	}{
		{"uneven quota", func(p *models.Protocol) { p.TrialsPerCondition = 21 }, "trials_per_condition"},
		{"zero trials", func(p *models.Protocol) { p.TrialsPerCondition = 0 }, "Protocol.TrialsPerCondition"},
		{"inverted unpredictable", func(p *models.Protocol) { p.UnpredictableRange = []float64{4900, 1700} }, "unpredictable_range"},
		{"degenerate unpredictable", func(p *models.Protocol) { p.UnpredictableRange = []float64{3000, 3000} }, "unpredictable_range"},
		{"single unpredictable bound", func(p *models.Protocol) { p.UnpredictableRange = []float64{3000} }, "Protocol.UnpredictableRange"},
		{"inverted iti", func(p *models.Protocol) { p.IntertrialIntervalRange = []float64{3000, 1000} }, "intertrial_interval_range"},
		{"empty iti", func(p *models.Protocol) { p.IntertrialIntervalRange = nil }, "Protocol.IntertrialIntervalRange"},
		{"no candidates", func(p *models.Protocol) { p.SemiPredictableTimes = nil }, "Protocol.SemiPredictableTimes"},
		{"duplicate candidate", func(p *models.Protocol) { p.SemiPredictableTimes = []float64{1700, 1700} }, "semi_predictable_times"},
		{"candidate past ceiling", func(p *models.Protocol) { p.SemiPredictableTimes = []float64{1700, 5000} }, "semi_predictable_times"},
		{"predictable past ceiling", func(p *models.Protocol) { p.PredictableTime = 6000 }, "predictable_time"},
		{"out of order conditions", func(p *models.Protocol) {
			p.Conditions = []models.Condition{models.Unpredictable, models.Predictable}
		}, "conditions"},
		{"repeated condition", func(p *models.Protocol) {
			p.Conditions = []models.Condition{models.Predictable, models.Predictable}
		}, "conditions"},
		{"no conditions", func(p *models.Protocol) { p.Conditions = nil }, "conditions"},
		{"empty response key", func(p *models.Protocol) { p.ResponseKey = "" }, "response_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.DefaultProtocol()
			tt.mutate(&p)

			err := Validate(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProtocol))

			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestValidate_UnevenQuotaAllowedWithoutSemiBlock(t *testing.T) {
	p := models.DefaultProtocol()
	p.Conditions = []models.Condition{models.Predictable, models.Unpredictable}
	p.TrialsPerCondition = 7
	require.NoError(t, Validate(p))
}

func TestValidate_SingleValueIntertrialInterval(t *testing.T) {
	p := models.DefaultProtocol()
	p.IntertrialIntervalRange = []float64{1500}
	require.NoError(t, Validate(p))
	p.IntertrialIntervalRange = []float64{1500, 1500}
	require.NoError(t, Validate(p))
}
