package experiment

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
)

const (
	// ExportFilename is the name the CSV is offered under.
	ExportFilename = "results.csv"
	// NoResponseLabel marks a trial that timed out in the export.
	NoResponseLabel = "No response"
)

var exportHeader = []string{"Condition", "TargetTime(ms)", "ReactionTime(ms)"}

// WriteCSV writes results, in order, in the export format.
func WriteCSV(w io.Writer, results []models.TrialResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, r := range results {
		if err := cw.Write(csvRow(r)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(r models.TrialResult) []string {
	rt := NoResponseLabel
	if r.ReactionTimeMs != nil {
		rt = strconv.FormatFloat(math.Round(*r.ReactionTimeMs), 'f', 0, 64)
	}
	return []string{
		r.Condition.String(),
		strconv.FormatFloat(r.TargetTimeMs, 'f', -1, 64),
		rt,
	}
}
