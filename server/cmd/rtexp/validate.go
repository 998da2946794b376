package main

import (
	"fmt"
	"io"
	"os"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/experiment"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a protocol file",
	Long:  `Loads the protocol, applies defaults and reports the first problem that would stop a session from running to completion.`,
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("protocol")
		p, err := runValidate(path)
		if err != nil {
			color.Red("Protocol is invalid: %v", err)
			os.Exit(1)
		}
		describeProtocol(cmd.OutOrStdout(), p)
		color.Green("Protocol is valid")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(path string) (models.Protocol, error) {
	p, err := models.LoadProtocol(path)
	if err != nil {
		return models.Protocol{}, err
	}
	if err := experiment.Validate(*p); err != nil {
		return models.Protocol{}, err
	}
	return *p, nil
}

func describeProtocol(w io.Writer, p models.Protocol) {
	fmt.Fprintf(w, "Conditions:          %v\n", p.Conditions)
	fmt.Fprintf(w, "Trials/condition:    %d\n", p.TrialsPerCondition)
	fmt.Fprintf(w, "Predictable onset:   %g ms\n", p.PredictableTime)
	fmt.Fprintf(w, "Semi candidates:     %v ms\n", p.SemiPredictableTimes)
	fmt.Fprintf(w, "Unpredictable range: %v ms\n", p.UnpredictableRange)
	fmt.Fprintf(w, "Intertrial interval: %v ms\n", p.IntertrialIntervalRange)
	fmt.Fprintf(w, "Timeout:             %g ms\n", p.TimeoutMs())
}
