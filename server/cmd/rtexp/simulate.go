package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/experiment"
	logger "github.com/GapNapatS/PredictableTimingExperiment/server/internal/logging"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a headless session with a simulated participant",
	Long: `Runs a full session on a virtual clock. The simulated participant answers
each trial at onset plus a normally distributed delay, or misses it.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := simOptions{}
		opts.protocolPath, _ = cmd.Flags().GetString("protocol")
		opts.participantID, _ = cmd.Flags().GetString("pid")
		opts.seed, _ = cmd.Flags().GetUint64("seed")
		opts.missRate, _ = cmd.Flags().GetFloat64("miss-rate")
		opts.rtMean, _ = cmd.Flags().GetFloat64("rt-mean")
		opts.rtSD, _ = cmd.Flags().GetFloat64("rt-sd")
		opts.tickMs, _ = cmd.Flags().GetFloat64("tick")
		out, _ := cmd.Flags().GetString("out")
		verbose, _ := cmd.Flags().GetBool("verbose")

		opts.log = zap.NewNop()
		if verbose {
			opts.log = logger.NewConsole()
		}

		if err := simulateToFile(opts, out, cmd.OutOrStdout()); err != nil {
			color.Red("Simulation failed: %v", err)
			os.Exit(1)
		}
		color.Green("Results written to %s", out)
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringP("out", "o", experiment.ExportFilename, "CSV output path")
	simulateCmd.Flags().String("pid", "", "Participant ID (generated when empty)")
	simulateCmd.Flags().Uint64("seed", 1, "Seed for the scheduler and the simulated participant")
	simulateCmd.Flags().Float64("miss-rate", 0.05, "Probability that a trial gets no response")
	simulateCmd.Flags().Float64("rt-mean", 250, "Mean response delay after onset, in ms")
	simulateCmd.Flags().Float64("rt-sd", 60, "Standard deviation of the response delay, in ms")
	simulateCmd.Flags().Float64("tick", 1000.0/60, "Virtual frame duration, in ms")
	simulateCmd.Flags().BoolP("verbose", "v", false, "Log every trial")
}

type simOptions struct {
	protocolPath  string
	participantID string
	seed          uint64
	missRate      float64
	rtMean        float64
	rtSD          float64
	tickMs        float64
	log           *zap.Logger
}

func simulateToFile(opts simOptions, path string, summary io.Writer) error {
	results, err := simulate(opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := experiment.WriteCSV(f, results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	printSummary(summary, results)
	return nil
}

// maxSimulatedTicks guards against a protocol that never completes.
const maxSimulatedTicks = 50_000_000

func simulate(opts simOptions) ([]models.TrialResult, error) {
	if opts.tickMs <= 0 {
		return nil, errors.New("tick must be positive")
	}
	if opts.missRate < 0 || opts.missRate > 1 {
		return nil, errors.New("miss-rate must be within [0, 1]")
	}
	if opts.log == nil {
		opts.log = zap.NewNop()
	}

	p, err := runValidate(opts.protocolPath)
	if err != nil {
		return nil, err
	}

	pid := opts.participantID
	if pid == "" {
		if pid, err = utils.GenerateParticipantID(); err != nil {
			return nil, err
		}
	}

	clock := &experiment.ManualClock{}
	recorder := experiment.NewRecorder(pid, experiment.WithRecorderLogger(opts.log))
	machine, err := experiment.NewMachine(p, clock, experiment.NewRandomSource(opts.seed), recorder,
		experiment.WithLogger(opts.log))
	if err != nil {
		return nil, err
	}

	participant := rand.New(rand.NewPCG(opts.seed, opts.seed+1))
	plannedFor, respondAt := -1.0, -1.0

	for i := 0; !machine.Done(); i++ {
		if i >= maxSimulatedTicks {
			return nil, fmt.Errorf("session did not complete after %d ticks", i)
		}
		clock.Advance(opts.tickMs)
		if _, err := machine.Tick(); err != nil {
			return nil, err
		}

		st := machine.State()
		if st.Phase != experiment.ActiveTrial {
			continue
		}
		if st.TrialStartMs != plannedFor {
			plannedFor = st.TrialStartMs
			respondAt = -1
			if participant.Float64() >= opts.missRate {
				delay := opts.rtMean + participant.NormFloat64()*opts.rtSD
				respondAt = math.Max(st.TrialStartMs+st.Trial.TargetTimeMs+delay, st.TrialStartMs)
			}
		}
		if respondAt >= 0 && clock.NowMs() >= respondAt {
			machine.HandleKeyAt(p.ResponseKey, respondAt-st.TrialStartMs)
			respondAt = -1
		}
	}
	return machine.Results(), nil
}

func printSummary(w io.Writer, results []models.TrialResult) {
	type tally struct {
		trials, responses int
		rtSum             float64
	}
	byCondition := map[models.Condition]*tally{}
	for _, r := range results {
		t, ok := byCondition[r.Condition]
		if !ok {
			t = &tally{}
			byCondition[r.Condition] = t
		}
		t.trials++
		if r.Responded() {
			t.responses++
			t.rtSum += *r.ReactionTimeMs
		}
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "%-18s %7s %10s %12s\n", "Condition", "Trials", "Responses", "Mean RT(ms)")
	for _, c := range models.AllConditions {
		t, ok := byCondition[c]
		if !ok {
			continue
		}
		mean := "-"
		if t.responses > 0 {
			mean = fmt.Sprintf("%.0f", t.rtSum/float64(t.responses))
		}
		fmt.Fprintf(w, "%-18s %7d %10d %12s\n", c, t.trials, t.responses, mean)
	}
}
