package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xuvcal/internal/config"
	"github.com/danielpatrickdp/xuvcal/internal/replay"
)

var (
	captureThetas []string
	capturePrior  int
	captureSeed   uint64
	captureOut    string
	captureDesc   string
)

var replayCmd = &cobra.Command{
	Use:   "replay [fixture.json...]",
	Short: "Re-score recorded simulator output and compare with expectations",
	Long: `Re-scores each case of one or more replay fixtures against its recorded
vplanet output, without running the simulator. Exits non-zero when any case
drifts from its expected likelihood.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

var replayCaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run vplanet and record a replay fixture",
	Long: `Runs vplanet for each parameter vector and writes a fixture holding the
recorded output and the resulting scores as expectations.

Example:
  xuvcal replay capture -s configs/gj3470.yaml -c model3 \
    --theta 0.51,1,5,-0.135,-1.889,0.0605,5.135e-4 --prior 3 --out fixture.json`,
	Args: cobra.NoArgs,
	RunE: runReplayCapture,
}

func init() {
	replayCaptureCmd.Flags().StringVarP(&starPath, "star", "s", "", "Star configuration YAML")
	replayCaptureCmd.Flags().StringVarP(&combination, "combination", "c", config.AllConstraints, "Constraint combination to fit")
	replayCaptureCmd.Flags().StringArrayVar(&captureThetas, "theta", nil, "Parameter vector, comma-separated (repeatable)")
	replayCaptureCmd.Flags().IntVar(&capturePrior, "prior", 0, "Also record N draws from the calibration prior")
	replayCaptureCmd.Flags().Uint64Var(&captureSeed, "seed", 1, "Random seed for prior draws")
	replayCaptureCmd.Flags().StringVarP(&captureOut, "out", "o", "", "Output fixture path")
	replayCaptureCmd.Flags().StringVar(&captureDesc, "description", "", "Fixture description")
	_ = replayCaptureCmd.MarkFlagRequired("star")
	_ = replayCaptureCmd.MarkFlagRequired("out")
	replayCmd.AddCommand(replayCaptureCmd)
}

// #region replay

func runReplay(cmd *cobra.Command, args []string) error {
	var all []replay.ReplayResult
	for _, path := range args {
		f, err := replay.LoadFixture(path)
		if err != nil {
			return err
		}
		results, err := replay.Replay(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("replay %s: %w", path, err)
		}
		all = append(all, results...)
	}
	summary := replay.Summarize(all)

	if jsonOut {
		if err := printJSON(struct {
			Results []replay.ReplayResult `json:"results"`
			Summary replay.ReplaySummary  `json:"summary"`
		}{all, summary}); err != nil {
			return err
		}
	} else {
		printComparison(all, summary)
	}
	if summary.Drifts > 0 || summary.Errors > 0 {
		return fmt.Errorf("%d of %d cases diverge", summary.Drifts+summary.Errors, summary.TotalCases)
	}
	return nil
}

func printComparison(results []replay.ReplayResult, s replay.ReplaySummary) {
	fmt.Printf("%-16s| %12s| %10s| %s\n", "Case", "LnLike", "RelDiff", "Match")
	fmt.Printf("%-16s+%12s+%10s+%s\n", "----------------", "-------------", "-----------", "------")
	for _, r := range results {
		match := "OK"
		if r.Action != "match" {
			match = strings.ToUpper(r.Action) + ": " + r.Reason
		}
		fmt.Printf("%-16s| %12s| %10.2g| %s\n", r.CaseID, formatLnLike(r.LnLike), r.MaxRelDiff, match)
	}
	fmt.Printf("\nSummary: %d total, %d match, %d drift, %d error (max rel diff %.2g)\n",
		s.TotalCases, s.Matches, s.Drifts, s.Errors, s.MaxRelDiff)
}

// #endregion replay

// #region capture

func runReplayCapture(cmd *cobra.Command, args []string) error {
	star, err := config.LoadStar(starPath)
	if err != nil {
		return err
	}
	obs, err := star.Observations(combination)
	if err != nil {
		return err
	}

	var thetas [][]float64
	for _, s := range captureThetas {
		v, err := parseVector(s)
		if err != nil {
			return fmt.Errorf("--theta %q: %w", s, err)
		}
		thetas = append(thetas, v)
	}
	if capturePrior > 0 {
		space, err := star.Space()
		if err != nil {
			return err
		}
		thetas = append(thetas, space.Sample(rand.New(rand.NewPCG(captureSeed, captureSeed)), capturePrior)...)
	}
	if len(thetas) == 0 {
		return fmt.Errorf("nothing to capture: give --theta or --prior")
	}

	sim, err := newSimulator(star, obs)
	if err != nil {
		return err
	}
	desc := captureDesc
	if desc == "" {
		desc = fmt.Sprintf("%s %s: %d recorded vplanet runs", star.Name, combination, len(thetas))
	}
	f, err := replay.Capture(cmd.Context(), star, combination, sim, thetas, desc)
	if err != nil {
		return err
	}
	if err := replay.SaveFixture(captureOut, f); err != nil {
		return err
	}
	fmt.Printf("Wrote %d cases to %s\n", len(f.Cases), captureOut)
	return nil
}

func parseVector(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// #endregion capture
