package main

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xuvcal/internal/npz"
	"github.com/danielpatrickdp/xuvcal/internal/posterior"
	"github.com/danielpatrickdp/xuvcal/internal/sweep"
)

var (
	postSamples string
	postKey     string
	postSampler string
	postN       int
	postSeed    uint64
)

var posteriorCmd = &cobra.Command{
	Use:   "posterior",
	Short: "Evolve posterior samples and summarise the predicted observables",
	Long: `Draws N posterior samples without replacement, runs each through the
model and reports the 16th, 50th and 84th percentiles of the final bolometric,
X-ray and XUV luminosities and rotation period.

Samples come from an .npz archive (--samples) or from samples previously
imported into the run (--run with --sampler).`,
	RunE: runPosterior,
}

func init() {
	addStarFlags(posteriorCmd)
	posteriorCmd.Flags().StringVar(&postSamples, "samples", "", "Sampler output .npz archive")
	posteriorCmd.Flags().StringVar(&postKey, "key", npz.SamplesKey, "Array name inside the archive")
	posteriorCmd.Flags().StringVar(&postSampler, "sampler", "", "Load samples imported under this sampler name")
	posteriorCmd.Flags().IntVarP(&postN, "n", "n", 100, "Number of draws (0 uses every sample)")
	posteriorCmd.Flags().Uint64Var(&postSeed, "seed", 1, "Random seed for the draws")
	posteriorCmd.MarkFlagsMutuallyExclusive("samples", "sampler")
	posteriorCmd.MarkFlagsOneRequired("samples", "sampler")
}

func runPosterior(cmd *cobra.Command, args []string) error {
	if postSampler != "" && runID == "" {
		return errors.New("--sampler needs --run to locate the imported samples")
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	var samples [][]float64
	if postSamples != "" {
		samples, err = npz.ReadFile(postSamples, postKey)
	} else {
		samples, err = sess.store.LoadSamples(sess.run.RunID, postSampler)
	}
	if err != nil {
		return err
	}

	report, err := posterior.Run(cmd.Context(), sess.model, samples, rand.New(rand.NewPCG(postSeed, postSeed)), posterior.Options{
		N:      postN,
		Sweep:  sweep.Options{Workers: workers, Isolate: true, Logger: logger},
		Logger: logger,
	})
	if err != nil {
		sess.logEvent("posterior", "failed", err.Error(), nil)
		return err
	}
	for _, r := range report.Results {
		if _, err := sess.record("posterior", r.Value, r.Err, 0); err != nil {
			return err
		}
	}
	outcome := "ok"
	if report.Failed > 0 {
		outcome = "partial"
	}
	sess.logEvent("posterior", outcome, "", map[string]any{
		"draws":   len(report.Draws),
		"failed":  report.Failed,
		"summary": report.Summary,
	})

	if jsonOut {
		return printJSON(report)
	}
	fmt.Printf("Run:    %s\n", sess.run.RunID)
	fmt.Printf("Draws:  %d of %d samples (%d failed)\n\n", len(report.Draws), len(samples), report.Failed)
	fmt.Printf("%-6s  %-6s  %5s  %12s  %12s  %12s\n", "Kind", "Unit", "N", "P16", "P50", "P84")
	fmt.Printf("%-6s+-%-6s+-%5s+-%12s+-%12s+-%12s\n", "------", "------", "-----", "------------", "------------", "------------")
	for _, p := range report.Summary {
		fmt.Printf("%-6s  %-6s  %5d  %12.5g  %12.5g  %12.5g\n", p.Kind, p.Unit, p.N, p.P16, p.P50, p.P84)
	}
	return nil
}
