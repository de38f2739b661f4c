package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xuvcal/internal/logging"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/sweep"
)

var (
	sweepN       int
	sweepSeed    uint64
	sweepIsolate bool
	sweepRetries int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate N draws from the calibration prior in parallel",
	Long: `Draws parameter vectors from the star's calibration prior and evaluates
them on a worker pool, recording every evaluation in the run.

By default the first failed simulation stops the sweep. With --isolate each
draw runs independently; failures are recorded and the sweep continues.`,
	RunE: runSweep,
}

func init() {
	addStarFlags(sweepCmd)
	sweepCmd.Flags().IntVarP(&sweepN, "n", "n", 100, "Number of prior draws")
	sweepCmd.Flags().Uint64Var(&sweepSeed, "seed", 1, "Random seed for the prior draws")
	sweepCmd.Flags().BoolVar(&sweepIsolate, "isolate", false, "Continue past failed simulations")
	sweepCmd.Flags().IntVar(&sweepRetries, "retries", 0, "Retries per failed simulation (with --isolate)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if sweepN < 1 {
		return fmt.Errorf("--n must be positive")
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	space, err := sess.star.Space()
	if err != nil {
		return err
	}
	draws := space.Sample(rand.New(rand.NewPCG(sweepSeed, sweepSeed)), sweepN)
	thetas := make([]model.Theta, len(draws))
	for i, d := range draws {
		if thetas[i], err = model.FromSlice(d); err != nil {
			return err
		}
	}

	opts := sweep.Options{Workers: workers, Isolate: sweepIsolate, Retries: sweepRetries, Logger: logger}
	start := time.Now()
	results, err := sweep.Run(cmd.Context(), thetas, timedLnLike(sess.model), opts)
	rec := logging.SweepRecord{
		Items:    len(thetas),
		Workers:  workers,
		Isolated: sweepIsolate,
		Retries:  sweepRetries,
		Seconds:  time.Since(start).Seconds(),
	}
	if err != nil {
		sess.logEvent("sweep", "failed", err.Error(), rec)
		return err
	}

	best := math.Inf(-1)
	for _, r := range results {
		ev, err := sess.record("sweep", r.Value.Result, r.Err, r.Value.Elapsed)
		if err != nil {
			sess.logEvent("sweep", "failed", err.Error(), rec)
			return err
		}
		if ev.LnLike > best {
			best = ev.LnLike
			rec.BestLnLike = finite(ev.LnLike)
			rec.BestTheta = ev.Theta
		}
	}
	rec.Failed = sweep.Failed(results)
	outcome := "ok"
	if rec.Failed > 0 {
		outcome = "partial"
	}
	sess.logEvent("sweep", outcome, "", rec)
	logger.Info("sweep recorded",
		zap.String("run_id", sess.run.RunID),
		zap.Int("items", rec.Items),
		zap.Int("failed", rec.Failed))

	if jsonOut {
		return printJSON(struct {
			RunID string `json:"run_id"`
			logging.SweepRecord
		}{sess.run.RunID, rec})
	}
	fmt.Printf("Run:      %s\n", sess.run.RunID)
	fmt.Printf("Draws:    %d (%d failed) in %.1fs\n", rec.Items, rec.Failed, rec.Seconds)
	if rec.BestLnLike != nil {
		fmt.Printf("Best:     %.4f at %s\n", *rec.BestLnLike, formatVector(rec.BestTheta))
	} else {
		fmt.Println("Best:     none (every draw failed)")
	}
	return nil
}
