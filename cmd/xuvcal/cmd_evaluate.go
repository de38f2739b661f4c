package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xuvcal/internal/fit"
	"github.com/danielpatrickdp/xuvcal/internal/model"
)

var evalTheta []float64

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run the model for one parameter vector and print its likelihood",
	Long: `Runs vplanet for one parameter vector and scores the final state against
the star's constraints. Parameters are given in order:

  mass (Msun), prot_init (day), age (Gyr), beta1, beta2, ro_sat, rx_sat

Example:
  xuvcal evaluate -s configs/gj3470.yaml -c model3 \
    --theta 0.51,1,5,-0.135,-1.889,0.0605,5.135e-4`,
	RunE: runEvaluate,
}

func init() {
	addStarFlags(evaluateCmd)
	evaluateCmd.Flags().Float64SliceVar(&evalTheta, "theta", nil, "Parameter vector (7 comma-separated values)")
	_ = evaluateCmd.MarkFlagRequired("theta")
}

type evaluateOutput struct {
	RunID  string             `json:"run_id"`
	EvalID string             `json:"eval_id"`
	Theta  []float64          `json:"theta"`
	LnLike *float64           `json:"lnlike"`
	Terms  []fit.Term         `json:"terms"`
	Finals map[string]float64 `json:"finals"`
	Passed bool               `json:"passed"`
	Reason string             `json:"reason,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	theta, err := model.FromSlice(evalTheta)
	if err != nil {
		return err
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	start := time.Now()
	res, evalErr := sess.model.LnLike(cmd.Context(), theta)
	ev, err := sess.record("evaluate", res, evalErr, time.Since(start))
	if err != nil {
		return err
	}
	outcome := "ok"
	if evalErr != nil {
		outcome = "failed"
	}
	sess.logEvent("evaluate", outcome, ev.Error, map[string]any{"eval_id": ev.EvalID, "theta": ev.Theta})

	out := evaluateOutput{
		RunID:  ev.RunID,
		EvalID: ev.EvalID,
		Theta:  ev.Theta,
		LnLike: finite(ev.LnLike),
		Terms:  ev.Terms,
		Finals: make(map[string]float64, len(ev.Finals)),
		Passed: ev.Passed,
		Reason: ev.Reason,
		Error:  ev.Error,
	}
	for k, v := range ev.Finals {
		out.Finals[string(k)] = v
	}
	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:     %s\n", out.RunID)
	fmt.Printf("Eval:    %s\n", out.EvalID)
	fmt.Printf("Theta:   %s\n", formatVector(out.Theta))
	fmt.Printf("LnLike:  %s\n", formatLnLike(ev.LnLike))
	if out.Error != "" {
		fmt.Printf("Error:   %s\n", out.Error)
		return nil
	}
	fmt.Printf("Checks:  passed=%v %s\n\n", out.Passed, out.Reason)

	fmt.Printf("%-6s  %12s  %12s  %12s  %10s\n", "Kind", "Simulated", "Observed", "Sigma", "Chi2")
	fmt.Printf("%-6s+-%12s+-%12s+-%12s+-%10s\n", "------", "------------", "------------", "------------", "----------")
	for _, t := range out.Terms {
		fmt.Printf("%-6s  %12.5g  %12.5g  %12.5g  %10.4f\n", t.Kind, t.Simulated, t.Observed, t.Sigma, t.Chi2)
	}
	return nil
}
