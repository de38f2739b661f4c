package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xuvcal/internal/store"
)

var (
	inspectLast int
	inspectBest bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [run-id]",
	Short: "List runs, or the evaluations recorded for one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "Show the N most recent rows")
	inspectCmd.Flags().BoolVar(&inspectBest, "best", false, "Show only the highest-likelihood evaluation")
}

func runInspect(cmd *cobra.Command, args []string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	if len(args) == 0 {
		return runListRuns(st)
	}
	run, err := st.GetRun(args[0])
	if err != nil {
		return err
	}
	if inspectBest {
		return runBest(st, run)
	}
	return runListEvaluations(st, run)
}

// #region runs

type runRow struct {
	RunID       string `json:"run_id"`
	Star        string `json:"star"`
	Combination string `json:"combination"`
	Evaluations int    `json:"evaluations"`
	Failed      int    `json:"failed"`
	CreatedAt   string `json:"created_at"`
}

func runListRuns(st *store.Store) error {
	runs, err := st.ListRuns(inspectLast)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}
	rows := make([]runRow, len(runs))
	for i, r := range runs {
		total, failed, err := st.CountEvaluations(r.RunID)
		if err != nil {
			return err
		}
		rows[i] = runRow{
			RunID:       r.RunID,
			Star:        r.Star,
			Combination: r.Combination,
			Evaluations: total,
			Failed:      failed,
			CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-36s  %-14s  %-12s  %6s  %6s  %s\n", "Run", "Star", "Combination", "Evals", "Failed", "Time")
	fmt.Printf("%-36s+-%-14s+-%-12s+-%6s+-%6s+-%s\n",
		"------------------------------------", "--------------", "------------", "------", "------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-36s  %-14s  %-12s  %6d  %6d  %s\n", r.RunID, r.Star, r.Combination, r.Evaluations, r.Failed, r.CreatedAt)
	}
	return nil
}

// #endregion runs

// #region evaluations

type evalRow struct {
	EvalID    string              `json:"eval_id"`
	Source    string              `json:"source"`
	Theta     []float64           `json:"theta"`
	LnLike    *float64            `json:"lnlike"`
	Chi2      map[string]*float64 `json:"chi2"`
	Finals    map[string]float64  `json:"finals,omitempty"`
	Passed    bool                `json:"passed"`
	Reason    string              `json:"reason,omitempty"`
	Error     string              `json:"error,omitempty"`
	ElapsedMS int64               `json:"elapsed_ms"`
	CreatedAt string              `json:"created_at"`
}

func toEvalRow(ev store.Evaluation) evalRow {
	r := evalRow{
		EvalID:    ev.EvalID,
		Source:    ev.Source,
		Theta:     ev.Theta,
		LnLike:    finite(ev.LnLike),
		Chi2:      make(map[string]*float64, len(ev.Terms)),
		Passed:    ev.Passed,
		Reason:    ev.Reason,
		Error:     ev.Error,
		ElapsedMS: ev.Elapsed.Milliseconds(),
		CreatedAt: ev.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	for _, t := range ev.Terms {
		r.Chi2[string(t.Kind)] = finite(t.Chi2)
	}
	if len(ev.Finals) > 0 {
		r.Finals = make(map[string]float64, len(ev.Finals))
		for k, v := range ev.Finals {
			r.Finals[string(k)] = v
		}
	}
	return r
}

func runListEvaluations(st *store.Store, run store.Run) error {
	evals, err := st.ListEvaluations(run.RunID, inspectLast)
	if err != nil {
		return err
	}
	if len(evals) == 0 {
		fmt.Fprintf(os.Stderr, "no evaluations recorded for run %s\n", run.RunID)
		return nil
	}
	// store returns DESC, reverse for chronological
	rows := make([]evalRow, len(evals))
	for i, ev := range evals {
		rows[len(evals)-1-i] = toEvalRow(ev)
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("Run %s: %s (%s)\n\n", run.RunID, run.Star, run.Combination)
	fmt.Printf("%-8s  %-9s  %10s  %-6s  %s\n", "Eval", "Source", "LnLike", "Passed", "Theta")
	fmt.Printf("%-8s+-%-9s+-%10s+-%-6s+-%s\n", "--------", "---------", "----------", "------", "--------------------")
	for i, r := range rows {
		lnlike := "-inf"
		if r.LnLike != nil {
			lnlike = formatLnLike(*r.LnLike)
		}
		passed := "yes"
		if !r.Passed {
			passed = "no"
		}
		fmt.Printf("%-8s  %-9s  %10s  %-6s  %s\n", shortID(r.EvalID), r.Source, lnlike, passed, formatVector(r.Theta))
		if ev := evals[len(evals)-1-i]; ev.Error != "" {
			fmt.Printf("%-8s  error: %s\n", "", ev.Error)
		}
	}
	return nil
}

func runBest(st *store.Store, run store.Run) error {
	ev, err := st.BestEvaluation(run.RunID)
	if errors.Is(err, store.ErrNoEvaluations) {
		fmt.Fprintf(os.Stderr, "no finite evaluations for run %s\n", run.RunID)
		return nil
	}
	if err != nil {
		return err
	}
	r := toEvalRow(ev)
	if jsonOut {
		return printJSON(r)
	}
	fmt.Printf("Eval:     %s\n", r.EvalID)
	fmt.Printf("Source:   %s\n", r.Source)
	fmt.Printf("LnLike:   %s\n", formatLnLike(ev.LnLike))
	fmt.Printf("Theta:    %s\n", formatVector(r.Theta))
	fmt.Printf("Checks:   passed=%v %s\n", r.Passed, r.Reason)
	fmt.Println("Chi2:")
	for _, t := range ev.Terms {
		fmt.Printf("  %-6s %10.4f\n", t.Kind, t.Chi2)
	}
	if len(r.Finals) > 0 {
		fmt.Println("Finals:")
		for _, k := range sortedKeys(r.Finals) {
			fmt.Printf("  %-6s %12.5g\n", k, r.Finals[k])
		}
	}
	return nil
}

// #endregion evaluations
