package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xuvcal/internal/logging"
	"github.com/danielpatrickdp/xuvcal/internal/model"
	"github.com/danielpatrickdp/xuvcal/internal/npz"
	"github.com/danielpatrickdp/xuvcal/internal/store"
)

var (
	importSampler string
	importKey     string
)

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Manage posterior samples stored with a run",
}

var samplesImportCmd = &cobra.Command{
	Use:   "import [run-id] [archive.npz]",
	Short: "Import sampler output into a run",
	Long: `Reads the samples array of an .npz archive written by the sampler and
stores it under the run, replacing any samples previously imported with the
same sampler name.`,
	Args: cobra.ExactArgs(2),
	RunE: runSamplesImport,
}

func init() {
	samplesImportCmd.Flags().StringVar(&importSampler, "sampler", "emcee", "Sampler name")
	samplesImportCmd.Flags().StringVar(&importKey, "key", npz.SamplesKey, "Array name inside the archive")
	samplesCmd.AddCommand(samplesImportCmd)
}

func runSamplesImport(cmd *cobra.Command, args []string) error {
	rows, err := npz.ReadFile(args[1], importKey)
	if err != nil {
		return err
	}
	if len(rows) > 0 && len(rows[0]) != model.NumParams {
		return fmt.Errorf("%s: samples have %d columns, expected %d", args[1], len(rows[0]), model.NumParams)
	}

	st, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(args[0])
	if err != nil {
		return err
	}
	n, err := st.ImportSamples(store.SampleSet{RunID: run.RunID, Sampler: importSampler, Rows: rows})
	if err != nil {
		return err
	}
	entry := logging.EventEntry{RunID: run.RunID, Action: "import", Outcome: "ok"}
	if err := logging.LogDetail(st.DB(), entry, map[string]any{"sampler": importSampler, "path": args[1], "rows": n}); err != nil {
		return err
	}
	fmt.Printf("Imported %d %s samples into run %s\n", n, importSampler, run.RunID)
	return nil
}
