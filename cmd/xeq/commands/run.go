package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xequation/xequation/pkg/stores"
)

func newRunCommand() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "run <workbook>",
		Short: "Evaluate a workbook and print every equation",
		Long: `Evaluate a workbook file.

The workbook is schema-checked and linted against the configured
policies, then every group is replayed in order and evaluated. Each
equation is printed with its type, status and value, or its error
message when it failed.`,
		Example: `  # Evaluate and print
  xeq run budget.yaml

  # Evaluate and record the results in the store
  xeq run --save budget.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			wb, m, err := a.loadAndRun(args[0])
			if err != nil {
				return err
			}

			if err := printEquations(cmd.OutOrStdout(), m); err != nil {
				return err
			}
			if verbose && !jsonOutput {
				fmt.Fprint(cmd.ErrOrStderr(), m.Describe())
			}

			if !save {
				return nil
			}
			store, err := a.openStore(a.ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.SaveWorkbook(a.ctx, wb)
			if err != nil {
				return err
			}
			records := stores.Snapshot(m, rec.ID, time.Now().UTC())
			if err := store.RecordEvaluations(a.ctx, records); err != nil {
				return err
			}
			log.Info().
				Str("workbook", wb.Name).
				Int("evaluations", len(records)).
				Msg("Results saved")
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "save the workbook and its results to the store")

	return cmd
}

func newEvalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <workbook> <expression>",
		Short: "Evaluate an expression against a workbook",
		Example: `  xeq eval budget.yaml "total / 12"`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			_, m, err := a.loadAndRun(args[0])
			if err != nil {
				return err
			}

			result := m.Eval(args[1])
			if err := printEval(cmd.OutOrStdout(), args[1], result); err != nil {
				return err
			}
			if !result.OK() {
				return fmt.Errorf("expression failed with %s", result.Status)
			}
			return nil
		},
	}
}

func newGraphCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <workbook>",
		Short: "Print the dependency graph in DOT format",
		Example: `  xeq graph budget.yaml | dot -Tsvg > budget.svg`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			_, m, err := a.loadAndRun(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), m.ToDOT())
			return err
		},
	}
}
