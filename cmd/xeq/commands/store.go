package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xequation/xequation/pkg/config"
)

func newSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <workbook>",
		Short: "Store a workbook file in the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			wb, err := config.LoadWorkbook(args[0])
			if err != nil {
				return err
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
			log.Info().
				Str("workbook", rec.Name).
				Str("id", rec.ID).
				Int("groups", len(rec.Statements)).
				Msg("Workbook saved")
			return nil
		},
	}
}

func newLoadCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Export a stored workbook as YAML",
		Example: `  # Print to stdout
  xeq load budget

  # Write to a file
  xeq load budget -o budget.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.openStore(a.ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.GetWorkbook(a.ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			data, err := rec.Workbook().Marshal()
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the workbook to this file")

	return cmd
}

func newListCommand() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored workbooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.openStore(a.ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListWorkbooks(a.ctx, limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), records)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tUPDATED\tDESCRIPTION")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.Name, rec.UpdatedAt.Format(time.RFC3339), rec.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of workbooks (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of workbooks to skip")

	return cmd
}

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <name>",
		Short: "Show recorded evaluations of a stored workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.openStore(a.ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.GetWorkbook(a.ctx, args[0])
			if err != nil {
				return err
			}
			history, err := store.ListEvaluations(a.ctx, rec.ID, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), history)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EVALUATED\tEQUATION\tSTATUS\tVALUE")
			for _, h := range history {
				shown := h.Value
				if h.Message != "" {
					shown = h.Message
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.EvaluatedAt.Format(time.RFC3339), h.Equation, h.Status, shown)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of records (0 for all)")

	return cmd
}
