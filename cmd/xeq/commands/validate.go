package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xequation/xequation/pkg/config"
	"github.com/xequation/xequation/pkg/policy"
)

type validationIssue struct {
	Stage   string `json:"stage"`
	Group   int    `json:"group"`
	Message string `json:"message"`
}

type validationReport struct {
	Workbook   string             `json:"workbook"`
	Valid      bool               `json:"valid"`
	Issues     []validationIssue  `json:"issues,omitempty"`
	Violations []policy.Violation `json:"violations,omitempty"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workbook>",
		Short: "Check a workbook without evaluating it",
		Long: `Validate a workbook file.

This command checks:
  - Schema conformance (CUE and struct validation)
  - Every group statement parses
  - Names are unique and dependencies are acyclic
  - Policy compliance (OPA/rego)`,
		Args: cobra.ExactArgs(1),
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

			report := validationReport{Workbook: wb.Name}

			engine, err := a.newEngine()
			if err != nil {
				return err
			}
			m, err := a.newManager(engine)
			if err != nil {
				return err
			}
			for i, stmt := range wb.Statements() {
				if _, err := m.AddEquationGroup(stmt); err != nil {
					report.Issues = append(report.Issues, validationIssue{
						Stage:   "structure",
						Group:   i,
						Message: err.Error(),
					})
				}
			}

			result, err := a.checkPolicy(a.ctx, wb, engine)
			if result != nil {
				report.Violations = result.Violations
			}
			if err != nil && result == nil {
				return err
			}

			report.Valid = len(report.Issues) == 0 && (result == nil || result.Allowed)
			if err := printReport(cmd, report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("workbook %s is invalid", wb.Name)
			}
			return nil
		},
	}

	return cmd
}

func printReport(cmd *cobra.Command, r validationReport) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(w, r)
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "group %d: %s\n", issue.Group, issue.Message)
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "%s [%s]: %s\n", v.Policy, v.Severity, v.Message)
	}
	if r.Valid {
		fmt.Fprintf(w, "%s: ok\n", r.Workbook)
	}
	return nil
}
