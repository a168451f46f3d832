package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/xequation/xequation/pkg/equation"
	"github.com/xequation/xequation/pkg/expr"
)

// equationView is the printed form of one equation.
type equationView struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	Value        string   `json:"value,omitempty"`
	Message      string   `json:"message,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

func viewOf(eq *equation.Equation) equationView {
	v := equationView{
		Name:         eq.Name(),
		Type:         eq.Type().String(),
		Status:       eq.Status().String(),
		Message:      eq.Message(),
		Dependencies: eq.Dependencies(),
	}
	if !eq.Value().IsNull() {
		v.Value = eq.Value().String()
	}
	return v
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printEquations writes every equation of m in evaluation order.
func printEquations(w io.Writer, m *equation.Manager) error {
	views := make([]equationView, 0, m.Len())
	for _, name := range m.EvaluationOrder() {
		eq, err := m.GetEquation(name)
		if err != nil {
			return err
		}
		views = append(views, viewOf(eq))
	}

	if jsonOutput {
		return printJSON(w, views)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tSTATUS\tVALUE")
	for _, v := range views {
		shown := v.Value
		if v.Status != expr.StatusSuccess.String() && v.Message != "" {
			shown = v.Message
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.Type, v.Status, shown)
	}
	return tw.Flush()
}

func printEval(w io.Writer, code string, r expr.EvalResult) error {
	if jsonOutput {
		out := map[string]string{
			"expression": code,
			"status":     r.Status.String(),
		}
		if r.OK() {
			out["value"] = r.Value.String()
		} else {
			out["message"] = r.Message
		}
		return printJSON(w, out)
	}
	if !r.OK() {
		_, err := fmt.Fprintf(w, "%s: %s\n", r.Status, r.Message)
		return err
	}
	_, err := fmt.Fprintln(w, r.Value.String())
	return err
}
