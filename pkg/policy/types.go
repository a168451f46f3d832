package policy

import (
	"strings"
	"time"

	"github.com/xequation/xequation/pkg/config"
	"github.com/xequation/xequation/pkg/expr"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError blocks the workbook from running.
	SeverityError Severity = "error"

	// SeverityCritical blocks the workbook from running.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity prevent a run.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. The module must define a
	// deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Violation represents a single policy violation.
type Violation struct {
	Policy   string   `json:"policy"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`

	// Group is the zero-based index of the offending group, or -1.
	Group int `json:"group"`

	// Equation is the offending declaration, if any.
	Equation string `json:"equation,omitempty"`
}

// Result represents the result of policy evaluation.
type Result struct {
	// Allowed is false when any violation has a blocking severity.
	Allowed bool `json:"allowed"`

	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	EvaluatedPolicies []string      `json:"evaluated_policies"`
	EvaluatedAt       time.Time     `json:"evaluated_at"`
	Duration          time.Duration `json:"duration"`
}

// Blocking returns the violations that prevent a run.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Settings are the tunables exposed to the Rego modules as input.settings.
type Settings struct {
	// AllowedModules restricts imports. Empty allows every module.
	AllowedModules []string `json:"allowed_modules"`

	// MaxGroupSize caps the declarations of one group. Zero disables the
	// check.
	MaxGroupSize int `json:"max_group_size"`
}

// SettingsFrom converts the policy section of the application config.
func SettingsFrom(cfg config.PolicyConfig) Settings {
	return Settings{
		AllowedModules: append([]string(nil), cfg.AllowedModules...),
		MaxGroupSize:   cfg.MaxGroupSize,
	}
}

// Input is the document the Rego modules evaluate.
type Input struct {
	Workbook string       `json:"workbook"`
	Groups   []GroupInput `json:"groups"`
	Imports  []string     `json:"imports"`
	Settings Settings     `json:"settings"`
}

// GroupInput describes one group statement.
type GroupInput struct {
	Index        int                `json:"index"`
	Statement    string             `json:"statement"`
	Declarations []DeclarationInput `json:"declarations"`

	// Error is the parse failure, if the statement could not be parsed.
	Error string `json:"error,omitempty"`
}

// DeclarationInput describes one declaration of a group.
type DeclarationInput struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Dependencies []string `json:"dependencies"`

	// Module is set for imports.
	Module string `json:"module"`
}

// Parser is the part of an expression engine BuildInput needs.
type Parser interface {
	Parse(code string) (expr.ParseResult, error)
}

// BuildInput parses every group of wb and assembles the policy input.
// Parse failures are recorded on the group rather than returned.
func BuildInput(wb *config.Workbook, parser Parser, settings Settings) *Input {
	in := &Input{
		Workbook: wb.Name,
		Groups:   make([]GroupInput, 0, len(wb.Groups)),
		Imports:  []string{},
		Settings: settings,
	}
	if in.Settings.AllowedModules == nil {
		in.Settings.AllowedModules = []string{}
	}

	seen := make(map[string]bool)
	for i, stmt := range wb.Statements() {
		group := GroupInput{
			Index:        i,
			Statement:    stmt,
			Declarations: []DeclarationInput{},
		}
		result, err := parser.Parse(stmt)
		if err != nil {
			group.Error = err.Error()
			in.Groups = append(in.Groups, group)
			continue
		}
		for _, d := range result.Declarations {
			decl := DeclarationInput{
				Name:         d.Name,
				Type:         d.Type.String(),
				Dependencies: append([]string{}, d.Dependencies...),
			}
			if d.Type == expr.TypeImport || d.Type == expr.TypeImportFrom {
				decl.Module = importedModule(d.Content)
				if decl.Module != "" && !seen[decl.Module] {
					seen[decl.Module] = true
					in.Imports = append(in.Imports, decl.Module)
				}
			}
			group.Declarations = append(group.Declarations, decl)
		}
		in.Groups = append(in.Groups, group)
	}
	return in
}

// importedModule extracts M from "import M" or "from M import x".
func importedModule(content string) string {
	fields := strings.Fields(content)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
