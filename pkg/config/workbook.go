package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Workbook is a named, ordered list of equation groups, stored as YAML:
//
//	name: budget
//	groups:
//	  - statement: rate = 0.2
//	  - statement: |
//	      net = gross * (1 - rate)
type Workbook struct {
	Name        string          `yaml:"name" json:"name" validate:"required"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Groups      []GroupDocument `yaml:"groups" json:"groups" validate:"dive"`
}

// GroupDocument is the source of one equation group.
type GroupDocument struct {
	Statement string `yaml:"statement" json:"statement" validate:"required"`
}

// NewWorkbook builds a workbook from group statements, for example the
// output of equation.Manager.Export.
func NewWorkbook(name string, statements []string) *Workbook {
	wb := &Workbook{Name: name, Groups: make([]GroupDocument, len(statements))}
	for i, s := range statements {
		wb.Groups[i] = GroupDocument{Statement: s}
	}
	return wb
}

// Statements returns the group statements in order.
func (wb *Workbook) Statements() []string {
	out := make([]string, len(wb.Groups))
	for i, g := range wb.Groups {
		out[i] = g.Statement
	}
	return out
}

// Marshal renders the workbook as YAML.
func (wb *Workbook) Marshal() ([]byte, error) {
	return yaml.Marshal(wb)
}

// WorkbookError reports every problem found while loading a workbook.
type WorkbookError struct {
	Source string
	Errors []ValidationError
}

func (e *WorkbookError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return fmt.Sprintf("invalid workbook %s: %s", e.Source, strings.Join(msgs, "; "))
}

// LoadWorkbook reads and validates the workbook at path. A missing name
// defaults to the file name without extension.
func LoadWorkbook(path string) (*Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	wb, err := ParseWorkbook(data, path)
	if err != nil {
		return nil, err
	}
	return wb, nil
}

// ParseWorkbook decodes and validates workbook YAML. source names the
// document in errors and provides the default name.
func ParseWorkbook(data []byte, source string) (*Workbook, error) {
	var wb Workbook
	if err := yaml.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("failed to decode workbook %s: %w", source, err)
	}
	if wb.Name == "" {
		wb.Name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	if err := ValidateWorkbook(&wb, source); err != nil {
		return nil, err
	}
	return &wb, nil
}

var (
	validate = validator.New()
	schemas  = NewSchemaRegistry()
)

// ValidateWorkbook checks struct tags, then the CUE schema.
func ValidateWorkbook(wb *Workbook, source string) error {
	if err := validate.Struct(wb); err != nil {
		return &WorkbookError{Source: source, Errors: fromValidator(err)}
	}
	if errs := schemas.ValidateWorkbook(wb); len(errs) > 0 {
		return &WorkbookError{Source: source, Errors: errs}
	}
	return nil
}

func fromValidator(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return []ValidationError{{Message: err.Error(), Severity: "error"}}
	}
	out := make([]ValidationError, len(verrs))
	for i, fe := range verrs {
		out[i] = ValidationError{
			Path:     fe.Namespace(),
			Message:  fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
			Severity: "error",
		}
	}
	return out
}
