// Package spec loads the working specification consumed by the live monitor.
//
// The monitor only needs a small read-only view of the working spec: the
// change budget limits and the ordered list of acceptance criteria. Full
// schema validation of the spec document belongs to the validator, not here.
package spec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the working spec lives relative to the project root.
const DefaultPath = ".caws/working-spec.yaml"

// ErrSpecNotFound is returned when no working spec exists at the configured path.
var ErrSpecNotFound = errors.New("working spec not found")

// BudgetKind identifies one budget dimension.
type BudgetKind string

const (
	// BudgetFiles limits the number of tracked files.
	BudgetFiles BudgetKind = "files"
	// BudgetLinesOfCode limits the number of tracked lines.
	BudgetLinesOfCode BudgetKind = "loc"
)

// Kinds lists every budget dimension in evaluation order.
var Kinds = []BudgetKind{BudgetFiles, BudgetLinesOfCode}

// Criterion is a single acceptance criterion.
type Criterion struct {
	ID    string `yaml:"id" json:"id"`
	Given string `yaml:"given,omitempty" json:"given,omitempty"`
	When  string `yaml:"when,omitempty" json:"when,omitempty"`
	Then  string `yaml:"then,omitempty" json:"then,omitempty"`
}

// Summary identifies the loaded spec in status output.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tier  int    `json:"tier"`
}

// WorkingSpecView is the immutable slice of the working spec the monitor reads.
// A view is never mutated after Load returns it.
type WorkingSpecView struct {
	Summary  Summary
	Budgets  map[BudgetKind]uint
	Criteria []Criterion
}

// CriterionIDs returns the criterion ids in declaration order.
func (v *WorkingSpecView) CriterionIDs() []string {
	if v == nil {
		return nil
	}
	ids := make([]string, len(v.Criteria))
	for i, c := range v.Criteria {
		ids[i] = c.ID
	}
	return ids
}

// Source supplies the current working spec view.
type Source interface {
	Load() (*WorkingSpecView, error)
}

// document mirrors the on-disk YAML layout. Unknown fields are ignored.
type document struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	RiskTier     int    `yaml:"risk_tier"`
	ChangeBudget struct {
		MaxFiles int `yaml:"max_files"`
		MaxLOC   int `yaml:"max_loc"`
	} `yaml:"change_budget"`
	Acceptance []Criterion `yaml:"acceptance"`
}

// FileSource reads the working spec from a YAML file on every Load.
type FileSource struct {
	Path string
}

// NewFileSource returns a FileSource for the spec under projectRoot.
// An empty path means DefaultPath.
func NewFileSource(projectRoot, path string) *FileSource {
	if path == "" {
		path = DefaultPath
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectRoot, path)
	}
	return &FileSource{Path: path}
}

// Load implements Source.
func (s *FileSource) Load() (*WorkingSpecView, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSpecNotFound, s.Path)
		}
		return nil, fmt.Errorf("reading working spec: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a working spec document.
func Parse(data []byte) (*WorkingSpecView, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing working spec: %w", err)
	}

	budgets := make(map[BudgetKind]uint, 2)
	if doc.ChangeBudget.MaxFiles < 0 {
		return nil, fmt.Errorf("change_budget.max_files must be positive, got %d", doc.ChangeBudget.MaxFiles)
	}
	if doc.ChangeBudget.MaxLOC < 0 {
		return nil, fmt.Errorf("change_budget.max_loc must be positive, got %d", doc.ChangeBudget.MaxLOC)
	}
	// A zero or absent limit means the dimension is not budgeted.
	if doc.ChangeBudget.MaxFiles > 0 {
		budgets[BudgetFiles] = uint(doc.ChangeBudget.MaxFiles)
	}
	if doc.ChangeBudget.MaxLOC > 0 {
		budgets[BudgetLinesOfCode] = uint(doc.ChangeBudget.MaxLOC)
	}

	seen := make(map[string]bool, len(doc.Acceptance))
	criteria := make([]Criterion, 0, len(doc.Acceptance))
	for i, c := range doc.Acceptance {
		if c.ID == "" {
			return nil, fmt.Errorf("acceptance[%d]: id is required", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("acceptance[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
		criteria = append(criteria, c)
	}

	return &WorkingSpecView{
		Summary: Summary{
			ID:    doc.ID,
			Title: doc.Title,
			Tier:  doc.RiskTier,
		},
		Budgets:  budgets,
		Criteria: criteria,
	}, nil
}

// StaticSource always returns the same view. Useful for embedding and tests.
type StaticSource struct {
	View *WorkingSpecView
	Err  error
}

// Load implements Source.
func (s StaticSource) Load() (*WorkingSpecView, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.View, nil
}
