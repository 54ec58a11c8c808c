// Package task describes the extraction tasks the generic pipeline can run.
package task

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
)

// Kind selects the parsing and normalization policy of a task.
type Kind string

const (
	KindPrograms Kind = "programs"
	KindCosts    Kind = "costs"
)

// Descriptor parameterizes one run of the pipeline.
type Descriptor struct {
	Name           string   `yaml:"name" json:"name"`
	Kind           Kind     `yaml:"kind" json:"kind"`
	SystemPrompt   string   `yaml:"system_prompt" json:"system_prompt"`
	Tab            TabSpec  `yaml:"tab" json:"tab"`
	SectionMarkers []string `yaml:"section_markers" json:"section_markers"`
	MaxAttempts    int      `yaml:"max_attempts" json:"max_attempts"`
}

// TabSpec locates the detail-page tab. LinkText is tried first as a partial
// link-text match; the keyword lists drive the anchor-scan fallback.
type TabSpec struct {
	LinkText string   `yaml:"link_text" json:"link_text"`
	AllOf    []string `yaml:"all_of" json:"all_of,omitempty"`
	AnyOf    []string `yaml:"any_of" json:"any_of,omitempty"`
}

// normalizeLinkText folds anchor text for keyword comparison.
func normalizeLinkText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return cases.Fold().String(strings.TrimSpace(s))
}

// Matches reports whether an anchor's visible text satisfies the fallback
// keywords: every AllOf keyword and at least one AnyOf keyword (when any are
// listed). A spec with no keywords matches nothing.
func (t TabSpec) Matches(linkText string) bool {
	if len(t.AllOf) == 0 && len(t.AnyOf) == 0 {
		return false
	}
	text := normalizeLinkText(linkText)
	if text == "" {
		return false
	}
	fold := cases.Fold()
	for _, kw := range t.AllOf {
		if !strings.Contains(text, fold.String(kw)) {
			return false
		}
	}
	if len(t.AnyOf) == 0 {
		return true
	}
	for _, kw := range t.AnyOf {
		if strings.Contains(text, fold.String(kw)) {
			return true
		}
	}
	return false
}

// Columns returns the output header for the task kind.
func (d Descriptor) Columns() []string {
	if d.Kind == KindCosts {
		return []string{"university", "label", "value", "year", "error"}
	}
	return []string{"university", "major", "error"}
}

// AllowsBullets reports whether the bullet-line parse fallback applies.
func (d Descriptor) AllowsBullets() bool {
	return d.Kind == KindCosts
}

// Validate checks that the descriptor can drive a pipeline run.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return eris.New("task: name is required")
	}
	switch d.Kind {
	case KindPrograms, KindCosts:
	default:
		return eris.Errorf("task %s: unknown kind %q", d.Name, d.Kind)
	}
	if strings.TrimSpace(d.SystemPrompt) == "" {
		return eris.Errorf("task %s: system prompt is required", d.Name)
	}
	if d.Tab.LinkText == "" {
		return eris.Errorf("task %s: tab link text is required", d.Name)
	}
	if len(d.SectionMarkers) == 0 {
		return eris.Errorf("task %s: at least one section marker is required", d.Name)
	}
	if d.MaxAttempts < 1 {
		return eris.Errorf("task %s: max_attempts must be >= 1", d.Name)
	}
	return nil
}
