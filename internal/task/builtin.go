package task

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

const programsPrompt = `You are a data analyst extracting academic majors from a U.S. university profile page.
Your task: identify all majors/programs offered by the university from the visible text.
Response format (JSON list):
[
  {"label": "Major name"},
  ...
]`

const costsPrompt = `You are a university cost extraction agent. Return a JSON list of estimated annual total costs of attendance for the most recent academic year.
Prioritize rows labeled 'Total Expenses (In-State)', 'Total Expenses (Out-of-State)', 'Cost of Attendance (In-State)', or similar.
If such rows are missing, calculate totals from tuition, fees, housing, food/meals, books, and personal expenses.
Response format (JSON list):
[
  {"label": "Average Annual Cost (In-State)", "value": "$10,024", "year": "2024–2025"},
  {"label": "Average Annual Cost (Out-of-State)", "value": "$18,634", "year": "2024–2025"}
]`

// Programs returns the degree-program listing task.
func Programs() Descriptor {
	return Descriptor{
		Name:         "programs",
		Kind:         KindPrograms,
		SystemPrompt: programsPrompt,
		Tab: TabSpec{
			LinkText: "Programs/Majors",
			AnyOf:    []string{"major", "program"},
		},
		SectionMarkers: []string{"Programs/Majors", "Degree Programs", "Major"},
		MaxAttempts:    2,
	}
}

// Costs returns the cost-of-attendance task.
func Costs() Descriptor {
	return Descriptor{
		Name:         "costs",
		Kind:         KindCosts,
		SystemPrompt: costsPrompt,
		Tab: TabSpec{
			LinkText: "Tuition",
			AllOf:    []string{"tuition"},
			AnyOf:    []string{"fee", "estimate"},
		},
		SectionMarkers: []string{"Estimated expenses for academic year", "Net Price"},
		MaxAttempts:    1,
	}
}

var aliases = map[string]string{
	"majors":   "programs",
	"expenses": "costs",
}

// Registry holds the effective task descriptors by name.
type Registry struct {
	tasks map[string]Descriptor
}

// NewRegistry returns a registry seeded with the built-in tasks.
func NewRegistry() *Registry {
	r := &Registry{tasks: make(map[string]Descriptor)}
	for _, d := range []Descriptor{Programs(), Costs()} {
		r.tasks[d.Name] = d
	}
	return r
}

// canonicalName folds case and whitespace and resolves aliases.
func canonicalName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}

// Lookup resolves a task name or alias.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.tasks[canonicalName(name)]
	if !ok {
		return Descriptor{}, eris.Errorf("task: unknown task %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return d, nil
}

// Names returns the registered task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for n := range r.tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every descriptor, sorted by name.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.tasks))
	for _, n := range r.Names() {
		out = append(out, r.tasks[n])
	}
	return out
}
