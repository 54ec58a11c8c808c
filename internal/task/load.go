package task

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// overrideFile is the on-disk shape of a task override file.
type overrideFile struct {
	Tasks []override `yaml:"tasks"`
}

// override carries optional fields; zero values leave the base untouched.
type override struct {
	Name           string   `yaml:"name"`
	Base           string   `yaml:"base"`
	Kind           Kind     `yaml:"kind"`
	SystemPrompt   string   `yaml:"system_prompt"`
	Tab            *TabSpec `yaml:"tab"`
	SectionMarkers []string `yaml:"section_markers"`
	MaxAttempts    int      `yaml:"max_attempts"`
}

// LoadFile merges task overrides from a YAML file into the registry. An
// entry naming an existing task patches it; a new name must set base (an
// existing task to copy) or kind. Names are stored lowercased so Lookup
// finds them regardless of case.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "task: read %s", path)
	}
	return r.Load(data)
}

// Load merges task overrides from YAML bytes.
func (r *Registry) Load(data []byte) error {
	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return eris.Wrap(err, "task: parse overrides")
	}

	for _, o := range f.Tasks {
		o.Name = canonicalName(o.Name)
		if o.Name == "" {
			return eris.New("task: override without name")
		}

		d, exists := r.tasks[o.Name]
		if !exists {
			switch {
			case o.Base != "":
				base, err := r.Lookup(o.Base)
				if err != nil {
					return eris.Wrapf(err, "task %s: base", o.Name)
				}
				d = base
			case o.Kind == KindPrograms:
				d = Programs()
			case o.Kind == KindCosts:
				d = Costs()
			default:
				return eris.Errorf("task %s: new task needs base or kind", o.Name)
			}
			d.Name = o.Name
		}

		if o.Kind != "" {
			d.Kind = o.Kind
		}
		if o.SystemPrompt != "" {
			d.SystemPrompt = o.SystemPrompt
		}
		if o.Tab != nil {
			d.Tab = *o.Tab
		}
		if len(o.SectionMarkers) > 0 {
			d.SectionMarkers = o.SectionMarkers
		}
		if o.MaxAttempts > 0 {
			d.MaxAttempts = o.MaxAttempts
		}

		if err := d.Validate(); err != nil {
			return err
		}
		r.tasks[d.Name] = d
		zap.L().Debug("task: override applied", zap.String("task", d.Name), zap.Bool("new", !exists))
	}
	return nil
}
