// pkg/model/dataset.go
package model

import "fmt"

// Dataset binds one source file to one target table, with the schema the
// file must carry and the identity key that drives insert-or-update
// decisions. DependsOn orders datasets whose target tables reference
// each other via foreign keys.
type Dataset struct {
	Name        string   `yaml:"name"`
	File        string   `yaml:"file"`
	Table       string   `yaml:"table"`
	IdentityKey []string `yaml:"identity_key"`
	Schema      Schema   `yaml:"schema"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
}

// Validate checks the dataset definition is internally consistent.
func (d Dataset) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if d.File == "" {
		return fmt.Errorf("dataset %q: source file is required", d.Name)
	}
	if d.Table == "" {
		return fmt.Errorf("dataset %q: target table is required", d.Name)
	}
	if err := d.Schema.Validate(); err != nil {
		return fmt.Errorf("dataset %q: %w", d.Name, err)
	}
	if err := d.Schema.ValidateKey(d.IdentityKey); err != nil {
		return fmt.Errorf("dataset %q: %w", d.Name, err)
	}
	return nil
}

// SortByDependency orders datasets so that every dataset appears after
// the datasets it depends on. Returns an error on unknown references or
// dependency cycles.
func SortByDependency(datasets []Dataset) ([]Dataset, error) {
	byName := make(map[string]Dataset, len(datasets))
	for _, d := range datasets {
		byName[d.Name] = d
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(datasets))
	ordered := make([]Dataset, 0, len(datasets))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle involving dataset %q", name)
		}
		state[name] = visiting

		d, ok := byName[name]
		if !ok {
			return fmt.Errorf("dataset %q depends on unknown dataset", name)
		}
		for _, dep := range d.DependsOn {
			if _, ok := byName[dep]; !ok {
				return fmt.Errorf("dataset %q depends on unknown dataset %q", d.Name, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		state[name] = done
		ordered = append(ordered, d)
		return nil
	}

	for _, d := range datasets {
		if err := visit(d.Name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
