// pkg/config/manifest.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ecompipe/pkg/model"
)

// Manifest declares the datasets a load run should process. When no
// manifest file is given the built-in customers/products/orders
// definitions are used.
type Manifest struct {
	Datasets []model.Dataset `yaml:"datasets"`
}

// LoadManifest reads and validates a YAML dataset manifest. An empty
// path returns the default manifest.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	return &m, nil
}

// DefaultManifest returns the built-in dataset definitions.
func DefaultManifest() *Manifest {
	return &Manifest{Datasets: model.DefaultDatasets()}
}

// Validate checks every dataset definition and their dependency graph.
func (m *Manifest) Validate() error {
	if len(m.Datasets) == 0 {
		return fmt.Errorf("manifest declares no datasets")
	}

	seen := make(map[string]struct{}, len(m.Datasets))
	for _, d := range m.Datasets {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("manifest declares dataset %q more than once", d.Name)
		}
		seen[d.Name] = struct{}{}
	}

	if _, err := model.SortByDependency(m.Datasets); err != nil {
		return err
	}
	return nil
}

// Ordered returns the manifest's datasets in dependency order.
func (m *Manifest) Ordered() ([]model.Dataset, error) {
	return model.SortByDependency(m.Datasets)
}
