package catalog

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dhanya-cpu/disaster-ai-system/pkg/money"
)

// File is the YAML layout of a catalog file.
type File struct {
	Name      string         `yaml:"name"`
	Currency  string         `yaml:"currency"`
	Resources []FileResource `yaml:"resources"`
}

// FileResource is one resource entry in a catalog file. Unit cost is kept as
// the literal scalar so it is parsed as a decimal, never as a float.
type FileResource struct {
	Name     string           `yaml:"name"`
	UnitCost string           `yaml:"unit_cost"`
	Demand   map[string]int64 `yaml:"demand"`
}

// LoadFile reads and validates a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog file not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
	}
	return f.Catalog()
}

// Catalog converts the file layout into a validated Catalog.
func (f File) Catalog() (*Catalog, error) {
	resources := make([]Resource, 0, len(f.Resources))
	for _, fr := range f.Resources {
		cost, err := decimal.NewFromString(fr.UnitCost)
		if err != nil {
			return nil, fmt.Errorf("resource %q: invalid unit_cost %q: %w", fr.Name, fr.UnitCost, err)
		}
		demand := make(map[SeverityLevel]int64, len(fr.Demand))
		for level, q := range fr.Demand {
			l, err := ParseSeverityLevel(level)
			if err != nil {
				return nil, fmt.Errorf("resource %q: %w", fr.Name, err)
			}
			demand[l] = q
		}
		resources = append(resources, Resource{Name: fr.Name, UnitCost: cost, Demand: demand})
	}

	name := f.Name
	if name == "" {
		name = "file"
	}
	return New(name, money.Currency(f.Currency), resources)
}

// ToFile converts a catalog back to its file layout.
func ToFile(c *Catalog) File {
	f := File{Name: c.Name(), Currency: string(c.Currency())}
	for _, r := range c.Resources() {
		demand := make(map[string]int64, len(r.Demand))
		for l, q := range r.Demand {
			demand[string(l)] = q
		}
		f.Resources = append(f.Resources, FileResource{
			Name:     r.Name,
			UnitCost: r.UnitCost.String(),
			Demand:   demand,
		})
	}
	return f
}

// Encode writes the catalog as YAML.
func Encode(w io.Writer, c *Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToFile(c)); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return enc.Close()
}
