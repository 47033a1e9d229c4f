// Package catalog provides the Resource Catalog: the read-only table of relief
// resource types, their unit costs and the minimum demand per severity level.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
	"github.com/dhanya-cpu/disaster-ai-system/pkg/money"
)

// SeverityLevel is the declared severity of a disaster. The set is closed.
type SeverityLevel string

const (
	Low    SeverityLevel = "Low"
	Medium SeverityLevel = "Medium"
	High   SeverityLevel = "High"
)

// Levels returns every severity level in ascending order.
func Levels() []SeverityLevel {
	return []SeverityLevel{Low, Medium, High}
}

// Valid reports whether l is one of the defined levels.
func (l SeverityLevel) Valid() bool {
	switch l {
	case Low, Medium, High:
		return true
	}
	return false
}

func (l SeverityLevel) String() string { return string(l) }

// ParseSeverityLevel accepts exactly "Low", "Medium" or "High".
func ParseSeverityLevel(s string) (SeverityLevel, error) {
	l := SeverityLevel(s)
	if !l.Valid() {
		return "", apperrors.NewInvalidSeverityLevelError(s)
	}
	return l, nil
}

// Resource is one resource type: a name, a unit cost and a demand floor per level.
type Resource struct {
	Name     string                  `json:"name"`
	UnitCost decimal.Decimal         `json:"unit_cost"`
	Demand   map[SeverityLevel]int64 `json:"demand"`
}

func (r Resource) clone() Resource {
	demand := make(map[SeverityLevel]int64, len(r.Demand))
	for l, q := range r.Demand {
		demand[l] = q
	}
	return Resource{Name: r.Name, UnitCost: r.UnitCost, Demand: demand}
}

// Catalog is immutable once built; share it freely between goroutines.
type Catalog struct {
	name      string
	currency  money.Currency
	resources []Resource
	index     map[string]int
}

// New validates and copies resources into a Catalog. Resource order is kept and
// drives the order of plans and reports.
func New(name string, currency money.Currency, resources []Resource) (*Catalog, error) {
	if len(resources) == 0 {
		return nil, apperrors.NewInvalidCatalogError("catalog %q has no resources", name)
	}
	if currency == "" {
		currency = money.DefaultCurrency
	}

	c := &Catalog{
		name:      name,
		currency:  money.Currency(strings.ToUpper(string(currency))),
		resources: make([]Resource, 0, len(resources)),
		index:     make(map[string]int, len(resources)),
	}

	for _, r := range resources {
		if r.Name == "" {
			return nil, apperrors.NewInvalidCatalogError("resource with empty name")
		}
		if _, dup := c.index[r.Name]; dup {
			return nil, apperrors.NewInvalidCatalogError("duplicate resource %q", r.Name)
		}
		if !r.UnitCost.IsPositive() {
			return nil, apperrors.NewInvalidCatalogError("resource %q: unit cost must be positive, got %s", r.Name, r.UnitCost)
		}
		for _, l := range Levels() {
			q, ok := r.Demand[l]
			if !ok {
				return nil, apperrors.NewInvalidCatalogError("resource %q: missing demand for level %s", r.Name, l)
			}
			if q < 0 {
				return nil, apperrors.NewInvalidCatalogError("resource %q: negative demand %d for level %s", r.Name, q, l)
			}
		}
		for l := range r.Demand {
			if !l.Valid() {
				return nil, apperrors.NewInvalidCatalogError("resource %q: unknown severity level %q", r.Name, l)
			}
		}

		c.index[r.Name] = len(c.resources)
		c.resources = append(c.resources, r.clone())
	}

	return c, nil
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Currency returns the currency of every unit cost in the catalog.
func (c *Catalog) Currency() money.Currency { return c.currency }

// Len returns the number of resource types.
func (c *Catalog) Len() int { return len(c.resources) }

// Resources returns a copy of the resource table in catalog order.
func (c *Catalog) Resources() []Resource {
	out := make([]Resource, len(c.resources))
	for i, r := range c.resources {
		out[i] = r.clone()
	}
	return out
}

// ResourceNames returns resource names in catalog order.
func (c *Catalog) ResourceNames() []string {
	names := make([]string, len(c.resources))
	for i, r := range c.resources {
		names[i] = r.Name
	}
	return names
}

// Has reports whether the catalog defines the resource.
func (c *Catalog) Has(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Demand returns the minimum quantity of every resource for the level.
func (c *Catalog) Demand(level SeverityLevel) (map[string]int64, error) {
	if !level.Valid() {
		return nil, apperrors.NewInvalidSeverityLevelError(string(level))
	}
	out := make(map[string]int64, len(c.resources))
	for _, r := range c.resources {
		out[r.Name] = r.Demand[level]
	}
	return out, nil
}

// DemandOf returns the minimum quantity of one resource for the level.
func (c *Catalog) DemandOf(level SeverityLevel, name string) (int64, error) {
	if !level.Valid() {
		return 0, apperrors.NewInvalidSeverityLevelError(string(level))
	}
	i, ok := c.index[name]
	if !ok {
		return 0, apperrors.NewUnknownResourceError(name)
	}
	return c.resources[i].Demand[level], nil
}

// UnitCost returns the cost of one unit of the resource.
func (c *Catalog) UnitCost(name string) (decimal.Decimal, error) {
	i, ok := c.index[name]
	if !ok {
		return decimal.Zero, apperrors.NewUnknownResourceError(name)
	}
	return c.resources[i].UnitCost, nil
}

// FloorCost is Σ demand × unit cost for the level: the cheapest plan that
// satisfies demand.
func (c *Catalog) FloorCost(level SeverityLevel) (decimal.Decimal, error) {
	if !level.Valid() {
		return decimal.Zero, apperrors.NewInvalidSeverityLevelError(string(level))
	}
	total := decimal.Zero
	for _, r := range c.resources {
		total = total.Add(r.UnitCost.Mul(decimal.NewFromInt(r.Demand[level])))
	}
	return total, nil
}

// Hash returns a SHA-256 over the canonical catalog content. Two catalogs with
// the same resources, costs and demand hash identically regardless of name.
func (c *Catalog) Hash() string {
	names := c.ResourceNames()
	sort.Strings(names)

	h := sha256.New()
	fmt.Fprintf(h, "currency=%s\n", c.currency)
	for _, name := range names {
		r := c.resources[c.index[name]]
		fmt.Fprintf(h, "%s|%s", r.Name, r.UnitCost.String())
		for _, l := range Levels() {
			fmt.Fprintf(h, "|%s=%d", l, r.Demand[l])
		}
		h.Write([]byte("\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Default returns the built-in relief catalog.
func Default() *Catalog {
	c, err := New("default", money.USD, []Resource{
		{
			Name:     "food_kits",
			UnitCost: decimal.NewFromInt(10),
			Demand:   map[SeverityLevel]int64{Low: 500, Medium: 3000, High: 15000},
		},
		{
			Name:     "medical_units",
			UnitCost: decimal.NewFromInt(200),
			Demand:   map[SeverityLevel]int64{Low: 20, Medium: 120, High: 500},
		},
		{
			Name:     "shelters",
			UnitCost: decimal.NewFromInt(500),
			Demand:   map[SeverityLevel]int64{Low: 100, Medium: 800, High: 5000},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid built-in catalog: %v", err))
	}
	return c
}
