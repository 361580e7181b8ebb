// Package catalog serves the fixed service packages and subscription plans.
package catalog

import (
	"fmt"
	"io/fs"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/garnizeh/fixit/pkg/models"
)

// DefaultFile is the catalog document inside the seed filesystem.
const DefaultFile = "seed/catalog.yaml"

type ServicePackage struct {
	ID               string             `json:"id" yaml:"id" validate:"required"`
	Name             string             `json:"name" yaml:"name" validate:"required"`
	Description      string             `json:"description" yaml:"description"`
	CategoryName     models.JobCategory `json:"categoryName" yaml:"categoryName" validate:"required"`
	IncludedFeatures []string           `json:"includedFeatures" yaml:"includedFeatures" validate:"min=1"`
	IndicativePrice  string             `json:"indicativePrice" yaml:"indicativePrice" validate:"required"`
	IconName         string             `json:"iconName,omitempty" yaml:"iconName"`
}

type SubscriptionPlan struct {
	ID           string             `json:"id" yaml:"id" validate:"required"`
	Name         string             `json:"name" yaml:"name" validate:"required"`
	Description  string             `json:"description" yaml:"description"`
	CategoryName models.JobCategory `json:"categoryName" yaml:"categoryName" validate:"required"`
	Frequency    string             `json:"frequency" yaml:"frequency" validate:"required"`
	PricePerTerm string             `json:"pricePerTerm" yaml:"pricePerTerm" validate:"required"`
	Benefits     []string           `json:"benefits" yaml:"benefits" validate:"min=1"`
	IconName     string             `json:"iconName,omitempty" yaml:"iconName"`
}

// Catalog is read-only after Load and safe for concurrent use.
type Catalog struct {
	Packages []ServicePackage   `yaml:"servicePackages" validate:"dive"`
	Plans    []SubscriptionPlan `yaml:"subscriptionPlans" validate:"dive"`
}

// Load reads and validates the catalog document at name in fsys.
func Load(fsys fs.FS, name string) (*Catalog, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[string]bool)
	for _, p := range c.Packages {
		if err := checkEntry(seen, p.ID, p.CategoryName); err != nil {
			return nil, err
		}
	}
	for _, p := range c.Plans {
		if err := checkEntry(seen, p.ID, p.CategoryName); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func checkEntry(seen map[string]bool, id string, c models.JobCategory) error {
	if seen[id] {
		return fmt.Errorf("invalid catalog: duplicate id %q", id)
	}
	seen[id] = true
	if !c.Valid() {
		return fmt.Errorf("invalid catalog: %s has unknown category %q", id, c)
	}
	return nil
}

// ServicePackages returns the packages, optionally restricted to one category.
func (c *Catalog) ServicePackages(category models.JobCategory) []ServicePackage {
	out := make([]ServicePackage, 0, len(c.Packages))
	for _, p := range c.Packages {
		if category == "" || p.CategoryName == category {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) SubscriptionPlans(category models.JobCategory) []SubscriptionPlan {
	out := make([]SubscriptionPlan, 0, len(c.Plans))
	for _, p := range c.Plans {
		if category == "" || p.CategoryName == category {
			out = append(out, p)
		}
	}
	return out
}
