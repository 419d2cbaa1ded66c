package workflow

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultStageName is the synthesized stage used when a record has no approval rows
const DefaultStageName = "Approval Required"

//go:embed stages.yaml
var defaultCatalogYAML []byte

// Stage is a named step in the primary approval workflow
type Stage struct {
	Name            string `yaml:"name"`
	Order           int    `yaml:"order"`
	RequiresComment bool   `yaml:"requires_comment"`
	AutoApprove     bool   `yaml:"auto_approve"`
	RequiredRole    string `yaml:"required_role"`
}

// AmountRule selects stages for amounts in [MinAmount, MaxAmount)
type AmountRule struct {
	MinAmount float64  `yaml:"min_amount"`
	MaxAmount *float64 `yaml:"max_amount"`
	Stages    []string `yaml:"stages"`
}

func (r AmountRule) matches(amount float64) bool {
	if amount < r.MinAmount {
		return false
	}
	return r.MaxAmount == nil || amount < *r.MaxAmount
}

// Catalog is the immutable stage reference data
type Catalog struct {
	DefaultStages []string     `yaml:"default_stages"`
	Stages        []Stage      `yaml:"stages"`
	AmountRules   []AmountRule `yaml:"amount_rules"`

	byName map[string]Stage
}

// DefaultCatalog returns the built-in catalogue
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in stage catalogue is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a catalogue file, falling back to the built-in one when path is empty
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage catalogue: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalogue
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse stage catalogue: %w", err)
	}

	c.byName = make(map[string]Stage, len(c.Stages))
	for _, s := range c.Stages {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("stage catalogue: stage with empty name")
		}
		key := strings.ToLower(name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("stage catalogue: duplicate stage %q", name)
		}
		s.Name = name
		c.byName[key] = s
	}

	if len(c.DefaultStages) == 0 {
		c.DefaultStages = []string{DefaultStageName}
	}
	lists := [][]string{c.DefaultStages}
	for _, r := range c.AmountRules {
		if len(r.Stages) == 0 {
			return nil, fmt.Errorf("stage catalogue: amount rule at %.2f has no stages", r.MinAmount)
		}
		lists = append(lists, r.Stages)
	}
	for _, list := range lists {
		for _, name := range list {
			if _, ok := c.Lookup(name); !ok {
				return nil, fmt.Errorf("stage catalogue: unknown stage %q", name)
			}
		}
	}

	return &c, nil
}

// Lookup finds a stage by name, ignoring case and surrounding space
func (c *Catalog) Lookup(name string) (Stage, bool) {
	s, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// StageFor returns the catalogue entry for name, or a plain stage
// carrying just the name when the data references an unknown stage
func (c *Catalog) StageFor(name string) Stage {
	if s, ok := c.Lookup(name); ok {
		return s
	}
	return Stage{Name: name}
}

// RequiredStages picks the stages a new workflow needs. The first matching
// amount rule wins; otherwise the default list applies.
func (c *Catalog) RequiredStages(amount *float64) []Stage {
	names := c.DefaultStages
	if amount != nil {
		for _, r := range c.AmountRules {
			if r.matches(*amount) {
				names = r.Stages
				break
			}
		}
	}

	stages := make([]Stage, 0, len(names))
	for _, n := range names {
		stages = append(stages, c.StageFor(n))
	}
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Order < stages[j].Order })
	return stages
}
