// Package catalog defines the category options offered to the user when
// generating a code.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog lists the options of the three categories.
type Catalog struct {
	Divisions []string `yaml:"divisions" json:"divisions"`
	Areas     []string `yaml:"areas" json:"areas"`
	Docs      []string `yaml:"docs" json:"docs"`
}

// ErrEmptyCategory is returned when a loaded catalog has a category without
// options.
var ErrEmptyCategory = errors.New("category has no options")

// Default returns the built-in options.
func Default() Catalog {
	return Catalog{
		Divisions: []string{
			"XGM", "XGA", "BBM", "BBB", "BRB", "BLP", "BLX", "TRV",
		},
		Areas: []string{
			"XDM", "XOG", "YPE", "TRV", "QLE", "TIS", "D&P", "NEG", "MRS",
			"TNI", "KOM",
		},
		Docs: []string{
			"XRO", "XRC", "FAR", "TNS", "XAN", "YOL",
		},
	}
}

// LoadFile reads a catalog from a YAML file. Duplicated options are removed,
// keeping the first occurrence.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}

	return Parse(data)
}

// Parse decodes a catalog from YAML.
func Parse(data []byte) (Catalog, error) {
	var c Catalog

	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	c = c.normalized()

	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}

	return c, nil
}

// Validate checks that every category has at least one option.
func (c Catalog) Validate() error {
	switch {
	case len(c.Divisions) == 0:
		return fmt.Errorf("%w: divisions", ErrEmptyCategory)
	case len(c.Areas) == 0:
		return fmt.Errorf("%w: areas", ErrEmptyCategory)
	case len(c.Docs) == 0:
		return fmt.Errorf("%w: docs", ErrEmptyCategory)
	}

	return nil
}

// Contains reports whether all three values are offered options.
func (c Catalog) Contains(division, area, doc string) bool {
	return contains(c.Divisions, division) &&
		contains(c.Areas, area) &&
		contains(c.Docs, doc)
}

func (c Catalog) normalized() Catalog {
	return Catalog{
		Divisions: dedup(c.Divisions),
		Areas:     dedup(c.Areas),
		Docs:      dedup(c.Docs),
	}
}

func dedup(options []string) []string {
	seen := make(map[string]bool, len(options))
	out := make([]string, 0, len(options))

	for _, o := range options {
		if o == "" || seen[o] {
			continue
		}

		seen[o] = true
		out = append(out, o)
	}

	return out
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}

	return false
}
