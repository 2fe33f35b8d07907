// Package catalog holds the bundled bourbon brand list and the seed content
// shown before anyone has contributed.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

//go:embed brands.yaml
var brandsYAML []byte

//go:embed seed.yaml
var seedYAML []byte

type Brand struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Distillery string `yaml:"distillery,omitempty" json:"distillery,omitempty"`
}

type Product struct {
	ID       string  `yaml:"id" json:"id"`
	Name     string  `yaml:"name" json:"name"`
	Brand    string  `yaml:"brand" json:"brand"`
	Category string  `yaml:"category" json:"category"`
	AvgPrice float64 `yaml:"avg_price,omitempty" json:"avg_price,omitempty"`
}

// Catalog is the read-only brand and product list.
type Catalog struct {
	Brands   []Brand   `yaml:"brands"`
	Products []Product `yaml:"products"`
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(brandsYAML)
	})
	return loaded, loadErr
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// ProductsByBrand returns the products whose brand equals name exactly.
func (c *Catalog) ProductsByBrand(name string) []Product {
	var res []Product
	for _, p := range c.Products {
		if p.Brand == name {
			res = append(res, p)
		}
	}
	return res
}

// Search matches query case-insensitively against product and brand names.
// An empty query returns every product.
func (c *Catalog) Search(query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]Product(nil), c.Products...)
	}
	var res []Product
	for _, p := range c.Products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Brand), q) {
			res = append(res, p)
		}
	}
	return res
}

// Distilleries lists distinct distillery names in alphabetical order.
func (c *Catalog) Distilleries() []string {
	seen := make(map[string]struct{})
	var res []string
	for _, b := range c.Brands {
		if b.Distillery == "" {
			continue
		}
		if _, ok := seen[b.Distillery]; ok {
			continue
		}
		seen[b.Distillery] = struct{}{}
		res = append(res, b.Distillery)
	}
	sort.Strings(res)
	return res
}

// Seed is the content used when nothing has been persisted yet.
type Seed struct {
	Stores      []domain.LiquorStore `json:"stores"`
	Finds       []domain.BourbonFind `json:"finds"`
	Speakeasies []domain.Speakeasy   `json:"speakeasies"`
}

// DefaultSeed decodes the embedded seed document. The domain types carry
// JSON tags only, so the YAML tree is re-encoded as JSON before decoding.
func DefaultSeed() (*Seed, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(seedYAML, &tree); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode seed: %w", err)
	}
	var s Seed
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &s, nil
}
