package file

import (
	_ "embed"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gkabbz/github-delivery-visibility/internal/core/domain"
)

//go:embed pricing.yaml
var defaultPricing []byte

// DefaultPricing returns the built-in pricing table.
func DefaultPricing() domain.PricingTable {
	table, err := parsePricing(defaultPricing)
	if err != nil {
		panic(fmt.Sprintf("embedded pricing.yaml: %v", err))
	}
	return table
}

// LoadPricing returns the built-in table with the entries of the YAML
// file at path layered on top. An empty path returns the defaults.
func LoadPricing(path string) (domain.PricingTable, error) {
	table := DefaultPricing()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}
	overrides, err := parsePricing(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	maps.Copy(table, overrides)
	return table, nil
}

func parsePricing(data []byte) (domain.PricingTable, error) {
	var table domain.PricingTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse pricing: %w", err)
	}
	if table == nil {
		table = domain.PricingTable{}
	}
	for model, p := range table {
		if p.InputPerMTok < 0 || p.OutputPerMTok < 0 {
			return nil, fmt.Errorf("parse pricing: negative price for %q", model)
		}
	}
	return table, nil
}
