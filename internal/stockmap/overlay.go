package stockmap

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"dalal.st/pulse/internal/news"
)

// Overlay is the YAML shape for site-specific table extensions. Rows are
// appended after the built-ins, so an overlay can widen coverage but never
// shadow or reorder the shipped rows.
type Overlay struct {
	Companies  []OverlayCompany   `yaml:"companies"`
	Sectors    []OverlaySector    `yaml:"sectors"`
	Regulators []OverlayRegulator `yaml:"regulators"`
}

type OverlayCompany struct {
	Alias      string  `yaml:"alias"`
	Symbol     string  `yaml:"symbol"`
	Confidence float64 `yaml:"confidence"`
	ImpactType string  `yaml:"impact_type"`
}

type OverlaySector struct {
	Name   string         `yaml:"name"`
	Stocks []OverlayStock `yaml:"stocks"`
}

type OverlayStock struct {
	Symbol     string  `yaml:"symbol"`
	Confidence float64 `yaml:"confidence"`
	ImpactType string  `yaml:"impact_type"`
}

type OverlayRegulator struct {
	Name    string         `yaml:"name"`
	Stocks  []OverlayStock `yaml:"stocks"`
	Sectors []string       `yaml:"sectors"`
}

// LoadOverlay reads a YAML overlay file and appends its rows. Call before the
// Tables value is shared; a Tables is not safe to extend concurrently with
// lookups.
func (t *Tables) LoadOverlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read stockmap overlay %s: %w", path, err)
	}

	var overlay Overlay
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse stockmap overlay %s: %w", path, err)
	}

	return t.applyOverlay(overlay)
}

func (t *Tables) applyOverlay(overlay Overlay) error {
	for i, row := range overlay.Companies {
		mapping := Mapping{Symbol: row.Symbol, Confidence: row.Confidence, ImpactType: row.ImpactType}
		if err := validateOverlayRow(row.Alias, mapping); err != nil {
			return fmt.Errorf("overlay companies[%d]: %w", i, err)
		}
		t.companies = append(t.companies, companyAlias{Alias: row.Alias, Mapping: mapping})
	}

	for i, row := range overlay.Sectors {
		if strings.TrimSpace(row.Name) == "" {
			return fmt.Errorf("overlay sectors[%d]: name is required", i)
		}
		stocks := make([]Mapping, 0, len(row.Stocks))
		for j, stock := range row.Stocks {
			mapping := Mapping{Symbol: stock.Symbol, Confidence: stock.Confidence, ImpactType: stock.ImpactType}
			if err := validateOverlayRow(row.Name, mapping); err != nil {
				return fmt.Errorf("overlay sectors[%d].stocks[%d]: %w", i, j, err)
			}
			stocks = append(stocks, mapping)
		}
		t.sectors = append(t.sectors, sectorEntry{Sector: row.Name, Stocks: stocks})
	}

	for i, row := range overlay.Regulators {
		name := strings.ToUpper(strings.TrimSpace(row.Name))
		if name == "" {
			return fmt.Errorf("overlay regulators[%d]: name is required", i)
		}
		stocks := make([]Mapping, 0, len(row.Stocks))
		for j, stock := range row.Stocks {
			mapping := Mapping{Symbol: stock.Symbol, Confidence: stock.Confidence, ImpactType: stock.ImpactType}
			if err := validateOverlayRow(name, mapping); err != nil {
				return fmt.Errorf("overlay regulators[%d].stocks[%d]: %w", i, j, err)
			}
			stocks = append(stocks, mapping)
		}
		t.regulators = append(t.regulators, regulatorEntry{
			Name:   name,
			Impact: RegulatorImpact{Stocks: stocks, Sectors: row.Sectors},
		})
	}

	return nil
}

func validateOverlayRow(key string, mapping Mapping) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("alias/name is required")
	}
	if strings.TrimSpace(mapping.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if mapping.Confidence < 0 || mapping.Confidence > 1 {
		return fmt.Errorf("confidence %f out of range [0,1]", mapping.Confidence)
	}
	switch mapping.ImpactType {
	case news.ImpactDirect, news.ImpactSector, news.ImpactRegulatory:
		return nil
	default:
		return fmt.Errorf("unknown impact type %q", mapping.ImpactType)
	}
}
