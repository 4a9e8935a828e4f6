package impact

import (
	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/stockmap"
)

// regulatorSectorDiscount is the extra factor applied when a stock is reached
// through a regulator-implied sector rather than a direct sector mention.
const regulatorSectorDiscount = 0.8

// Summary confidence bands.
const (
	highConfidenceFloor   = 0.8
	mediumConfidenceFloor = 0.5
)

// Mapper turns an article's extracted entities into per-symbol stock impacts.
type Mapper struct {
	stocks *stockmap.Tables
	logger zerolog.Logger
}

func NewMapper(stocks *stockmap.Tables, logger zerolog.Logger) *Mapper {
	return &Mapper{stocks: stocks, logger: logger}
}

// MapEntities merges evidence into one impact per symbol over four passes in
// fixed order: company mentions, sector mentions, then per regulator its
// watched stocks and its implied sectors. A symbol's record is created on
// first sight and afterwards only replaced by strictly greater adjusted
// confidence, subject to each pass's own overwrite rule; output keeps
// first-seen symbol order.
func (m *Mapper) MapEntities(entities news.EntitySet) []news.StockImpact {
	impacts := make([]news.StockImpact, 0, 8)
	bySymbol := make(map[string]int)

	insert := func(impact news.StockImpact) {
		bySymbol[impact.Symbol] = len(impacts)
		impacts = append(impacts, impact)
	}

	for _, company := range entities.Companies {
		for _, mapping := range m.stocks.MapCompany(company.Name) {
			adjusted := mapping.Confidence * company.Confidence
			reasoning := "Direct mention of " + company.Name

			idx, seen := bySymbol[mapping.Symbol]
			if !seen {
				insert(news.StockImpact{
					Symbol:     mapping.Symbol,
					Confidence: adjusted,
					ImpactType: mapping.ImpactType,
					Reasoning:  reasoning,
				})
				continue
			}
			if adjusted > impacts[idx].Confidence {
				impacts[idx].Confidence = adjusted
				impacts[idx].ImpactType = mapping.ImpactType
				impacts[idx].Reasoning = reasoning
			}
		}
	}

	// Sector evidence never downgrades a direct impact, and a stronger sector
	// match refreshes confidence and reasoning only — the stored type stays.
	for _, sector := range entities.Sectors {
		for _, mapping := range m.stocks.MapSector(sector.Name) {
			adjusted := mapping.Confidence * sector.Confidence
			reasoning := "Sector-wide impact: " + sector.Name

			idx, seen := bySymbol[mapping.Symbol]
			if !seen {
				insert(news.StockImpact{
					Symbol:     mapping.Symbol,
					Confidence: adjusted,
					ImpactType: mapping.ImpactType,
					Reasoning:  reasoning,
				})
				continue
			}
			if mapping.ImpactType == news.ImpactSector &&
				impacts[idx].ImpactType != news.ImpactDirect &&
				adjusted > impacts[idx].Confidence {
				impacts[idx].Confidence = adjusted
				impacts[idx].Reasoning = reasoning
			}
		}
	}

	for _, regulator := range entities.Regulators {
		record := m.stocks.MapRegulator(regulator.Name)

		for _, mapping := range record.Stocks {
			adjusted := mapping.Confidence * regulator.Confidence
			reasoning := "Regulatory impact from " + regulator.Name

			idx, seen := bySymbol[mapping.Symbol]
			if !seen {
				insert(news.StockImpact{
					Symbol:     mapping.Symbol,
					Confidence: adjusted,
					ImpactType: mapping.ImpactType,
					Reasoning:  reasoning,
				})
				continue
			}
			if mapping.ImpactType == news.ImpactRegulatory && adjusted > impacts[idx].Confidence {
				impacts[idx].Confidence = adjusted
				impacts[idx].ImpactType = mapping.ImpactType
				impacts[idx].Reasoning = reasoning
			}
		}

		// Stocks reached through a supervised sector carry the extra discount
		// and are always recorded as regulatory.
		for _, sectorName := range record.Sectors {
			for _, mapping := range m.stocks.MapSector(sectorName) {
				adjusted := mapping.Confidence * regulatorSectorDiscount * regulator.Confidence
				reasoning := "Regulatory impact on " + sectorName + " sector from " + regulator.Name

				idx, seen := bySymbol[mapping.Symbol]
				if !seen {
					insert(news.StockImpact{
						Symbol:     mapping.Symbol,
						Confidence: adjusted,
						ImpactType: news.ImpactRegulatory,
						Reasoning:  reasoning,
					})
					continue
				}
				if adjusted > impacts[idx].Confidence {
					impacts[idx].Confidence = adjusted
					impacts[idx].ImpactType = news.ImpactRegulatory
					impacts[idx].Reasoning = reasoning
				}
			}
		}
	}

	return impacts
}

// Summary aggregates impacts by type and confidence band.
func (m *Mapper) Summary(impacts []news.StockImpact) news.ImpactSummary {
	summary := news.ImpactSummary{TotalImpacts: len(impacts)}
	for _, impact := range impacts {
		switch impact.ImpactType {
		case news.ImpactDirect:
			summary.DirectImpacts++
		case news.ImpactSector:
			summary.SectorImpacts++
		case news.ImpactRegulatory:
			summary.RegulatoryImpacts++
		}
		switch {
		case impact.Confidence >= highConfidenceFloor:
			summary.HighConfidence++
		case impact.Confidence >= mediumConfidenceFloor:
			summary.MediumConfidence++
		default:
			summary.LowConfidence++
		}
	}
	return summary
}
