package news

// Impact types, in increasing distance from the triggering entity.
const (
	ImpactDirect     = "direct"
	ImpactSector     = "sector"
	ImpactRegulatory = "regulatory"
)

// StockImpact ties one ticker symbol to an article with a merged confidence
// and the reasoning of the strongest evidence seen. At most one StockImpact
// exists per symbol per article.
type StockImpact struct {
	Symbol     string  `json:"symbol"`
	Confidence float64 `json:"confidence"`
	ImpactType string  `json:"impact_type"`
	Reasoning  string  `json:"reasoning"`
}

// ImpactSummary aggregates a list of impacts by type and confidence band.
type ImpactSummary struct {
	TotalImpacts      int `json:"total_impacts"`
	DirectImpacts     int `json:"direct_impacts"`
	SectorImpacts     int `json:"sector_impacts"`
	RegulatoryImpacts int `json:"regulatory_impacts"`
	HighConfidence    int `json:"high_confidence"`
	MediumConfidence  int `json:"medium_confidence"`
	LowConfidence     int `json:"low_confidence"`
}
