package stockmap

import "dalal.st/pulse/internal/news"

// NSE large-cap coverage. Alias rows are matched by substring, so short
// aliases like "HDFC" also catch "HDFC Bank Ltd"; ambiguous group mentions
// ("Jio", "Adani") carry a reduced confidence and a sector impact type.
func builtinCompanies() []companyAlias {
	return []companyAlias{
		// Banking
		{"HDFC Bank", Mapping{"HDFCBANK", 1.0, news.ImpactDirect}},
		{"HDFC", Mapping{"HDFCBANK", 1.0, news.ImpactDirect}},
		{"ICICI Bank", Mapping{"ICICIBANK", 1.0, news.ImpactDirect}},
		{"ICICI", Mapping{"ICICIBANK", 1.0, news.ImpactDirect}},
		{"Axis Bank", Mapping{"AXISBANK", 1.0, news.ImpactDirect}},
		{"Kotak Mahindra Bank", Mapping{"KOTAKBANK", 1.0, news.ImpactDirect}},
		{"Kotak Bank", Mapping{"KOTAKBANK", 1.0, news.ImpactDirect}},
		{"State Bank of India", Mapping{"SBIN", 1.0, news.ImpactDirect}},
		{"SBI", Mapping{"SBIN", 1.0, news.ImpactDirect}},

		// IT
		{"TCS", Mapping{"TCS", 1.0, news.ImpactDirect}},
		{"Tata Consultancy Services", Mapping{"TCS", 1.0, news.ImpactDirect}},
		{"Infosys", Mapping{"INFY", 1.0, news.ImpactDirect}},
		{"Wipro", Mapping{"WIPRO", 1.0, news.ImpactDirect}},
		{"HCL Technologies", Mapping{"HCLTECH", 1.0, news.ImpactDirect}},
		{"HCL", Mapping{"HCLTECH", 1.0, news.ImpactDirect}},

		// Conglomerates
		{"Reliance Industries", Mapping{"RELIANCE", 1.0, news.ImpactDirect}},
		{"Reliance", Mapping{"RELIANCE", 1.0, news.ImpactDirect}},
		{"RIL", Mapping{"RELIANCE", 1.0, news.ImpactDirect}},

		// Telecom
		{"Bharti Airtel", Mapping{"BHARTIARTL", 1.0, news.ImpactDirect}},
		{"Airtel", Mapping{"BHARTIARTL", 1.0, news.ImpactDirect}},
		{"Reliance Jio", Mapping{"RELIANCE", 0.8, news.ImpactSector}},
		{"Jio", Mapping{"RELIANCE", 0.8, news.ImpactSector}},

		// Automobile
		{"Maruti Suzuki", Mapping{"MARUTI", 1.0, news.ImpactDirect}},
		{"Maruti", Mapping{"MARUTI", 1.0, news.ImpactDirect}},
		{"Tata Motors", Mapping{"TATAMOTORS", 1.0, news.ImpactDirect}},

		// Infrastructure
		{"L&T", Mapping{"LT", 1.0, news.ImpactDirect}},
		{"Larsen & Toubro", Mapping{"LT", 1.0, news.ImpactDirect}},

		// Pharma
		{"Sun Pharma", Mapping{"SUNPHARMA", 1.0, news.ImpactDirect}},
		{"Sun Pharmaceutical", Mapping{"SUNPHARMA", 1.0, news.ImpactDirect}},

		// Group-level mention, no single listed entity
		{"Adani", Mapping{"ADANIENT", 0.7, news.ImpactSector}},
	}
}

func builtinSectors() []sectorEntry {
	return []sectorEntry{
		{"Banking", []Mapping{
			{"HDFCBANK", 0.7, news.ImpactSector},
			{"ICICIBANK", 0.7, news.ImpactSector},
			{"AXISBANK", 0.7, news.ImpactSector},
			{"KOTAKBANK", 0.7, news.ImpactSector},
			{"SBIN", 0.7, news.ImpactSector},
		}},
		{"Financial Services", []Mapping{
			{"HDFCBANK", 0.6, news.ImpactSector},
			{"ICICIBANK", 0.6, news.ImpactSector},
			{"AXISBANK", 0.6, news.ImpactSector},
			{"KOTAKBANK", 0.6, news.ImpactSector},
			{"SBIN", 0.6, news.ImpactSector},
		}},
		{"IT", []Mapping{
			{"TCS", 0.7, news.ImpactSector},
			{"INFY", 0.7, news.ImpactSector},
			{"WIPRO", 0.7, news.ImpactSector},
			{"HCLTECH", 0.7, news.ImpactSector},
		}},
		{"Telecom", []Mapping{
			{"BHARTIARTL", 0.7, news.ImpactSector},
			{"RELIANCE", 0.6, news.ImpactSector},
		}},
		{"Automobile", []Mapping{
			{"MARUTI", 0.7, news.ImpactSector},
			{"TATAMOTORS", 0.7, news.ImpactSector},
		}},
		{"Pharmaceutical", []Mapping{
			{"SUNPHARMA", 0.7, news.ImpactSector},
		}},
	}
}

func builtinRegulators() []regulatorEntry {
	return []regulatorEntry{
		{"RBI", RegulatorImpact{
			Stocks: []Mapping{
				{"HDFCBANK", 0.8, news.ImpactRegulatory},
				{"ICICIBANK", 0.8, news.ImpactRegulatory},
				{"AXISBANK", 0.8, news.ImpactRegulatory},
				{"KOTAKBANK", 0.8, news.ImpactRegulatory},
				{"SBIN", 0.8, news.ImpactRegulatory},
			},
			Sectors: []string{"Banking", "Financial Services"},
		}},
		// Market-wide supervisors: no per-stock rows.
		{"SEBI", RegulatorImpact{Sectors: []string{"Financial Services"}}},
		{"NSE", RegulatorImpact{}},
		{"BSE", RegulatorImpact{}},
	}
}
