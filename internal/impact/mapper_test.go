package impact

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/stockmap"
)

func newTestMapper() *Mapper {
	return NewMapper(stockmap.New(), zerolog.Nop())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMapEntities_DirectCompanyMention(t *testing.T) {
	t.Parallel()

	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Companies: []news.Entity{{Name: "HDFC Bank", Confidence: 0.95}},
	})

	if len(impacts) != 1 {
		t.Fatalf("unexpected impacts: %+v", impacts)
	}
	got := impacts[0]
	if got.Symbol != "HDFCBANK" || got.ImpactType != news.ImpactDirect {
		t.Fatalf("unexpected impact: %+v", got)
	}
	if !almostEqual(got.Confidence, 0.95) || got.Confidence < 0.9 {
		t.Fatalf("unexpected confidence: %v", got.Confidence)
	}
	if got.Reasoning != "Direct mention of HDFC Bank" {
		t.Fatalf("unexpected reasoning: %q", got.Reasoning)
	}
}

func TestMapEntities_SectorFansOut(t *testing.T) {
	t.Parallel()

	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Sectors: []news.Entity{{Name: "Banking", Confidence: 1.0}},
	})

	wantSymbols := []string{"HDFCBANK", "ICICIBANK", "AXISBANK", "KOTAKBANK", "SBIN"}
	if len(impacts) != len(wantSymbols) {
		t.Fatalf("unexpected impact count: got %d want %d", len(impacts), len(wantSymbols))
	}
	for i, impact := range impacts {
		if impact.Symbol != wantSymbols[i] {
			t.Fatalf("unexpected symbol order at %d: got %s want %s", i, impact.Symbol, wantSymbols[i])
		}
		if impact.ImpactType != news.ImpactSector {
			t.Fatalf("unexpected impact type for %s: %s", impact.Symbol, impact.ImpactType)
		}
		if impact.Confidence < 0.6 || impact.Confidence > 0.8 {
			t.Fatalf("confidence out of sector band for %s: %v", impact.Symbol, impact.Confidence)
		}
		if impact.Reasoning != "Sector-wide impact: Banking" {
			t.Fatalf("unexpected reasoning: %q", impact.Reasoning)
		}
	}
}

func TestMapEntities_MergeAcrossPasses(t *testing.T) {
	t.Parallel()

	// HDFC Bank is mentioned directly, the article is about banking, and RBI
	// appears: the direct record must survive both later passes while the
	// other banks get upgraded from weak sector evidence to regulatory.
	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Companies:  []news.Entity{{Name: "HDFC Bank", Confidence: 0.95}},
		Sectors:    []news.Entity{{Name: "Banking", Confidence: 0.7}},
		Regulators: []news.Entity{{Name: "RBI", Confidence: 0.95}},
	})

	if len(impacts) != 5 {
		t.Fatalf("unexpected impact count: %d (%+v)", len(impacts), impacts)
	}

	first := impacts[0]
	if first.Symbol != "HDFCBANK" || first.ImpactType != news.ImpactDirect || !almostEqual(first.Confidence, 0.95) {
		t.Fatalf("direct impact must survive sector and regulator passes: %+v", first)
	}

	for _, impact := range impacts[1:] {
		if impact.ImpactType != news.ImpactRegulatory {
			t.Fatalf("expected regulatory upgrade for %s, got %s", impact.Symbol, impact.ImpactType)
		}
		if !almostEqual(impact.Confidence, 0.8*0.95) {
			t.Fatalf("unexpected confidence for %s: %v", impact.Symbol, impact.Confidence)
		}
		if impact.Reasoning != "Regulatory impact from RBI" {
			t.Fatalf("unexpected reasoning for %s: %q", impact.Symbol, impact.Reasoning)
		}
	}
}

func TestMapEntities_SectorNeverDowngradesDirect(t *testing.T) {
	t.Parallel()

	// The direct record has lower confidence than the sector candidate; the
	// sector pass still may not touch it.
	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Companies: []news.Entity{{Name: "HDFC Bank", Confidence: 0.5}},
		Sectors:   []news.Entity{{Name: "Banking", Confidence: 1.0}},
	})

	var hdfc *news.StockImpact
	for i := range impacts {
		if impacts[i].Symbol == "HDFCBANK" {
			hdfc = &impacts[i]
		}
	}
	if hdfc == nil {
		t.Fatalf("missing HDFCBANK impact: %+v", impacts)
	}
	if hdfc.ImpactType != news.ImpactDirect || !almostEqual(hdfc.Confidence, 0.5) {
		t.Fatalf("sector evidence downgraded a direct impact: %+v", *hdfc)
	}
}

func TestMapEntities_StrongerSectorRefreshesConfidenceOnly(t *testing.T) {
	t.Parallel()

	// Financial Services (0.6 base) seeds the records, Banking (0.7 base)
	// outranks them: confidence and reasoning update, the type stays sector.
	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Sectors: []news.Entity{
			{Name: "Financial Services", Confidence: 1.0},
			{Name: "Banking", Confidence: 1.0},
		},
	})

	if len(impacts) != 5 {
		t.Fatalf("unexpected impact count: %d", len(impacts))
	}
	for _, impact := range impacts {
		if impact.ImpactType != news.ImpactSector {
			t.Fatalf("unexpected type for %s: %s", impact.Symbol, impact.ImpactType)
		}
		if !almostEqual(impact.Confidence, 0.7) {
			t.Fatalf("expected refreshed confidence 0.7 for %s, got %v", impact.Symbol, impact.Confidence)
		}
		if impact.Reasoning != "Sector-wide impact: Banking" {
			t.Fatalf("expected refreshed reasoning for %s, got %q", impact.Symbol, impact.Reasoning)
		}
	}
}

func TestMapEntities_EqualConfidenceDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	// Both aliases resolve to the same symbol at the same adjusted
	// confidence; the overwrite rule is strictly greater, so the first
	// mention's reasoning stays.
	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Companies: []news.Entity{
			{Name: "HDFC Bank", Confidence: 0.95},
			{Name: "HDFC", Confidence: 0.95},
		},
	})

	if len(impacts) != 1 {
		t.Fatalf("unexpected impacts: %+v", impacts)
	}
	if impacts[0].Reasoning != "Direct mention of HDFC Bank" {
		t.Fatalf("equal confidence must not overwrite: %q", impacts[0].Reasoning)
	}
}

func TestMapEntities_RegulatorImpliedSectorsForcedRegulatory(t *testing.T) {
	t.Parallel()

	// SEBI has no per-stock rows; its supervised sector fans out at the extra
	// 0.8 discount with the type forced to regulatory.
	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Regulators: []news.Entity{{Name: "SEBI", Confidence: 0.95}},
	})

	if len(impacts) != 5 {
		t.Fatalf("unexpected impact count: %d (%+v)", len(impacts), impacts)
	}
	for _, impact := range impacts {
		if impact.ImpactType != news.ImpactRegulatory {
			t.Fatalf("implied-sector impact must be regulatory: %+v", impact)
		}
		if !almostEqual(impact.Confidence, 0.6*0.8*0.95) {
			t.Fatalf("unexpected discounted confidence for %s: %v", impact.Symbol, impact.Confidence)
		}
		if impact.Reasoning != "Regulatory impact on Financial Services sector from SEBI" {
			t.Fatalf("unexpected reasoning: %q", impact.Reasoning)
		}
	}
}

func TestMapEntities_GroupAliasStaysSectorTyped(t *testing.T) {
	t.Parallel()

	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Companies: []news.Entity{{Name: "Jio", Confidence: 0.9}},
	})

	if len(impacts) != 1 {
		t.Fatalf("unexpected impacts: %+v", impacts)
	}
	got := impacts[0]
	if got.Symbol != "RELIANCE" || got.ImpactType != news.ImpactSector {
		t.Fatalf("unexpected impact: %+v", got)
	}
	if !almostEqual(got.Confidence, 0.8*0.9) {
		t.Fatalf("unexpected confidence: %v", got.Confidence)
	}
	if got.Reasoning != "Direct mention of Jio" {
		t.Fatalf("unexpected reasoning: %q", got.Reasoning)
	}
}

func TestMapEntities_UnknownNamesYieldNothing(t *testing.T) {
	t.Parallel()

	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Companies:  []news.Entity{{Name: "Quantum Syndicate", Confidence: 0.9}},
		Sectors:    []news.Entity{{Name: "Aerospace", Confidence: 0.7}},
		Regulators: []news.Entity{{Name: "FCA", Confidence: 0.95}},
	})

	if len(impacts) != 0 {
		t.Fatalf("expected no impacts for unknown names, got %+v", impacts)
	}
}

func TestMapEntities_EmptySet(t *testing.T) {
	t.Parallel()

	m := newTestMapper()
	if impacts := m.MapEntities(news.EntitySet{}); len(impacts) != 0 {
		t.Fatalf("expected no impacts for empty entity set, got %+v", impacts)
	}
}

func TestMapEntities_ConfidencesWithinBounds(t *testing.T) {
	t.Parallel()

	m := newTestMapper()
	impacts := m.MapEntities(news.EntitySet{
		Companies:  []news.Entity{{Name: "HDFC Bank", Confidence: 0.95}, {Name: "Infosys", Confidence: 0.9}},
		Sectors:    []news.Entity{{Name: "Banking", Confidence: 0.7}, {Name: "IT", Confidence: 0.9}},
		Regulators: []news.Entity{{Name: "RBI", Confidence: 0.95}, {Name: "SEBI", Confidence: 0.95}},
	})

	if len(impacts) == 0 {
		t.Fatalf("expected impacts")
	}
	for _, impact := range impacts {
		if impact.Confidence < 0 || impact.Confidence > 1 {
			t.Fatalf("confidence out of bounds: %+v", impact)
		}
	}
}

func TestSummary_Bands(t *testing.T) {
	t.Parallel()

	m := newTestMapper()
	impacts := []news.StockImpact{
		{Symbol: "HDFCBANK", Confidence: 0.95, ImpactType: news.ImpactDirect},
		{Symbol: "ICICIBANK", Confidence: 0.8, ImpactType: news.ImpactRegulatory},
		{Symbol: "AXISBANK", Confidence: 0.76, ImpactType: news.ImpactRegulatory},
		{Symbol: "SBIN", Confidence: 0.5, ImpactType: news.ImpactSector},
		{Symbol: "KOTAKBANK", Confidence: 0.49, ImpactType: news.ImpactSector},
	}

	summary := m.Summary(impacts)
	if summary.TotalImpacts != 5 {
		t.Fatalf("unexpected total: %d", summary.TotalImpacts)
	}
	if summary.DirectImpacts != 1 || summary.SectorImpacts != 2 || summary.RegulatoryImpacts != 2 {
		t.Fatalf("unexpected type counts: %+v", summary)
	}
	// 0.8 is high (inclusive floor), 0.5 is medium (inclusive floor).
	if summary.HighConfidence != 2 || summary.MediumConfidence != 2 || summary.LowConfidence != 1 {
		t.Fatalf("unexpected band counts: %+v", summary)
	}
}

func TestSummary_Empty(t *testing.T) {
	t.Parallel()

	m := newTestMapper()
	if summary := m.Summary(nil); summary != (news.ImpactSummary{}) {
		t.Fatalf("unexpected summary for no impacts: %+v", summary)
	}
}
