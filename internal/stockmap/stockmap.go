package stockmap

import "strings"

// Mapping is one (symbol, base confidence, impact type) row from the lookup
// tables.
type Mapping struct {
	Symbol     string
	Confidence float64
	ImpactType string
}

// RegulatorImpact lists the stocks a regulator affects directly and the
// sectors it supervises.
type RegulatorImpact struct {
	Stocks  []Mapping
	Sectors []string
}

type companyAlias struct {
	Alias   string
	Mapping Mapping
}

type sectorEntry struct {
	Sector string
	Stocks []Mapping
}

type regulatorEntry struct {
	Name   string
	Impact RegulatorImpact
}

// Tables holds the alias, sector, and regulator lookup tables. Entries keep
// their declaration order: sector matching returns the first hit, so order is
// observable. A Tables value is read-only after construction and safe to
// share across goroutines.
type Tables struct {
	companies  []companyAlias
	sectors    []sectorEntry
	regulators []regulatorEntry
}

// New returns the built-in tables. Use LoadOverlay before sharing the value
// to append site-specific rows.
func New() *Tables {
	return &Tables{
		companies:  builtinCompanies(),
		sectors:    builtinSectors(),
		regulators: builtinRegulators(),
	}
}

// MapCompany resolves a company name to stock mappings. Matching is a
// case-insensitive substring test in either direction against every alias;
// all matching rows are returned, so a generic mention can map to more than
// one symbol.
func (t *Tables) MapCompany(name string) []Mapping {
	nameLower := strings.ToLower(name)

	var results []Mapping
	for _, entry := range t.companies {
		aliasLower := strings.ToLower(entry.Alias)
		if strings.Contains(nameLower, aliasLower) || strings.Contains(aliasLower, nameLower) {
			results = append(results, entry.Mapping)
		}
	}
	return results
}

// MapSector resolves a sector name to its stock list. The first table entry
// that matches (case-insensitive substring, either direction) wins; nil when
// nothing matches.
func (t *Tables) MapSector(sector string) []Mapping {
	sectorLower := strings.ToLower(sector)

	for _, entry := range t.sectors {
		entryLower := strings.ToLower(entry.Sector)
		if strings.Contains(sectorLower, entryLower) || strings.Contains(entryLower, sectorLower) {
			return append([]Mapping(nil), entry.Stocks...)
		}
	}
	return nil
}

// MapRegulator resolves a regulator name to its impact record via upper-case
// containment in either direction. Unknown names yield an empty record.
func (t *Tables) MapRegulator(name string) RegulatorImpact {
	nameUpper := strings.ToUpper(name)

	for _, entry := range t.regulators {
		if strings.Contains(nameUpper, entry.Name) || strings.Contains(entry.Name, nameUpper) {
			return RegulatorImpact{
				Stocks:  append([]Mapping(nil), entry.Impact.Stocks...),
				Sectors: append([]string(nil), entry.Impact.Sectors...),
			}
		}
	}
	return RegulatorImpact{}
}
