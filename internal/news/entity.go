package news

// Entity is a named entity with the confidence assigned by the pass that
// produced it.
type Entity struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// EntitySet groups extracted entities by category. Lists preserve extraction
// order; within a category names are unique (first occurrence wins, its
// confidence included).
type EntitySet struct {
	Companies  []Entity `json:"companies"`
	Sectors    []Entity `json:"sectors"`
	Regulators []Entity `json:"regulators"`
	People     []Entity `json:"people"`
	Events     []Entity `json:"events"`
}

// IsEmpty reports whether no category holds any entity.
func (s EntitySet) IsEmpty() bool {
	return s.Count() == 0
}

// Count returns the total number of entities across all categories.
func (s EntitySet) Count() int {
	return len(s.Companies) +
		len(s.Sectors) +
		len(s.Regulators) +
		len(s.People) +
		len(s.Events)
}

// Categories returns the category names and their entity lists in the fixed
// canonical order used by API responses and persistence.
func (s EntitySet) Categories() []struct {
	Name     string
	Entities []Entity
} {
	return []struct {
		Name     string
		Entities []Entity
	}{
		{"companies", s.Companies},
		{"sectors", s.Sectors},
		{"regulators", s.Regulators},
		{"people", s.People},
		{"events", s.Events},
	}
}
