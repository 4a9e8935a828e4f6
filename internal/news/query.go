package news

// QueryIntent classifies what a free-text query is asking for. Values are
// checked in a fixed precedence order; see the query engine.
type QueryIntent string

const (
	IntentCompanySpecific   QueryIntent = "company_specific"
	IntentSectorWide        QueryIntent = "sector_wide"
	IntentRegulatorSpecific QueryIntent = "regulator_specific"
	IntentThematic          QueryIntent = "thematic"
	IntentGeneral           QueryIntent = "general"
)

// QueryResult is the full answer to one query: the inferred intent, the
// entities extracted from the query text, and the matching articles in
// first-occurrence order.
type QueryResult struct {
	Query    string      `json:"query"`
	Intent   QueryIntent `json:"query_intent"`
	Entities EntitySet   `json:"extracted_entities"`
	Articles []Article   `json:"relevant_articles"`
	Count    int         `json:"count"`
}
