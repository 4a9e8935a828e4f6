package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/nlp"
)

// Confidence per evidence source. Pattern tables are more reliable than the
// general-purpose recognizer for the names they cover.
const (
	confidenceNERCompany     = 0.9
	confidenceNERRegulator   = 0.95
	confidenceNERPerson      = 0.9
	confidenceKnownBank      = 0.95
	confidenceKnownRegulator = 0.95
	confidenceKnownCompany   = 0.9
	confidenceSectorKeyword  = 0.7
	confidenceSectorPhrase   = 0.9
)

// Extractor derives typed entities from article text by combining a supplied
// recognizer with deterministic pattern and keyword passes. A nil recognizer
// reduces recall but never fails: the pattern passes still run.
type Extractor struct {
	recognizer nlp.Recognizer
	logger     zerolog.Logger
}

func NewExtractor(recognizer nlp.Recognizer, logger zerolog.Logger) *Extractor {
	return &Extractor{recognizer: recognizer, logger: logger}
}

// Extract runs every pass over title and content joined by a space and
// returns the per-category entities, deduplicated by exact name with the
// first occurrence (and its confidence) winning. It is total over empty
// inputs and never returns an error: recognizer failures degrade to the
// pattern passes alone.
func (x *Extractor) Extract(ctx context.Context, content, title string) news.EntitySet {
	fullText := title + " " + content

	var set news.EntitySet
	x.recognizeInto(ctx, fullText, &set)
	extractFinancial(fullText, &set)
	extractSectors(fullText, &set)

	set.Companies = dedupeEntities(set.Companies)
	set.Sectors = dedupeEntities(set.Sectors)
	set.Regulators = dedupeEntities(set.Regulators)
	set.People = dedupeEntities(set.People)
	set.Events = dedupeEntities(set.Events)
	return set
}

// recognizeInto routes recognizer spans into categories: organizations with a
// company marker become companies, organizations matching a regulator alias
// become regulators, other organizations are dropped, persons become people.
func (x *Extractor) recognizeInto(ctx context.Context, text string, set *news.EntitySet) {
	if x.recognizer == nil {
		return
	}
	spans, err := x.recognizer.Recognize(ctx, text)
	if err != nil {
		x.logger.Warn().Err(err).Msg("entity recognition failed; continuing with pattern passes only")
		return
	}
	for _, span := range spans {
		switch span.Label {
		case nlp.LabelOrganization:
			if hasCompanyMarker(span.Text) {
				set.Companies = append(set.Companies, news.Entity{Name: span.Text, Confidence: confidenceNERCompany})
			} else if matchesAny(regulatorPatterns, span.Text) {
				set.Regulators = append(set.Regulators, news.Entity{Name: span.Text, Confidence: confidenceNERRegulator})
			}
		case nlp.LabelPerson:
			set.People = append(set.People, news.Entity{Name: span.Text, Confidence: confidenceNERPerson})
		}
	}
}

func extractFinancial(text string, set *news.EntitySet) {
	for _, pattern := range bankPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			set.Companies = append(set.Companies, news.Entity{Name: match, Confidence: confidenceKnownBank})
		}
	}
	for _, pattern := range regulatorPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			set.Regulators = append(set.Regulators, news.Entity{Name: match, Confidence: confidenceKnownRegulator})
		}
	}
	for _, pattern := range companyPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			set.Companies = append(set.Companies, news.Entity{Name: match, Confidence: confidenceKnownCompany})
		}
	}
}

// extractSectors runs the keyword pass before the phrase pass; when both
// produce the same sector the keyword occurrence comes first and therefore
// its confidence survives deduplication.
func extractSectors(text string, set *news.EntitySet) {
	lower := strings.ToLower(text)
	for _, row := range sectorKeywords {
		for _, keyword := range row.Keywords {
			if strings.Contains(lower, keyword) {
				set.Sectors = append(set.Sectors, news.Entity{Name: row.Sector, Confidence: confidenceSectorKeyword})
				break
			}
		}
	}
	for _, row := range sectorPhrases {
		if row.Pattern.MatchString(text) {
			set.Sectors = append(set.Sectors, news.Entity{Name: row.Sector, Confidence: confidenceSectorPhrase})
		}
	}
}

func hasCompanyMarker(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range companyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func dedupeEntities(entities []news.Entity) []news.Entity {
	if len(entities) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(entities))
	unique := make([]news.Entity, 0, len(entities))
	for _, entity := range entities {
		if _, ok := seen[entity.Name]; ok {
			continue
		}
		seen[entity.Name] = struct{}{}
		unique = append(unique, entity)
	}
	return unique
}
