package dedup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"dalal.st/pulse/internal/news"
	"dalal.st/pulse/internal/nlp"
)

// DefaultThreshold is the cosine similarity at or above which two articles
// are treated as coverage of the same story.
const DefaultThreshold = 0.85

// Engine clusters near-duplicate articles and consolidates each cluster into
// a single story. A nil embedder disables similarity for the whole run: every
// article becomes its own story.
type Engine struct {
	embedder  nlp.Embedder
	threshold float64
	logger    zerolog.Logger
}

func NewEngine(embedder nlp.Embedder, threshold float64, logger zerolog.Logger) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{embedder: embedder, threshold: threshold, logger: logger}
}

// IdentifyDuplicates partitions the batch into duplicate groups with a single
// greedy left-to-right pass: each not-yet-grouped article anchors a group and
// claims every later not-yet-grouped article whose combined text is similar
// enough. The pass is deliberately not transitive — an article similar to a
// claimed member but not to the anchor starts its own group. Every input id
// lands in exactly one group, singletons included.
func (e *Engine) IdentifyDuplicates(ctx context.Context, articles []news.Article) []news.DuplicateGroup {
	if len(articles) == 0 {
		return nil
	}

	vectors := e.embedAll(ctx, articles)

	groups := make([]news.DuplicateGroup, 0, len(articles))
	claimed := make([]bool, len(articles))
	for i := range articles {
		if claimed[i] {
			continue
		}
		ids := []string{articles[i].ID}
		if vectors != nil {
			for j := i + 1; j < len(articles); j++ {
				if claimed[j] {
					continue
				}
				similarity := nlp.Cosine(vectors[i], vectors[j])
				if similarity < e.threshold {
					continue
				}
				ids = append(ids, articles[j].ID)
				claimed[j] = true
				e.logger.Debug().
					Str("article_id", articles[i].ID).
					Str("duplicate_id", articles[j].ID).
					Float64("similarity", similarity).
					Msg("duplicate article detected")
			}
		}
		claimed[i] = true
		groups = append(groups, news.DuplicateGroup{
			RepresentativeID: articles[i].ID,
			ArticleIDs:       ids,
		})
	}
	return groups
}

// embedAll embeds every article's combined text in one batch call so each
// text is vectorized once per run regardless of how many pairwise comparisons
// follow. It returns nil when similarity is unavailable, which callers treat
// as "nothing is a duplicate".
func (e *Engine) embedAll(ctx context.Context, articles []news.Article) [][]float64 {
	if e.embedder == nil {
		e.logger.Warn().Msg("embedder unavailable; treating every article as unique")
		return nil
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.CombinedText()
	}
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		e.logger.Warn().Err(err).Msg("embedding failed; treating every article as unique")
		return nil
	}
	if len(vectors) != len(articles) {
		e.logger.Warn().
			Int("want", len(articles)).
			Int("got", len(vectors)).
			Msg("embedding count mismatch; treating every article as unique")
		return nil
	}
	return vectors
}

// ConsolidateStory merges the identified group members into one story record.
// Unknown ids are skipped; ok is false when none resolve. Title and content
// come from the longest member text (first-encountered-longest on ties), the
// published date is the earliest among members, and the story id and URL come
// from the first resolvable member.
func (e *Engine) ConsolidateStory(articleIDs []string, articles []news.Article) (news.Story, bool) {
	byID := make(map[string]news.Article, len(articles))
	for _, a := range articles {
		if _, ok := byID[a.ID]; !ok {
			byID[a.ID] = a
		}
	}

	members := make([]news.Article, 0, len(articleIDs))
	memberIDs := make([]string, 0, len(articleIDs))
	for _, id := range articleIDs {
		a, ok := byID[id]
		if !ok {
			continue
		}
		members = append(members, a)
		memberIDs = append(memberIDs, a.ID)
	}
	if len(members) == 0 {
		return news.Story{}, false
	}

	base := members[0]
	title := base.Title
	content := base.Content
	for _, a := range members[1:] {
		if len(a.Title) > len(title) {
			title = a.Title
		}
		if len(a.Content) > len(content) {
			content = a.Content
		}
	}

	var sources []string
	seenSource := make(map[string]struct{}, len(members))
	for _, a := range members {
		if a.Source == "" {
			continue
		}
		if _, ok := seenSource[a.Source]; ok {
			continue
		}
		seenSource[a.Source] = struct{}{}
		sources = append(sources, a.Source)
	}

	var earliest *time.Time
	for _, a := range members {
		if a.PublishedAt == nil {
			continue
		}
		if earliest == nil || a.PublishedAt.Before(*earliest) {
			ts := *a.PublishedAt
			earliest = &ts
		}
	}

	return news.Story{
		StoryID:             "STORY_" + base.ID,
		ConsolidatedTitle:   title,
		ConsolidatedContent: content,
		ArticleIDs:          memberIDs,
		Sources:             sources,
		PublishedAt:         earliest,
		URL:                 base.URL,
	}, true
}

// Deduplicate runs group identification and consolidation in one step. The
// returned stories align with the returned groups except for groups whose ids
// do not resolve, which yield no story.
func (e *Engine) Deduplicate(ctx context.Context, articles []news.Article) ([]news.Story, []news.DuplicateGroup) {
	groups := e.IdentifyDuplicates(ctx, articles)
	stories := make([]news.Story, 0, len(groups))
	for _, group := range groups {
		story, ok := e.ConsolidateStory(group.ArticleIDs, articles)
		if !ok {
			continue
		}
		stories = append(stories, story)
	}
	return stories, groups
}
