package news

import "time"

// DuplicateGroup maps a representative article to every member judged to
// cover the same event. ArticleIDs includes the representative and keeps
// input order. Groups over one batch form a partition: each input id appears
// in exactly one group.
type DuplicateGroup struct {
	RepresentativeID string   `json:"representative_id"`
	ArticleIDs       []string `json:"article_ids"`
}

// Story is the consolidated record derived from one DuplicateGroup.
type Story struct {
	StoryID             string     `json:"story_id"`
	ConsolidatedTitle   string     `json:"consolidated_title"`
	ConsolidatedContent string     `json:"consolidated_content"`
	ArticleIDs          []string   `json:"article_ids"`
	Sources             []string   `json:"sources"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	URL                 string     `json:"url,omitempty"`
}
