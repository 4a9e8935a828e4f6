package news

import "time"

// Article is a single ingested news item. Once handed to a pipeline run it is
// treated as immutable; missing title or content is an empty string, never an
// error.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	URL         string     `json:"url,omitempty"`
	Language    string     `json:"language,omitempty"`
}

// CombinedText is the canonical text form used for similarity comparison and
// retrieval matching: title and content joined by a single space.
func (a Article) CombinedText() string {
	return a.Title + " " + a.Content
}
