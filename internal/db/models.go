package db

import (
	"encoding/json"
	"time"
)

// Article statuses. Articles arrive pending and become processed once an
// analysis pass has run over them, duplicate or not.
const (
	ArticleStatusPending   = "pending"
	ArticleStatusProcessed = "processed"
)

// Pipeline run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Article maps news.articles. ArticleID is the external identifier assigned
// at ingestion (feed prefix, NEW_, QUEUE_); entity and impact rows reference
// it rather than the serial primary key.
type Article struct {
	ID                   int64      `gorm:"column:id;primaryKey;autoIncrement"`
	ArticleID            string     `gorm:"column:article_id;type:text;not null;unique"`
	Title                string     `gorm:"column:title;type:text;not null"`
	Content              string     `gorm:"column:content;type:text;not null;default:''"`
	Source               string     `gorm:"column:source;type:text;not null;default:''"`
	PublishedAt          *time.Time `gorm:"column:published_at;type:timestamptz"`
	URL                  *string    `gorm:"column:url;type:text"`
	Language             string     `gorm:"column:language;type:text;not null;default:''"`
	Status               string     `gorm:"column:status;type:text;not null;default:pending"`
	IsDuplicate          bool       `gorm:"column:is_duplicate;type:boolean;not null;default:false"`
	DuplicateOfArticleID *string    `gorm:"column:duplicate_of_article_id;type:text"`
	SimilarityScore      *float64   `gorm:"column:similarity_score;type:double precision"`
	StoryKey             *string    `gorm:"column:story_key;type:text"`
	CreatedAt            time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	ProcessedAt          *time.Time `gorm:"column:processed_at;type:timestamptz"`
}

func (Article) TableName() string { return "news.articles" }

// Story maps news.stories.
type Story struct {
	ID                  int64           `gorm:"column:id;primaryKey;autoIncrement"`
	StoryKey            string          `gorm:"column:story_key;type:text;not null;unique"`
	ConsolidatedTitle   string          `gorm:"column:consolidated_title;type:text;not null"`
	ConsolidatedContent string          `gorm:"column:consolidated_content;type:text;not null;default:''"`
	ArticleIDs          json.RawMessage `gorm:"column:article_ids;type:jsonb;not null"`
	Sources             json.RawMessage `gorm:"column:sources;type:jsonb"`
	PublishedAt         *time.Time      `gorm:"column:published_at;type:timestamptz"`
	URL                 *string         `gorm:"column:url;type:text"`
	CreatedAt           time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Story) TableName() string { return "news.stories" }

// Entity maps news.entities.
type Entity struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ArticleID  string    `gorm:"column:article_id;type:text;not null"`
	Category   string    `gorm:"column:category;type:text;not null"`
	Name       string    `gorm:"column:name;type:text;not null"`
	Confidence float64   `gorm:"column:confidence;type:double precision;not null;default:1"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Entity) TableName() string { return "news.entities" }

// StockImpact maps news.stock_impacts.
type StockImpact struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ArticleID  string    `gorm:"column:article_id;type:text;not null"`
	Symbol     string    `gorm:"column:symbol;type:text;not null"`
	Confidence float64   `gorm:"column:confidence;type:double precision;not null"`
	ImpactType string    `gorm:"column:impact_type;type:text;not null"`
	Reasoning  string    `gorm:"column:reasoning;type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (StockImpact) TableName() string { return "news.stock_impacts" }

// PipelineRun maps news.pipeline_runs. RunUUID is generated in Go, not by
// the database.
type PipelineRun struct {
	ID                int64      `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID           string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	TriggeredBy       string     `gorm:"column:triggered_by;type:text;not null;default:interval"`
	StartedAt         time.Time  `gorm:"column:started_at;type:timestamptz;not null;default:now()"`
	FinishedAt        *time.Time `gorm:"column:finished_at;type:timestamptz"`
	Status            string     `gorm:"column:status;type:text;not null;default:running"`
	ArticlesProcessed int        `gorm:"column:articles_processed;type:integer;not null;default:0"`
	StoriesCreated    int        `gorm:"column:stories_created;type:integer;not null;default:0"`
	EntitiesExtracted int        `gorm:"column:entities_extracted;type:integer;not null;default:0"`
	ImpactsMapped     int        `gorm:"column:impacts_mapped;type:integer;not null;default:0"`
	ErrorMessage      *string    `gorm:"column:error_message;type:text"`
}

func (PipelineRun) TableName() string { return "news.pipeline_runs" }

// APIKey maps news.api_keys. Only the bcrypt hash is stored.
type APIKey struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Name       string     `gorm:"column:name;type:text;not null;unique"`
	KeyHash    string     `gorm:"column:key_hash;type:text;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	LastUsedAt *time.Time `gorm:"column:last_used_at;type:timestamptz"`
}

func (APIKey) TableName() string { return "news.api_keys" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&Story{},
		&Entity{},
		&StockImpact{},
		&PipelineRun{},
		&APIKey{},
	}
}
