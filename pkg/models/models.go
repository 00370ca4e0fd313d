package models

import (
	"time"

	dbtypes "github.com/weihan/activity_service/internal/db"
)

// Activity represents one ingested announcement/post from an external
// content feed. Identity is the natural (source, post_id) pair assigned
// by the origin system; a re-ingested pair updates the existing row.
type Activity struct {
	ID      int64  `db:"id" json:"-"`
	Source  string `db:"source" json:"source"`
	PostID  string `db:"post_id" json:"post_id"`
	Title   string `db:"title" json:"title"`
	Content string `db:"content" json:"content"`

	// PublishDate is when the origin system published the post. It is
	// the only field time-window queries filter on; RetrievalTime is
	// bookkeeping and never substitutes for it.
	PublishDate   time.Time           `db:"publish_date" json:"publish_date"`
	URL           string              `db:"url" json:"url"`
	Tags          dbtypes.StringSlice `db:"tags" json:"tags"`
	RetrievalTime *time.Time          `db:"retrieval_time" json:"retrieval_time,omitempty"`

	// Raw retains the complete original record for future reprocessing.
	Raw dbtypes.RawJSON `db:"raw_data" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// SourceSummary is an operator-facing aggregate over one source feed.
type SourceSummary struct {
	Source   string     `db:"source" json:"source"`
	Total    int        `db:"total" json:"total"`
	Earliest *time.Time `db:"earliest" json:"earliest,omitempty"`
	Latest   *time.Time `db:"latest" json:"latest,omitempty"`
}
