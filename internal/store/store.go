package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/weihan/activity_service/internal/timewindow"
	"github.com/weihan/activity_service/pkg/models"
)

// ErrUnavailable marks transient storage failures. Callers must treat
// it as retryable and never convert it into an empty result set; an
// empty list would be indistinguishable from "genuinely no activities".
var ErrUnavailable = errors.New("activity store unavailable")

// MaxLimit caps the server-side cost of a single query. Over-large
// requests are clamped, not rejected; clamping a limit is safe where
// clamping a window would not be.
const MaxLimit = 100

type MySQLStore struct {
	db *sqlx.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: sqlx.NewDb(db, "mysql")}
}

func RunMigrations(db *sql.DB) error {
	initSQL := `
CREATE TABLE IF NOT EXISTS fb_activities (
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  source VARCHAR(100) NOT NULL,
  post_id VARCHAR(200) NOT NULL,
  title VARCHAR(500) NOT NULL,
  content TEXT,
  publish_date DATETIME,
  url VARCHAR(1000),
  tags JSON,
  retrieval_time DATETIME,
  raw_data JSON,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  INDEX idx_source (source),
  INDEX idx_publish_date (publish_date),
  UNIQUE KEY unique_post (source, post_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
`
	_, err := db.Exec(initSQL)
	return err
}

// UpsertMany writes activities keyed by (source, post_id). A second
// record with the same pair updates the existing row; nothing is ever
// duplicated or deleted here. Rows committed before a failure stay
// committed so a retry can be scoped to what actually failed.
func (m *MySQLStore) UpsertMany(ctx context.Context, activities []*models.Activity) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}

	stmt := `
INSERT INTO fb_activities (source, post_id, title, content, publish_date, url, tags, retrieval_time, raw_data)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 title=VALUES(title),
 content=VALUES(content),
 publish_date=VALUES(publish_date),
 url=VALUES(url),
 tags=VALUES(tags),
 retrieval_time=VALUES(retrieval_time),
 raw_data=VALUES(raw_data),
 updated_at=CURRENT_TIMESTAMP
`

	for _, a := range activities {
		_, err := tx.ExecContext(ctx, stmt,
			a.Source,
			a.PostID,
			a.Title,
			a.Content,
			nullableTime(a.PublishDate),
			a.URL,
			a.Tags,
			a.RetrievalTime,
			a.Raw,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert activity %s/%s: %w", a.Source, a.PostID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}

// QueryWindow returns activities whose publish_date falls inside the
// inclusive [from, to] range. Recent queries sort ascending (soonest
// first), past queries descending; ties break on post_id ascending for
// determinism. Read-only.
func (m *MySQLStore) QueryWindow(ctx context.Context, direction timewindow.Direction, from, to time.Time, limit int) ([]*models.Activity, error) {
	if limit > MaxLimit {
		limit = MaxLimit
	}

	order := "publish_date ASC, post_id ASC"
	if direction == timewindow.DirectionPast {
		order = "publish_date DESC, post_id ASC"
	}

	query := fmt.Sprintf(`
SELECT id, source, post_id, title, content, publish_date, url, tags, retrieval_time, raw_data, created_at, updated_at
FROM fb_activities
WHERE publish_date >= ? AND publish_date <= ?
ORDER BY %s
LIMIT ?
`, order)

	rows := []*models.Activity{}
	if err := m.db.SelectContext(ctx, &rows, query, from, to, limit); err != nil {
		return nil, fmt.Errorf("%w: query window: %v", ErrUnavailable, err)
	}
	return rows, nil
}

// All returns the most recently published activities regardless of
// window, for operator inspection.
func (m *MySQLStore) All(ctx context.Context, limit int) ([]*models.Activity, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = 50
	}
	rows := []*models.Activity{}
	query := `
SELECT id, source, post_id, title, content, publish_date, url, tags, retrieval_time, raw_data, created_at, updated_at
FROM fb_activities
WHERE publish_date IS NOT NULL
ORDER BY publish_date DESC, post_id ASC
LIMIT ?
`
	if err := m.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("%w: query all: %v", ErrUnavailable, err)
	}
	return rows, nil
}

// SummaryBySource aggregates per-source counts and publish date spans.
func (m *MySQLStore) SummaryBySource(ctx context.Context) ([]*models.SourceSummary, error) {
	rows := []*models.SourceSummary{}
	query := `
SELECT source, COUNT(*) AS total, MIN(publish_date) AS earliest, MAX(publish_date) AS latest
FROM fb_activities
GROUP BY source
ORDER BY source
`
	if err := m.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%w: summary: %v", ErrUnavailable, err)
	}
	return rows, nil
}

// PurgeOlderThan deletes activities published before the cutoff. This
// is an explicit maintenance operation; the sync driver never deletes.
func (m *MySQLStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.db.ExecContext(ctx, "DELETE FROM fb_activities WHERE publish_date < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// nullableTime maps the zero time to SQL NULL so missing publish dates
// don't get stored as 0001-01-01.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
