package sync

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	dbtypes "github.com/weihan/activity_service/internal/db"
	"github.com/weihan/activity_service/internal/timewindow"
	"github.com/weihan/activity_service/pkg/models"
)

// sourceFilePattern matches crawler export files. The trailing date in
// the name (FB-POST-<source>-YYYYMMDD.json) sorts lexically in time
// order, so processing ascending lets newer exports win on upsert.
const sourceFilePattern = "FB-POST-*.json"

// SourceFile is one parsed crawler export.
type SourceFile struct {
	Path   string
	Name   string
	Source string
	Posts  []json.RawMessage
}

// DiscoverSourceFiles lists export files under dir, ascending by name.
func DiscoverSourceFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, sourceFilePattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadSourceFile parses one export. A file without a posts array
// returns Posts == nil; the driver skips it rather than failing.
func LoadSourceFile(path string) (*SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc struct {
		Source string            `json:"source"`
		Posts  []json.RawMessage `json:"posts"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	name := filepath.Base(path)
	source := doc.Source
	if source == "" {
		source = strings.TrimSuffix(name, filepath.Ext(name))
	}

	return &SourceFile{
		Path:   path,
		Name:   name,
		Source: source,
		Posts:  doc.Posts,
	}, nil
}

// post mirrors the fields the ingest path reads from a crawler record.
// Everything else rides along untouched inside the raw document.
type post struct {
	ID            interface{} `json:"id"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	PublishDate   string      `json:"publish_date"`
	URL           string      `json:"url"`
	Tags          []string    `json:"tags"`
	RetrievalTime string      `json:"retrieval_time"`
}

// BuildActivity maps one raw post to a storable activity. The second
// return is false for posts that carry neither title nor content; those
// are skipped, not failed. Content is stored verbatim — no field is
// derived from parsing it at ingest time.
func BuildActivity(raw json.RawMessage, source string) (*models.Activity, bool, error) {
	var p post
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode post: %w", err)
	}

	title := strings.TrimSpace(p.Title)
	content := strings.TrimSpace(p.Content)
	if title == "" && content == "" {
		return nil, false, nil
	}
	if title == "" {
		title = "無標題"
	}
	title = truncateRunes(title, 500)

	a := &models.Activity{
		Source:      source,
		PostID:      ResolvePostID(p.ID, p.URL, source, p.Title),
		Title:       title,
		Content:     content,
		PublishDate: parseTimestamp(p.PublishDate),
		URL:         p.URL,
		Tags:        dbtypes.StringSlice(p.Tags),
		Raw:         dbtypes.RawJSON(raw),
	}
	if rt := parseTimestamp(p.RetrievalTime); !rt.IsZero() {
		a.RetrievalTime = &rt
	}
	return a, true, nil
}

// parseTimestamp normalizes an ISO-8601 timestamp to the service
// timezone. Unparseable input yields the zero time and the record is
// stored anyway; dropping records over a bad date is exactly the
// failure mode ingest is meant to avoid.
func parseTimestamp(s string) time.Time {
	if s == "" || !strings.Contains(s, "T") {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, timewindow.Location); err == nil {
			return t.In(timewindow.Location)
		}
	}
	return time.Time{}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var (
	pfbidPattern = regexp.MustCompile(`pfbid[0-9a-zA-Z]+`)
	reelPattern  = regexp.MustCompile(`/reel/(\d+)`)
	postPattern  = regexp.MustCompile(`/posts/(\d+)`)
)

// extractFacebookID pulls the canonical post identifier out of a
// Facebook URL. Supported shapes: pfbid tokens, /reel/<n>, /posts/<n>.
func extractFacebookID(url string) string {
	if url == "" {
		return ""
	}
	if m := pfbidPattern.FindString(url); m != "" {
		return m
	}
	if m := reelPattern.FindStringSubmatch(url); m != nil {
		return "reel_" + m[1]
	}
	if m := postPattern.FindStringSubmatch(url); m != nil {
		return "post_" + m[1]
	}
	return ""
}

// ResolvePostID decides a post's unique identity, in priority order: a
// JSON id already shaped like a Facebook identifier, an id extracted
// from the URL, then a deterministic hash of source and URL (or title)
// so re-ingesting the same record still updates rather than duplicates.
func ResolvePostID(jsonID interface{}, url, source, title string) string {
	if id, ok := jsonID.(string); ok {
		if strings.HasPrefix(id, "pfbid") ||
			strings.HasPrefix(id, "reel_") ||
			strings.HasPrefix(id, "post_") {
			return id
		}
	}

	if fbID := extractFacebookID(url); fbID != "" {
		return fbID
	}

	seed := url
	if seed == "" {
		seed = title
	}
	sum := md5.Sum([]byte(source + ":" + seed))
	return "fallback_" + hex.EncodeToString(sum[:])[:16]
}
