package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	dbtypes "github.com/weihan/activity_service/internal/db"
	"github.com/weihan/activity_service/internal/timewindow"
	"github.com/weihan/activity_service/pkg/models"
)

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := Truncate(long, ContentBudget)
	if want := strings.Repeat("a", 200) + TruncationMarker; got != want {
		t.Errorf("500-char body: got %d chars %q..., want 200 + marker", len(got), got[:10])
	}

	short := strings.Repeat("b", 150)
	if got := Truncate(short, ContentBudget); got != short {
		t.Errorf("150-char body modified: %q", got)
	}

	exact := strings.Repeat("c", 200)
	if got := Truncate(exact, ContentBudget); got != exact {
		t.Errorf("exactly-at-budget body modified")
	}
}

func TestTruncateIsRuneSafe(t *testing.T) {
	cjk := strings.Repeat("青年活動報名中", 50) // 350 runes, 3 bytes each
	got := Truncate(cjk, ContentBudget)

	if !utf8.ValidString(got) {
		t.Fatal("truncation produced invalid UTF-8")
	}
	trimmed := strings.TrimSuffix(got, TruncationMarker)
	if n := utf8.RuneCountInString(trimmed); n != ContentBudget {
		t.Errorf("kept %d runes, want %d", n, ContentBudget)
	}
}

func TestRecord(t *testing.T) {
	published := time.Date(2026, 3, 15, 9, 30, 0, 0, timewindow.Location)
	a := &models.Activity{
		Source:      "youth-bureau",
		PostID:      "pfbid0abc",
		Title:       "創業講座",
		Content:     "報名開始",
		PublishDate: published,
		URL:         "https://example.com/posts/1",
		Tags:        dbtypes.StringSlice{"創業", "講座"},
	}

	got := Record(a)
	if got.PublishDate != "2026/03/15 09:30" {
		t.Errorf("publish_date = %s, want 2026/03/15 09:30", got.PublishDate)
	}
	if got.Content != "報名開始" {
		t.Errorf("content modified: %q", got.Content)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestRecordNilTagsSerializeAsEmptyArray(t *testing.T) {
	got := Record(&models.Activity{Source: "s", Title: "t"})
	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"tags":[]`) {
		t.Errorf("nil tags serialized as %s, want empty array", raw)
	}
}

func TestResultsEmptyWindow(t *testing.T) {
	w, err := timewindow.ResolveRecent(time.Date(2026, 2, 11, 12, 0, 0, 0, timewindow.Location), 90)
	if err != nil {
		t.Fatal(err)
	}

	env := Results("recent_activities", w, nil)
	if !env.Success {
		t.Error("empty window must still report success")
	}
	if env.TotalCount != 0 {
		t.Errorf("total_count = %d, want 0", env.TotalCount)
	}
	if env.Activities == nil {
		t.Error("activities must be an empty slice, not nil")
	}
	if env.TimeRange.From != "2026/02/11" || env.TimeRange.To != "2026/05/12" {
		t.Errorf("time_range = %+v", env.TimeRange)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"activities":[]`) {
		t.Errorf("empty result serialized as %s", raw)
	}
}
