package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/weihan/activity_service/internal/timewindow"
	"github.com/weihan/activity_service/pkg/models"
)

// RenderMarkdown formats one source's activities as a Markdown document
// for vector-store retrieval. Plain headings and labeled fields index
// far better than raw JSON.
func RenderMarkdown(source string, activities []*models.Activity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s 活動資料\n\n", source)
	fmt.Fprintf(&b, "共 %d 筆活動。\n\n", len(activities))

	for _, a := range activities {
		fmt.Fprintf(&b, "## %s\n\n", a.Title)
		if !a.PublishDate.IsZero() {
			fmt.Fprintf(&b, "- 發布日期：%s\n", a.PublishDate.In(timewindow.Location).Format(timewindow.DateFormat))
		}
		if a.URL != "" {
			fmt.Fprintf(&b, "- 原文連結：%s\n", a.URL)
		}
		if len(a.Tags) > 0 {
			fmt.Fprintf(&b, "- 標籤：%s\n", strings.Join(a.Tags, "、"))
		}
		if a.Content != "" {
			fmt.Fprintf(&b, "\n%s\n", a.Content)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// WriteCorpus renders one Markdown file per source into corpusDir and
// returns the written paths. Existing files for the same source are
// overwritten so the corpus directory always mirrors the latest sync.
func WriteCorpus(corpusDir string, bySource map[string][]*models.Activity) ([]string, error) {
	if err := os.MkdirAll(corpusDir, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir %s: %w", corpusDir, err)
	}

	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	var written []string
	for _, source := range sources {
		path := filepath.Join(corpusDir, corpusFileName(source))
		if err := os.WriteFile(path, []byte(RenderMarkdown(source, bySource[source])), 0o644); err != nil {
			return written, fmt.Errorf("write corpus file %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// corpusFileName derives a stable file name from a source name so
// update-mode diffing matches across runs.
func corpusFileName(source string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, source)
	return clean + ".md"
}
