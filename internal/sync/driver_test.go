package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/weihan/activity_service/pkg/models"
)

// memStore keeps upserted activities keyed by (source, post_id), like
// the real table's unique key.
type memStore struct {
	rows    map[string]*models.Activity
	upserts int
	failFor string // source name whose batches fail
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*models.Activity)}
}

func (m *memStore) UpsertMany(ctx context.Context, activities []*models.Activity) error {
	for _, a := range activities {
		if a.Source == m.failFor {
			return errors.New("simulated storage failure")
		}
	}
	for _, a := range activities {
		m.rows[a.Source+"/"+a.PostID] = a
		m.upserts++
	}
	return nil
}

func writeExport(t *testing.T, dir, name, source string, posts ...string) {
	t.Helper()
	doc := fmt.Sprintf(`{"source": %q, "posts": [%s]}`, source, strings.Join(posts, ","))
	if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
}

func postJSON(id, title string) string {
	return fmt.Sprintf(`{"id": %q, "title": %q, "content": "內容", "publish_date": "2026-02-11T08:00:00Z", "url": ""}`, id, title)
}

func TestSyncDatabase(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FB-POST-a-20260121.json", "bureau-a",
		postJSON("pfbid0one", "活動一"), postJSON("pfbid0two", "活動二"))
	writeExport(t, dir, "FB-POST-b-20260121.json", "bureau-b",
		postJSON("pfbid0three", "活動三"))

	ms := newMemStore()
	d := NewDriver(ms, nil, filepath.Join(t.TempDir(), "sync.lock"))

	stats, bySource, err := d.SyncDatabase(context.Background(), "test", dir)
	if err != nil {
		t.Fatalf("SyncDatabase: %v", err)
	}
	if stats.Files != 2 || stats.Posts != 3 || stats.Imported != 3 || stats.FailedFiles != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(ms.rows) != 3 {
		t.Errorf("stored %d rows, want 3", len(ms.rows))
	}
	if len(bySource["bureau-a"]) != 2 || len(bySource["bureau-b"]) != 1 {
		t.Errorf("bySource sizes wrong: %d/%d", len(bySource["bureau-a"]), len(bySource["bureau-b"]))
	}
}

func TestSyncDatabaseIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FB-POST-a-20260121.json", "bureau-a", postJSON("pfbid0one", "活動一"))

	ms := newMemStore()
	d := NewDriver(ms, nil, filepath.Join(t.TempDir(), "sync.lock"))

	for i := 0; i < 2; i++ {
		if _, _, err := d.SyncDatabase(context.Background(), "test", dir); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	if len(ms.rows) != 1 {
		t.Errorf("second run over unchanged input grew the store to %d rows", len(ms.rows))
	}
}

func TestSyncDatabaseLatestRecordWins(t *testing.T) {
	dir := t.TempDir()
	// Same (source, post_id) in an older and a newer export; the newer
	// file sorts later and must win.
	writeExport(t, dir, "FB-POST-a-20260121.json", "bureau-a", postJSON("pfbid0one", "舊標題"))
	writeExport(t, dir, "FB-POST-a-20260129.json", "bureau-a", postJSON("pfbid0one", "新標題"))

	ms := newMemStore()
	d := NewDriver(ms, nil, filepath.Join(t.TempDir(), "sync.lock"))

	if _, _, err := d.SyncDatabase(context.Background(), "test", dir); err != nil {
		t.Fatal(err)
	}
	if len(ms.rows) != 1 {
		t.Fatalf("stored %d rows, want 1", len(ms.rows))
	}
	if got := ms.rows["bureau-a/pfbid0one"].Title; got != "新標題" {
		t.Errorf("title = %s, want the later export's value", got)
	}
}

func TestSyncDatabasePartialFailure(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FB-POST-a-20260121.json", "bureau-a", postJSON("pfbid0one", "活動一"))
	writeExport(t, dir, "FB-POST-b-20260121.json", "bureau-b", postJSON("pfbid0two", "活動二"))
	if err := os.WriteFile(filepath.Join(dir, "FB-POST-c-20260121.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	ms := newMemStore()
	ms.failFor = "bureau-b"
	d := NewDriver(ms, nil, filepath.Join(t.TempDir(), "sync.lock"))

	stats, _, err := d.SyncDatabase(context.Background(), "test", dir)

	var partial *PartialError
	if !errors.As(err, &partial) {
		t.Fatalf("got %v, want PartialError", err)
	}
	if len(partial.Failed) != 2 {
		t.Errorf("failed set = %v, want the malformed file and the failing source", partial.Failed)
	}
	if _, ok := partial.Failed["FB-POST-b-20260121.json"]; !ok {
		t.Error("failing source file missing from failed set")
	}
	if _, ok := partial.Failed["FB-POST-c-20260121.json"]; !ok {
		t.Error("malformed file missing from failed set")
	}
	if len(partial.Succeeded) != 1 {
		t.Errorf("succeeded = %v", partial.Succeeded)
	}

	// The committed file stays committed.
	if _, ok := ms.rows["bureau-a/pfbid0one"]; !ok {
		t.Error("successful file's rows were lost")
	}
	if stats.FailedFiles != 2 || stats.Imported != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunHoldsExclusiveLock(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FB-POST-a-20260121.json", "bureau-a", postJSON("pfbid0one", "活動一"))

	lockPath := filepath.Join(t.TempDir(), "sync.lock")
	d := NewDriver(newMemStore(), nil, lockPath)

	// A concurrent run left (or holds) the lock file.
	if err := os.WriteFile(lockPath, []byte("other pid=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := d.Run(context.Background(), Options{Mode: ModeUpdate, DataDir: dir, DBOnly: true})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("got %v, want ErrAlreadyRunning", err)
	}
}

func TestRunReleasesLock(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FB-POST-a-20260121.json", "bureau-a", postJSON("pfbid0one", "活動一"))

	lockPath := filepath.Join(t.TempDir(), "sync.lock")
	corpusDir := t.TempDir()
	d := NewDriver(newMemStore(), nil, lockPath)

	opts := Options{Mode: ModeUpdate, DataDir: dir, CorpusDir: corpusDir, DBOnly: true}
	if _, err := d.Run(context.Background(), opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatal("lock file not released after run")
	}
	if _, err := d.Run(context.Background(), opts); err != nil {
		t.Fatalf("second run after release: %v", err)
	}
}

func TestRunWritesCorpus(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "FB-POST-a-20260121.json", "bureau-a", postJSON("pfbid0one", "創業講座"))

	corpusDir := filepath.Join(t.TempDir(), "corpus")
	d := NewDriver(newMemStore(), nil, filepath.Join(t.TempDir(), "sync.lock"))

	if _, err := d.Run(context.Background(), Options{
		Mode: ModeUpdate, DataDir: dir, CorpusDir: corpusDir, DBOnly: true,
	}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(corpusDir, "bureau-a.md"))
	if err != nil {
		t.Fatalf("corpus file not written: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "## 創業講座") {
		t.Errorf("corpus missing activity heading:\n%s", content)
	}
	if !strings.Contains(content, "2026/02/11") {
		t.Errorf("corpus missing publish date:\n%s", content)
	}
}
