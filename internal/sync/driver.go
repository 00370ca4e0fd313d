// Package sync implements the corpus sync driver: it ingests crawler
// JSON exports into the activity store and mirrors a rendered Markdown
// corpus into an external vector store, incrementally or as a full
// rebuild. The driver is not safe to run concurrently with itself; each
// run takes an exclusive lock file.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/weihan/activity_service/internal/config"
	"github.com/weihan/activity_service/internal/vectorstore"
	"github.com/weihan/activity_service/pkg/models"
)

// Mode selects the destination strategy. The caller always supplies it;
// the driver never infers a mode from the state of the data, because a
// silently chosen rebuild is an unbounded-cost operation nobody asked
// for.
type Mode string

const (
	ModeUpdate  Mode = "update"
	ModeRebuild Mode = "rebuild"
)

// ErrAlreadyRunning means another sync run holds the lock file.
var ErrAlreadyRunning = errors.New("sync already running")

// PartialError reports a run where some source files were ingested and
// some failed. Committed files stay committed; a retry can target just
// the failed subset.
type PartialError struct {
	Succeeded []string
	Failed    map[string]error
}

func (e *PartialError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("sync partially failed: %d of %d files failed: %s",
		len(e.Failed), len(e.Failed)+len(e.Succeeded), strings.Join(names, ", "))
}

// RebuildError means the corpus recreation itself failed. The persisted
// store id must not be rewritten after one of these — live queries keep
// pointing at the last-known-good corpus.
type RebuildError struct {
	Stage string
	Err   error
}

func (e *RebuildError) Error() string {
	return fmt.Sprintf("corpus rebuild failed during %s: %v", e.Stage, e.Err)
}

func (e *RebuildError) Unwrap() error { return e.Err }

// Stats summarizes one run for the operator log.
type Stats struct {
	Files       int `json:"files"`
	Posts       int `json:"posts"`
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	FailedFiles int `json:"failed_files"`
}

// Store is the subset of the activity store the driver writes through.
type Store interface {
	UpsertMany(ctx context.Context, activities []*models.Activity) error
}

type Driver struct {
	store    Store
	vs       *vectorstore.Client
	lockPath string
}

// NewDriver wires a driver. vs may be nil for database-only syncs.
func NewDriver(store Store, vs *vectorstore.Client, lockPath string) *Driver {
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), "activity-corpus-sync.lock")
	}
	return &Driver{store: store, vs: vs, lockPath: lockPath}
}

// acquireLock takes the exclusive run lock. The store provides no
// serialization of its own, so two rebuilds racing on drop/recreate
// must be stopped here.
func (d *Driver) acquireLock(runID string) (func(), error) {
	f, err := os.OpenFile(d.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: lock file %s exists", ErrAlreadyRunning, d.lockPath)
		}
		return nil, fmt.Errorf("create lock file %s: %w", d.lockPath, err)
	}
	fmt.Fprintf(f, "%s pid=%d\n", runID, os.Getpid())
	f.Close()

	return func() {
		if err := os.Remove(d.lockPath); err != nil {
			log.Printf("[sync %s] warning: remove lock file: %v", runID, err)
		}
	}, nil
}

// SyncDatabase ingests every discovered export file, upserting records
// keyed by (source, post_id). One failing file is recorded and the run
// moves on; each file commits independently. The returned activity map
// (keyed by source) feeds the corpus rendering step.
func (d *Driver) SyncDatabase(ctx context.Context, runID, dataDir string) (Stats, map[string][]*models.Activity, error) {
	paths, err := DiscoverSourceFiles(dataDir)
	if err != nil {
		return Stats{}, nil, err
	}
	if len(paths) == 0 {
		return Stats{}, nil, fmt.Errorf("no source files matching %s under %s", sourceFilePattern, dataDir)
	}

	stats := Stats{Files: len(paths)}
	bySource := make(map[string][]*models.Activity)
	partial := &PartialError{Failed: make(map[string]error)}

	for _, path := range paths {
		name := filepath.Base(path)
		batch, fileStats, err := d.ingestFile(ctx, path)
		stats.Posts += fileStats.Posts
		stats.Skipped += fileStats.Skipped
		if err != nil {
			log.Printf("[sync %s] file %s failed: %v", runID, name, err)
			stats.FailedFiles++
			partial.Failed[name] = err
			continue
		}
		stats.Imported += len(batch)
		partial.Succeeded = append(partial.Succeeded, name)
		for _, a := range batch {
			bySource[a.Source] = append(bySource[a.Source], a)
		}
		log.Printf("[sync %s] file %s: %d posts, %d imported, %d skipped",
			runID, name, fileStats.Posts, len(batch), fileStats.Skipped)
	}

	if len(partial.Failed) > 0 {
		return stats, bySource, partial
	}
	return stats, bySource, nil
}

func (d *Driver) ingestFile(ctx context.Context, path string) ([]*models.Activity, Stats, error) {
	var stats Stats

	sf, err := LoadSourceFile(path)
	if err != nil {
		return nil, stats, err
	}
	if sf.Posts == nil {
		return nil, stats, nil
	}

	stats.Posts = len(sf.Posts)
	batch := make([]*models.Activity, 0, len(sf.Posts))
	for _, raw := range sf.Posts {
		a, ok, err := BuildActivity(raw, sf.Source)
		if err != nil {
			return nil, stats, err
		}
		if !ok {
			stats.Skipped++
			continue
		}
		batch = append(batch, a)
	}

	if len(batch) == 0 {
		return nil, stats, nil
	}
	if err := d.store.UpsertMany(ctx, batch); err != nil {
		return nil, stats, err
	}
	return batch, stats, nil
}

// corpusExts are the file types mirrored into the vector store.
var corpusExts = map[string]bool{
	".md": true, ".txt": true, ".pdf": true, ".html": true, ".json": true,
}

func collectCorpusFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !corpusExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// UpdateCorpus diffs the local corpus directory against the remote
// store: new files are uploaded, remote-only orphans deleted. Orphan
// deletion lives only on this external-index path — the relational
// store is never touched.
func (d *Driver) UpdateCorpus(ctx context.Context, runID, storeID, corpusDir string) error {
	if storeID == "" {
		return errors.New("no vector store id configured; run a rebuild first")
	}

	remote, err := d.vs.ListFiles(ctx, storeID)
	if err != nil {
		return fmt.Errorf("list remote files: %w", err)
	}
	remoteByName := make(map[string]string, len(remote))
	for _, f := range remote {
		remoteByName[f.Filename] = f.ID
	}

	local, err := collectCorpusFiles(corpusDir)
	if err != nil {
		return err
	}
	localNames := make(map[string]bool, len(local))
	for _, path := range local {
		localNames[filepath.Base(path)] = true
	}

	for name, fileID := range remoteByName {
		if localNames[name] {
			continue
		}
		log.Printf("[sync %s] removing orphan %s from store %s", runID, name, storeID)
		if err := d.vs.DeleteFile(ctx, storeID, fileID); err != nil {
			return fmt.Errorf("delete orphan %s: %w", name, err)
		}
	}

	uploaded := 0
	for _, path := range local {
		if _, exists := remoteByName[filepath.Base(path)]; exists {
			continue
		}
		log.Printf("[sync %s] uploading %s to store %s", runID, filepath.Base(path), storeID)
		if err := d.vs.UploadFile(ctx, storeID, path); err != nil {
			return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
		}
		uploaded++
	}

	log.Printf("[sync %s] corpus update complete: %d uploaded, %d orphans removed",
		runID, uploaded, len(remoteByName)-countShared(remoteByName, localNames))
	return nil
}

func countShared(remote map[string]string, local map[string]bool) int {
	n := 0
	for name := range remote {
		if local[name] {
			n++
		}
	}
	return n
}

// RebuildCorpus drops the old store, creates a fresh one, and uploads
// the whole corpus. Any failure after creation is a RebuildError; the
// caller must leave the persisted store id untouched so live queries
// keep hitting the last-known-good corpus.
func (d *Driver) RebuildCorpus(ctx context.Context, runID, storeName, oldStoreID, corpusDir string) (string, error) {
	files, err := collectCorpusFiles(corpusDir)
	if err != nil {
		return "", &RebuildError{Stage: "collect", Err: err}
	}
	if len(files) == 0 {
		return "", &RebuildError{Stage: "collect", Err: fmt.Errorf("no corpus files under %s", corpusDir)}
	}

	if oldStoreID != "" {
		// Best effort; a missing old store must not block the rebuild.
		if err := d.vs.DeleteStore(ctx, oldStoreID); err != nil {
			log.Printf("[sync %s] warning: delete old store %s: %v", runID, oldStoreID, err)
		}
	}

	newID, err := d.vs.CreateStore(ctx, storeName)
	if err != nil {
		return "", &RebuildError{Stage: "create", Err: err}
	}
	log.Printf("[sync %s] created vector store %s", runID, newID)

	for _, path := range files {
		if err := d.vs.UploadFile(ctx, newID, path); err != nil {
			return "", &RebuildError{Stage: "upload", Err: fmt.Errorf("%s: %w", filepath.Base(path), err)}
		}
		log.Printf("[sync %s] uploaded %s", runID, filepath.Base(path))
	}

	return newID, nil
}

// Options configures a full run.
type Options struct {
	Mode      Mode
	DataDir   string
	CorpusDir string
	EnvFile   string
	StoreName string
	StoreID   string
	DBOnly    bool
}

// Run executes a complete sync: lock, database ingest, corpus render,
// vector-store mirror. The new store id is persisted to the env file
// only after a fully successful rebuild.
func (d *Driver) Run(ctx context.Context, opts Options) (Stats, error) {
	runID := uuid.NewString()[:8]

	release, err := d.acquireLock(runID)
	if err != nil {
		return Stats{}, err
	}
	defer release()

	log.Printf("[sync %s] starting %s run (data=%s)", runID, opts.Mode, opts.DataDir)

	stats, bySource, syncErr := d.SyncDatabase(ctx, runID, opts.DataDir)
	if syncErr != nil {
		var partial *PartialError
		if !errors.As(syncErr, &partial) {
			return stats, syncErr
		}
		// Partial failures don't abort: the corpus mirrors whatever
		// committed, and the summary names the failed subset.
	}

	if len(bySource) > 0 {
		if _, err := WriteCorpus(opts.CorpusDir, bySource); err != nil {
			return stats, err
		}
	}

	if !opts.DBOnly && d.vs != nil {
		switch opts.Mode {
		case ModeUpdate:
			if err := d.UpdateCorpus(ctx, runID, opts.StoreID, opts.CorpusDir); err != nil {
				return stats, err
			}
		case ModeRebuild:
			newID, err := d.RebuildCorpus(ctx, runID, opts.StoreName, opts.StoreID, opts.CorpusDir)
			if err != nil {
				return stats, err
			}
			if err := config.WriteEnvVar(opts.EnvFile, "RAG_VECTOR_STORE_ID", newID); err != nil {
				return stats, fmt.Errorf("rebuild succeeded (store %s) but env update failed: %w", newID, err)
			}
			log.Printf("[sync %s] persisted RAG_VECTOR_STORE_ID=%s to %s", runID, newID, opts.EnvFile)
		default:
			return stats, fmt.Errorf("unknown sync mode: %q", opts.Mode)
		}
	}

	log.Printf("[sync %s] done: files=%d posts=%d imported=%d skipped=%d failed_files=%d",
		runID, stats.Files, stats.Posts, stats.Imported, stats.Skipped, stats.FailedFiles)
	return stats, syncErr
}
