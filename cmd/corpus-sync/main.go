// corpus-sync ingests crawler JSON exports into the activity store and
// mirrors the rendered corpus into the OpenAI vector store.
//
// Usage:
//
//	corpus-sync --update                 incremental sync against the existing store
//	corpus-sync --rebuild                drop and recreate the store, then persist its id
//	corpus-sync --list                   list files in the current store
//	corpus-sync --update --db-only       database ingest only, skip the vector store
//	corpus-sync --purge-months 6         delete activities older than six months
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/weihan/activity_service/internal/config"
	"github.com/weihan/activity_service/internal/store"
	syncer "github.com/weihan/activity_service/internal/sync"
	"github.com/weihan/activity_service/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("corpus-sync: %v", err)
	}
}

func run() error {
	var (
		update      = flag.Bool("update", false, "incremental sync: upsert records, upload new corpus files, remove remote orphans")
		rebuild     = flag.Bool("rebuild", false, "full rebuild: recreate the vector store and persist its id on success")
		list        = flag.Bool("list", false, "list files in the configured vector store")
		dataDir     = flag.String("data-dir", "", "directory of crawler JSON exports (default: RAG_DATA_DIR)")
		corpusDir   = flag.String("corpus-dir", "", "directory for rendered corpus files (default: RAG_CORPUS_DIR)")
		envFile     = flag.String("env-file", ".env", "env file updated with the store id after a successful rebuild")
		storeName   = flag.String("store-name", "", "display name for a rebuilt store (default: RAG_STORE_NAME)")
		dbOnly      = flag.Bool("db-only", false, "sync the database only, skip the vector store")
		purgeMonths = flag.Int("purge-months", 0, "delete activities published more than N months ago, then exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dataDir == "" {
		*dataDir = cfg.DataDir
	}
	if *corpusDir == "" {
		*corpusDir = cfg.CorpusDir
	}
	if *storeName == "" {
		*storeName = cfg.StoreName
	}

	modes := 0
	for _, m := range []bool{*update, *rebuild, *list} {
		if m {
			modes++
		}
	}
	if *purgeMonths == 0 && modes != 1 {
		return errors.New("exactly one of --update, --rebuild, --list is required")
	}

	if *purgeMonths > 0 {
		return purge(cfg, *purgeMonths)
	}

	if *list {
		return listStore(cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var vs *vectorstore.Client
	if !*dbOnly {
		if cfg.OpenAIAPIKey == "" {
			return errors.New("missing OPENAI_API_KEY in environment (use --db-only to skip the vector store)")
		}
		vs = vectorstore.NewClient(cfg.OpenAIAPIKey, nil)
	}

	mode := syncer.ModeUpdate
	if *rebuild {
		mode = syncer.ModeRebuild
	}

	driver := syncer.NewDriver(store.NewMySQLStore(db), vs, "")
	stats, err := driver.Run(context.Background(), syncer.Options{
		Mode:      mode,
		DataDir:   *dataDir,
		CorpusDir: *corpusDir,
		EnvFile:   *envFile,
		StoreName: *storeName,
		StoreID:   cfg.VectorStoreID,
		DBOnly:    *dbOnly,
	})

	fmt.Printf("files=%d posts=%d imported=%d skipped=%d failed_files=%d\n",
		stats.Files, stats.Posts, stats.Imported, stats.Skipped, stats.FailedFiles)

	var partial *syncer.PartialError
	if errors.As(err, &partial) {
		for name, ferr := range partial.Failed {
			fmt.Fprintf(os.Stderr, "failed: %s: %v\n", name, ferr)
		}
	}
	return err
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := store.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return db, nil
}

func listStore(cfg *config.Config) error {
	if cfg.VectorStoreID == "" {
		return errors.New("no vector store id configured (RAG_VECTOR_STORE_ID)")
	}
	if cfg.OpenAIAPIKey == "" {
		return errors.New("missing OPENAI_API_KEY in environment")
	}

	vs := vectorstore.NewClient(cfg.OpenAIAPIKey, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	files, err := vs.ListFiles(ctx, cfg.VectorStoreID)
	if err != nil {
		return err
	}

	fmt.Printf("Vector store: %s\n", cfg.VectorStoreID)
	if len(files) == 0 {
		fmt.Println("  (empty)")
		return nil
	}
	for _, f := range files {
		fmt.Printf("  - %s (%s, %s)\n", f.Filename, f.ID, f.Status)
	}
	return nil
}

func purge(cfg *config.Config, months int) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	cutoff := time.Now().AddDate(0, -months, 0)
	n, err := store.NewMySQLStore(db).PurgeOlderThan(context.Background(), cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d activities published before %s\n", n, cutoff.Format("2006/01/02"))
	return nil
}
