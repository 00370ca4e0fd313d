package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/weihan/activity_service/internal/api"
	"github.com/weihan/activity_service/internal/config"
	"github.com/weihan/activity_service/internal/scheduler"
	"github.com/weihan/activity_service/internal/service"
	"github.com/weihan/activity_service/internal/store"
	syncer "github.com/weihan/activity_service/internal/sync"
	"github.com/weihan/activity_service/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	// simple ping + wait (db might be starting in docker)
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		log.Printf("waiting for db: attempt %d, err: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("could not connect to db: %v", err)
	}

	// ensure tables exist (run migrations)
	if err := store.RunMigrations(db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warning: redis ping failed: %v", err)
	}

	repo := store.NewMySQLStore(db)
	svc := service.NewService(repo, rdb)
	handler := api.NewHandler(svc)

	// Nightly incremental sync, when a schedule is configured.
	if cfg.SyncSchedule != "" {
		vs := vectorstore.NewClient(cfg.OpenAIAPIKey, nil)
		driver := syncer.NewDriver(repo, vs, "")
		sched := scheduler.New(driver, syncer.Options{
			DataDir:   cfg.DataDir,
			CorpusDir: cfg.CorpusDir,
			StoreID:   cfg.VectorStoreID,
		})
		if err := sched.Start(cfg.SyncSchedule); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		defer sched.Stop()
	}

	router := gin.Default()
	api.RegisterRoutes(router, handler)

	log.Printf("listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
