// Package scheduler runs the nightly incremental corpus sync inside
// the server process.
package scheduler

import (
	"context"
	"errors"
	"log"

	"github.com/robfig/cron/v3"

	syncer "github.com/weihan/activity_service/internal/sync"
)

type Scheduler struct {
	cron    *cron.Cron
	driver  *syncer.Driver
	opts    syncer.Options
	entryID cron.EntryID
}

// New builds a scheduler that runs an incremental sync on the given
// cron expression. Rebuilds are an explicit operator decision and never
// scheduled.
func New(driver *syncer.Driver, opts syncer.Options) *Scheduler {
	opts.Mode = syncer.ModeUpdate
	return &Scheduler{
		cron:   cron.New(),
		driver: driver,
		opts:   opts,
	}
}

func (s *Scheduler) Start(spec string) error {
	id, err := s.cron.AddFunc(spec, func() {
		log.Println("[cron] starting scheduled corpus sync")
		stats, err := s.driver.Run(context.Background(), s.opts)
		switch {
		case errors.Is(err, syncer.ErrAlreadyRunning):
			// Previous run still holds the lock; skip this tick.
			log.Println("[cron] sync still running, skipping tick")
		case err != nil:
			log.Printf("[cron] sync failed: %v", err)
		default:
			log.Printf("[cron] sync complete: %d imported from %d files", stats.Imported, stats.Files)
		}
	})
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	log.Printf("[cron] scheduler started (spec: %s)", spec)
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
