package services

import (
	"context"
	"fmt"
	"time"

	"bursary-management-api/metrics"
	"bursary-management-api/repository"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// orphanGrace keeps freshly written blobs whose submission may still be in
// flight.
const orphanGrace = time.Hour

// OrphanReport summarizes one cleanup run.
type OrphanReport struct {
	Scanned    int
	Referenced int
	Orphans    []string
	Removed    int
	DryRun     bool
}

// OrphanCleaner removes stored blobs that no application document points at.
type OrphanCleaner struct {
	store  repository.Store
	blobs  BlobStore
	logger *logrus.Logger
	now    func() time.Time
}

func NewOrphanCleaner(store repository.Store, blobs BlobStore, logger *logrus.Logger) *OrphanCleaner {
	return &OrphanCleaner{store: store, blobs: blobs, logger: logger, now: time.Now}
}

// Run scans the blob store once. With dryRun set nothing is deleted.
func (c *OrphanCleaner) Run(ctx context.Context, dryRun bool) (*OrphanReport, error) {
	handles, err := c.store.ListDocumentHandles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list document handles: %w", err)
	}
	referenced := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		referenced[h] = struct{}{}
	}

	blobs, err := c.blobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}

	report := &OrphanReport{Scanned: len(blobs), DryRun: dryRun}
	threshold := c.now().Add(-orphanGrace)
	for _, b := range blobs {
		if _, ok := referenced[b.Handle]; ok {
			report.Referenced++
			continue
		}
		if b.ModTime.After(threshold) {
			continue
		}
		report.Orphans = append(report.Orphans, b.Handle)
		if dryRun {
			continue
		}
		if err := c.blobs.Delete(ctx, b.Handle); err != nil {
			c.logger.WithError(err).WithField("handle", b.Handle).Warn("delete orphan blob")
			continue
		}
		report.Removed++
		metrics.OrphanBlobsRemoved.Inc()
	}

	c.logger.WithFields(logrus.Fields{
		"scanned":    report.Scanned,
		"referenced": report.Referenced,
		"orphans":    len(report.Orphans),
		"removed":    report.Removed,
		"dry_run":    dryRun,
	}).Info("orphan blob cleanup finished")
	return report, nil
}

// StartOrphanCleanup schedules Run on spec. The returned cron must be stopped
// on shutdown.
func StartOrphanCleanup(cleaner *OrphanCleaner, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := cleaner.Run(ctx, false); err != nil {
			cleaner.logger.WithError(err).Error("orphan blob cleanup failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule orphan cleanup %q: %w", spec, err)
	}
	cleaner.logger.WithField("schedule", spec).Info("orphan blob cleanup scheduled")
	c.Start()
	return c, nil
}
