// Package workers runs background jobs of the sync service.
package workers

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"storefront-sync-service/internal/models"
	"storefront-sync-service/internal/services"
)

const DefaultReconcileInterval = 30 * time.Minute

var ErrNoObjectStore = errors.New("object storage is not configured")

// FeedImporter applies one CommerceML document
type FeedImporter interface {
	ImportNamed(ctx context.Context, data []byte, origin, file string) (*models.ImportStats, error)
}

// FeedSource lists and reads staged exchange files, already in import order
type FeedSource interface {
	LocalFeeds(ctx context.Context) ([]string, error)
	StoredFeeds(ctx context.Context) ([]string, error)
	LoadLocal(ctx context.Context, name string) ([]byte, error)
	LoadStored(ctx context.Context, name string) ([]byte, error)
	HasRemote() bool
}

// ReconcileStats summarizes the worker's activity
type ReconcileStats struct {
	Runs            int64              `json:"runs"`
	SkippedRuns     int64              `json:"skippedRuns"`
	FilesApplied    int64              `json:"filesApplied"`
	FilesUnchanged  int64              `json:"filesUnchanged"`
	FilesFailed     int64              `json:"filesFailed"`
	LastRunAt       time.Time          `json:"lastRunAt,omitempty"`
	LastRunDuration string             `json:"lastRunDuration,omitempty"`
	LastError       string             `json:"lastError,omitempty"`
	Totals          models.ImportStats `json:"totals"`
}

// ReconciliationWorker periodically re-applies staged exchange files so the
// catalog converges even when an exchange session was interrupted. Only one
// pass runs at a time; a pass requested while another is active is skipped.
type ReconciliationWorker struct {
	importer FeedImporter
	source   FeedSource
	interval time.Duration
	logger   *logrus.Entry

	busy atomic.Bool

	stopChan chan struct{}
	doneChan chan struct{}
	cancel   context.CancelFunc

	mu      sync.Mutex
	running bool
	applied map[string][sha256.Size]byte
	stats   ReconcileStats
}

func NewReconciliationWorker(importer FeedImporter, source FeedSource, interval time.Duration, logger *logrus.Logger) *ReconciliationWorker {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &ReconciliationWorker{
		importer: importer,
		source:   source,
		interval: interval,
		logger:   logger.WithField("component", "reconciliation_worker"),
		applied:  make(map[string][sha256.Size]byte),
	}
}

// Start begins the reconciliation loop. A stopped worker can be started
// again.
func (w *ReconciliationWorker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	stop, done := make(chan struct{}), make(chan struct{})
	w.stopChan, w.doneChan = stop, done
	w.mu.Unlock()

	go w.run(ctx, stop, done)
	w.logger.WithField("interval", w.interval.String()).Info("reconciliation worker started")
}

// Stop cancels an in-flight pass and waits for the loop to exit
func (w *ReconciliationWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, stop, done := w.cancel, w.stopChan, w.doneChan
	w.mu.Unlock()

	cancel()
	close(stop)
	<-done
	w.logger.Info("reconciliation worker stopped")
}

func (w *ReconciliationWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// IsBusy reports whether a pass is in progress
func (w *ReconciliationWorker) IsBusy() bool {
	return w.busy.Load()
}

func (w *ReconciliationWorker) Stats() ReconcileStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *ReconciliationWorker) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps the local staging area and applies files whose content
// changed since they were last applied. It returns false without doing
// anything when another pass is active.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) bool {
	if !w.busy.CompareAndSwap(false, true) {
		w.mu.Lock()
		w.stats.SkippedRuns++
		w.mu.Unlock()
		w.logger.Debug("reconciliation already in progress, skipping")
		return false
	}
	defer w.busy.Store(false)

	start := time.Now()
	names, err := w.source.LocalFeeds(ctx)
	if err != nil {
		w.finish(start, err)
		return true
	}

	var lastErr error
	for _, name := range names {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		data, err := w.source.LoadLocal(ctx, name)
		if err != nil {
			w.fileFailed(name, err)
			lastErr = err
			continue
		}

		sum := sha256.Sum256(data)
		if w.unchanged(name, sum) {
			w.mu.Lock()
			w.stats.FilesUnchanged++
			w.mu.Unlock()
			continue
		}

		if err := w.apply(ctx, data, services.OriginReconcile, name); err != nil {
			lastErr = err
			continue
		}
		w.mu.Lock()
		w.applied[name] = sum
		w.mu.Unlock()
	}

	w.finish(start, lastErr)
	return true
}

// ResyncFromStorage re-applies every exchange file mirrored to the object
// store, regardless of what was applied before. It returns false when
// another pass is active.
func (w *ReconciliationWorker) ResyncFromStorage(ctx context.Context) (bool, error) {
	if !w.source.HasRemote() {
		return false, ErrNoObjectStore
	}
	if !w.busy.CompareAndSwap(false, true) {
		w.mu.Lock()
		w.stats.SkippedRuns++
		w.mu.Unlock()
		return false, nil
	}
	defer w.busy.Store(false)

	start := time.Now()
	names, err := w.source.StoredFeeds(ctx)
	if err != nil {
		w.finish(start, err)
		return true, err
	}

	var lastErr error
	for _, name := range names {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		data, err := w.source.LoadStored(ctx, name)
		if err != nil {
			w.fileFailed(name, err)
			lastErr = err
			continue
		}
		if err := w.apply(ctx, data, services.OriginResync, name); err != nil {
			lastErr = err
		}
	}

	w.finish(start, lastErr)
	return true, nil
}

func (w *ReconciliationWorker) apply(ctx context.Context, data []byte, origin, name string) error {
	stats, err := w.importer.ImportNamed(ctx, data, origin, name)
	if err != nil {
		w.fileFailed(name, err)
		return err
	}

	w.mu.Lock()
	w.stats.FilesApplied++
	w.stats.Totals.Merge(stats)
	w.mu.Unlock()
	return nil
}

func (w *ReconciliationWorker) unchanged(name string, sum [sha256.Size]byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, ok := w.applied[name]
	return ok && prev == sum
}

func (w *ReconciliationWorker) fileFailed(name string, err error) {
	w.logger.WithError(err).WithField("file", name).Warn("failed to apply staged file")
	w.mu.Lock()
	w.stats.FilesFailed++
	w.mu.Unlock()
}

func (w *ReconciliationWorker) finish(start time.Time, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.Runs++
	w.stats.LastRunAt = start
	w.stats.LastRunDuration = time.Since(start).String()
	w.stats.LastError = ""
	if err != nil {
		w.stats.LastError = err.Error()
	}

	w.logger.WithFields(logrus.Fields{
		"applied":   w.stats.FilesApplied,
		"unchanged": w.stats.FilesUnchanged,
		"failed":    w.stats.FilesFailed,
		"duration":  w.stats.LastRunDuration,
	}).Info("reconciliation pass finished")
}
