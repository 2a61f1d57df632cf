package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// ErrSweepRunning is returned when a full refresh sweep is requested while
// another one is still in progress.
var ErrSweepRunning = errors.New("a full refresh is already running")

// PersistenceError marks a store failure that happened after a successful
// fetch. The fresh record is already in the cache when this is returned.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist user stats: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// profileFetcher is what the coordinator needs from the upstream client.
type profileFetcher interface {
	fetchProfile(ctx context.Context, username string) (*rawProfile, error)
}

// refresher reconciles stale records against the upstream: one user
// synchronously, one result page under a deadline, or every persisted user
// as a background sweep. It is the only writer of both the cache and the
// store, and it writes them only after a fetch+normalize succeeds.
type refresher struct {
	fetcher profileFetcher
	cache   *statsCache
	store   statsStore

	group   singleflight.Group
	sweepMu sync.Mutex

	concurrency int64
	itemDelay   time.Duration
	uploadDelay time.Duration
	uploadCap   int
}

func newRefresher(fetcher profileFetcher, cache *statsCache, store statsStore, cfg config) *refresher {
	return &refresher{
		fetcher:     fetcher,
		cache:       cache,
		store:       store,
		concurrency: int64(cfg.refreshConcurrency),
		itemDelay:   cfg.refreshDelay,
		uploadDelay: cfg.uploadDelay,
		uploadCap:   cfg.uploadCap,
	}
}

// getOrRefresh returns the user's record, serving a fresh cache hit unless
// force is set, otherwise fetching from upstream. On success the cache and
// store are both updated; on any failure neither is touched, so stale data
// survives transient upstream trouble. Concurrent calls for the same user
// share one upstream request.
func (r *refresher) getOrRefresh(ctx context.Context, username string, force bool) (UserStats, error) {
	key := cacheKey(username)

	if !force {
		if stats, err := r.cache.get(key); err == nil {
			return stats, nil
		}
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		raw, err := r.fetcher.fetchProfile(ctx, username)
		if err != nil {
			return UserStats{}, err
		}
		stats, err := normalize(raw)
		if err != nil {
			return UserStats{}, err
		}

		// Cache first: a store outage must not cost us the record we
		// just paid an upstream call for.
		r.cache.set(key, stats)
		if err := r.store.upsert(ctx, stats); err != nil {
			return stats, &PersistenceError{Err: err}
		}
		return stats, nil
	})

	stats, _ := v.(UserStats)
	return stats, err
}

// batchReport is the outcome of a refreshBatch call. Refreshed is a lower
// bound: items still in flight when the deadline elapsed may write through
// afterwards.
type batchReport struct {
	Refreshed []string
	TimedOut  bool
}

type batchItem struct {
	username string
	err      error
}

// refreshBatch force-refreshes the given usernames with bounded concurrency
// and a per-item launch delay, waiting at most deadline. When the deadline
// elapses the call returns immediately; fetches already started keep running
// and still write through to the cache and store.
func (r *refresher) refreshBatch(ctx context.Context, usernames []string, deadline time.Duration) batchReport {
	if len(usernames) == 0 {
		return batchReport{}
	}

	// Workers outlive the caller's wait on purpose, so they run on a
	// context detached from the caller's cancellation.
	detached := context.WithoutCancel(ctx)
	results := make(chan batchItem, len(usernames))

	go func() {
		sem := semaphore.NewWeighted(r.concurrency)
		for i, username := range usernames {
			if i > 0 && r.itemDelay > 0 {
				time.Sleep(r.itemDelay)
			}
			if err := sem.Acquire(detached, 1); err != nil {
				results <- batchItem{username: username, err: err}
				continue
			}
			go func(username string) {
				defer sem.Release(1)
				r.cache.invalidate(cacheKey(username))
				_, err := r.getOrRefresh(detached, username, true)
				if err != nil {
					log.Printf("live refresh failed username=%s err=%v", username, err)
				}
				results <- batchItem{username: username, err: err}
			}(username)
		}
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var report batchReport
	for remaining := len(usernames); remaining > 0; remaining-- {
		select {
		case item := <-results:
			if item.err == nil {
				report.Refreshed = append(report.Refreshed, item.username)
			}
		case <-timer.C:
			report.TimedOut = true
			return report
		case <-ctx.Done():
			report.TimedOut = true
			return report
		}
	}
	return report
}

// refreshAll starts a background sweep over every persisted username. At
// most one sweep runs process-wide; a second request while one is active
// gets ErrSweepRunning instead of waiting.
func (r *refresher) refreshAll(ctx context.Context) error {
	if !r.sweepMu.TryLock() {
		return ErrSweepRunning
	}

	usernames, err := r.store.allUsernames(ctx)
	if err != nil {
		r.sweepMu.Unlock()
		return &PersistenceError{Err: err}
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		defer r.sweepMu.Unlock()
		start := time.Now()
		var failed int
		for i, username := range usernames {
			if i > 0 && r.itemDelay > 0 {
				time.Sleep(r.itemDelay)
			}
			if _, err := r.getOrRefresh(detached, username, true); err != nil {
				failed++
				log.Printf("sweep refresh failed username=%s err=%v", username, err)
			}
		}
		log.Printf("sweep complete users=%d failed=%d duration=%s", len(usernames), failed, time.Since(start))
	}()
	return nil
}

// uploadReport lists per-username outcomes of a bulk upload. One bad entry
// never fails the whole batch.
type uploadReport struct {
	Success []string `json:"success"`
	Errors  []string `json:"errors"`
}

// bulkUpsert fetches and persists each username in order, with a delay
// between upstream calls. At most uploadCap entries are processed per call;
// anything past the cap is silently excluded.
func (r *refresher) bulkUpsert(ctx context.Context, usernames []string) uploadReport {
	if len(usernames) > r.uploadCap {
		usernames = usernames[:r.uploadCap]
	}

	report := uploadReport{Success: []string{}, Errors: []string{}}
	for i, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		if i > 0 && r.uploadDelay > 0 {
			time.Sleep(r.uploadDelay)
		}
		if _, err := r.getOrRefresh(ctx, username, false); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", username, err))
			continue
		}
		report.Success = append(report.Success, username)
	}
	return report
}
