package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"shopscout/models"
	"shopscout/sources"
	"shopscout/utils"
)

// FetchOutcome is the merged contribution of every dispatched source.
type FetchOutcome struct {
	Listings       []models.NormalizedListing
	SourcesQueried []string
	Errors         []models.SourceError
	// Failed counts sources that contributed nothing because of an error.
	Failed int
}

// AllFailed reports whether every dispatched source failed.
func (o FetchOutcome) AllFailed() bool {
	return len(o.SourcesQueried) > 0 && o.Failed == len(o.SourcesQueried)
}

// Orchestrator fans a query out to sources concurrently and waits for all
// of them to settle. It never retries and never fails fast.
type Orchestrator struct {
	timeout        time.Duration
	maxConcurrency int
	logger         *utils.Logger
}

// NewOrchestrator creates an Orchestrator. timeout bounds each source call
// (0 disables it); maxConcurrency bounds in-flight sources (0 = unbounded).
func NewOrchestrator(timeout time.Duration, maxConcurrency int, logger *utils.Logger) *Orchestrator {
	return &Orchestrator{timeout: timeout, maxConcurrency: maxConcurrency, logger: logger}
}

type fetchSlot struct {
	batch   sources.Batch
	err     error
	elapsed time.Duration
}

// FetchAll queries every source and merges their batches in the order the
// sources were given. If ctx is cancelled first, FetchAll returns ctx.Err()
// at once and late results are discarded.
func (o *Orchestrator) FetchAll(ctx context.Context, q models.SearchQuery, srcs []sources.Source) (FetchOutcome, error) {
	if len(srcs) == 0 {
		return FetchOutcome{}, ErrNoSources
	}

	var sem *semaphore.Weighted
	if o.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(o.maxConcurrency))
	}

	// Each goroutine writes only its own slot.
	slots := make([]fetchSlot, len(srcs))
	var wg sync.WaitGroup

	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					slots[i].err = err
					return
				}
				defer sem.Release(1)
			}
			start := time.Now()
			slots[i].batch, slots[i].err = o.fetchOne(ctx, src, q)
			slots[i].elapsed = time.Since(start)
		}(i, src)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		o.logger.Warn("[orchestrator] Search abandoned: %v", ctx.Err())
		return FetchOutcome{}, ctx.Err()
	case <-done:
	}

	return o.merge(srcs, slots), nil
}

// fetchOne runs one source under its own deadline. A panic inside the
// source becomes that source's error.
func (o *Orchestrator) fetchOne(ctx context.Context, src sources.Source, q models.SearchQuery) (batch sources.Batch, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch = sources.Batch{}
			err = fmt.Errorf("source panicked: %v", r)
		}
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	batch, err = src.Search(ctx, q)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		err = fmt.Errorf("timed out after %v: %w", o.timeout, err)
	}
	return batch, err
}

func (o *Orchestrator) merge(srcs []sources.Source, slots []fetchSlot) FetchOutcome {
	out := FetchOutcome{
		SourcesQueried: make([]string, 0, len(srcs)),
		Errors:         []models.SourceError{},
	}

	for i, src := range srcs {
		name := src.Name()
		slot := slots[i]
		out.SourcesQueried = append(out.SourcesQueried, name)

		if slot.err != nil {
			fe := &SourceFetchError{Source: name, Err: slot.err}
			o.logger.Warn("[orchestrator] %v", fe)
			out.Errors = append(out.Errors, models.SourceError{
				Source:  name,
				Kind:    models.ErrorKindFetch,
				Message: slot.err.Error(),
			})
			out.Failed++
			continue
		}

		if slot.batch.AllDropped() {
			o.logger.Warn("[orchestrator] %s: all %d items failed to parse", name, slot.batch.Received)
			out.Errors = append(out.Errors, models.SourceError{
				Source:  name,
				Kind:    models.ErrorKindParse,
				Message: fmt.Sprintf("all %d items failed to parse; first: %v", slot.batch.Received, slot.batch.Dropped[0]),
			})
			out.Failed++
			continue
		}

		if n := len(slot.batch.Dropped); n > 0 {
			o.logger.Debug("[orchestrator] %s: dropped %d malformed items", name, n)
		}
		o.logger.Info("[orchestrator] %s → %d listings in %v", name, len(slot.batch.Listings), slot.elapsed.Round(time.Millisecond))
		out.Listings = append(out.Listings, slot.batch.Listings...)
	}

	return out
}
