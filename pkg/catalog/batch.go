package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/ucp-catalog-adapter/pkg/model"
)

// Defaults for batch fetching.
const (
	DefaultMaxConcurrency = 4
	DefaultFetchTimeout   = 15 * time.Second
)

type batchConfig struct {
	maxConcurrency int
	timeout        time.Duration
}

func newBatchConfig(maxConcurrency int, timeout time.Duration) batchConfig {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return batchConfig{maxConcurrency: maxConcurrency, timeout: timeout}
}

// fetchResult is the outcome for the id at index.
type fetchResult struct {
	index   int
	listing model.Listing
	err     error
}

// ListingsByIDs fetches aggregated listings for ids in parallel. Listings
// are returned in the order of ids; failed ids are left out and their errors
// joined into the returned error, so partial results come with a non-nil
// error.
func (s *Service) ListingsByIDs(ctx context.Context, ids []string) ([]model.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	start := time.Now()

	workers := min(s.batch.maxConcurrency, len(ids))

	queue := make(chan int, len(ids))
	for i := range ids {
		queue <- i
	}
	close(queue)

	results := make(chan fetchResult, len(ids))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go s.worker(ctx, ids, queue, results, &wg, w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	listings := make([]*model.Listing, len(ids))
	errs := make([]error, len(ids))
	for result := range results {
		if result.err != nil {
			errs[result.index] = result.err
			continue
		}
		listing := result.listing
		listings[result.index] = &listing
	}

	out := make([]model.Listing, 0, len(ids))
	var failed []error
	for i := range ids {
		switch {
		case listings[i] != nil:
			out = append(out, *listings[i])
		case errs[i] != nil:
			failed = append(failed, errs[i])
		}
	}

	if len(failed) > 0 {
		s.logger.Warn().
			Int("fetched", len(out)).
			Int("failed", len(failed)).
			Int("total", len(ids)).
			Msg("Batch fetch incomplete, returning partial results")
		return out, fmt.Errorf("fetched %d/%d listings: %w", len(out), len(ids), errors.Join(failed...))
	}

	s.logger.Info().
		Int("listings", len(out)).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return out, nil
}

// worker fetches listings for indexes from the queue. Once ctx is done the
// remaining indexes fail with the context error.
func (s *Service) worker(ctx context.Context, ids []string, queue <-chan int, results chan<- fetchResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for index := range queue {
		if err := ctx.Err(); err != nil {
			results <- fetchResult{index: index, err: fmt.Errorf("product %s: %w", ids[index], err)}
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.batch.timeout)
		listing, err := s.Listing(fetchCtx, ids[index])
		cancel()

		results <- fetchResult{index: index, listing: listing, err: err}
		processed++
	}

	s.logger.Debug().
		Int("worker_id", workerID).
		Int("processed", processed).
		Msg("Worker completed")
}
