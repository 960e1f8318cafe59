package metadata

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultStagger is the delay between worker launches
const DefaultStagger = 100 * time.Millisecond

// WorkFunc produces the record for one candidate
type WorkFunc func(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error)

// Outcome is the result of one worker: a record, or the error that
// prevented one
type Outcome struct {
	CatalogID string
	Relevance int
	Record    *MetadataRecord
	Err       error
}

// Scheduler runs one worker per candidate
type Scheduler struct {
	Stagger time.Duration
}

// Run starts a worker for every candidate, spacing launches by Stagger, and
// calls emit for each outcome as it arrives. emit is only ever called from
// the goroutine that called Run.
//
// When ctx is cancelled Run stops launching and returns ctx.Err() without
// waiting for workers still in flight. Those workers keep running on a
// context detached from ctx and their outcomes are discarded.
func (s *Scheduler) Run(ctx context.Context, candidates []Candidate, work WorkFunc, emit func(Outcome)) error {
	if len(candidates) == 0 {
		return nil
	}

	outcomes := make(chan Outcome, len(candidates))
	done := make(chan struct{})
	workerCtx := context.WithoutCancel(ctx)
	limiter := rate.NewLimiter(rate.Every(s.Stagger), 1)

	go func() {
		defer close(done)
		var g errgroup.Group
		for i, c := range candidates {
			if err := waitTurn(ctx, limiter); err != nil {
				break
			}
			g.Go(func() error {
				rec, err := work(workerCtx, c, i)
				outcomes <- Outcome{CatalogID: c.CatalogID, Relevance: i, Record: rec, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	for {
		select {
		case o := <-outcomes:
			emit(o)
		case <-done:
			for {
				select {
				case o := <-outcomes:
					emit(o)
				default:
					return ctx.Err()
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// waitTurn blocks until limiter allows another launch or ctx is done
func waitTurn(ctx context.Context, limiter *rate.Limiter) error {
	r := limiter.Reserve()
	t := time.NewTimer(r.Delay())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
