package metadata

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCandidates(ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{CatalogID: id}
	}
	return out
}

func TestSchedulerRelevanceFixedAtLaunch(t *testing.T) {
	s := &Scheduler{}
	work := func(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
		// later candidates finish first
		time.Sleep(time.Duration(3-relevance) * 10 * time.Millisecond)
		rec := NewRecord(c.CatalogID)
		rec.Relevance = relevance
		return rec, nil
	}

	var got []Outcome
	err := s.Run(context.Background(), makeCandidates("a", "b", "c"), work, func(o Outcome) {
		got = append(got, o)
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	byID := map[string]int{}
	for _, o := range got {
		require.NoError(t, o.Err)
		byID[o.CatalogID] = o.Relevance
		assert.Equal(t, o.Relevance, o.Record.Relevance)
	}
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 2}, byID)
}

func TestSchedulerIsolatesFailures(t *testing.T) {
	s := &Scheduler{}
	boom := errors.New("fetch failed")
	work := func(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
		if c.CatalogID == "bad" {
			return nil, boom
		}
		return NewRecord(c.CatalogID), nil
	}

	var records, failures int
	err := s.Run(context.Background(), makeCandidates("a", "bad", "c"), work, func(o Outcome) {
		if o.Err != nil {
			assert.ErrorIs(t, o.Err, boom)
			assert.Equal(t, "bad", o.CatalogID)
			failures++
			return
		}
		records++
	})
	require.NoError(t, err)
	assert.Equal(t, 2, records)
	assert.Equal(t, 1, failures)
}

func TestSchedulerStaggersLaunches(t *testing.T) {
	s := &Scheduler{Stagger: 20 * time.Millisecond}
	var starts []time.Time
	started := make(chan time.Time, 3)
	work := func(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
		started <- time.Now()
		return NewRecord(c.CatalogID), nil
	}

	err := s.Run(context.Background(), makeCandidates("a", "b", "c"), work, func(Outcome) {})
	require.NoError(t, err)
	close(started)
	for ts := range started {
		starts = append(starts, ts)
	}
	require.Len(t, starts, 3)

	first, last := starts[0], starts[0]
	for _, ts := range starts {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 30*time.Millisecond)
}

func TestSchedulerCancelDoesNotWaitForStragglers(t *testing.T) {
	s := &Scheduler{}
	release := make(chan struct{})
	var finished atomic.Int32
	work := func(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
		if c.CatalogID == "slow" {
			<-release
		}
		finished.Add(1)
		return NewRecord(c.CatalogID), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	emitted := make(chan string, 2)
	result := make(chan error, 1)
	go func() {
		result <- s.Run(ctx, makeCandidates("fast", "slow"), work, func(o Outcome) {
			emitted <- o.CatalogID
		})
	}()

	assert.Equal(t, "fast", <-emitted)
	cancel()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run waited for a straggler after cancellation")
	}

	close(release)
	assert.Eventually(t, func() bool { return finished.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, emitted)
}

func TestSchedulerCancelStopsLaunching(t *testing.T) {
	s := &Scheduler{Stagger: time.Hour}
	var launched atomic.Int32
	work := func(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
		launched.Add(1)
		return NewRecord(c.CatalogID), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, makeCandidates("a", "b", "c"), work, func(Outcome) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), launched.Load())
}

func TestSchedulerWorkersOutliveCancellation(t *testing.T) {
	s := &Scheduler{}
	workerErr := make(chan error, 1)
	work := func(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
		time.Sleep(30 * time.Millisecond)
		workerErr <- ctx.Err()
		return NewRecord(c.CatalogID), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := s.Run(ctx, makeCandidates("a"), work, func(Outcome) {})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, <-workerErr)
}

func TestSchedulerNoCandidates(t *testing.T) {
	s := &Scheduler{}
	called := false
	err := s.Run(context.Background(), nil, func(ctx context.Context, c Candidate, relevance int) (*MetadataRecord, error) {
		called = true
		return nil, nil
	}, func(Outcome) { called = true })
	require.NoError(t, err)
	assert.False(t, called)
}
