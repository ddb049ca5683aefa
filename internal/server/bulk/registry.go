package bulk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/logging"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// EvictionSchedule is how often idle batches are swept.
const EvictionSchedule = "@every 1m"

// job is a submitted batch waiting for its owner's worker.
type job struct {
	ctx   context.Context
	batch *Batch
}

// Registry holds the in-memory batches of all users. Each owner has at
// most one worker, which runs that owner's batches in submission order, so
// an owner never has more than one upstream call in flight.
type Registry struct {
	processor *Processor
	log       logging.Logger
	ttl       time.Duration
	maxItems  int
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	batches map[string]*Batch
	// lanes holds the pending jobs of owners whose worker is running.
	lanes map[int64][]job

	cron *cron.Cron
}

func NewRegistry(p *Processor, log logging.Logger, ttl time.Duration, maxItems int) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		processor: p,
		log:       log,
		ttl:       ttl,
		maxItems:  maxItems,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		batches:   make(map[string]*Batch),
		lanes:     make(map[int64][]job),
	}
}

// Submit registers a new batch and queues it behind the owner's earlier
// batches.
func (r *Registry) Submit(owner int64, uploads []Upload) (*Batch, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: at least one image is required", common.ErrorValidation)
	}
	if r.maxItems > 0 && len(uploads) > r.maxItems {
		return nil, fmt.Errorf("%w: at most %d images per batch", common.ErrorValidation, r.maxItems)
	}

	b := NewBatch(uuid.NewString(), owner, uploads)
	b.touch(r.now())

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return nil, fmt.Errorf("%w: registry stopped", common.ErrorInternal)
	}

	ctx, cancel := context.WithCancel(r.ctx)
	b.cancel = cancel
	r.batches[b.ID] = b
	activeBatches.Inc()

	pending, running := r.lanes[owner]
	r.lanes[owner] = append(pending, job{ctx: ctx, batch: b})
	if !running {
		r.wg.Add(1)
		go r.work(owner)
	}

	return b, nil
}

// work runs the owner's queued batches one after another and exits once
// the lane is empty.
func (r *Registry) work(owner int64) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		pending := r.lanes[owner]
		if len(pending) == 0 {
			delete(r.lanes, owner)
			r.mu.Unlock()
			return
		}
		next := pending[0]
		r.lanes[owner] = pending[1:]
		r.mu.Unlock()

		r.processor.Run(next.ctx, next.batch)
	}
}

// Get returns the owner's batch. Other owners' batches are reported as
// missing.
func (r *Registry) Get(owner int64, id string) (*Batch, error) {
	r.mu.Lock()
	b, ok := r.batches[id]
	r.mu.Unlock()

	if !ok || b.Owner != owner {
		return nil, common.ErrorNotFound
	}
	b.touch(r.now())
	return b, nil
}

// Clear cancels and discards the owner's batch.
func (r *Registry) Clear(owner int64, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.batches[id]
	if !ok || b.Owner != owner {
		return common.ErrorNotFound
	}
	r.dropLocked(b)
	return nil
}

// EvictIdle drops batches untouched for longer than the TTL.
func (r *Registry) EvictIdle(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, b := range r.batches {
		if now.Sub(b.idleSince()) > r.ttl {
			r.dropLocked(b)
			n++
		}
	}
	return n
}

func (r *Registry) dropLocked(b *Batch) {
	b.cancel()
	b.finish()
	delete(r.batches, b.ID)
	activeBatches.Dec()
}

// Start schedules idle eviction.
func (r *Registry) Start() error {
	r.cron = cron.New()
	_, err := r.cron.AddFunc(EvictionSchedule, func() {
		if n := r.EvictIdle(r.now()); n > 0 {
			r.log.Info(r.ctx, "evicted idle batches", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule eviction: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts eviction, cancels every batch and waits for the workers or ctx.
func (r *Registry) Stop(ctx context.Context) error {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.cancel()

	r.mu.Lock()
	for _, b := range r.batches {
		r.dropLocked(b)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
