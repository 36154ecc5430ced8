package worker

import (
	"context"
	"log"
	"sync"

	"golang.org/x/time/rate"

	"pricescan/internal/models"
	"pricescan/internal/pricing"
	"pricescan/internal/queue"
)

// Resolver is the lookup each job runs.
type Resolver interface {
	Resolve(ctx context.Context, token, network string, ts int64) (models.Resolution, error)
}

// Pool drains the backfill queue with bounded concurrency. A shared limiter
// caps queue throughput; the provider's own reservoir is a separate concern
// and lives inside the resolver's provider tier.
type Pool struct {
	queue    queue.Queue
	resolver Resolver
	store    pricing.Store

	limiter     *rate.Limiter
	concurrency int

	// persistDerived upserts interpolated / before-only / after-only job
	// results to the store. Provider results are persisted by the resolver
	// itself.
	persistDerived bool

	wg sync.WaitGroup
}

type PoolOptions struct {
	Queue          queue.Queue
	Resolver       Resolver
	Store          pricing.Store
	Concurrency    int
	JobsPerSecond  float64
	PersistDerived bool
}

func NewPool(opts PoolOptions) *Pool {
	if opts.Concurrency == 0 {
		opts.Concurrency = 2
	}
	if opts.JobsPerSecond == 0 {
		opts.JobsPerSecond = 40
	}
	return &Pool{
		queue:          opts.Queue,
		resolver:       opts.Resolver,
		store:          opts.Store,
		limiter:        rate.NewLimiter(rate.Limit(opts.JobsPerSecond), 1),
		concurrency:    opts.Concurrency,
		persistDerived: opts.PersistDerived,
	}
}

// Start launches the workers. They stop when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	log.Printf("[worker] starting %d workers", p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.runLoop(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runLoop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			log.Printf("[worker %d] stopping: %v", id, err)
			return
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[worker %d] dequeue: %v", id, err)
			continue
		}
		if job == nil {
			continue
		}

		p.process(ctx, job)
	}
}

func (p *Pool) process(ctx context.Context, job *models.JobDescriptor) {
	res, err := p.resolver.Resolve(ctx, job.Token, job.Network, job.Timestamp)
	if err != nil {
		log.Printf("[worker] job %s failed: %v", job.ID, err)
		if ferr := p.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
			log.Printf("[worker] marking %s failed: %v", job.ID, ferr)
		}
		return
	}

	if p.persistDerived && res.Source.Derived() && p.store != nil {
		rec := models.PriceRecord{
			Token:     job.Token,
			Network:   job.Network,
			Timestamp: job.Timestamp,
			Price:     res.Price,
		}
		if err := p.store.UpsertPrice(ctx, rec); err != nil {
			log.Printf("[worker] persisting derived price for %s: %v", job.ID, err)
			if ferr := p.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
				log.Printf("[worker] marking %s failed: %v", job.ID, ferr)
			}
			return
		}
	}

	if err := p.queue.Complete(ctx, job.ID); err != nil {
		log.Printf("[worker] marking %s completed: %v", job.ID, err)
	}
}
