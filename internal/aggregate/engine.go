package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dromadaire/internal/clients"
	"dromadaire/internal/model"
	"dromadaire/internal/observability"
)

// Config controls fetch behavior.
type Config struct {
	// FetchTimeout bounds each source's listing. Zero means no bound.
	FetchTimeout time.Duration
	Metrics      *observability.Metrics
	Now          func() time.Time
}

// Engine fans one pool listing out to every open handle and keeps the latest
// generation's merged result.
type Engine struct {
	pool   *clients.Pool
	cfg    Config
	logger *zap.Logger

	mu         sync.RWMutex
	generation uint64
	current    Aggregate
	lastGood   []model.LiquidityPool
	hasGood    bool
}

func NewEngine(pool *clients.Pool, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		pool:   pool,
		cfg:    cfg,
		logger: logger,
	}
}

// Snapshot returns a copy of the visible aggregate.
func (e *Engine) Snapshot() Aggregate {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current.clone()
}

// Generation returns the latest generation number.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// FetchAll starts a generation and waits for it.
func (e *Engine) FetchAll(ctx context.Context) (Aggregate, error) {
	return e.Start().Run(ctx)
}

// Fetch is one scheduled generation.
type Fetch struct {
	engine     *Engine
	generation uint64
	entries    []clients.Entry
	done       bool
}

// Generation returns the generation number of the fetch.
func (f *Fetch) Generation() uint64 {
	return f.generation
}

// Start claims a new generation, superseding any fetch in flight, and captures
// the handle pool as it is now. With no selected sources the aggregate becomes
// empty right away and Run issues no request.
func (e *Engine) Start() *Fetch {
	entries := e.pool.Entries()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	f := &Fetch{engine: e, generation: e.generation, entries: entries}
	e.cfg.Metrics.SetGeneration(e.generation)

	if len(entries) == 0 {
		e.current = Aggregate{
			Generation: e.generation,
			Status:     StatusEmpty,
			Notice:     NoticeNoChains,
			UpdatedAt:  e.cfg.Now(),
		}
		e.lastGood = nil
		e.hasGood = false
		f.done = true
		return f
	}

	e.current.Generation = e.generation
	e.current.Status = StatusLoading
	e.current.Notice = ""
	return f
}

type sourceResult struct {
	pools []model.LiquidityPool
	err   error
}

// Run lists pools from every captured handle concurrently and commits the
// merged result unless a newer generation has started, in which case the
// result is dropped and ErrSuperseded is returned.
func (f *Fetch) Run(ctx context.Context) (Aggregate, error) {
	e := f.engine
	if f.done {
		return e.Snapshot(), nil
	}

	results := make([]sourceResult, len(f.entries))
	var g errgroup.Group
	for i, entry := range f.entries {
		if entry.Err != nil {
			results[i].err = entry.Err
			continue
		}
		i, entry := i, entry
		g.Go(func() error {
			results[i] = e.fetchSource(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	var pools []model.LiquidityPool
	var failures []SourceFailure
	succeeded := 0
	for i, entry := range f.entries {
		res := results[i]
		if res.err != nil {
			failures = append(failures, SourceFailure{Source: entry.Source, Err: res.err})
			continue
		}
		succeeded++
		pools = append(pools, res.pools...)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if f.generation != e.generation {
		e.cfg.Metrics.RecordStale()
		e.logger.Debug("discard stale fetch",
			zap.Uint64("generation", f.generation),
			zap.Uint64("latest", e.generation),
		)
		return Aggregate{}, fmt.Errorf("generation %d: %w", f.generation, ErrSuperseded)
	}

	next := Aggregate{
		Generation: f.generation,
		Failures:   failures,
		UpdatedAt:  e.cfg.Now(),
	}
	if succeeded == 0 {
		next.Status = StatusError
		next.Notice = "Error loading pools"
		if e.hasGood {
			next.Pools = append([]model.LiquidityPool(nil), e.lastGood...)
		}
	} else {
		next.Status = StatusReady
		next.Pools = pools
		e.lastGood = pools
		e.hasGood = true
	}
	e.current = next

	e.logger.Info("fetch complete",
		zap.Uint64("generation", f.generation),
		zap.String("status", next.Status.String()),
		zap.Int("pools", len(next.Pools)),
		zap.Int("failures", len(failures)),
	)

	return next.clone(), nil
}

func (e *Engine) fetchSource(ctx context.Context, entry clients.Entry) sourceResult {
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}

	start := e.cfg.Now()
	pools, err := listPools(ctx, entry.Handle)
	elapsed := e.cfg.Now().Sub(start)
	e.cfg.Metrics.ObserveFetch(entry.Source.ID, elapsed, len(pools), err)
	if err != nil {
		e.logger.Warn("list pools failed", zap.String("source", entry.Source.ID), zap.Duration("elapsed", elapsed), zap.Error(err))
		return sourceResult{err: err}
	}

	valid := pools[:0:0]
	for _, pool := range pools {
		if err := pool.Validate(); err != nil {
			e.logger.Debug("skip invalid pool", zap.String("source", entry.Source.ID), zap.Error(err))
			continue
		}
		valid = append(valid, pool)
	}

	e.logger.Debug("list pools",
		zap.String("source", entry.Source.ID),
		zap.Int("pools", len(valid)),
		zap.Duration("elapsed", elapsed),
	)
	return sourceResult{pools: valid}
}

func listPools(ctx context.Context, handle clients.Handle) ([]model.LiquidityPool, error) {
	if err := handle.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire handle: %w", err)
	}
	defer handle.Release()

	pools, err := handle.ListPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	return pools, nil
}
