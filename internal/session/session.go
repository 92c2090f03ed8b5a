// Package session binds selection and query edits to the aggregation engine
// and the search filter.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"dromadaire/internal/aggregate"
	"dromadaire/internal/clients"
	"dromadaire/internal/model"
	"dromadaire/internal/observability"
	"dromadaire/internal/registry"
	"dromadaire/internal/search"
	"dromadaire/internal/storage"
)

const defaultEventBuffer = 64

// EventKind tells what changed.
type EventKind int

const (
	// EventUpdated means the aggregate changed and View should be re-read.
	EventUpdated EventKind = iota
	// EventNotice carries an informational message.
	EventNotice
	// EventFailure carries one source failure.
	EventFailure
)

// Event is delivered on the Events channel.
type Event struct {
	Kind       EventKind
	Generation uint64
	Message    string
	Err        error
}

// View is what the presentation layer renders.
type View struct {
	Aggregate aggregate.Aggregate
	Selection registry.Selection
	Query     string
	// Pools is Aggregate.Pools filtered by Query.
	Pools []model.LiquidityPool
}

// Config wires optional collaborators.
type Config struct {
	Store       storage.SelectionStore
	Metrics     *observability.Metrics
	EventBuffer int
}

// Controller owns the selection and the query of one session.
type Controller struct {
	pool    *clients.Pool
	engine  *aggregate.Engine
	store   storage.SelectionStore
	metrics *observability.Metrics
	logger  *zap.Logger
	events  chan Event
	wg      sync.WaitGroup

	// mu orders handle pool updates with generation starts. It may be held
	// while handles open, so readers never take it.
	mu sync.Mutex

	selMu     sync.RWMutex
	selection registry.Selection

	queryMu sync.RWMutex
	query   string
}

func NewController(pool *clients.Pool, engine *aggregate.Engine, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Controller{
		pool:    pool,
		engine:  engine,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		logger:  logger,
		events:  make(chan Event, buffer),
	}
}

// Events returns the notification stream.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Restore applies the persisted selection, or fallback when nothing valid was
// saved.
func (c *Controller) Restore(ctx context.Context, fallback registry.Selection) error {
	ids := fallback.IDs()
	if c.store != nil {
		saved, ok, err := c.store.LoadSelection(ctx)
		switch {
		case err != nil:
			c.logger.Warn("load saved selection", zap.Error(err))
		case ok && registry.Validate(saved) == nil:
			ids = saved
		case ok:
			c.logger.Warn("ignore invalid saved selection", zap.Strings("chains", saved))
		}
	}
	return c.apply(ctx, ids, false)
}

// SetSelection validates ids, updates the handle pool and schedules a fetch
// that supersedes any fetch in flight. ctx bounds the fetch as well.
func (c *Controller) SetSelection(ctx context.Context, ids []string) error {
	return c.apply(ctx, ids, true)
}

// Refresh reopens selected sources that failed to open and schedules a new
// fetch over the current selection. Healthy handles are kept.
func (c *Controller) Refresh(ctx context.Context) {
	c.mu.Lock()
	entries := c.pool.Apply(ctx, c.Selection())
	fetch := c.engine.Start()
	c.mu.Unlock()

	c.metrics.SetHandlesOpen(countOpen(entries))

	c.emit(Event{Kind: EventUpdated, Generation: fetch.Generation()})
	c.schedule(ctx, fetch)
}

func (c *Controller) apply(ctx context.Context, ids []string, persist bool) error {
	sel, err := registry.NewSelection(ids)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.selMu.Lock()
	c.selection = sel
	c.selMu.Unlock()
	entries := c.pool.Apply(ctx, sel)
	fetch := c.engine.Start()
	c.mu.Unlock()

	c.metrics.SetHandlesOpen(countOpen(entries))
	c.logger.Info("selection changed",
		zap.Strings("chains", sel.IDs()),
		zap.Uint64("generation", fetch.Generation()),
	)

	if sel.Empty() {
		c.emit(Event{Kind: EventNotice, Generation: fetch.Generation(), Message: aggregate.NoticeNoChains})
	} else {
		c.emit(Event{Kind: EventNotice, Generation: fetch.Generation(), Message: "Selected chains: " + strings.Join(sel.Names(), ", ")})
	}
	if persist {
		c.save(ctx, sel)
	}
	c.emit(Event{Kind: EventUpdated, Generation: fetch.Generation()})
	c.schedule(ctx, fetch)
	return nil
}

func (c *Controller) schedule(ctx context.Context, fetch *aggregate.Fetch) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, fetch)
	}()
}

func (c *Controller) run(ctx context.Context, fetch *aggregate.Fetch) {
	agg, err := fetch.Run(ctx)
	if err != nil {
		if errors.Is(err, aggregate.ErrSuperseded) {
			return
		}
		c.logger.Error("fetch", zap.Uint64("generation", fetch.Generation()), zap.Error(err))
		return
	}

	for _, failure := range agg.Failures {
		c.emit(Event{
			Kind:       EventFailure,
			Generation: agg.Generation,
			Message:    "Error loading pools: " + failure.Error(),
			Err:        failure,
		})
	}
	c.emit(Event{Kind: EventUpdated, Generation: agg.Generation})
}

func (c *Controller) save(ctx context.Context, sel registry.Selection) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveSelection(ctx, sel.IDs()); err != nil {
		c.logger.Warn("save selection", zap.Error(err))
	}
}

// SetQuery replaces the search query and returns the refiltered view. It never
// touches the selection or the handle pool.
func (c *Controller) SetQuery(query string) View {
	c.queryMu.Lock()
	c.query = query
	c.queryMu.Unlock()
	return c.View()
}

// Query returns the current search query.
func (c *Controller) Query() string {
	c.queryMu.RLock()
	defer c.queryMu.RUnlock()
	return c.query
}

// Selection returns the current selection.
func (c *Controller) Selection() registry.Selection {
	c.selMu.RLock()
	defer c.selMu.RUnlock()
	return c.selection
}

// View returns the visible aggregate filtered by the current query.
func (c *Controller) View() View {
	agg := c.engine.Snapshot()
	query := c.Query()

	start := time.Now()
	pools := search.Filter(agg.Pools, query)
	c.metrics.ObserveSearch(time.Since(start))

	return View{
		Aggregate: agg,
		Selection: c.Selection(),
		Query:     query,
		Pools:     pools,
	}
}

// Wait blocks until every scheduled fetch has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close waits for scheduled fetches and closes every handle.
func (c *Controller) Close() error {
	c.Wait()
	return c.pool.Close()
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event dropped", zap.Int("kind", int(ev.Kind)), zap.String("message", ev.Message))
	}
}

func countOpen(entries []clients.Entry) int {
	n := 0
	for _, entry := range entries {
		if entry.Err == nil {
			n++
		}
	}
	return n
}
