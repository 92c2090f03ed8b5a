package stub

import (
	"context"
	"sync"

	"dromadaire/internal/clients"
	"dromadaire/internal/model"
	"dromadaire/internal/registry"
)

// Handle implements clients.Handle for testing.
type Handle struct {
	Source registry.Source

	mu       sync.Mutex
	pools    []model.LiquidityPool
	err      error
	gate     chan struct{}
	started  chan struct{}
	acquired int
	released int
	listed   int
	closed   bool
}

var _ clients.Handle = (*Handle)(nil)

// NewHandle creates a stub handle serving pools.
func NewHandle(src registry.Source, pools ...model.LiquidityPool) *Handle {
	return &Handle{
		Source:  src,
		pools:   pools,
		started: make(chan struct{}, 64),
	}
}

// SetPools replaces the pools served by ListPools.
func (h *Handle) SetPools(pools ...model.LiquidityPool) {
	h.mu.Lock()
	h.pools = pools
	h.mu.Unlock()
}

// SetError makes ListPools fail with err.
func (h *Handle) SetError(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

// Block makes subsequent ListPools calls wait until the returned func is called.
func (h *Handle) Block() func() {
	gate := make(chan struct{})
	h.mu.Lock()
	h.gate = gate
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if h.gate == gate {
				h.gate = nil
			}
			h.mu.Unlock()
			close(gate)
		})
	}
}

// Started receives one value each time ListPools begins.
func (h *Handle) Started() <-chan struct{} {
	return h.started
}

func (h *Handle) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return clients.ErrHandleClosed
	}
	h.acquired++
	return nil
}

func (h *Handle) Release() {
	h.mu.Lock()
	h.released++
	h.mu.Unlock()
}

func (h *Handle) ListPools(ctx context.Context) ([]model.LiquidityPool, error) {
	h.mu.Lock()
	gate := h.gate
	h.listed++
	h.mu.Unlock()

	select {
	case h.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	out := make([]model.LiquidityPool, len(h.pools))
	copy(out, h.pools)
	return out, nil
}

func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Balanced reports whether every Acquire has been matched by a Release.
func (h *Handle) Balanced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquired == h.released
}

// Acquired returns how many times Acquire succeeded.
func (h *Handle) Acquired() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquired
}

// Listed returns how many times ListPools was called.
func (h *Handle) Listed() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listed
}
