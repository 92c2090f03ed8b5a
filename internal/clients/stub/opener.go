package stub

import (
	"context"
	"sync"

	"dromadaire/internal/clients"
	"dromadaire/internal/model"
	"dromadaire/internal/registry"
)

// Opener implements clients.Opener for testing. Pools and errors are keyed by
// source ID and copied into each new handle.
type Opener struct {
	mu       sync.Mutex
	pools    map[string][]model.LiquidityPool
	listErrs map[string]error
	openErrs map[string]error
	opened   map[string][]*Handle
	gate     chan struct{}
	started  chan string
}

var _ clients.Opener = (*Opener)(nil)

// NewOpener creates a new stub opener.
func NewOpener() *Opener {
	return &Opener{
		pools:    make(map[string][]model.LiquidityPool),
		listErrs: make(map[string]error),
		openErrs: make(map[string]error),
		opened:   make(map[string][]*Handle),
		started:  make(chan string, 64),
	}
}

// BlockOpen makes subsequent Open calls wait until the returned func is called
// or their context ends.
func (o *Opener) BlockOpen() func() {
	gate := make(chan struct{})
	o.mu.Lock()
	o.gate = gate
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			if o.gate == gate {
				o.gate = nil
			}
			o.mu.Unlock()
			close(gate)
		})
	}
}

// OpenStarted receives the source ID each time Open begins.
func (o *Opener) OpenStarted() <-chan string {
	return o.started
}

// SetPools configures the pools served by handles for id.
func (o *Opener) SetPools(id string, pools ...model.LiquidityPool) {
	o.mu.Lock()
	o.pools[id] = pools
	o.mu.Unlock()
}

// SetListError makes handles for id fail ListPools.
func (o *Opener) SetListError(id string, err error) {
	o.mu.Lock()
	o.listErrs[id] = err
	o.mu.Unlock()
}

// SetOpenError makes Open fail for id. A nil err clears it.
func (o *Opener) SetOpenError(id string, err error) {
	o.mu.Lock()
	if err == nil {
		delete(o.openErrs, id)
	} else {
		o.openErrs[id] = err
	}
	o.mu.Unlock()
}

func (o *Opener) Open(ctx context.Context, src registry.Source) (clients.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case o.started <- src.ID:
	default:
	}

	o.mu.Lock()
	gate := o.gate
	o.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.openErrs[src.ID]; err != nil {
		return nil, err
	}
	handle := NewHandle(src, o.pools[src.ID]...)
	if err := o.listErrs[src.ID]; err != nil {
		handle.SetError(err)
	}
	o.opened[src.ID] = append(o.opened[src.ID], handle)
	return handle, nil
}

// Opened returns every handle created for id, oldest first.
func (o *Opener) Opened(id string) []*Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Handle, len(o.opened[id]))
	copy(out, o.opened[id])
	return out
}

// Last returns the most recent handle created for id.
func (o *Opener) Last(id string) *Handle {
	handles := o.Opened(id)
	if len(handles) == 0 {
		return nil
	}
	return handles[len(handles)-1]
}
