package clients

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dromadaire/internal/model"
	"dromadaire/internal/registry"
)

// ErrHandleClosed is returned by Acquire once a handle has been closed.
var ErrHandleClosed = errors.New("handle closed")

// Handle is a live session with one source.
//
// Every use must be bracketed by Acquire and Release. Close may be called while
// uses are in flight; the underlying connection is torn down after the last
// Release.
type Handle interface {
	Acquire(ctx context.Context) error
	Release()
	ListPools(ctx context.Context) ([]model.LiquidityPool, error)
	Close() error
}

// Opener constructs handles.
type Opener interface {
	Open(ctx context.Context, src registry.Source) (Handle, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, src registry.Source) (Handle, error)

func (f OpenerFunc) Open(ctx context.Context, src registry.Source) (Handle, error) {
	return f(ctx, src)
}

// Entry is one selected source with its handle, or the error that prevented
// opening it.
type Entry struct {
	Source registry.Source
	Handle Handle
	Err    error
}

// Pool keeps one handle per selected source across selection edits.
type Pool struct {
	opener Opener
	logger *zap.Logger

	mu      sync.Mutex
	handles map[string]Handle
	entries []Entry
}

func NewPool(opener Opener, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		opener:  opener,
		logger:  logger,
		handles: make(map[string]Handle),
	}
}

// Apply reconciles the pool with sel. Handles of sources that stay selected are
// reused as-is, handles of sources that left are closed, and only newly selected
// sources are opened. Sources that were selected but failed to open earlier are
// retried. The returned entries follow the selection order.
func (p *Pool) Apply(ctx context.Context, sel registry.Selection) []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, handle := range p.handles {
		if sel.Contains(id) {
			continue
		}
		if err := handle.Close(); err != nil {
			p.logger.Warn("close handle", zap.String("source", id), zap.Error(err))
		}
		delete(p.handles, id)
		p.logger.Debug("handle released", zap.String("source", id))
	}

	sources := sel.Sources()
	opened := make([]Handle, len(sources))
	openErrs := make([]error, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		if _, ok := p.handles[src.ID]; ok {
			continue
		}
		i, src := i, src
		g.Go(func() error {
			handle, err := p.opener.Open(ctx, src)
			if err != nil {
				openErrs[i] = err
				return nil
			}
			opened[i] = handle
			return nil
		})
	}
	_ = g.Wait()

	entries := make([]Entry, 0, len(sources))
	for i, src := range sources {
		if handle, ok := p.handles[src.ID]; ok {
			entries = append(entries, Entry{Source: src, Handle: handle})
			continue
		}
		if openErrs[i] != nil {
			p.logger.Warn("open handle", zap.String("source", src.ID), zap.Error(openErrs[i]))
			entries = append(entries, Entry{Source: src, Err: openErrs[i]})
			continue
		}
		p.handles[src.ID] = opened[i]
		p.logger.Debug("handle opened", zap.String("source", src.ID))
		entries = append(entries, Entry{Source: src, Handle: opened[i]})
	}

	p.entries = entries
	return cloneEntries(entries)
}

// Entries returns the mapping produced by the last Apply.
func (p *Pool) Entries() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneEntries(p.entries)
}

// Close releases every handle.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for id, handle := range p.handles {
		if err := handle.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.handles, id)
	}
	p.entries = nil
	return errors.Join(errs...)
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
