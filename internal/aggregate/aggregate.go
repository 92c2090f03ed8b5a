package aggregate

import (
	"errors"
	"fmt"
	"time"

	"dromadaire/internal/model"
	"dromadaire/internal/registry"
)

// ErrSuperseded is returned by Fetch.Run when a newer generation started before
// the fetch completed. Its results were discarded.
var ErrSuperseded = errors.New("fetch superseded by a newer generation")

// NoticeNoChains is the notice of the aggregate for an empty selection.
const NoticeNoChains = "No chains selected"

// Status is the lifecycle state of the visible aggregate.
type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// SourceFailure records a source that contributed nothing to a generation.
type SourceFailure struct {
	Source registry.Source
	Err    error
}

func (f SourceFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Source.Name, f.Err)
}

func (f SourceFailure) Unwrap() error {
	return f.Err
}

// Aggregate is the merged pool list of one fetch generation.
type Aggregate struct {
	Generation uint64
	Status     Status
	Pools      []model.LiquidityPool
	Failures   []SourceFailure
	Notice     string
	UpdatedAt  time.Time
}

// Err joins the failures of the aggregate, or returns nil.
func (a Aggregate) Err() error {
	if len(a.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(a.Failures))
	for _, f := range a.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

func (a Aggregate) clone() Aggregate {
	out := a
	out.Pools = append([]model.LiquidityPool(nil), a.Pools...)
	out.Failures = append([]SourceFailure(nil), a.Failures...)
	return out
}
