package story

import (
	"errors"
	"slices"
)

// ErrNotReady is returned by Elements before a successful Ready.
var ErrNotReady = errors.New("period not ready")

// Loader parses the elements of an unready period.
type Loader interface {
	Load(p *Period) ([]Element, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(p *Period) ([]Element, error)

// Load calls f(p).
func (f LoaderFunc) Load(p *Period) ([]Element, error) { return f(p) }

// Period is one day of the village.
type Period struct {
	Kind  PeriodKind
	Day   int
	Index int

	elements []Element
	ready    bool
	loader   Loader
}

// NewPeriod returns a ready period holding elements.
func NewPeriod(kind PeriodKind, day, index int, elements []Element) *Period {
	return &Period{Kind: kind, Day: day, Index: index, elements: elements, ready: true}
}

// NewLazyPeriod returns an unready period whose elements come from loader.
func NewLazyPeriod(kind PeriodKind, day, index int, loader Loader) *Period {
	return &Period{Kind: kind, Day: day, Index: index, loader: loader}
}

// Ready loads the period elements if that has not happened yet. A failed load
// leaves the period unready; calling Ready again retries the whole load.
func (p *Period) Ready() error {
	if p.ready {
		return nil
	}
	if p.loader == nil {
		return errors.New("period has no loader")
	}
	elements, err := p.loader.Load(p)
	if err != nil {
		return err
	}
	p.elements = elements
	p.ready = true
	return nil
}

// IsReady reports whether the elements are available.
func (p *Period) IsReady() bool { return p.ready }

// Elements returns the period elements in archive order.
func (p *Period) Elements() ([]Element, error) {
	if !p.ready {
		return nil, ErrNotReady
	}
	return slices.Clone(p.elements), nil
}
