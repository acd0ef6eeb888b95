package pagination

import (
	"context"
	"sync"

	"github.com/Sternrassler/kitsu-catalog/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Source is what a Driver loads from. *Loader implements it.
type Source interface {
	LoadNext(ctx context.Context) Outcome
	HasMore() bool
}

// Trigger names what caused a load.
type Trigger string

const (
	// TriggerVisible is a sentinel entering the viewport.
	TriggerVisible Trigger = "visible"
	// TriggerManual is an explicit "load more" action.
	TriggerManual Trigger = "manual"
)

// Event reports the outcome of one dispatched load.
type Event struct {
	Trigger Trigger
	Outcome Outcome
}

// NotifyFunc receives events. It is called from the load goroutine.
type NotifyFunc func(Event)

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithHaltOnPermanent makes the driver stop reacting to visibility after a
// load fails with a permanent error (see catalog.IsPermanent), until a manual
// LoadMore succeeds. Without it every rising edge dispatches a load.
func WithHaltOnPermanent() DriverOption {
	return func(d *Driver) {
		d.haltOnPermanent = true
	}
}

// Driver turns visibility transitions of a sentinel into LoadNext calls.
//
// Only a not-visible to visible edge dispatches a load; a steady visible
// state does nothing. The Loader's pending flag is the re-entrancy lock.
type Driver struct {
	source          Source
	notify          NotifyFunc
	haltOnPermanent bool
	logger          zerolog.Logger

	mu      sync.Mutex
	visible bool
	halted  bool
	wg      sync.WaitGroup
}

// NewDriver creates a driver over source. notify may be nil.
func NewDriver(source Source, notify NotifyFunc, opts ...DriverOption) *Driver {
	if source == nil {
		panic("driver source cannot be nil")
	}
	d := &Driver{
		source: source,
		notify: notify,
		logger: log.With().Str("component", "driver").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetVisible records the sentinel visibility and reports whether a load was
// dispatched. Loads are dispatched only on a rising edge, while the source has
// more and the driver is not halted.
func (d *Driver) SetVisible(ctx context.Context, visible bool) bool {
	d.mu.Lock()
	rising := visible && !d.visible
	d.visible = visible
	halted := d.halted
	d.mu.Unlock()

	if !rising {
		return false
	}
	if halted {
		d.logger.Debug().Msg("Visibility ignored after permanent failure")
		return false
	}
	if !d.source.HasMore() {
		return false
	}

	d.dispatch(ctx, TriggerVisible)
	return true
}

// LoadMore dispatches a manual load through the same LoadNext guards.
// An exhausted source answers NoMore without fetching.
func (d *Driver) LoadMore(ctx context.Context) {
	d.dispatch(ctx, TriggerManual)
}

func (d *Driver) dispatch(ctx context.Context, trigger Trigger) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		out := d.source.LoadNext(ctx)
		d.observe(trigger, out)

		if d.notify != nil {
			d.notify(Event{Trigger: trigger, Outcome: out})
		}
	}()
}

func (d *Driver) observe(trigger Trigger, out Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.haltOnPermanent {
		return
	}

	switch {
	case out.Status == StatusFailed && catalog.IsPermanent(out.Err):
		if !d.halted {
			d.logger.Warn().
				Err(out.Err).
				Str("trigger", string(trigger)).
				Msg("Permanent failure, visibility loads halted")
		}
		d.halted = true
	case out.Status == StatusLoaded && trigger == TriggerManual:
		d.halted = false
	}
}

// Visible reports the last recorded sentinel visibility.
func (d *Driver) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

// Halted reports whether visibility loads are suspended after a permanent
// failure. Always false unless the driver was built WithHaltOnPermanent.
func (d *Driver) Halted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.halted
}

// Wait blocks until all dispatched loads have completed.
func (d *Driver) Wait() {
	d.wg.Wait()
}
