package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/chebyrash/promise"
)

// Aggregate drives a fixed set of plugins through their lifecycle as a single unit.
type Aggregate struct {
	ctx     context.Context
	cancel  context.CancelFunc
	plugins []Plugin
}

var _ Plugin = &Aggregate{}

func New(plugins []Plugin) *Aggregate {
	return NewWithContext(context.Background(), plugins)
}

// NewWithContext ties the aggregate to a parent context. Cancelling the parent
// releases Run once every plugin has started.
func NewWithContext(parent context.Context, plugins []Plugin) *Aggregate {
	ctx, cancel := context.WithCancel(parent)
	return &Aggregate{
		ctx,
		cancel,
		plugins,
	}
}

// Run inits, starts and finally stops every plugin. It returns once all start
// promises resolve and the aggregate context is done.
func (a *Aggregate) Run() error {
	if err := a.Init(); err != nil {
		return err
	}

	if _, err := a.Start().Await(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.Stop()
		return err
	}

	<-a.ctx.Done()

	return a.Stop()
}

// Init implements Plugin.
func (a *Aggregate) Init() error {
	for i, p := range a.plugins {
		if err := p.Init(); err != nil {
			return fmt.Errorf("plugin %d (%T) failed to init: %w", i, p, err)
		}
	}
	return nil
}

// Start implements Plugin.
func (a *Aggregate) Start() *promise.Promise[any] {
	promises := make([]*promise.Promise[any], len(a.plugins))
	for i, p := range a.plugins {
		promises[i] = p.Start()
	}
	return promise.Then(
		promise.All(a.ctx, promises...),
		a.ctx,
		func([]any) (any, error) {
			return nil, nil
		},
	)
}

// Stop implements Plugin. Plugins are stopped in reverse init order so that
// consumers shut down before the stores they depend on.
func (a *Aggregate) Stop() error {
	defer a.cancel()

	var errs []error
	for i := len(a.plugins) - 1; i >= 0; i-- {
		if err := a.plugins[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown cancels the aggregate context, which makes Run stop all plugins.
func (a *Aggregate) Shutdown() {
	a.cancel()
}
