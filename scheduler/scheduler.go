// Package scheduler runs every component on one cooperative loop. Components are set up once in
// priority order and then looped sequentially on a single goroutine, so a Loop never runs
// concurrently with another Loop.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
	"github.com/spilink/spilink/utils"
)

// Setup priorities. Components with a higher priority are set up first.
const (
	PriorityBus             = 1000.0
	PriorityIO              = 900.0
	PriorityHardware        = 800.0
	PriorityData            = 600.0
	PriorityEthernet        = 250.0
	PriorityAfterConnection = 100.0
)

// A Component is set up once and then looped by the scheduler.
type Component interface {
	resource.Resource

	// Setup runs exactly once before the first Loop. An error fails the component.
	Setup(ctx context.Context) error
	// Loop runs once per tick and must not block.
	Loop(ctx context.Context)
	SetupPriority() float64
	// DumpConfig logs the effective configuration. It is called once all components are set up.
	DumpConfig()
	Status() *Status
}

// A Proceeder holds back the setup of lower priority components until CanProceed returns true.
type Proceeder interface {
	CanProceed() bool
}

// A HighFrequencyRequester asks for the shorter tick interval while WantsHighFrequency is true.
type HighFrequencyRequester interface {
	WantsHighFrequency() bool
}

// ComponentStatus pairs a component name with its status indicators.
type ComponentStatus struct {
	Name   resource.Name
	Status string
}

// Scheduler owns the cooperative loop.
type Scheduler struct {
	mu         sync.Mutex
	components []Component
	setUp      []Component

	clock                 clock.Clock
	loopInterval          time.Duration
	highFrequencyInterval time.Duration
	logger                logging.Logger

	workers utils.StoppableWorkers
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock ticks are measured on.
func WithClock(clk clock.Clock) Option {
	return func(s *Scheduler) { s.clock = clk }
}

// WithLoopInterval sets the regular tick interval.
func WithLoopInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.loopInterval = interval }
}

// WithHighFrequencyInterval sets the tick interval used while a component requests it.
func WithHighFrequencyInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.highFrequencyInterval = interval }
}

// New returns an empty Scheduler.
func New(logger logging.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:                 clock.New(),
		loopInterval:          16 * time.Millisecond,
		highFrequencyInterval: time.Millisecond,
		logger:                logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a component. Components must be registered before Setup.
func (s *Scheduler) Register(components ...Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components = append(s.components, components...)
}

// Components returns the registered components in setup order once Setup ran, otherwise in
// registration order.
func (s *Scheduler) Components() []Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Component(nil), s.components...)
}

// Setup sets up every registered component in descending priority order. A component whose Setup
// fails is marked failed and skipped from then on. After a Proceeder is set up, the already set
// up components keep looping until it can proceed. Setup only returns an error when `ctx` ends.
func (s *Scheduler) Setup(ctx context.Context) error {
	s.mu.Lock()
	sort.SliceStable(s.components, func(i, j int) bool {
		return s.components[i].SetupPriority() > s.components[j].SetupPriority()
	})
	components := append([]Component(nil), s.components...)
	s.mu.Unlock()

	for _, c := range components {
		name := c.Name().String()
		s.logger.Debugw("setting up component", "component", name, "priority", c.SetupPriority())
		start := s.clock.Now()
		if err := c.Setup(ctx); err != nil {
			c.Status().MarkFailed()
			s.logger.Errorw("component setup failed", "component", name, "error", err)
			continue
		}
		if key, ok := logging.DebugKey(ctx); ok {
			s.logger.Infow("component set up", "component", name, "took", s.clock.Since(start), "debug_key", key)
		}

		s.mu.Lock()
		s.setUp = append(s.setUp, c)
		s.mu.Unlock()

		if p, ok := c.(Proceeder); ok {
			if err := s.waitForProceed(ctx, c, p, name); err != nil {
				return err
			}
		}
	}

	for _, c := range components {
		c.DumpConfig()
	}
	return nil
}

// waitForProceed ticks until `p` can proceed. A component that fails while it is waited on no
// longer holds back the rest of setup.
func (s *Scheduler) waitForProceed(ctx context.Context, c Component, p Proceeder, name string) error {
	if p.CanProceed() {
		return nil
	}
	done := utils.SlowLogger(ctx, s.clock, "waiting for component before continuing setup", "component", name, s.logger)
	defer done()

	ticker := s.clock.Ticker(s.loopInterval)
	defer ticker.Stop()
	for !p.CanProceed() {
		if c.Status().IsFailed() {
			s.logger.Warnw("component failed before it could proceed, continuing setup", "component", name)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s.Tick(ctx)
	}
	return nil
}

// Tick loops every set up, non-failed component once, in setup order, on the caller's goroutine.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	active := lo.Filter(s.setUp, func(c Component, _ int) bool { return !c.Status().IsFailed() })
	s.mu.Unlock()

	for _, c := range active {
		c.Loop(ctx)
	}
}

func (s *Scheduler) interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.setUp {
		if hf, ok := c.(HighFrequencyRequester); ok && !c.Status().IsFailed() && hf.WantsHighFrequency() {
			return s.highFrequencyInterval
		}
	}
	return s.loopInterval
}

// Run ticks until `ctx` ends.
func (s *Scheduler) Run(ctx context.Context) error {
	current := s.interval()
	ticker := s.clock.Ticker(current)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		s.Tick(ctx)

		if next := s.interval(); next != current {
			s.logger.Debugw("changing loop interval", "from", current, "to", next)
			current = next
			ticker.Reset(current)
		}
	}
}

// Start runs the loop in the background until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workers != nil {
		return
	}
	s.workers = utils.NewStoppableWorkers(ctx, func(ctx context.Context) {
		if err := s.Run(ctx); err != nil {
			s.logger.Errorw("scheduler stopped", "error", err)
		}
	})
}

// Stop stops a loop started with Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	workers := s.workers
	s.workers = nil
	s.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
}

// Statuses returns the status of every registered component in setup order.
func (s *Scheduler) Statuses() []ComponentStatus {
	return lo.Map(s.Components(), func(c Component, _ int) ComponentStatus {
		return ComponentStatus{Name: c.Name(), Status: c.Status().String()}
	})
}

// Close stops the loop and closes every component in reverse setup order.
func (s *Scheduler) Close(ctx context.Context) error {
	s.Stop()
	components := s.Components()
	var err error
	for i := len(components) - 1; i >= 0; i-- {
		err = multierr.Combine(err, components[i].Close(ctx))
	}
	return err
}
