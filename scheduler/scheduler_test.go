package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
)

var testAPI = resource.APINamespaceSpilink.WithComponentType("test")

type fakeComponent struct {
	resource.Named
	mu       sync.Mutex
	priority float64
	setupErr error
	closeErr error
	status   Status
	order    *[]string

	loops         int
	dumped        bool
	closed        bool
	proceedAfter  int
	failAfter     int
	highFrequency bool
}

func newFakeComponent(name string, priority float64, order *[]string) *fakeComponent {
	return &fakeComponent{
		Named:        resource.NewName(testAPI, name).AsNamed(),
		priority:     priority,
		order:        order,
		proceedAfter: -1,
	}
}

func (f *fakeComponent) Setup(ctx context.Context) error {
	*f.order = append(*f.order, f.Name().Name)
	return f.setupErr
}

func (f *fakeComponent) Loop(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loops++
	if f.failAfter > 0 && f.loops >= f.failAfter {
		f.status.MarkFailed()
	}
}

func (f *fakeComponent) Loops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loops
}

func (f *fakeComponent) SetupPriority() float64 { return f.priority }
func (f *fakeComponent) DumpConfig()            { f.dumped = true }
func (f *fakeComponent) Status() *Status        { return &f.status }

func (f *fakeComponent) Close(ctx context.Context) error {
	f.closed = true
	return f.closeErr
}

type proceedingComponent struct {
	*fakeComponent
}

func (p proceedingComponent) CanProceed() bool {
	return p.Loops() >= p.proceedAfter
}

type highFrequencyComponent struct {
	*fakeComponent
}

func (h highFrequencyComponent) WantsHighFrequency() bool {
	return h.highFrequency
}

func TestStatus(t *testing.T) {
	var s Status
	test.That(t, s.String(), test.ShouldEqual, "OK")
	s.SetWarning()
	test.That(t, s.HasWarning(), test.ShouldBeTrue)
	test.That(t, s.String(), test.ShouldEqual, "WARNING")
	s.ClearWarning()
	test.That(t, s.HasWarning(), test.ShouldBeFalse)
	s.MarkFailed()
	test.That(t, s.IsFailed(), test.ShouldBeTrue)
	test.That(t, s.String(), test.ShouldEqual, "FAILED")
}

func TestSetupOrderAndFailure(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	var order []string
	eth := newFakeComponent("eth", PriorityEthernet, &order)
	bus := newFakeComponent("bus", PriorityBus, &order)
	broken := newFakeComponent("broken", PriorityHardware, &order)
	broken.setupErr = errors.New("no such spi host")
	after := newFakeComponent("after", PriorityAfterConnection, &order)
	bus2 := newFakeComponent("bus2", PriorityBus, &order)

	s := New(logger)
	s.Register(eth, bus, broken, after, bus2)
	test.That(t, s.Setup(context.Background()), test.ShouldBeNil)

	test.That(t, order, test.ShouldResemble, []string{"bus", "bus2", "broken", "eth", "after"})
	test.That(t, broken.Status().IsFailed(), test.ShouldBeTrue)
	test.That(t, logs.FilterMessageSnippet("component setup failed").Len(), test.ShouldEqual, 1)
	test.That(t, eth.dumped, test.ShouldBeTrue)
	test.That(t, broken.dumped, test.ShouldBeTrue)

	s.Tick(context.Background())
	s.Tick(context.Background())
	test.That(t, eth.Loops(), test.ShouldEqual, 2)
	test.That(t, broken.Loops(), test.ShouldEqual, 0)

	statuses := s.Statuses()
	test.That(t, len(statuses), test.ShouldEqual, 5)
	test.That(t, statuses[2], test.ShouldResemble, ComponentStatus{Name: broken.Name(), Status: "FAILED"})

	eth.closeErr = errors.New("close failed")
	err := s.Close(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, bus.closed, test.ShouldBeTrue)
	test.That(t, after.closed, test.ShouldBeTrue)
}

func TestSetupDebugMode(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	var order []string
	s := New(logger)
	s.Register(newFakeComponent("bus", PriorityBus, &order))

	test.That(t, s.Setup(context.Background()), test.ShouldBeNil)
	test.That(t, logs.FilterMessageSnippet("component set up").Len(), test.ShouldEqual, 0)

	s = New(logger)
	s.Register(newFakeComponent("eth", PriorityEthernet, &order))
	test.That(t, s.Setup(logging.EnableDebugMode(context.Background(), "boot")), test.ShouldBeNil)
	entries := logs.FilterMessageSnippet("component set up").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["debug_key"], test.ShouldEqual, "boot")
}

func TestSetupWaitsForProceeder(t *testing.T) {
	logger := logging.NewTestLogger(t)
	mockClock := clock.NewMock()
	var order []string
	bus := newFakeComponent("bus", PriorityBus, &order)
	gate := proceedingComponent{newFakeComponent("gate", PriorityEthernet, &order)}
	gate.proceedAfter = 3
	after := newFakeComponent("after", PriorityAfterConnection, &order)

	s := New(logger, WithClock(mockClock), WithLoopInterval(10*time.Millisecond))
	s.Register(after, gate, bus)

	setupDone := make(chan error, 1)
	go func() { setupDone <- s.Setup(context.Background()) }()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mockClock.Add(10 * time.Millisecond)
		test.That(tb, len(setupDone), test.ShouldEqual, 1)
	})
	test.That(t, <-setupDone, test.ShouldBeNil)

	test.That(t, order, test.ShouldResemble, []string{"bus", "gate", "after"})
	test.That(t, gate.Loops(), test.ShouldBeGreaterThanOrEqualTo, 3)
	test.That(t, bus.Loops(), test.ShouldEqual, gate.Loops())
	test.That(t, after.Loops(), test.ShouldEqual, 0)
}

func TestSetupProceederFailsWhileWaiting(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	mockClock := clock.NewMock()
	var order []string
	gate := proceedingComponent{newFakeComponent("gate", PriorityEthernet, &order)}
	gate.proceedAfter = 1 << 30
	gate.failAfter = 2
	after := newFakeComponent("after", PriorityAfterConnection, &order)

	s := New(logger, WithClock(mockClock), WithLoopInterval(10*time.Millisecond))
	s.Register(after, gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	setupDone := make(chan error, 1)
	go func() { setupDone <- s.Setup(ctx) }()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mockClock.Add(10 * time.Millisecond)
		test.That(tb, len(setupDone), test.ShouldEqual, 1)
	})
	test.That(t, <-setupDone, test.ShouldBeNil)

	test.That(t, order, test.ShouldResemble, []string{"gate", "after"})
	test.That(t, gate.Status().IsFailed(), test.ShouldBeTrue)
	test.That(t, gate.Loops(), test.ShouldEqual, 2)
	test.That(t, after.dumped, test.ShouldBeTrue)
	test.That(t, logs.FilterMessageSnippet("failed before it could proceed").Len(), test.ShouldEqual, 1)
}

func TestSetupProceederCancelled(t *testing.T) {
	var order []string
	gate := proceedingComponent{newFakeComponent("gate", PriorityEthernet, &order)}
	gate.proceedAfter = 1 << 30

	s := New(logging.NewTestLogger(t), WithClock(clock.NewMock()))
	s.Register(gate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, s.Setup(ctx), test.ShouldEqual, context.Canceled)
}

func TestRunSwitchesToHighFrequency(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	mockClock := clock.NewMock()
	var order []string
	usb := highFrequencyComponent{newFakeComponent("usb", PriorityIO, &order)}
	usb.highFrequency = true

	s := New(logger, WithClock(mockClock), WithLoopInterval(16*time.Millisecond),
		WithHighFrequencyInterval(time.Millisecond))
	s.Register(usb)
	test.That(t, s.Setup(context.Background()), test.ShouldBeNil)
	test.That(t, s.interval(), test.ShouldEqual, time.Millisecond)

	usb.highFrequency = false
	test.That(t, s.interval(), test.ShouldEqual, 16*time.Millisecond)
	usb.highFrequency = true

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mockClock.Add(time.Millisecond)
		test.That(tb, usb.Loops(), test.ShouldBeGreaterThanOrEqualTo, 5)
	})
	cancel()
	s.Stop()
	test.That(t, logs.FilterMessageSnippet("changing loop interval").Len(), test.ShouldEqual, 0)
}
