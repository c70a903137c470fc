// Package fake implements an in-memory board for simulation and tests.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
	"github.com/spilink/spilink/scheduler"
)

// Model is the model of the in-memory board.
var Model = resource.DefaultModelFamily.WithModel("fake")

// A Config describes the configuration of a fake board.
type Config struct {
	// FailSPIHosts lists SPI hosts whose initialization fails, to simulate wiring errors.
	FailSPIHosts []string `json:"fail_spi_hosts,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	return nil, nil
}

func init() {
	resource.RegisterComponent(board.API, Model, resource.Registration[board.Board, *Config]{
		Constructor: func(
			ctx context.Context,
			_ resource.Dependencies,
			conf resource.Config,
			logger logging.Logger,
		) (board.Board, error) {
			newConf, err := resource.NativeConfig[*Config](conf)
			if err != nil {
				return nil, err
			}
			return NewBoard(conf.ResourceName().Name, newConf, logger), nil
		},
	})
}

// NewBoard returns a fake board.
func NewBoard(name string, conf *Config, logger logging.Logger) *Board {
	return &Board{
		Named:     board.Named(name).AsNamed(),
		failHosts: conf.FailSPIHosts,
		buses:     map[string]*SPIBus{},
		pins:      map[int]*GPIOPin{},
		logger:    logger,
	}
}

// A Board is an in-memory board.
type Board struct {
	resource.Named

	mu        sync.Mutex
	failHosts []string
	buses     map[string]*SPIBus
	pins      map[int]*GPIOPin
	closed    bool

	status scheduler.Status
	logger logging.Logger
}

// Setup does nothing.
func (b *Board) Setup(ctx context.Context) error { return nil }

// Loop does nothing.
func (b *Board) Loop(ctx context.Context) {}

// SetupPriority sets the board up before its users.
func (b *Board) SetupPriority() float64 { return scheduler.PriorityBus }

// Status returns the component status.
func (b *Board) Status() *scheduler.Status { return &b.status }

// DumpConfig logs the simulated failures.
func (b *Board) DumpConfig() {
	b.logger.Infow("fake board", "fail_spi_hosts", b.failHosts)
}

// SPIBus initializes a fake SPI host.
func (b *Board) SPIBus(host string, cfg board.SPIBusConfig) (board.SPIBus, error) {
	if err := cfg.Validate(host); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if lo.Contains(b.failHosts, host) {
		return nil, errors.Errorf("failed to initialize SPI host %q", host)
	}
	if _, open := b.buses[host]; open {
		return nil, errors.Errorf("SPI host %q is already initialized", host)
	}
	bus := &SPIBus{board: b, host: host, cfg: cfg, devices: map[int]*SPIDevice{}}
	b.buses[host] = bus
	return bus, nil
}

// Bus returns the initialized bus for `host`, if any.
func (b *Board) Bus(host string) (*SPIBus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.buses[host]
	return bus, ok
}

// GPIOPinByNumber returns the fake GPIO pin, creating it low on first use.
func (b *Board) GPIOPinByNumber(pin int) (board.GPIOPin, error) {
	if pin < 0 {
		return nil, errors.Errorf("invalid pin %d", pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[pin]
	if !ok {
		p = &GPIOPin{}
		b.pins[pin] = p
	}
	return p, nil
}

// Close releases every bus.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.buses = map[string]*SPIBus{}
	return nil
}

// An SPIBus is a fake SPI host.
type SPIBus struct {
	board *Board
	host  string
	cfg   board.SPIBusConfig

	mu      sync.Mutex
	devices map[int]*SPIDevice
}

// Host returns the host name.
func (sb *SPIBus) Host() string { return sb.host }

// Config returns the pins the host was initialized with.
func (sb *SPIBus) Config() board.SPIBusConfig { return sb.cfg }

// AddDevice attaches a fake device.
func (sb *SPIBus) AddDevice(cfg board.SPIDeviceConfig) (board.SPIDevice, error) {
	if err := cfg.Validate(sb.host); err != nil {
		return nil, err
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if _, taken := sb.devices[cfg.CSPin]; taken {
		return nil, errors.Errorf("chip select %d already in use on %s", cfg.CSPin, sb.host)
	}
	dev := &SPIDevice{bus: sb, cfg: cfg}
	sb.devices[cfg.CSPin] = dev
	return dev, nil
}

// Device returns the device on chip select `cs`, if any.
func (sb *SPIBus) Device(cs int) (*SPIDevice, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	dev, ok := sb.devices[cs]
	return dev, ok
}

// Close releases the host.
func (sb *SPIBus) Close() error {
	sb.board.mu.Lock()
	defer sb.board.mu.Unlock()
	delete(sb.board.buses, sb.host)
	return nil
}

// An SPIDevice is a fake SPI device. Transfers are answered by the responder, or with zeros.
type SPIDevice struct {
	bus *SPIBus
	cfg board.SPIDeviceConfig

	mu        sync.Mutex
	responder func(tx []byte) []byte
	xfers     int
	closed    bool
}

// Config returns the device config.
func (d *SPIDevice) Config() board.SPIDeviceConfig { return d.cfg }

// SetResponder sets the function answering transfers.
func (d *SPIDevice) SetResponder(responder func(tx []byte) []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responder = responder
}

// Xfers returns the number of transfers performed.
func (d *SPIDevice) Xfers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.xfers
}

// Closed reports whether the device was closed.
func (d *SPIDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Xfer answers `tx` through the responder.
func (d *SPIDevice) Xfer(ctx context.Context, tx []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("can't use Xfer() on a closed SPI device")
	}
	d.xfers++
	rx := make([]byte, len(tx))
	if d.responder != nil {
		copy(rx, d.responder(tx))
	}
	return rx, nil
}

// Close detaches the device from its bus.
func (d *SPIDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.bus.mu.Lock()
	defer d.bus.mu.Unlock()
	delete(d.bus.devices, d.cfg.CSPin)
	return nil
}

// A GPIOPin is a fake GPIO pin.
type GPIOPin struct {
	mu   sync.Mutex
	high bool
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.high = high
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high, nil
}
