// Package periph implements a Linux board on top of periph.io. SPI hosts map to spidev buses and
// GPIO pins map to the kernel's global GPIO numbers.
package periph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
	"github.com/spilink/spilink/scheduler"
)

// Model is the model of a periph.io backed board.
var Model = resource.DefaultModelFamily.WithModel("periph")

// defaultSPIHosts maps the ESP-IDF host names used by link components to spidev bus numbers.
var defaultSPIHosts = map[string]string{"SPI2": "0", "SPI3": "1"}

// A Config describes how logical SPI hosts and chip select pins map onto spidev.
type Config struct {
	// SPIHosts maps a host name such as SPI3 to a spidev bus number.
	SPIHosts map[string]string `json:"spi_hosts,omitempty"`
	// ChipSelects maps a chip select GPIO number to a spidev chip select index. Chip select pins
	// without a mapping are driven in software through GPIO.
	ChipSelects map[string]string `json:"chip_selects,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	for host, bus := range conf.SPIHosts {
		if _, err := strconv.Atoi(bus); err != nil {
			return nil, errors.Wrapf(err, "%s: spi_hosts.%s must be a bus number", path, host)
		}
	}
	for pin, cs := range conf.ChipSelects {
		if _, err := strconv.Atoi(pin); err != nil {
			return nil, errors.Wrapf(err, "%s: chip_selects key %q must be a pin number", path, pin)
		}
		if _, err := strconv.Atoi(cs); err != nil {
			return nil, errors.Wrapf(err, "%s: chip_selects.%s must be a chip select index", path, pin)
		}
	}
	return nil, nil
}

func init() {
	resource.RegisterComponent(board.API, Model, resource.Registration[board.Board, *Config]{
		Constructor: newBoard,
	})
}

func newBoard(
	ctx context.Context,
	_ resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (board.Board, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	hosts := make(map[string]string, len(defaultSPIHosts)+len(newConf.SPIHosts))
	for host, bus := range defaultSPIHosts {
		hosts[host] = bus
	}
	for host, bus := range newConf.SPIHosts {
		hosts[host] = bus
	}
	return &periphBoard{
		Named:       conf.ResourceName().AsNamed(),
		hosts:       hosts,
		chipSelects: newConf.ChipSelects,
		buses:       map[string]*spiBus{},
		logger:      logger,
	}, nil
}

type periphBoard struct {
	resource.Named

	mu          sync.Mutex
	hosts       map[string]string
	chipSelects map[string]string
	buses       map[string]*spiBus

	status scheduler.Status
	logger logging.Logger
}

// Setup loads the periph.io host drivers.
func (b *periphBoard) Setup(ctx context.Context) error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize periph host drivers")
	}
	return nil
}

func (b *periphBoard) Loop(ctx context.Context) {}

func (b *periphBoard) SetupPriority() float64 {
	return scheduler.PriorityBus
}

func (b *periphBoard) Status() *scheduler.Status {
	return &b.status
}

func (b *periphBoard) DumpConfig() {
	hosts := make([]string, 0, len(b.hosts))
	for host, bus := range b.hosts {
		hosts = append(hosts, fmt.Sprintf("%s=spidev%s", host, bus))
	}
	sort.Strings(hosts)
	b.logger.Infow("periph board", "spi_hosts", hosts, "hardware_chip_selects", len(b.chipSelects))
}

func (b *periphBoard) SPIBus(hostName string, cfg board.SPIBusConfig) (board.SPIBus, error) {
	if err := cfg.Validate(hostName); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	busNum, ok := b.hosts[hostName]
	if !ok {
		return nil, errors.Errorf("no spidev bus mapped for SPI host %q", hostName)
	}
	if _, open := b.buses[hostName]; open {
		return nil, errors.Errorf("SPI host %q is already initialized", hostName)
	}
	bus := &spiBus{b: b, host: hostName, bus: busNum, devices: map[int]*spiDevice{}}
	b.buses[hostName] = bus
	return bus, nil
}

func (b *periphBoard) GPIOPinByNumber(pin int) (board.GPIOPin, error) {
	line := gpioreg.ByName(strconv.Itoa(pin))
	if line == nil {
		return nil, errors.Errorf("no global pin found for %d", pin)
	}
	return periphGpioPin{line}, nil
}

func (b *periphBoard) Close(ctx context.Context) error {
	b.mu.Lock()
	buses := make([]*spiBus, 0, len(b.buses))
	for _, bus := range b.buses {
		buses = append(buses, bus)
	}
	b.mu.Unlock()

	var err error
	for _, bus := range buses {
		err = multierr.Combine(err, bus.closeAll())
	}
	return err
}

type spiBus struct {
	b    *periphBoard
	host string
	bus  string

	mu      sync.Mutex
	devices map[int]*spiDevice
}

func (sb *spiBus) Host() string {
	return sb.host
}

func (sb *spiBus) AddDevice(cfg board.SPIDeviceConfig) (board.SPIDevice, error) {
	if err := cfg.Validate(sb.host); err != nil {
		return nil, err
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if _, taken := sb.devices[cfg.CSPin]; taken {
		return nil, errors.Errorf("chip select %d already in use on %s", cfg.CSPin, sb.host)
	}

	dev := &spiDevice{bus: sb, cfg: cfg}
	cs, hardwareCS := sb.b.chipSelects[strconv.Itoa(cfg.CSPin)]
	if !hardwareCS {
		cs = "0"
		dev.softCS = gpioreg.ByName(strconv.Itoa(cfg.CSPin))
		if dev.softCS == nil {
			return nil, errors.Errorf("no global pin found for chip select %d", cfg.CSPin)
		}
		if err := dev.softCS.Out(gpio.High); err != nil {
			return nil, err
		}
	}

	port, err := spireg.Open(fmt.Sprintf("SPI%s.%s", sb.bus, cs))
	if err != nil {
		return nil, err
	}
	conn, err := port.Connect(physic.Hertz*physic.Frequency(cfg.ClockSpeedHz), spi.Mode(cfg.Mode), 8)
	if err != nil {
		return nil, multierr.Combine(err, port.Close())
	}
	dev.port = port
	dev.conn = conn
	sb.devices[cfg.CSPin] = dev
	return dev, nil
}

func (sb *spiBus) Close() error {
	sb.mu.Lock()
	open := len(sb.devices)
	sb.mu.Unlock()
	if open > 0 {
		return errors.Errorf("SPI host %q still has %d devices", sb.host, open)
	}
	sb.b.mu.Lock()
	delete(sb.b.buses, sb.host)
	sb.b.mu.Unlock()
	return nil
}

func (sb *spiBus) closeAll() error {
	sb.mu.Lock()
	devices := make([]*spiDevice, 0, len(sb.devices))
	for _, dev := range sb.devices {
		devices = append(devices, dev)
	}
	sb.mu.Unlock()

	var err error
	for _, dev := range devices {
		err = multierr.Combine(err, dev.Close())
	}
	return multierr.Combine(err, sb.Close())
}

type spiDevice struct {
	bus    *spiBus
	cfg    board.SPIDeviceConfig
	softCS gpio.PinIO

	mu     sync.Mutex
	port   spi.PortCloser
	conn   spi.Conn
	closed bool
}

func (d *spiDevice) Config() board.SPIDeviceConfig {
	return d.cfg
}

func (d *spiDevice) Xfer(ctx context.Context, tx []byte) (rx []byte, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("can't use Xfer() on a closed SPI device")
	}
	if d.softCS != nil {
		if err := d.softCS.Out(gpio.Low); err != nil {
			return nil, err
		}
		defer func() {
			err = multierr.Combine(err, d.softCS.Out(gpio.High))
		}()
	}
	rx = make([]byte, len(tx))
	return rx, d.conn.Tx(tx, rx)
}

func (d *spiDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	err := d.port.Close()
	d.mu.Unlock()

	d.bus.mu.Lock()
	delete(d.bus.devices, d.cfg.CSPin)
	d.bus.mu.Unlock()
	return err
}

type periphGpioPin struct {
	pin gpio.PinIO
}

func (gp periphGpioPin) Set(ctx context.Context, high bool) error {
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp periphGpioPin) Get(ctx context.Context) (bool, error) {
	return gp.pin.Read() == gpio.High, nil
}
