// Package usbhost supervises a MAX3421E USB host controller. Enumeration is left entirely to the
// host library; the component advances the library task every tick, reports state changes and
// dumps the descriptors of attached devices.
package usbhost

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/components/sensor"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/metrics"
	"github.com/spilink/spilink/resource"
	"github.com/spilink/spilink/scheduler"
	"github.com/spilink/spilink/utils"
)

// SubtypeName is the name of the usb host API.
const SubtypeName = "usb_host"

// API is a variable that identifies the usb host resource API.
var API = resource.APINamespaceSpilink.WithComponentType(SubtypeName)

// Model is the MAX3421E model of the usb host API.
var Model = resource.DefaultModelFamily.WithModel("max3421e")

const spiQueueSize = 1

// Named is a helper for getting the named usb host's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

func init() {
	resource.RegisterComponent(API, Model, resource.Registration[*MAX3421E, *Config]{
		Constructor: newMAX3421E,
	})
}

func newMAX3421E(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (*MAX3421E, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	b, err := board.FromDependencies(deps, newConf.Board)
	if err != nil {
		return nil, err
	}
	constructor, ok := LookupHost(newConf.Host)
	if !ok {
		return nil, errors.Errorf("unknown usb host %q, registered hosts: %v", newConf.Host, RegisteredHosts())
	}
	hostLogger := logger.Sublogger("usb_lib")
	if newConf.DebugUSBLib {
		hostLogger.SetLevel(logging.DEBUG)
	} else {
		hostLogger.SetLevel(logging.INFO)
	}
	host, err := constructor(hostLogger)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create usb host %q", newConf.Host)
	}

	u := NewMAX3421E(conf.ResourceName().Name, newConf, b, host, clock.New(), logger)
	if newConf.DeviceConnected != "" {
		if u.connectedSensor, err = sensor.BinaryFromDependencies(deps, newConf.DeviceConnected); err != nil {
			return nil, err
		}
	}
	if newConf.DeviceInfo != "" {
		if u.infoSensor, err = sensor.TextFromDependencies(deps, newConf.DeviceInfo); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// A MAX3421E is a supervised USB host controller.
type MAX3421E struct {
	resource.Named

	settings settings
	board    board.Board
	host     Host
	clk      clock.Clock
	logger   logging.Logger
	status   scheduler.Status

	metricsMu sync.Mutex
	metrics   metrics.Recorder

	connectedSensor *sensor.BinarySensor
	infoSensor      *sensor.TextSensor

	bus board.SPIBus
	dev board.SPIDevice

	state         atomic.Uint32
	highFrequency atomic.Bool
	lastReport    time.Time
}

// NewMAX3421E returns a USB host component that is brought up by Setup.
func NewMAX3421E(name string, conf *Config, b board.Board, host Host, clk clock.Clock, logger logging.Logger) *MAX3421E {
	return &MAX3421E{
		Named:    Named(name).AsNamed(),
		settings: conf.resolve(),
		board:    b,
		host:     host,
		clk:      clk,
		logger:   logger,
		metrics:  metrics.Noop{},
	}
}

// SetSensors sets the sensors published on device connects and disconnects. Either may be nil.
func (u *MAX3421E) SetSensors(connected *sensor.BinarySensor, info *sensor.TextSensor) {
	u.connectedSensor = connected
	u.infoSensor = info
}

// SetMetrics sets the recorder for state changes and device connects.
func (u *MAX3421E) SetMetrics(rec metrics.Recorder) {
	u.metricsMu.Lock()
	defer u.metricsMu.Unlock()
	u.metrics = rec
}

func (u *MAX3421E) recorder() metrics.Recorder {
	u.metricsMu.Lock()
	defer u.metricsMu.Unlock()
	return u.metrics
}

// SetupPriority sets the controller up with the other data components.
func (u *MAX3421E) SetupPriority() float64 { return scheduler.PriorityData }

// Status returns the failed and warning indicators.
func (u *MAX3421E) Status() *scheduler.Status { return &u.status }

// WantsHighFrequency asks for fast ticks once the host task runs.
func (u *MAX3421E) WantsHighFrequency() bool { return u.highFrequency.Load() }

// Setup attaches the controller to its SPI host and initializes the host library. A failed
// initialization fails the component.
func (u *MAX3421E) Setup(ctx context.Context) error {
	u.logger.Info("setting up MAX3421E")
	bus, err := u.board.SPIBus(u.settings.spiHost, board.SPIBusConfig{
		MOSI:   u.settings.mosiPin,
		MISO:   u.settings.misoPin,
		SCLK:   u.settings.clkPin,
		QuadWP: board.Unused,
		QuadHD: board.Unused,
	})
	if err != nil {
		return errors.Wrap(err, "spi bus initialize")
	}
	busGuard := utils.NewGuard(func() { goutils.UncheckedError(bus.Close()) })
	defer busGuard.OnFail()

	dev, err := bus.AddDevice(board.SPIDeviceConfig{
		Mode:         0,
		ClockSpeedHz: u.settings.clockSpeedHz,
		CSPin:        u.settings.csPin,
		QueueSize:    spiQueueSize,
	})
	if err != nil {
		return errors.Wrap(err, "spi bus add device")
	}
	devGuard := utils.NewGuard(func() { goutils.UncheckedError(dev.Close()) })
	defer devGuard.OnFail()

	interrupt, err := u.board.GPIOPinByNumber(u.settings.interruptPin)
	if err != nil {
		return errors.Wrap(err, "interrupt pin")
	}
	if err := u.host.Init(ctx, dev, interrupt); err != nil {
		u.logger.Errorw("USB host init error", "error", err)
		return errors.Wrap(err, "usb host init")
	}

	u.bus, u.dev = bus, dev
	devGuard.Success()
	busGuard.Success()

	state := u.host.State()
	u.state.Store(uint32(state))
	if u.settings.debug {
		u.logger.Infow("USB host init success", "state", StateName(state))
	}
	u.updateWarning(state)
	u.lastReport = u.clk.Now()
	u.highFrequency.Store(true)
	return nil
}

// Loop advances the host task once and reports what changed.
func (u *MAX3421E) Loop(ctx context.Context) {
	if u.status.IsFailed() {
		return
	}
	u.host.Task()
	oldState := u.State()
	state := u.host.State()
	u.state.Store(uint32(state))

	if oldState != state {
		u.onStateChange(oldState, state)
	}

	if u.settings.reportStatusInterval > 0 && u.clk.Since(u.lastReport) > u.settings.reportStatusInterval {
		u.lastReport = u.clk.Now()
		u.logger.Infof("Usb State: %s", StateName(state))
		if state == StateRunning {
			u.dumpDevices(u.settings.debugVerbose)
		}
	}
}

func (u *MAX3421E) onStateChange(oldState, state State) {
	name := u.Name().ShortName()
	if u.settings.debug {
		u.logger.Debugf("Usb State changed: %s -> %s", StateName(oldState), StateName(state))
	}
	switch {
	case state == StateRunning:
		u.logger.Debug("device connected")
		u.recorder().DeviceConnected(name)
		if u.settings.debug {
			u.dumpDevices(u.settings.debugVerbose)
		}
	case oldState == StateRunning:
		u.logger.Debug("device disconnected")
	}
	u.recorder().USBState(name, uint8(state))
	u.updateWarning(state)

	if state != StateRunning && oldState != StateRunning {
		return
	}
	if u.connectedSensor != nil {
		u.connectedSensor.PublishState(state == StateRunning)
	}
	if u.infoSensor != nil {
		info := ""
		if state == StateRunning {
			info = u.deviceInfo()
		}
		u.infoSensor.PublishState(info)
	}
}

func (u *MAX3421E) updateWarning(state State) {
	if state == StateRunning {
		u.status.ClearWarning()
	} else {
		u.status.SetWarning()
	}
}

// deviceInfo returns "manufacturer|product|serial" of the first attached device.
func (u *MAX3421E) deviceInfo() string {
	devices := u.host.Devices()
	if len(devices) == 0 {
		return ""
	}
	strs, err := u.readStrings(devices[0])
	if err != nil {
		u.logger.Warnw("cannot read device strings", "error", err)
	}
	return strs.Manufacturer + "|" + strs.Product + "|" + strs.SerialNumber
}

// State returns the last observed host task state.
func (u *MAX3421E) State() State {
	return State(u.state.Load())
}

// IsConnected is true while a device is running.
func (u *MAX3421E) IsConnected() bool {
	return u.State() == StateRunning
}

// Readings returns the host task state.
func (u *MAX3421E) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	state := u.State()
	return map[string]interface{}{
		"state":      StateName(state),
		"state_code": int(state),
		"connected":  state == StateRunning,
	}, nil
}

// DumpConfig logs the reporting settings.
func (u *MAX3421E) DumpConfig() {
	fields := []interface{}{
		"report_status_interval", u.settings.reportStatusInterval,
		"debug", u.settings.debug,
		"debug_verbose", u.settings.debugVerbose,
		"debug_usb_lib", u.settings.debugUSBLib,
		"spi_host", u.settings.spiHost,
		"cs_pin", u.settings.csPin,
		"interrupt_pin", u.settings.interruptPin,
		"clock_speed_mhz", u.settings.clockSpeedHz / 1e6,
		"max_config_descriptor_length", u.settings.maxConfigDescriptorLength,
	}
	if u.connectedSensor != nil {
		fields = append(fields, "device_connected", u.connectedSensor.Name().ShortName())
	}
	if u.infoSensor != nil {
		fields = append(fields, "device_info", u.infoSensor.Name().ShortName())
	}
	u.logger.Infow("MAX3421E", fields...)
}

// Close stops the fast ticks and releases the SPI device and host.
func (u *MAX3421E) Close(ctx context.Context) error {
	u.highFrequency.Store(false)
	var err error
	if closer, ok := u.host.(io.Closer); ok {
		err = multierr.Combine(err, closer.Close())
	}
	if u.dev != nil {
		err = multierr.Combine(err, u.dev.Close())
	}
	if u.bus != nil {
		err = multierr.Combine(err, u.bus.Close())
	}
	return err
}
