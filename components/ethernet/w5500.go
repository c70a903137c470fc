package ethernet

import (
	"context"
	"io"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/metrics"
	"github.com/spilink/spilink/resource"
	"github.com/spilink/spilink/scheduler"
	"github.com/spilink/spilink/utils"
)

// Model is the W5500 model of the ethernet API.
var Model = resource.DefaultModelFamily.WithModel("w5500")

// SPIHost is the SPI host the W5500 is attached to.
const SPIHost = "SPI3"

const (
	netifKey           = "ETH_SPI"
	netifDescription   = "eth"
	netifRoutePriority = 30
	spiCommandBits     = 16
	spiAddressBits     = 8
	spiQueueSize       = 20
	phyAddressAuto     = -1
)

func init() {
	resource.RegisterComponent(API, Model, resource.Registration[Ethernet, *Config]{
		Constructor: newW5500,
	})
}

func newW5500(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (Ethernet, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	b, err := board.FromDependencies(deps, newConf.Board)
	if err != nil {
		return nil, err
	}
	constructor, ok := LookupPlatform(newConf.Platform)
	if !ok {
		return nil, errors.Errorf("unknown ethernet platform %q, registered platforms: %v",
			newConf.Platform, RegisteredPlatforms())
	}
	platform, err := constructor(logger.Sublogger("platform"))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create ethernet platform %q", newConf.Platform)
	}
	return NewW5500(conf.ResourceName().Name, newConf, b, platform, clock.New(), logger), nil
}

// A W5500 is an Ethernet link over a W5500 chip.
type W5500 struct {
	resource.Named

	confErr  error
	settings settings
	board    board.Board
	platform Platform
	clk      clock.Clock
	logger   logging.Logger
	status   scheduler.Status

	metricsMu sync.Mutex
	metrics   metrics.Recorder

	bus    board.SPIBus
	dev    board.SPIDevice
	netif  Netif
	driver Driver

	// Written by the event handlers, read by Loop.
	started       atomic.Bool
	linkConnected atomic.Bool
	gotAddress    atomic.Bool

	// Written by Loop only.
	state        atomic.Int32
	connectBegin time.Time
}

// NewW5500 returns an Ethernet component that is brought up by Setup. A config that does not
// validate makes Setup fail.
func NewW5500(name string, conf *Config, b board.Board, platform Platform, clk clock.Clock, logger logging.Logger) *W5500 {
	_, confErr := conf.Validate(name)
	return &W5500{
		Named:    Named(name).AsNamed(),
		confErr:  confErr,
		settings: conf.resolve(name),
		board:    b,
		platform: platform,
		clk:      clk,
		logger:   logger,
		metrics:  metrics.Noop{},
	}
}

// SetMetrics sets the recorder for link state changes and reconnects.
func (w *W5500) SetMetrics(rec metrics.Recorder) {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()
	w.metrics = rec
}

func (w *W5500) recorder() metrics.Recorder {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()
	return w.metrics
}

// SetupPriority sets the link up after the hardware it runs on.
func (w *W5500) SetupPriority() float64 { return scheduler.PriorityEthernet }

// Status returns the failed and warning indicators.
func (w *W5500) Status() *scheduler.Status { return &w.status }

// CanProceed holds back lower priority components until the link is connected.
func (w *W5500) CanProceed() bool { return w.IsConnected() }

// Setup brings up the network interface, the SPI device and the driver, then starts the driver.
// Everything acquired is released again when a step fails.
func (w *W5500) Setup(ctx context.Context) error {
	w.logger.Debug("setting up ethernet")
	if w.confErr != nil {
		return w.setupFailed("config", w.confErr)
	}
	if err := w.platform.Init(ctx); err != nil {
		return w.setupFailed("platform init", err)
	}
	netif, err := w.platform.NewNetif(NetifConfig{
		Key:           netifKey,
		Description:   netifDescription,
		RoutePriority: netifRoutePriority,
	})
	if err != nil {
		return w.setupFailed("netif create", err)
	}

	bus, err := w.board.SPIBus(SPIHost, board.SPIBusConfig{
		MOSI:   w.settings.mosiPin,
		MISO:   w.settings.misoPin,
		SCLK:   w.settings.clkPin,
		QuadWP: board.Unused,
		QuadHD: board.Unused,
	})
	if err != nil {
		return w.setupFailed("spi bus initialize", err)
	}
	busGuard := utils.NewGuard(func() { goutils.UncheckedError(bus.Close()) })
	defer busGuard.OnFail()

	dev, err := bus.AddDevice(board.SPIDeviceConfig{
		CommandBits:  spiCommandBits,
		AddressBits:  spiAddressBits,
		Mode:         0,
		ClockSpeedHz: w.settings.clockSpeedHz,
		CSPin:        w.settings.csPin,
		QueueSize:    spiQueueSize,
	})
	if err != nil {
		return w.setupFailed("spi bus add device", err)
	}
	devGuard := utils.NewGuard(func() { goutils.UncheckedError(dev.Close()) })
	defer devGuard.OnFail()

	driver, err := w.platform.InstallDriver(dev, W5500Config{
		InterruptPin: w.settings.interruptPin,
		PHYAddress:   phyAddressAuto,
		ResetPin:     w.settings.resetPin,
	})
	if err != nil {
		return w.setupFailed("driver install", err)
	}
	mac, err := w.platform.BaseMACAddress()
	if err != nil {
		return w.setupFailed("read mac", err)
	}
	if err := driver.SetMACAddress(mac); err != nil {
		return w.setupFailed("set mac", err)
	}
	if err := netif.Attach(driver); err != nil {
		return w.setupFailed("netif attach", err)
	}

	if err := w.platform.RegisterEventHandler(EthEvent, EventAnyID, handleEthEvent, w); err != nil {
		return w.setupFailed("register ethernet events", err)
	}
	if err := w.platform.RegisterEventHandler(IPEvent, IPEventEthGotIP, handleGotIP, w); err != nil {
		return w.setupFailed("register ip events", err)
	}
	if err := driver.Start(); err != nil {
		return w.setupFailed("driver start", err)
	}

	w.bus, w.dev, w.netif, w.driver = bus, dev, netif, driver
	devGuard.Success()
	busGuard.Success()
	w.status.SetWarning()
	w.setState(LinkStateStopped)
	return nil
}

func (w *W5500) setupFailed(op string, err error) error {
	code, name := errorFields(err)
	w.logger.Errorw("ethernet setup failed", "op", op, "code", code, "name", name, "error", err)
	return errors.Wrap(err, op)
}

// Loop advances the link supervisor by one step. It never blocks.
func (w *W5500) Loop(ctx context.Context) {
	if w.status.IsFailed() {
		return
	}
	switch w.State() {
	case LinkStateStopped:
		if w.started.Load() {
			w.logger.Info("starting ethernet connection")
			w.setState(LinkStateConnecting)
			w.startConnect()
		}
	case LinkStateConnecting:
		switch {
		case !w.started.Load():
			w.logger.Info("ethernet connection stopped")
			w.setState(LinkStateStopped)
		case w.linkConnected.Load():
			w.logger.Info("connected via ethernet")
			w.setState(LinkStateConnected)
			w.status.ClearWarning()
			w.dumpConnectParams()
		case w.clk.Since(w.connectBegin) > w.settings.connectTimeout:
			w.logger.Warnw("connecting via ethernet timed out, reconnecting", "timeout", w.settings.connectTimeout)
			w.recorder().Reconnect(w.Name().ShortName())
			w.startConnect()
		}
	case LinkStateConnected:
		switch {
		case !w.started.Load():
			w.logger.Info("ethernet connection stopped")
			w.setState(LinkStateStopped)
			w.status.SetWarning()
		case !w.linkConnected.Load():
			w.logger.Warn("ethernet connection lost, reconnecting")
			w.setState(LinkStateConnecting)
			w.recorder().Reconnect(w.Name().ShortName())
			w.startConnect()
		}
	}
}

// startConnect (re)starts address acquisition: DHCP, or the static configuration when one is
// set. Errors other than an already started or stopped DHCP client fail the component.
func (w *W5500) startConnect() {
	w.connectBegin = w.clk.Now()
	w.status.SetWarning()

	if err := w.netif.SetHostname(w.settings.hostname); err != nil {
		w.connectFailed("set hostname", err)
		return
	}
	if err := w.netif.DHCPClientStop(); err != nil && !errors.Is(err, ErrDHCPAlreadyStopped) {
		w.connectFailed("dhcp client stop", err)
		return
	}

	manual := w.settings.manualIP
	if manual == nil {
		if err := w.netif.DHCPClientStart(); err != nil && !errors.Is(err, ErrDHCPAlreadyStarted) {
			w.connectFailed("dhcp client start", err)
		}
		return
	}

	if err := w.netif.SetIPInfo(IPInfo{IP: manual.StaticIP, Netmask: manual.Subnet, Gateway: manual.Gateway}); err != nil {
		w.connectFailed("set ip info", err)
		return
	}
	for kind, dns := range []netip.Addr{manual.DNS1, manual.DNS2} {
		if !dns.IsValid() || dns.IsUnspecified() {
			continue
		}
		if err := w.netif.SetDNS(DNSType(kind), dns); err != nil {
			w.connectFailed("set dns", err)
			return
		}
	}
}

func (w *W5500) connectFailed(op string, err error) {
	code, name := errorFields(err)
	w.logger.Errorw("ethernet address configuration failed", "op", op, "code", code, "name", name, "error", err)
	w.status.MarkFailed()
}

// State returns the link state.
func (w *W5500) State() LinkState {
	return LinkState(w.state.Load())
}

func (w *W5500) setState(state LinkState) {
	w.state.Store(int32(state))
	w.recorder().LinkState(w.Name().ShortName(), int(state))
}

// IsConnected is true iff the link state is Connected.
func (w *W5500) IsConnected() bool {
	return w.State() == LinkStateConnected
}

// IPAddress returns the current address of the interface.
func (w *W5500) IPAddress() netip.Addr {
	if w.netif == nil {
		return netip.Addr{}
	}
	info, err := w.netif.IPInfo()
	if err != nil {
		return netip.Addr{}
	}
	return info.IP
}

// UseAddress returns the address other hosts should use to reach this one.
func (w *W5500) UseAddress() string {
	return w.settings.useAddress
}

// Readings returns the link state.
func (w *W5500) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	ip := ""
	if addr := w.IPAddress(); addr.IsValid() {
		ip = addr.String()
	}
	return map[string]interface{}{
		"state":       w.State().String(),
		"ip":          ip,
		"connected":   w.IsConnected(),
		"got_address": w.gotAddress.Load(),
	}, nil
}

// DumpConfig logs the wiring of the chip.
func (w *W5500) DumpConfig() {
	w.logger.Infow("ethernet",
		"clk_pin", w.settings.clkPin,
		"miso_pin", w.settings.misoPin,
		"mosi_pin", w.settings.mosiPin,
		"cs_pin", w.settings.csPin,
		"irq_pin", w.settings.interruptPin,
		"reset_pin", w.settings.resetPin,
		"clock_speed_mhz", w.settings.clockSpeedHz/1e6,
		"type", TypeW5500,
	)
}

func (w *W5500) dumpConnectParams() {
	fields := []interface{}{"hostname", w.settings.hostname}
	if info, err := w.netif.IPInfo(); err == nil {
		fields = append(fields, "ip", info.IP.String(), "subnet", info.Netmask.String(), "gateway", info.Gateway.String())
	}
	if hostname, err := w.netif.Hostname(); err == nil {
		fields[1] = hostname
	}
	for _, kind := range []DNSType{DNSMain, DNSBackup} {
		if dns, err := w.netif.DNS(kind); err == nil {
			fields = append(fields, dnsFieldName(kind), dns.String())
		}
	}
	if mac, err := w.driver.MACAddress(); err == nil {
		fields = append(fields, "mac", mac.String())
	}
	w.logger.Infow("ethernet connection parameters", fields...)
}

func dnsFieldName(kind DNSType) string {
	if kind == DNSMain {
		return "dns1"
	}
	return "dns2"
}

// Close stops the driver, releases the SPI device and host and closes the platform if it can be.
func (w *W5500) Close(ctx context.Context) error {
	var err error
	if w.driver != nil {
		err = multierr.Combine(err, w.driver.Stop())
	}
	if w.dev != nil {
		err = multierr.Combine(err, w.dev.Close())
	}
	if w.bus != nil {
		err = multierr.Combine(err, w.bus.Close())
	}
	if closer, ok := w.platform.(io.Closer); ok {
		err = multierr.Combine(err, closer.Close())
	}
	return err
}
