// Package fake implements a simulated network stack for the ethernet component. Events are
// delivered on the platform's own goroutine, like a real event loop.
package fake

import (
	"context"
	"net"
	"net/netip"
	"sync"

	"github.com/pkg/errors"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/components/ethernet"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/utils"
)

// PlatformName is the name the simulated platform is registered under.
const PlatformName = "fake"

// Addresses handed out by the simulated DHCP server.
var (
	LeaseIP      = netip.MustParseAddr("192.168.4.100")
	LeaseNetmask = netip.MustParseAddr("255.255.255.0")
	LeaseGateway = netip.MustParseAddr("192.168.4.1")
)

func init() {
	ethernet.RegisterPlatform(PlatformName, func(logger logging.Logger) (ethernet.Platform, error) {
		return NewPlatform(logger), nil
	})
}

type handlerRegistration struct {
	base    ethernet.EventBase
	id      ethernet.EventID
	handler ethernet.EventHandler
	arg     interface{}
}

type event struct {
	base ethernet.EventBase
	id   ethernet.EventID
	data interface{}
}

// A Platform is a simulated network stack with a single interface and driver. The link is up
// unless SetLink says otherwise.
type Platform struct {
	mu          sync.Mutex
	initialized bool
	handlers    []handlerRegistration
	netif       *Netif
	driver      *Driver
	linkUp      bool
	mac         net.HardwareAddr

	events  chan event
	workers utils.StoppableWorkers
	logger  logging.Logger
}

// NewPlatform returns an uninitialized simulated platform.
func NewPlatform(logger logging.Logger) *Platform {
	return &Platform{
		linkUp: true,
		mac:    net.HardwareAddr{0x02, 0x00, 0x5e, 0x10, 0x00, 0x01},
		events: make(chan event, 64),
		logger: logger,
	}
}

// Init starts the event loop.
func (p *Platform) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return ethernet.NewPlatformError("event loop create", ethernet.CodeInvalidState)
	}
	p.initialized = true
	p.workers = utils.NewStoppableWorkers(context.Background(), p.eventLoop)
	return nil
}

func (p *Platform) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			p.mu.Lock()
			var matching []handlerRegistration
			for _, reg := range p.handlers {
				if reg.base == ev.base && (reg.id == ethernet.EventAnyID || reg.id == ev.id) {
					matching = append(matching, reg)
				}
			}
			p.mu.Unlock()
			for _, reg := range matching {
				reg.handler(reg.arg, ev.base, ev.id, ev.data)
			}
		}
	}
}

// post queues an event. Must be called with p.mu held.
func (p *Platform) post(base ethernet.EventBase, id ethernet.EventID, data interface{}) {
	if !p.initialized {
		return
	}
	select {
	case p.events <- event{base, id, data}:
	default:
		p.logger.Warnw("dropping event, queue full", "base", base, "id", id)
	}
}

// NewNetif creates the single interface of the platform.
func (p *Platform) NewNetif(cfg ethernet.NetifConfig) (ethernet.Netif, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil, ethernet.NewPlatformError("netif create", ethernet.CodeNetifIfNotReady)
	}
	if p.netif != nil {
		return nil, ethernet.NewPlatformError("netif create", ethernet.CodeInvalidState)
	}
	p.netif = &Netif{platform: p, cfg: cfg, dns: map[ethernet.DNSType]netip.Addr{}}
	return p.netif, nil
}

// InstallDriver installs the simulated driver.
func (p *Platform) InstallDriver(dev board.SPIDevice, cfg ethernet.W5500Config) (ethernet.Driver, error) {
	if dev == nil {
		return nil, ethernet.NewPlatformError("driver install", ethernet.CodeInvalidArg)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.driver != nil {
		return nil, ethernet.NewPlatformError("driver install", ethernet.CodeInvalidState)
	}
	p.driver = &Driver{platform: p, dev: dev, cfg: cfg}
	return p.driver, nil
}

// BaseMACAddress returns a locally administered address.
func (p *Platform) BaseMACAddress() (net.HardwareAddr, error) {
	return p.mac, nil
}

// RegisterEventHandler subscribes a handler.
func (p *Platform) RegisterEventHandler(
	base ethernet.EventBase,
	id ethernet.EventID,
	handler ethernet.EventHandler,
	arg interface{},
) error {
	if handler == nil {
		return ethernet.NewPlatformError("event handler register", ethernet.CodeInvalidArg)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handlerRegistration{base, id, handler, arg})
	return nil
}

// SetLink plugs or unplugs the simulated cable.
func (p *Platform) SetLink(up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.linkUp == up {
		return
	}
	p.linkUp = up
	if p.driver == nil || !p.driver.started {
		return
	}
	if up {
		p.post(ethernet.EthEvent, ethernet.EthEventConnected, p.driver)
		p.netif.leaseLocked()
		return
	}
	p.post(ethernet.EthEvent, ethernet.EthEventDisconnected, p.driver)
}

// Netif returns the interface, if created.
func (p *Platform) Netif() *Netif {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.netif
}

// Close stops the event loop.
func (p *Platform) Close() error {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}

// A Netif is the simulated interface.
type Netif struct {
	platform *Platform
	cfg      ethernet.NetifConfig

	hostname    string
	dhcpRunning bool
	dhcpStarts  int
	info        ethernet.IPInfo
	dns         map[ethernet.DNSType]netip.Addr
	attached    bool
}

// SetHostname sets the hostname.
func (n *Netif) SetHostname(hostname string) error {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	if hostname == "" {
		return ethernet.NewPlatformError("set hostname", ethernet.CodeNetifInvalidParams)
	}
	n.hostname = hostname
	return nil
}

// Hostname returns the hostname.
func (n *Netif) Hostname() (string, error) {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	return n.hostname, nil
}

// DHCPClientStart starts the DHCP client, which leases an address once the link is up.
func (n *Netif) DHCPClientStart() error {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	if n.dhcpRunning {
		return ethernet.NewPlatformError("dhcp client start", ethernet.CodeNetifDHCPAlreadyStart)
	}
	n.dhcpRunning = true
	n.dhcpStarts++
	n.leaseLocked()
	return nil
}

func (n *Netif) leaseLocked() {
	p := n.platform
	if !n.dhcpRunning || !n.attached || !p.linkUp || p.driver == nil || !p.driver.started {
		return
	}
	n.info = ethernet.IPInfo{IP: LeaseIP, Netmask: LeaseNetmask, Gateway: LeaseGateway}
	n.dns[ethernet.DNSMain] = LeaseGateway
	p.post(ethernet.IPEvent, ethernet.IPEventEthGotIP, n.info)
}

// DHCPClientStop stops the DHCP client.
func (n *Netif) DHCPClientStop() error {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	if !n.dhcpRunning {
		return ethernet.NewPlatformError("dhcp client stop", ethernet.CodeNetifDHCPAlreadyStop)
	}
	n.dhcpRunning = false
	return nil
}

// DHCPStarts returns how many times the DHCP client was started.
func (n *Netif) DHCPStarts() int {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	return n.dhcpStarts
}

// SetIPInfo sets a static address. The DHCP client must be stopped.
func (n *Netif) SetIPInfo(info ethernet.IPInfo) error {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	if n.dhcpRunning {
		return ethernet.NewPlatformError("set ip info", ethernet.CodeNetifDHCPNotStopped)
	}
	n.info = info
	if n.attached && n.platform.linkUp {
		n.platform.post(ethernet.IPEvent, ethernet.IPEventEthGotIP, info)
	}
	return nil
}

// IPInfo returns the address of the interface.
func (n *Netif) IPInfo() (ethernet.IPInfo, error) {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	return n.info, nil
}

// SetDNS sets a DNS server.
func (n *Netif) SetDNS(kind ethernet.DNSType, addr netip.Addr) error {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	if !addr.IsValid() {
		return ethernet.NewPlatformError("set dns", ethernet.CodeNetifInvalidParams)
	}
	n.dns[kind] = addr
	return nil
}

// DNS returns a DNS server, the zero address when unset.
func (n *Netif) DNS(kind ethernet.DNSType) (netip.Addr, error) {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	if addr, ok := n.dns[kind]; ok {
		return addr, nil
	}
	return netip.IPv4Unspecified(), nil
}

// Attach binds the driver.
func (n *Netif) Attach(driver ethernet.Driver) error {
	n.platform.mu.Lock()
	defer n.platform.mu.Unlock()
	if driver != ethernet.Driver(n.platform.driver) {
		return errors.New("can only attach the driver installed on this platform")
	}
	n.attached = true
	return nil
}

// A Driver is the simulated MAC/PHY driver.
type Driver struct {
	platform *Platform
	dev      board.SPIDevice
	cfg      ethernet.W5500Config

	started bool
	mac     net.HardwareAddr
}

// Start starts the driver and brings the link up if the cable is plugged.
func (d *Driver) Start() error {
	d.platform.mu.Lock()
	defer d.platform.mu.Unlock()
	if d.started {
		return ethernet.NewPlatformError("driver start", ethernet.CodeInvalidState)
	}
	d.started = true
	d.platform.post(ethernet.EthEvent, ethernet.EthEventStart, d)
	if d.platform.linkUp {
		d.platform.post(ethernet.EthEvent, ethernet.EthEventConnected, d)
	}
	return nil
}

// Stop stops the driver.
func (d *Driver) Stop() error {
	d.platform.mu.Lock()
	defer d.platform.mu.Unlock()
	if !d.started {
		return ethernet.NewPlatformError("driver stop", ethernet.CodeInvalidState)
	}
	d.started = false
	if d.platform.linkUp {
		d.platform.post(ethernet.EthEvent, ethernet.EthEventDisconnected, d)
	}
	d.platform.post(ethernet.EthEvent, ethernet.EthEventStop, d)
	return nil
}

// SetMACAddress sets the MAC address.
func (d *Driver) SetMACAddress(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return ethernet.NewPlatformError("set mac", ethernet.CodeInvalidArg)
	}
	d.platform.mu.Lock()
	defer d.platform.mu.Unlock()
	d.mac = mac
	return nil
}

// MACAddress returns the MAC address.
func (d *Driver) MACAddress() (net.HardwareAddr, error) {
	d.platform.mu.Lock()
	defer d.platform.mu.Unlock()
	return d.mac, nil
}
