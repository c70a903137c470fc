package inject

import (
	"context"
	"net"
	"net/netip"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/components/ethernet"
)

// EthernetPlatform is an injected network stack.
type EthernetPlatform struct {
	ethernet.Platform
	InitFunc                 func(ctx context.Context) error
	NewNetifFunc             func(cfg ethernet.NetifConfig) (ethernet.Netif, error)
	InstallDriverFunc        func(dev board.SPIDevice, cfg ethernet.W5500Config) (ethernet.Driver, error)
	BaseMACAddressFunc       func() (net.HardwareAddr, error)
	RegisterEventHandlerFunc func(
		base ethernet.EventBase, id ethernet.EventID, handler ethernet.EventHandler, arg interface{},
	) error
}

// Init calls the injected Init or the real version.
func (p *EthernetPlatform) Init(ctx context.Context) error {
	if p.InitFunc == nil {
		return p.Platform.Init(ctx)
	}
	return p.InitFunc(ctx)
}

// NewNetif calls the injected NewNetif or the real version.
func (p *EthernetPlatform) NewNetif(cfg ethernet.NetifConfig) (ethernet.Netif, error) {
	if p.NewNetifFunc == nil {
		return p.Platform.NewNetif(cfg)
	}
	return p.NewNetifFunc(cfg)
}

// InstallDriver calls the injected InstallDriver or the real version.
func (p *EthernetPlatform) InstallDriver(dev board.SPIDevice, cfg ethernet.W5500Config) (ethernet.Driver, error) {
	if p.InstallDriverFunc == nil {
		return p.Platform.InstallDriver(dev, cfg)
	}
	return p.InstallDriverFunc(dev, cfg)
}

// BaseMACAddress calls the injected BaseMACAddress or the real version.
func (p *EthernetPlatform) BaseMACAddress() (net.HardwareAddr, error) {
	if p.BaseMACAddressFunc == nil {
		return p.Platform.BaseMACAddress()
	}
	return p.BaseMACAddressFunc()
}

// RegisterEventHandler calls the injected RegisterEventHandler or the real version.
func (p *EthernetPlatform) RegisterEventHandler(
	base ethernet.EventBase,
	id ethernet.EventID,
	handler ethernet.EventHandler,
	arg interface{},
) error {
	if p.RegisterEventHandlerFunc == nil {
		return p.Platform.RegisterEventHandler(base, id, handler, arg)
	}
	return p.RegisterEventHandlerFunc(base, id, handler, arg)
}

// Netif is an injected network interface.
type Netif struct {
	ethernet.Netif
	SetHostnameFunc     func(hostname string) error
	HostnameFunc        func() (string, error)
	DHCPClientStartFunc func() error
	DHCPClientStopFunc  func() error
	SetIPInfoFunc       func(info ethernet.IPInfo) error
	IPInfoFunc          func() (ethernet.IPInfo, error)
	SetDNSFunc          func(kind ethernet.DNSType, addr netip.Addr) error
	DNSFunc             func(kind ethernet.DNSType) (netip.Addr, error)
	AttachFunc          func(driver ethernet.Driver) error
}

// SetHostname calls the injected SetHostname or the real version.
func (n *Netif) SetHostname(hostname string) error {
	if n.SetHostnameFunc == nil {
		return n.Netif.SetHostname(hostname)
	}
	return n.SetHostnameFunc(hostname)
}

// Hostname calls the injected Hostname or the real version.
func (n *Netif) Hostname() (string, error) {
	if n.HostnameFunc == nil {
		return n.Netif.Hostname()
	}
	return n.HostnameFunc()
}

// DHCPClientStart calls the injected DHCPClientStart or the real version.
func (n *Netif) DHCPClientStart() error {
	if n.DHCPClientStartFunc == nil {
		return n.Netif.DHCPClientStart()
	}
	return n.DHCPClientStartFunc()
}

// DHCPClientStop calls the injected DHCPClientStop or the real version.
func (n *Netif) DHCPClientStop() error {
	if n.DHCPClientStopFunc == nil {
		return n.Netif.DHCPClientStop()
	}
	return n.DHCPClientStopFunc()
}

// SetIPInfo calls the injected SetIPInfo or the real version.
func (n *Netif) SetIPInfo(info ethernet.IPInfo) error {
	if n.SetIPInfoFunc == nil {
		return n.Netif.SetIPInfo(info)
	}
	return n.SetIPInfoFunc(info)
}

// IPInfo calls the injected IPInfo or the real version.
func (n *Netif) IPInfo() (ethernet.IPInfo, error) {
	if n.IPInfoFunc == nil {
		return n.Netif.IPInfo()
	}
	return n.IPInfoFunc()
}

// SetDNS calls the injected SetDNS or the real version.
func (n *Netif) SetDNS(kind ethernet.DNSType, addr netip.Addr) error {
	if n.SetDNSFunc == nil {
		return n.Netif.SetDNS(kind, addr)
	}
	return n.SetDNSFunc(kind, addr)
}

// DNS calls the injected DNS or the real version.
func (n *Netif) DNS(kind ethernet.DNSType) (netip.Addr, error) {
	if n.DNSFunc == nil {
		return n.Netif.DNS(kind)
	}
	return n.DNSFunc(kind)
}

// Attach calls the injected Attach or the real version.
func (n *Netif) Attach(driver ethernet.Driver) error {
	if n.AttachFunc == nil {
		return n.Netif.Attach(driver)
	}
	return n.AttachFunc(driver)
}

// EthernetDriver is an injected MAC/PHY driver.
type EthernetDriver struct {
	ethernet.Driver
	StartFunc         func() error
	StopFunc          func() error
	SetMACAddressFunc func(mac net.HardwareAddr) error
	MACAddressFunc    func() (net.HardwareAddr, error)
}

// Start calls the injected Start or the real version.
func (d *EthernetDriver) Start() error {
	if d.StartFunc == nil {
		return d.Driver.Start()
	}
	return d.StartFunc()
}

// Stop calls the injected Stop or the real version.
func (d *EthernetDriver) Stop() error {
	if d.StopFunc == nil {
		return d.Driver.Stop()
	}
	return d.StopFunc()
}

// SetMACAddress calls the injected SetMACAddress or the real version.
func (d *EthernetDriver) SetMACAddress(mac net.HardwareAddr) error {
	if d.SetMACAddressFunc == nil {
		return d.Driver.SetMACAddress(mac)
	}
	return d.SetMACAddressFunc(mac)
}

// MACAddress calls the injected MACAddress or the real version.
func (d *EthernetDriver) MACAddress() (net.HardwareAddr, error) {
	if d.MACAddressFunc == nil {
		return d.Driver.MACAddress()
	}
	return d.MACAddressFunc()
}
