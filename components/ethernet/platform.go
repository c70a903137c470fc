package ethernet

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/logging"
)

// A Platform is the network stack and MAC/PHY driver layer a W5500 is brought up on.
type Platform interface {
	// Init initializes the network stack and its event loop.
	Init(ctx context.Context) error
	NewNetif(cfg NetifConfig) (Netif, error)
	// InstallDriver installs the MAC/PHY driver over an attached SPI device.
	InstallDriver(dev board.SPIDevice, cfg W5500Config) (Driver, error)
	// BaseMACAddress returns the factory MAC address reserved for Ethernet.
	BaseMACAddress() (net.HardwareAddr, error)
	// RegisterEventHandler subscribes `handler` to events. `arg` is handed back to every call.
	RegisterEventHandler(base EventBase, id EventID, handler EventHandler, arg interface{}) error
}

// A Netif is a network interface of the stack.
type Netif interface {
	SetHostname(hostname string) error
	Hostname() (string, error)
	DHCPClientStart() error
	DHCPClientStop() error
	SetIPInfo(info IPInfo) error
	IPInfo() (IPInfo, error)
	SetDNS(kind DNSType, addr netip.Addr) error
	DNS(kind DNSType) (netip.Addr, error)
	// Attach binds the interface to a started or stopped driver.
	Attach(driver Driver) error
}

// A Driver is an installed MAC/PHY driver.
type Driver interface {
	Start() error
	Stop() error
	SetMACAddress(mac net.HardwareAddr) error
	MACAddress() (net.HardwareAddr, error)
}

// NetifConfig configures a new network interface.
type NetifConfig struct {
	Key           string
	Description   string
	RoutePriority int
}

// W5500Config configures the MAC/PHY driver.
type W5500Config struct {
	InterruptPin int
	// PHYAddress of -1 lets the driver detect the address.
	PHYAddress int
	// ResetPin of -1 means the chip has no reset line.
	ResetPin int
}

// IPInfo is the IPv4 configuration of an interface.
type IPInfo struct {
	IP      netip.Addr
	Netmask netip.Addr
	Gateway netip.Addr
}

// DNSType selects a DNS server slot.
type DNSType int

// DNS server slots.
const (
	DNSMain DNSType = iota
	DNSBackup
)

// EventBase groups events by their source.
type EventBase string

// Event bases.
const (
	EthEvent EventBase = "ETH_EVENT"
	IPEvent  EventBase = "IP_EVENT"
)

// EventID identifies an event within its base.
type EventID int32

// EventAnyID subscribes to every event of a base.
const EventAnyID EventID = -1

// Ethernet events. Their data is the Driver that raised them.
const (
	EthEventStart EventID = iota
	EthEventStop
	EthEventConnected
	EthEventDisconnected
)

// IPEventEthGotIP is raised when the Ethernet interface got an address. Its data is an IPInfo.
const IPEventEthGotIP EventID = 4

// An EventHandler receives events from the platform. Handlers run on a platform owned goroutine
// and must not block.
type EventHandler func(arg interface{}, base EventBase, id EventID, data interface{})

// Platform error codes.
const (
	CodeFail                  int32 = -1
	CodeNoMem                 int32 = 0x101
	CodeInvalidArg            int32 = 0x102
	CodeInvalidState          int32 = 0x103
	CodeNotFound              int32 = 0x105
	CodeTimeout               int32 = 0x107
	CodeNetifInvalidParams    int32 = 0x5001
	CodeNetifIfNotReady       int32 = 0x5002
	CodeNetifDHCPCStartFailed int32 = 0x5003
	CodeNetifDHCPAlreadyStart int32 = 0x5004
	CodeNetifDHCPAlreadyStop  int32 = 0x5005
	CodeNetifNoMem            int32 = 0x5006
	CodeNetifDHCPNotStopped   int32 = 0x5007
)

var codeNames = map[int32]string{
	CodeFail:                  "ESP_FAIL",
	CodeNoMem:                 "ESP_ERR_NO_MEM",
	CodeInvalidArg:            "ESP_ERR_INVALID_ARG",
	CodeInvalidState:          "ESP_ERR_INVALID_STATE",
	CodeNotFound:              "ESP_ERR_NOT_FOUND",
	CodeTimeout:               "ESP_ERR_TIMEOUT",
	CodeNetifInvalidParams:    "ESP_ERR_ESP_NETIF_INVALID_PARAMS",
	CodeNetifIfNotReady:       "ESP_ERR_ESP_NETIF_IF_NOT_READY",
	CodeNetifDHCPCStartFailed: "ESP_ERR_ESP_NETIF_DHCPC_START_FAILED",
	CodeNetifDHCPAlreadyStart: "ESP_ERR_ESP_NETIF_DHCP_ALREADY_STARTED",
	CodeNetifDHCPAlreadyStop:  "ESP_ERR_ESP_NETIF_DHCP_ALREADY_STOPPED",
	CodeNetifNoMem:            "ESP_ERR_ESP_NETIF_NO_MEM",
	CodeNetifDHCPNotStopped:   "ESP_ERR_ESP_NETIF_DHCP_NOT_STOPPED",
}

var (
	// ErrDHCPAlreadyStarted is matched by platform errors for a DHCP client that is already running.
	ErrDHCPAlreadyStarted = errors.New("dhcp client already started")
	// ErrDHCPAlreadyStopped is matched by platform errors for a DHCP client that is not running.
	ErrDHCPAlreadyStopped = errors.New("dhcp client already stopped")
)

// A PlatformError is a failed platform call with its numeric code.
type PlatformError struct {
	Op   string
	Code int32
	Name string
}

// NewPlatformError returns the error for `code` raised by `op`.
func NewPlatformError(op string, code int32) *PlatformError {
	name, ok := codeNames[code]
	if !ok {
		name = "UNKNOWN ERROR"
	}
	return &PlatformError{Op: op, Code: code, Name: name}
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %s (0x%x)", e.Op, e.Name, e.Code)
}

// Unwrap exposes the tolerated DHCP conditions as sentinels.
func (e *PlatformError) Unwrap() error {
	switch e.Code {
	case CodeNetifDHCPAlreadyStart:
		return ErrDHCPAlreadyStarted
	case CodeNetifDHCPAlreadyStop:
		return ErrDHCPAlreadyStopped
	}
	return nil
}

// errorFields returns the code and name of the platform error wrapped in `err`, if any.
func errorFields(err error) (int32, string) {
	var perr *PlatformError
	if errors.As(err, &perr) {
		return perr.Code, perr.Name
	}
	return CodeFail, codeNames[CodeFail]
}

// A PlatformConstructor builds a platform for a component.
type PlatformConstructor func(logger logging.Logger) (Platform, error)

var (
	platformsMu sync.RWMutex
	platforms   = map[string]PlatformConstructor{}
)

// RegisterPlatform makes a platform available by name to the configuration.
func RegisterPlatform(name string, constructor PlatformConstructor) {
	platformsMu.Lock()
	defer platformsMu.Unlock()
	if _, old := platforms[name]; old {
		panic(errors.Errorf("trying to register two ethernet platforms with the same name %q", name))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for ethernet platform %q", name))
	}
	platforms[name] = constructor
}

// LookupPlatform returns the constructor registered under `name`.
func LookupPlatform(name string) (PlatformConstructor, bool) {
	platformsMu.RLock()
	defer platformsMu.RUnlock()
	constructor, ok := platforms[name]
	return constructor, ok
}

// RegisteredPlatforms returns the sorted names of every registered platform.
func RegisteredPlatforms() []string {
	platformsMu.RLock()
	defer platformsMu.RUnlock()
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
