package usbhost

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/logging"
)

// A Host is the USB host library driving a MAX3421E. It runs its own enumeration state machine
// inside Task.
type Host interface {
	// Init resets the controller behind `dev` and prepares the task.
	Init(ctx context.Context, dev board.SPIDevice, interrupt board.GPIOPin) error
	// Task advances the host state machine once. It must not block.
	Task()
	State() State
	// Devices returns the addresses of every enumerated device.
	Devices() []DeviceAddress
	DeviceDescriptor(addr DeviceAddress) ([]byte, error)
	// StringDescriptor reads up to `length` bytes of string descriptor `index`.
	StringDescriptor(addr DeviceAddress, index uint8, langID uint16, length uint16) ([]byte, error)
	// ConfigDescriptor reads up to `length` bytes of configuration `conf`.
	ConfigDescriptor(addr DeviceAddress, conf uint8, length uint16) ([]byte, error)
}

// A DeviceAddress is a packed USB device address: device in bits 0-2, parent in bits 3-5 and the
// hub flag in bit 6.
type DeviceAddress uint8

// NewDeviceAddress packs an address.
func NewDeviceAddress(parent, device uint8, hub bool) DeviceAddress {
	addr := DeviceAddress(device&0x07 | (parent&0x07)<<3)
	if hub {
		addr |= 0x40
	}
	return addr
}

// Device returns the device bits.
func (a DeviceAddress) Device() uint8 { return uint8(a) & 0x07 }

// Parent returns the parent bits.
func (a DeviceAddress) Parent() uint8 { return uint8(a) >> 3 & 0x07 }

// Hub returns the hub bit.
func (a DeviceAddress) Hub() uint8 { return uint8(a) >> 6 & 0x01 }

// A HostConstructor builds a host library for a component.
type HostConstructor func(logger logging.Logger) (Host, error)

var (
	hostsMu sync.RWMutex
	hosts   = map[string]HostConstructor{}
)

// RegisterHost makes a host library available by name to the configuration.
func RegisterHost(name string, constructor HostConstructor) {
	hostsMu.Lock()
	defer hostsMu.Unlock()
	if _, old := hosts[name]; old {
		panic(errors.Errorf("trying to register two usb hosts with the same name %q", name))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for usb host %q", name))
	}
	hosts[name] = constructor
}

// LookupHost returns the constructor registered under `name`.
func LookupHost(name string) (HostConstructor, bool) {
	hostsMu.RLock()
	defer hostsMu.RUnlock()
	constructor, ok := hosts[name]
	return constructor, ok
}

// RegisteredHosts returns the sorted names of every registered host library.
func RegisteredHosts() []string {
	hostsMu.RLock()
	defer hostsMu.RUnlock()
	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
