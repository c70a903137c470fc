// Package board defines the SPI buses, SPI devices and GPIO pins that link components are wired
// to. A board is set up before any component that uses it.
package board

import (
	"context"

	"github.com/spilink/spilink/resource"
)

// SubtypeName is the name of the board API.
const SubtypeName = "board"

// API is a variable that identifies the board resource API.
var API = resource.APINamespaceSpilink.WithComponentType(SubtypeName)

// Named is a helper for getting the named board's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// FromDependencies is a helper for getting the named board from a collection of dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Board, error) {
	return resource.FromDependencies[Board](deps, Named(name))
}

// A Board owns the SPI hosts and GPIO pins of the machine.
type Board interface {
	resource.Resource

	// SPIBus initializes the SPI host `host` with the given pins. A host can only be initialized
	// once until its bus is closed.
	SPIBus(host string, cfg SPIBusConfig) (SPIBus, error)

	// GPIOPinByNumber returns the GPIO pin with the given number.
	GPIOPinByNumber(pin int) (GPIOPin, error)
}

// An SPIBus is an initialized SPI host that devices can be attached to.
type SPIBus interface {
	Host() string
	// AddDevice attaches a device to the bus. Each device needs its own chip select pin.
	AddDevice(cfg SPIDeviceConfig) (SPIDevice, error)
	// Close releases the host. Devices must be closed first.
	Close() error
}

// An SPIDevice is a chip on an SPI bus.
type SPIDevice interface {
	Config() SPIDeviceConfig
	// Xfer performs one full duplex transaction. `tx` holds the command, address and data phases
	// in that order; the returned slice has the same length as `tx`.
	Xfer(ctx context.Context, tx []byte) ([]byte, error)
	Close() error
}

// A GPIOPin represents an individual GPIO pin on a board.
type GPIOPin interface {
	// Set sets the pin to either low or high.
	Set(ctx context.Context, high bool) error

	// Get gets the high/low state of the pin.
	Get(ctx context.Context) (bool, error)
}
