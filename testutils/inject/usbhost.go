package inject

import (
	"context"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/components/usbhost"
)

// USBHost is an injected USB host library.
type USBHost struct {
	usbhost.Host
	InitFunc             func(ctx context.Context, dev board.SPIDevice, interrupt board.GPIOPin) error
	TaskFunc             func()
	StateFunc            func() usbhost.State
	DevicesFunc          func() []usbhost.DeviceAddress
	DeviceDescriptorFunc func(addr usbhost.DeviceAddress) ([]byte, error)
	StringDescriptorFunc func(addr usbhost.DeviceAddress, index uint8, langID, length uint16) ([]byte, error)
	ConfigDescriptorFunc func(addr usbhost.DeviceAddress, conf uint8, length uint16) ([]byte, error)
}

// Init calls the injected Init or the real version.
func (h *USBHost) Init(ctx context.Context, dev board.SPIDevice, interrupt board.GPIOPin) error {
	if h.InitFunc == nil {
		return h.Host.Init(ctx, dev, interrupt)
	}
	return h.InitFunc(ctx, dev, interrupt)
}

// Task calls the injected Task or the real version.
func (h *USBHost) Task() {
	if h.TaskFunc == nil {
		h.Host.Task()
		return
	}
	h.TaskFunc()
}

// State calls the injected State or the real version.
func (h *USBHost) State() usbhost.State {
	if h.StateFunc == nil {
		return h.Host.State()
	}
	return h.StateFunc()
}

// Devices calls the injected Devices or the real version.
func (h *USBHost) Devices() []usbhost.DeviceAddress {
	if h.DevicesFunc == nil {
		return h.Host.Devices()
	}
	return h.DevicesFunc()
}

// DeviceDescriptor calls the injected DeviceDescriptor or the real version.
func (h *USBHost) DeviceDescriptor(addr usbhost.DeviceAddress) ([]byte, error) {
	if h.DeviceDescriptorFunc == nil {
		return h.Host.DeviceDescriptor(addr)
	}
	return h.DeviceDescriptorFunc(addr)
}

// StringDescriptor calls the injected StringDescriptor or the real version.
func (h *USBHost) StringDescriptor(addr usbhost.DeviceAddress, index uint8, langID, length uint16) ([]byte, error) {
	if h.StringDescriptorFunc == nil {
		return h.Host.StringDescriptor(addr, index, langID, length)
	}
	return h.StringDescriptorFunc(addr, index, langID, length)
}

// ConfigDescriptor calls the injected ConfigDescriptor or the real version.
func (h *USBHost) ConfigDescriptor(addr usbhost.DeviceAddress, conf uint8, length uint16) ([]byte, error) {
	if h.ConfigDescriptorFunc == nil {
		return h.Host.ConfigDescriptor(addr, conf, length)
	}
	return h.ConfigDescriptorFunc(addr, conf, length)
}
