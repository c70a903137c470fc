// Package fake implements a scripted USB host library for simulation and tests.
package fake

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/components/usbhost"
	"github.com/spilink/spilink/logging"
)

// HostName is the name the fake host library is registered under.
const HostName = "fake"

// revisionRegister is the MAX3421E REVISION register, read once by Init to check the bus.
const revisionRegister = 18

func init() {
	usbhost.RegisterHost(HostName, func(logger logging.Logger) (usbhost.Host, error) {
		return NewSimulatedHost(logger), nil
	})
}

// EnumerationScript is the sequence of states a host walks through when a device is plugged in.
var EnumerationScript = []usbhost.State{
	usbhost.StateDetachedInitialize,
	usbhost.StateDetachedWaitForDevice,
	usbhost.StateAttachedSettle,
	usbhost.StateAttachedResetDevice,
	usbhost.StateAttachedWaitResetComplete,
	usbhost.StateAttachedWaitSOF,
	usbhost.StateAttachedGetDeviceDescriptorSize,
	usbhost.StateAddressing,
	usbhost.StateConfiguring,
	usbhost.StateRunning,
}

// A Device is a device attached to the fake host.
type Device struct {
	Descriptor []byte
	// Strings maps string descriptor indexes to their text.
	Strings map[uint8]string
	LangID  uint16
	Configs [][]byte
}

// Host is a USB host library whose task replays a script of states, one per Task call. Once the
// script runs out the last state sticks.
type Host struct {
	mu      sync.Mutex
	logger  logging.Logger
	initErr error
	inited  bool
	script  []usbhost.State
	state   usbhost.State
	tasks   int
	devices map[usbhost.DeviceAddress]*Device
	closed  bool
}

// NewHost returns a host in the detached state with no script and no devices.
func NewHost(logger logging.Logger) *Host {
	return &Host{
		logger:  logger,
		state:   usbhost.StateDetached,
		devices: map[usbhost.DeviceAddress]*Device{},
	}
}

// NewSimulatedHost returns a host that enumerates one keyboard-like device.
func NewSimulatedHost(logger logging.Logger) *Host {
	h := NewHost(logger)
	h.AddDevice(usbhost.NewDeviceAddress(0, 1, false), &Device{
		Descriptor: DeviceDescriptor(0x046d, 0xc31c, 1, 2, 3, 1),
		Strings:    map[uint8]string{1: "Logitech", 2: "USB Keyboard", 3: "0001"},
		LangID:     0x0409,
		Configs: [][]byte{Configuration(1,
			InterfaceRecord(0, 1, 0x03, 0x01, 0x01),
			EndpointRecord(0x81, 0x03, 8, 10),
		)},
	})
	h.SetScript(EnumerationScript...)
	return h
}

// SetScript replaces the remaining states.
func (h *Host) SetScript(states ...usbhost.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.script = append([]usbhost.State(nil), states...)
}

// SetInitError makes Init fail with err.
func (h *Host) SetInitError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.initErr = err
}

// AddDevice attaches a device at addr.
func (h *Host) AddDevice(addr usbhost.DeviceAddress, dev *Device) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices[addr] = dev
}

// RemoveDevice detaches the device at addr.
func (h *Host) RemoveDevice(addr usbhost.DeviceAddress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.devices, addr)
}

// Tasks returns how many times Task ran.
func (h *Host) Tasks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tasks
}

// Init reads the revision register over dev.
func (h *Host) Init(ctx context.Context, dev board.SPIDevice, interrupt board.GPIOPin) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initErr != nil {
		return h.initErr
	}
	if _, err := dev.Xfer(ctx, []byte{revisionRegister << 3, 0}); err != nil {
		return errors.Wrap(err, "read revision")
	}
	if _, err := interrupt.Get(ctx); err != nil {
		return errors.Wrap(err, "read interrupt")
	}
	h.inited = true
	h.logger.Debug("fake MAX3421E initialized")
	return nil
}

// Task consumes the next scripted state.
func (h *Host) Task() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.inited || h.closed {
		return
	}
	h.tasks++
	if len(h.script) == 0 {
		return
	}
	h.state, h.script = h.script[0], h.script[1:]
	h.logger.Debugw("task", "state", h.state)
}

// State returns the current state.
func (h *Host) State() usbhost.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Devices returns the attached device addresses in ascending order while the host is running.
func (h *Host) Devices() []usbhost.DeviceAddress {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != usbhost.StateRunning {
		return nil
	}
	addrs := make([]usbhost.DeviceAddress, 0, len(h.devices))
	for addr := range h.devices {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

func (h *Host) device(addr usbhost.DeviceAddress) (*Device, error) {
	dev, ok := h.devices[addr]
	if !ok {
		return nil, usbhost.RCode(0xd6)
	}
	return dev, nil
}

// DeviceDescriptor returns the device descriptor at addr.
func (h *Host) DeviceDescriptor(addr usbhost.DeviceAddress) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, err := h.device(addr)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), dev.Descriptor...), nil
}

// StringDescriptor returns up to length bytes of a string descriptor. Index zero is the language
// table.
func (h *Host) StringDescriptor(addr usbhost.DeviceAddress, index uint8, langID, length uint16) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, err := h.device(addr)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if index == 0 {
		buf = []byte{4, 0x03, byte(dev.LangID), byte(dev.LangID >> 8)}
	} else {
		s, ok := dev.Strings[index]
		if !ok {
			return nil, usbhost.RCode(0x05)
		}
		if buf, err = StringDescriptor(s); err != nil {
			return nil, err
		}
	}
	return clip(buf, length), nil
}

// ConfigDescriptor returns up to length bytes of configuration conf.
func (h *Host) ConfigDescriptor(addr usbhost.DeviceAddress, conf uint8, length uint16) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, err := h.device(addr)
	if err != nil {
		return nil, err
	}
	if int(conf) >= len(dev.Configs) {
		return nil, usbhost.RCode(0x05)
	}
	return clip(dev.Configs[conf], length), nil
}

// Close stops the task.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func clip(buf []byte, length uint16) []byte {
	if int(length) < len(buf) {
		buf = buf[:length]
	}
	return append([]byte(nil), buf...)
}

// DeviceDescriptor builds an 18 byte device descriptor.
func DeviceDescriptor(vendor, product uint16, manufacturer, productIndex, serial, numConfigs uint8) []byte {
	buf := make([]byte, 18)
	buf[0] = 18
	buf[1] = 0x01
	binary.LittleEndian.PutUint16(buf[2:], 0x0200)
	buf[7] = 8
	binary.LittleEndian.PutUint16(buf[8:], vendor)
	binary.LittleEndian.PutUint16(buf[10:], product)
	binary.LittleEndian.PutUint16(buf[12:], 0x0100)
	buf[14] = manufacturer
	buf[15] = productIndex
	buf[16] = serial
	buf[17] = numConfigs
	return buf
}

// StringDescriptor encodes s as a UTF-16LE string descriptor.
func StringDescriptor(s string) ([]byte, error) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(err, "encode string descriptor")
	}
	if len(encoded)+2 > 0xff {
		return nil, errors.Errorf("string %q does not fit a descriptor", s)
	}
	return append([]byte{byte(len(encoded) + 2), 0x03}, encoded...), nil
}

// Configuration builds a configuration descriptor followed by records, with wTotalLength set.
func Configuration(numInterfaces uint8, records ...[]byte) []byte {
	buf := []byte{9, 0x02, 0, 0, numInterfaces, 1, 0, 0x80, 50}
	for _, rec := range records {
		buf = append(buf, rec...)
	}
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(buf)))
	return buf
}

// InterfaceRecord builds an interface descriptor.
func InterfaceRecord(number, numEndpoints, class, subClass, protocol uint8) []byte {
	return []byte{9, 0x04, number, 0, numEndpoints, class, subClass, protocol, 0}
}

// EndpointRecord builds an endpoint descriptor.
func EndpointRecord(address, attributes uint8, maxPacketSize uint16, interval uint8) []byte {
	return []byte{7, 0x05, address, attributes, byte(maxPacketSize), byte(maxPacketSize >> 8), interval}
}
