package fake

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/spilink/spilink/components/board"
	fakeboard "github.com/spilink/spilink/components/board/fake"
	"github.com/spilink/spilink/components/usbhost"
	"github.com/spilink/spilink/components/usbhost/descriptor"
	"github.com/spilink/spilink/logging"
)

var (
	boardBus    = board.SPIBusConfig{MOSI: 13, MISO: 12, SCLK: 14, QuadWP: board.Unused, QuadHD: board.Unused}
	boardDevice = board.SPIDeviceConfig{ClockSpeedHz: 26e6, CSPin: 5, QueueSize: 1}
)

func TestSimulatedHost(t *testing.T) {
	logger := logging.NewTestLogger(t)
	h := NewSimulatedHost(logger)

	h.Task()
	test.That(t, h.Tasks(), test.ShouldEqual, 0)
	test.That(t, h.State(), test.ShouldEqual, usbhost.StateDetached)

	b := fakeboard.NewBoard("board0", &fakeboard.Config{}, logger)
	bus, err := b.SPIBus("SPI2", boardBus)
	test.That(t, err, test.ShouldBeNil)
	dev, err := bus.AddDevice(boardDevice)
	test.That(t, err, test.ShouldBeNil)
	pin, err := b.GPIOPinByNumber(17)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.Init(context.Background(), dev, pin), test.ShouldBeNil)

	test.That(t, h.Devices(), test.ShouldBeEmpty)
	for range EnumerationScript {
		h.Task()
	}
	test.That(t, h.State(), test.ShouldEqual, usbhost.StateRunning)
	h.Task()
	test.That(t, h.State(), test.ShouldEqual, usbhost.StateRunning)
	test.That(t, h.Tasks(), test.ShouldEqual, len(EnumerationScript)+1)

	addrs := h.Devices()
	test.That(t, addrs, test.ShouldResemble, []usbhost.DeviceAddress{usbhost.NewDeviceAddress(0, 1, false)})

	raw, err := h.DeviceDescriptor(addrs[0])
	test.That(t, err, test.ShouldBeNil)
	desc, err := descriptor.ParseDeviceDescriptor(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, desc.VendorID, test.ShouldEqual, uint16(0x046d))
	test.That(t, desc.NumConfigurations, test.ShouldEqual, uint8(1))

	langs, err := h.StringDescriptor(addrs[0], 0, 0, 255)
	test.That(t, err, test.ShouldBeNil)
	langID, err := descriptor.LanguageID(langs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, langID, test.ShouldEqual, uint16(0x0409))

	head, err := h.StringDescriptor(addrs[0], 2, langID, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, head, test.ShouldResemble, []byte{26})
	str, err := h.StringDescriptor(addrs[0], 2, langID, uint16(head[0]))
	test.That(t, err, test.ShouldBeNil)
	product, err := descriptor.DecodeString(str, descriptor.MaxStringChars)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, product, test.ShouldEqual, "USB Keyboard")

	_, err = h.StringDescriptor(addrs[0], 9, langID, 255)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = h.DeviceDescriptor(usbhost.NewDeviceAddress(0, 2, false))
	test.That(t, err, test.ShouldNotBeNil)

	conf, err := h.ConfigDescriptor(addrs[0], 0, 4)
	test.That(t, err, test.ShouldBeNil)
	total, err := descriptor.TotalLength(conf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, total, test.ShouldEqual, uint16(25))
	_, err = h.ConfigDescriptor(addrs[0], 1, 4)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, h.Close(), test.ShouldBeNil)
	h.Task()
	test.That(t, h.Tasks(), test.ShouldEqual, len(EnumerationScript)+1)
}

func TestInitError(t *testing.T) {
	logger := logging.NewTestLogger(t)
	h := NewHost(logger)
	h.SetInitError(usbhost.RCode(0x0e))
	test.That(t, h.Init(context.Background(), nil, nil), test.ShouldEqual, usbhost.RCode(0x0e))
}
