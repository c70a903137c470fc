package fake

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/spilink/spilink/components/board"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
)

var busCfg = board.SPIBusConfig{MOSI: 23, MISO: 19, SCLK: 18, QuadWP: board.Unused, QuadHD: board.Unused}

func TestFakeBoardSPI(t *testing.T) {
	b := NewBoard("board0", &Config{FailSPIHosts: []string{"SPI2"}}, logging.NewTestLogger(t))

	_, err := b.SPIBus("SPI2", busCfg)
	test.That(t, err, test.ShouldNotBeNil)

	bus, err := b.SPIBus("SPI3", busCfg)
	test.That(t, err, test.ShouldBeNil)
	_, err = b.SPIBus("SPI3", busCfg)
	test.That(t, err, test.ShouldNotBeNil)

	devCfg := board.SPIDeviceConfig{CommandBits: 16, AddressBits: 8, ClockSpeedHz: 30e6, CSPin: 5, QueueSize: 20}
	dev, err := bus.AddDevice(devCfg)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Config(), test.ShouldResemble, devCfg)
	_, err = bus.AddDevice(devCfg)
	test.That(t, err, test.ShouldNotBeNil)

	rx, err := dev.Xfer(context.Background(), []byte{1, 2, 3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rx, test.ShouldResemble, []byte{0, 0, 0})

	fakeDev, ok := bus.(*SPIBus).Device(5)
	test.That(t, ok, test.ShouldBeTrue)
	fakeDev.SetResponder(func(tx []byte) []byte { return []byte{0xAA, tx[0]} })
	rx, err = dev.Xfer(context.Background(), []byte{7, 8, 9})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rx, test.ShouldResemble, []byte{0xAA, 7, 0})
	test.That(t, fakeDev.Xfers(), test.ShouldEqual, 2)

	test.That(t, dev.Close(), test.ShouldBeNil)
	test.That(t, fakeDev.Closed(), test.ShouldBeTrue)
	_, err = dev.Xfer(context.Background(), []byte{1})
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, bus.Close(), test.ShouldBeNil)
	_, ok = b.Bus("SPI3")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestFakeBoardGPIO(t *testing.T) {
	b := NewBoard("board0", &Config{}, logging.NewTestLogger(t))
	pin, err := b.GPIOPinByNumber(4)
	test.That(t, err, test.ShouldBeNil)
	high, err := pin.Get(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeFalse)

	test.That(t, pin.Set(context.Background(), true), test.ShouldBeNil)
	same, err := b.GPIOPinByNumber(4)
	test.That(t, err, test.ShouldBeNil)
	high, err = same.Get(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)

	_, err = b.GPIOPinByNumber(-1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFakeBoardRegistration(t *testing.T) {
	reg, ok := resource.LookupRegistration(board.API, Model)
	test.That(t, ok, test.ShouldBeTrue)
	conv, err := reg.AttributeMapConverter(map[string]interface{}{"fail_spi_hosts": []interface{}{"SPI3"}})
	test.That(t, err, test.ShouldBeNil)

	res, err := reg.Constructor(context.Background(), nil, resource.Config{
		Name: "board0", API: board.API, Model: Model, ConvertedAttributes: conv,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	b, err := board.FromDependencies(resource.Dependencies{board.Named("board0"): res}, "board0")
	test.That(t, err, test.ShouldBeNil)
	_, err = b.SPIBus("SPI3", busCfg)
	test.That(t, err, test.ShouldNotBeNil)
}
