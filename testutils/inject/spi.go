package inject

import (
	"context"

	"github.com/spilink/spilink/components/board"
)

// SPIBus is an injected SPI bus.
type SPIBus struct {
	board.SPIBus
	HostFunc      func() string
	AddDeviceFunc func(cfg board.SPIDeviceConfig) (board.SPIDevice, error)
	CloseFunc     func() error
}

// Host calls the injected Host or the real version.
func (sb *SPIBus) Host() string {
	if sb.HostFunc == nil {
		return sb.SPIBus.Host()
	}
	return sb.HostFunc()
}

// AddDevice calls the injected AddDevice or the real version.
func (sb *SPIBus) AddDevice(cfg board.SPIDeviceConfig) (board.SPIDevice, error) {
	if sb.AddDeviceFunc == nil {
		return sb.SPIBus.AddDevice(cfg)
	}
	return sb.AddDeviceFunc(cfg)
}

// Close calls the injected Close or the real version.
func (sb *SPIBus) Close() error {
	if sb.CloseFunc == nil {
		return sb.SPIBus.Close()
	}
	return sb.CloseFunc()
}

// SPIDevice is an injected device on an SPI bus.
type SPIDevice struct {
	board.SPIDevice
	ConfigFunc func() board.SPIDeviceConfig
	XferFunc   func(ctx context.Context, tx []byte) ([]byte, error)
	CloseFunc  func() error
}

// Config calls the injected Config or the real version.
func (d *SPIDevice) Config() board.SPIDeviceConfig {
	if d.ConfigFunc == nil {
		return d.SPIDevice.Config()
	}
	return d.ConfigFunc()
}

// Xfer calls the injected Xfer or the real version.
func (d *SPIDevice) Xfer(ctx context.Context, tx []byte) ([]byte, error) {
	if d.XferFunc == nil {
		return d.SPIDevice.Xfer(ctx, tx)
	}
	return d.XferFunc(ctx, tx)
}

// Close calls the injected Close or the real version.
func (d *SPIDevice) Close() error {
	if d.CloseFunc == nil {
		return d.SPIDevice.Close()
	}
	return d.CloseFunc()
}
