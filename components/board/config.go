package board

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Unused marks an optional pin as not connected.
const Unused = -1

// SPIBusConfig assigns the pins of an SPI host.
type SPIBusConfig struct {
	MOSI            int
	MISO            int
	SCLK            int
	QuadWP          int
	QuadHD          int
	MaxTransferSize int
}

// Validate ensures all parts of the config are valid.
func (cfg SPIBusConfig) Validate(path string) error {
	for _, pin := range []struct {
		name string
		val  int
	}{{"mosi_pin", cfg.MOSI}, {"miso_pin", cfg.MISO}, {"clk_pin", cfg.SCLK}} {
		if pin.val < 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("%s must be set", pin.name))
		}
	}
	return nil
}

// SPIDeviceConfig describes a device on an SPI bus. CommandBits and AddressBits are the widths of
// the phases that precede the data phase of every transaction.
type SPIDeviceConfig struct {
	CommandBits  int
	AddressBits  int
	DummyBits    int
	Mode         uint
	ClockSpeedHz int
	CSPin        int
	QueueSize    int
}

// Validate ensures all parts of the config are valid.
func (cfg SPIDeviceConfig) Validate(path string) error {
	if cfg.Mode > 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("invalid spi mode %d", cfg.Mode))
	}
	if cfg.ClockSpeedHz <= 0 {
		return utils.NewConfigValidationError(path, errors.New("clock speed must be positive"))
	}
	if cfg.CSPin < 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "cs_pin")
	}
	if cfg.CommandBits%8 != 0 || cfg.AddressBits%8 != 0 || cfg.DummyBits%8 != 0 {
		return utils.NewConfigValidationError(path, errors.New("phase widths must be whole bytes"))
	}
	return nil
}

// String describes the device for logs.
func (cfg SPIDeviceConfig) String() string {
	return fmt.Sprintf("cs=%d mode=%d clock=%dHz cmd=%db addr=%db", cfg.CSPin, cfg.Mode, cfg.ClockSpeedHz,
		cfg.CommandBits, cfg.AddressBits)
}
