package usbhost

import (
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Defaults match the USB Host Shield wiring.
const (
	defaultSPIHost                   = "SPI2"
	defaultCLKPin                    = 14
	defaultMISOPin                   = 12
	defaultMOSIPin                   = 13
	defaultCSPin                     = 5
	defaultInterruptPin              = 17
	defaultClockSpeedMHz             = 26
	defaultMaxConfigDescriptorLength = 0xff
	minConfigDescriptorLength        = 4
	maxConfigDescriptorLength        = 0xffff
)

// Config describes how to wire a MAX3421E and what to report about it.
type Config struct {
	Board string `json:"board"`
	Host  string `json:"host"`

	SPIHost       string `json:"spi_host,omitempty"`
	CLKPin        *int   `json:"clk_pin,omitempty"`
	MISOPin       *int   `json:"miso_pin,omitempty"`
	MOSIPin       *int   `json:"mosi_pin,omitempty"`
	CSPin         *int   `json:"cs_pin,omitempty"`
	InterruptPin  *int   `json:"interrupt_pin,omitempty"`
	ClockSpeedMHz int    `json:"clock_speed,omitempty"`

	// ReportStatusInterval enables a periodic state report. Zero disables it.
	ReportStatusInterval time.Duration `json:"report_status_interval,omitempty"`
	Debug                bool          `json:"debug,omitempty"`
	DebugVerbose         bool          `json:"debug_verbose,omitempty"`
	DebugUSBLib          bool          `json:"debug_usb_lib,omitempty"`

	DeviceConnected string `json:"device_connected,omitempty"`
	DeviceInfo      string `json:"device_info,omitempty"`

	MaxConfigDescriptorLength int `json:"max_config_descriptor_length,omitempty"`
}

// Validate ensures all parts of the config are valid and returns the board and sensors as
// dependencies.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Board == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "board")
	}
	if conf.Host == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "host")
	}
	for name, pin := range map[string]*int{
		"clk_pin":       conf.CLKPin,
		"miso_pin":      conf.MISOPin,
		"mosi_pin":      conf.MOSIPin,
		"cs_pin":        conf.CSPin,
		"interrupt_pin": conf.InterruptPin,
	} {
		if pin != nil && *pin < 0 {
			return nil, goutils.NewConfigValidationError(path, errors.Errorf("%s must be non-negative", name))
		}
	}
	if conf.ClockSpeedMHz < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("clock_speed must be positive"))
	}
	if conf.ReportStatusInterval < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("report_status_interval must not be negative"))
	}
	if conf.MaxConfigDescriptorLength != 0 &&
		(conf.MaxConfigDescriptorLength < minConfigDescriptorLength || conf.MaxConfigDescriptorLength > maxConfigDescriptorLength) {
		return nil, goutils.NewConfigValidationError(path,
			errors.Errorf("max_config_descriptor_length must be between %d and %d",
				minConfigDescriptorLength, maxConfigDescriptorLength))
	}

	deps := []string{conf.Board}
	if conf.DeviceConnected != "" {
		deps = append(deps, conf.DeviceConnected)
	}
	if conf.DeviceInfo != "" {
		deps = append(deps, conf.DeviceInfo)
	}
	return deps, nil
}

type settings struct {
	spiHost                   string
	clkPin, misoPin, mosiPin  int
	csPin, interruptPin       int
	clockSpeedHz              int
	reportStatusInterval      time.Duration
	debug, debugVerbose       bool
	debugUSBLib               bool
	maxConfigDescriptorLength int
}

func pinOr(pin *int, def int) int {
	if pin == nil {
		return def
	}
	return *pin
}

func (conf *Config) resolve() settings {
	s := settings{
		spiHost:                   conf.SPIHost,
		clkPin:                    pinOr(conf.CLKPin, defaultCLKPin),
		misoPin:                   pinOr(conf.MISOPin, defaultMISOPin),
		mosiPin:                   pinOr(conf.MOSIPin, defaultMOSIPin),
		csPin:                     pinOr(conf.CSPin, defaultCSPin),
		interruptPin:              pinOr(conf.InterruptPin, defaultInterruptPin),
		clockSpeedHz:              defaultClockSpeedMHz * 1e6,
		reportStatusInterval:      conf.ReportStatusInterval,
		debug:                     conf.Debug,
		debugVerbose:              conf.DebugVerbose,
		debugUSBLib:               conf.DebugUSBLib,
		maxConfigDescriptorLength: conf.MaxConfigDescriptorLength,
	}
	if s.spiHost == "" {
		s.spiHost = defaultSPIHost
	}
	if conf.ClockSpeedMHz != 0 {
		s.clockSpeedHz = conf.ClockSpeedMHz * 1e6
	}
	if s.maxConfigDescriptorLength == 0 {
		s.maxConfigDescriptorLength = defaultMaxConfigDescriptorLength
	}
	return s
}
