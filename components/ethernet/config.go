package ethernet

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

const (
	defaultClockSpeedMHz  = 30
	minClockSpeedMHz      = 1
	maxClockSpeedMHz      = 80
	defaultDomain         = ".local"
	defaultConnectTimeout = 15 * time.Second

	// TypeW5500 is the only supported chip.
	TypeW5500 = "W5500"
)

// ManualIP is a static address configuration. When present no DHCP client is started.
type ManualIP struct {
	StaticIP netip.Addr `json:"static_ip"`
	Gateway  netip.Addr `json:"gateway"`
	Subnet   netip.Addr `json:"subnet"`
	// DNS1 and DNS2 are only registered when set to a non zero address.
	DNS1 netip.Addr `json:"dns1,omitempty"`
	DNS2 netip.Addr `json:"dns2,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (m *ManualIP) Validate(path string) error {
	for _, field := range []struct {
		name string
		addr netip.Addr
	}{
		{"static_ip", m.StaticIP},
		{"gateway", m.Gateway},
		{"subnet", m.Subnet},
	} {
		if !field.addr.IsValid() {
			return goutils.NewConfigValidationFieldRequiredError(path, field.name)
		}
		if !field.addr.Is4() {
			return goutils.NewConfigValidationError(path, errors.Errorf("%s must be an IPv4 address", field.name))
		}
	}
	for name, dns := range map[string]netip.Addr{"dns1": m.DNS1, "dns2": m.DNS2} {
		if dns.IsValid() && !dns.Is4() {
			return goutils.NewConfigValidationError(path, errors.Errorf("%s must be an IPv4 address", name))
		}
	}
	return nil
}

// Config describes how to wire and address a W5500.
type Config struct {
	Board    string `json:"board"`
	Platform string `json:"platform"`
	Type     string `json:"type,omitempty"`

	CLKPin       *int `json:"clk_pin"`
	MISOPin      *int `json:"miso_pin"`
	MOSIPin      *int `json:"mosi_pin"`
	CSPin        *int `json:"cs_pin"`
	InterruptPin *int `json:"interrupt_pin"`
	ResetPin     *int `json:"reset_pin,omitempty"`

	// ClockSpeedMHz is the SPI clock. The W5500 is stable up to 33.3 MHz.
	ClockSpeedMHz int `json:"clock_speed,omitempty"`

	ManualIP       *ManualIP     `json:"manual_ip,omitempty"`
	Domain         string        `json:"domain,omitempty"`
	UseAddress     string        `json:"use_address,omitempty"`
	Hostname       string        `json:"hostname,omitempty"`
	ConnectTimeout time.Duration `json:"connect_timeout,omitempty"`
}

// Validate ensures all parts of the config are valid and returns the board as a dependency.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Board == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "board")
	}
	if conf.Platform == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "platform")
	}
	if conf.Type != "" && !strings.EqualFold(conf.Type, TypeW5500) {
		return nil, goutils.NewConfigValidationError(path, errors.Errorf("unsupported type %q", conf.Type))
	}
	for _, pin := range []struct {
		name string
		val  *int
	}{
		{"clk_pin", conf.CLKPin},
		{"miso_pin", conf.MISOPin},
		{"mosi_pin", conf.MOSIPin},
		{"cs_pin", conf.CSPin},
		{"interrupt_pin", conf.InterruptPin},
	} {
		if pin.val == nil {
			return nil, goutils.NewConfigValidationFieldRequiredError(path, pin.name)
		}
		if *pin.val < 0 {
			return nil, goutils.NewConfigValidationError(path, errors.Errorf("%s must be non-negative", pin.name))
		}
	}
	if conf.ResetPin != nil && *conf.ResetPin < -1 {
		return nil, goutils.NewConfigValidationError(path, errors.New("reset_pin must be -1 or a pin number"))
	}
	if conf.ClockSpeedMHz != 0 && (conf.ClockSpeedMHz < minClockSpeedMHz || conf.ClockSpeedMHz > maxClockSpeedMHz) {
		return nil, goutils.NewConfigValidationError(path,
			errors.Errorf("clock_speed must be between %d and %d MHz", minClockSpeedMHz, maxClockSpeedMHz))
	}
	if conf.ConnectTimeout < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("connect_timeout must be positive"))
	}
	if conf.ManualIP != nil {
		if err := conf.ManualIP.Validate(fmt.Sprintf("%s.manual_ip", path)); err != nil {
			return nil, err
		}
	}
	return []string{conf.Board}, nil
}

// settings are the resolved values of a Config.
type settings struct {
	clkPin, misoPin, mosiPin, csPin int
	interruptPin, resetPin          int
	clockSpeedHz                    int
	hostname                        string
	useAddress                      string
	connectTimeout                  time.Duration
	manualIP                        *ManualIP
}

func pinOrUnused(pin *int) int {
	if pin == nil {
		return -1
	}
	return *pin
}

// resolve fills in defaults. Unset pins resolve to -1; Validate is what rejects them.
func (conf *Config) resolve(name string) settings {
	s := settings{
		clkPin:         pinOrUnused(conf.CLKPin),
		misoPin:        pinOrUnused(conf.MISOPin),
		mosiPin:        pinOrUnused(conf.MOSIPin),
		csPin:          pinOrUnused(conf.CSPin),
		interruptPin:   pinOrUnused(conf.InterruptPin),
		resetPin:       pinOrUnused(conf.ResetPin),
		clockSpeedHz:   defaultClockSpeedMHz * 1e6,
		hostname:       conf.Hostname,
		useAddress:     conf.UseAddress,
		connectTimeout: conf.ConnectTimeout,
		manualIP:       conf.ManualIP,
	}
	if conf.ClockSpeedMHz != 0 {
		s.clockSpeedHz = conf.ClockSpeedMHz * 1e6
	}
	if s.hostname == "" {
		s.hostname = name
	}
	if s.connectTimeout == 0 {
		s.connectTimeout = defaultConnectTimeout
	}
	if s.useAddress == "" {
		if s.manualIP != nil {
			s.useAddress = s.manualIP.StaticIP.String()
		} else {
			domain := conf.Domain
			if domain == "" {
				domain = defaultDomain
			}
			s.useAddress = s.hostname + domain
		}
	}
	return s
}
