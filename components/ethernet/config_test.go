package ethernet

import (
	"net/netip"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/spilink/spilink/resource"
)

func pin(v int) *int { return &v }

func validConfig() *Config {
	return &Config{
		Board:        "board0",
		Platform:     "fake",
		CLKPin:       pin(18),
		MISOPin:      pin(19),
		MOSIPin:      pin(23),
		CSPin:        pin(5),
		InterruptPin: pin(4),
	}
}

func TestConfigValidate(t *testing.T) {
	deps, err := validConfig().Validate("components.0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"board0"})

	for _, tc := range []struct {
		name   string
		mutate func(conf *Config)
		errMsg string
	}{
		{"no board", func(conf *Config) { conf.Board = "" }, "board"},
		{"no platform", func(conf *Config) { conf.Platform = "" }, "platform"},
		{"bad type", func(conf *Config) { conf.Type = "LAN8720" }, "unsupported type"},
		{"no cs pin", func(conf *Config) { conf.CSPin = nil }, "cs_pin"},
		{"no interrupt pin", func(conf *Config) { conf.InterruptPin = nil }, "interrupt_pin"},
		{"negative clk pin", func(conf *Config) { conf.CLKPin = pin(-1) }, "clk_pin"},
		{"bad reset pin", func(conf *Config) { conf.ResetPin = pin(-2) }, "reset_pin"},
		{"clock too fast", func(conf *Config) { conf.ClockSpeedMHz = 81 }, "clock_speed"},
		{"negative timeout", func(conf *Config) { conf.ConnectTimeout = -time.Second }, "connect_timeout"},
		{"manual ip without gateway", func(conf *Config) {
			conf.ManualIP = &ManualIP{
				StaticIP: netip.MustParseAddr("192.168.1.50"),
				Subnet:   netip.MustParseAddr("255.255.255.0"),
			}
		}, "gateway"},
		{"manual ip v6", func(conf *Config) {
			conf.ManualIP = &ManualIP{
				StaticIP: netip.MustParseAddr("fe80::1"),
				Gateway:  netip.MustParseAddr("192.168.1.1"),
				Subnet:   netip.MustParseAddr("255.255.255.0"),
			}
		}, "IPv4"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := validConfig()
			tc.mutate(conf)
			_, err := conf.Validate("components.0")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}

	conf := validConfig()
	conf.Type = "w5500"
	conf.ResetPin = pin(-1)
	conf.ClockSpeedMHz = 80
	_, err = conf.Validate("components.0")
	test.That(t, err, test.ShouldBeNil)
}

func TestConfigResolve(t *testing.T) {
	s := validConfig().resolve("eth0")
	test.That(t, s.hostname, test.ShouldEqual, "eth0")
	test.That(t, s.useAddress, test.ShouldEqual, "eth0.local")
	test.That(t, s.clockSpeedHz, test.ShouldEqual, 30000000)
	test.That(t, s.resetPin, test.ShouldEqual, -1)
	test.That(t, s.connectTimeout, test.ShouldEqual, 15*time.Second)
	test.That(t, s.manualIP, test.ShouldBeNil)

	conf := validConfig()
	conf.Hostname = "gateway"
	conf.Domain = ".lan"
	conf.ResetPin = pin(12)
	conf.ClockSpeedMHz = 20
	s = conf.resolve("eth0")
	test.That(t, s.useAddress, test.ShouldEqual, "gateway.lan")
	test.That(t, s.resetPin, test.ShouldEqual, 12)
	test.That(t, s.clockSpeedHz, test.ShouldEqual, 20000000)

	conf.ManualIP = &ManualIP{StaticIP: netip.MustParseAddr("10.1.2.3")}
	test.That(t, conf.resolve("eth0").useAddress, test.ShouldEqual, "10.1.2.3")

	conf.UseAddress = "eth0.example.com"
	test.That(t, conf.resolve("eth0").useAddress, test.ShouldEqual, "eth0.example.com")

	s = (&Config{}).resolve("eth0")
	test.That(t, s.csPin, test.ShouldEqual, -1)
	test.That(t, s.interruptPin, test.ShouldEqual, -1)
}

func TestConfigFromAttributes(t *testing.T) {
	conf, err := resource.TransformAttributeMap[*Config](map[string]interface{}{
		"board":           "board0",
		"platform":        "fake",
		"clk_pin":         18,
		"miso_pin":        "19",
		"mosi_pin":        23,
		"cs_pin":          5,
		"interrupt_pin":   4,
		"connect_timeout": "20s",
		"manual_ip": map[string]interface{}{
			"static_ip": "192.168.1.50",
			"gateway":   "192.168.1.1",
			"subnet":    "255.255.255.0",
			"dns1":      "8.8.8.8",
		},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *conf.MISOPin, test.ShouldEqual, 19)
	test.That(t, conf.ConnectTimeout, test.ShouldEqual, 20*time.Second)
	test.That(t, conf.ManualIP.DNS1, test.ShouldResemble, netip.MustParseAddr("8.8.8.8"))
	test.That(t, conf.ManualIP.DNS2.IsValid(), test.ShouldBeFalse)
	_, err = conf.Validate("components.0")
	test.That(t, err, test.ShouldBeNil)

	_, err = resource.TransformAttributeMap[*Config](map[string]interface{}{"board": "board0", "use_adress": "x"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "use_adress")

	_, err = resource.TransformAttributeMap[*Config](map[string]interface{}{
		"manual_ip": map[string]interface{}{"static_ip": "not-an-ip"},
	})
	test.That(t, err, test.ShouldNotBeNil)
}
