package fake

import (
	"context"
	"testing"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/spilink/spilink/components/board"
	fakeboard "github.com/spilink/spilink/components/board/fake"
	"github.com/spilink/spilink/components/ethernet"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/network"
	"github.com/spilink/spilink/resource"
)

func newW5500(t *testing.T, attrs map[string]interface{}) (*ethernet.W5500, logging.Logger) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	reg, ok := resource.LookupRegistration(ethernet.API, ethernet.Model)
	test.That(t, ok, test.ShouldBeTrue)
	converted, err := reg.AttributeMapConverter(attrs)
	test.That(t, err, test.ShouldBeNil)
	_, err = converted.Validate("components.1")
	test.That(t, err, test.ShouldBeNil)

	b := fakeboard.NewBoard("board0", &fakeboard.Config{}, logger)
	res, err := reg.Constructor(context.Background(), resource.Dependencies{board.Named("board0"): b},
		resource.Config{Name: "eth0", API: ethernet.API, Model: ethernet.Model, ConvertedAttributes: converted}, logger)
	test.That(t, err, test.ShouldBeNil)
	return res.(*ethernet.W5500), logger
}

func attributes() map[string]interface{} {
	return map[string]interface{}{
		"board":         "board0",
		"platform":      PlatformName,
		"clk_pin":       18,
		"miso_pin":      19,
		"mosi_pin":      23,
		"cs_pin":        5,
		"interrupt_pin": 4,
	}
}

func TestDHCPLease(t *testing.T) {
	w, _ := newW5500(t, attributes())
	ctx := context.Background()
	test.That(t, w.Setup(ctx), test.ShouldBeNil)
	defer func() { test.That(t, w.Close(ctx), test.ShouldBeNil) }()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		w.Loop(ctx)
		test.That(tb, w.IsConnected(), test.ShouldBeTrue)
	})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		test.That(tb, w.IPAddress(), test.ShouldResemble, LeaseIP)
	})

	providers := network.NewRegistry()
	providers.Add(w)
	test.That(t, providers.IsConnected(), test.ShouldBeTrue)
	test.That(t, providers.IPAddress(), test.ShouldResemble, LeaseIP)
	test.That(t, providers.UseAddress(), test.ShouldEqual, "eth0.local")
}

func TestManualAddress(t *testing.T) {
	attrs := attributes()
	attrs["manual_ip"] = map[string]interface{}{
		"static_ip": "192.168.1.50",
		"gateway":   "192.168.1.1",
		"subnet":    "255.255.255.0",
		"dns1":      "192.168.1.1",
	}
	w, _ := newW5500(t, attrs)
	ctx := context.Background()
	test.That(t, w.Setup(ctx), test.ShouldBeNil)
	defer func() { test.That(t, w.Close(ctx), test.ShouldBeNil) }()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		w.Loop(ctx)
		test.That(tb, w.IsConnected(), test.ShouldBeTrue)
	})
	test.That(t, w.IPAddress().String(), test.ShouldEqual, "192.168.1.50")
	test.That(t, w.UseAddress(), test.ShouldEqual, "192.168.1.50")
	test.That(t, w.Status().IsFailed(), test.ShouldBeFalse)
}

func TestCableUnplugged(t *testing.T) {
	logger := logging.NewTestLogger(t)
	p := NewPlatform(logger)
	p.SetLink(false)
	b := fakeboard.NewBoard("board0", &fakeboard.Config{}, logger)
	pin := func(v int) *int { return &v }
	w := ethernet.NewW5500("eth0", &ethernet.Config{
		Board:        "board0",
		Platform:     PlatformName,
		CLKPin:       pin(18),
		MISOPin:      pin(19),
		MOSIPin:      pin(23),
		CSPin:        pin(5),
		InterruptPin: pin(4),
	}, b, p, clock.New(), logger)

	ctx := context.Background()
	test.That(t, w.Setup(ctx), test.ShouldBeNil)
	defer func() { test.That(t, w.Close(ctx), test.ShouldBeNil) }()

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		w.Loop(ctx)
		test.That(tb, w.State(), test.ShouldEqual, ethernet.LinkStateConnecting)
	})
	test.That(t, p.Netif().DHCPStarts(), test.ShouldEqual, 1)

	p.SetLink(true)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		w.Loop(ctx)
		test.That(tb, w.IsConnected(), test.ShouldBeTrue)
	})

	p.SetLink(false)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		w.Loop(ctx)
		test.That(tb, w.State(), test.ShouldEqual, ethernet.LinkStateConnecting)
	})
	test.That(t, p.Netif().DHCPStarts(), test.ShouldEqual, 2)
}

func TestPlatformErrors(t *testing.T) {
	p := NewPlatform(logging.NewTestLogger(t))
	_, err := p.NewNetif(ethernet.NetifConfig{})
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, p.Init(context.Background()), test.ShouldBeNil)
	defer func() { test.That(t, p.Close(), test.ShouldBeNil) }()
	test.That(t, p.Init(context.Background()), test.ShouldNotBeNil)

	netif, err := p.NewNetif(ethernet.NetifConfig{Key: "ETH_SPI"})
	test.That(t, err, test.ShouldBeNil)
	err = netif.DHCPClientStop()
	test.That(t, err, test.ShouldBeError)
	test.That(t, netif.DHCPClientStart(), test.ShouldBeNil)
	test.That(t, netif.SetIPInfo(ethernet.IPInfo{}), test.ShouldNotBeNil)

	_, err = p.InstallDriver(nil, ethernet.W5500Config{})
	test.That(t, err, test.ShouldNotBeNil)
}
