package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/spilink/spilink/components/ethernet"
	"github.com/spilink/spilink/components/sensor"
	"github.com/spilink/spilink/config"
	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/metrics"
	"github.com/spilink/spilink/network"
	"github.com/spilink/spilink/resource"

	_ "github.com/spilink/spilink/components/register"
)

const simulatedConfig = `
loop_interval: 5ms
logging:
  level: info
  patterns:
    - pattern: spilinkd.usb0
      level: debug
components:
  - name: usb0
    api: usb_host
    model: max3421e
    attributes:
      board: board0
      host: fake
      device_connected: usb_connected
      device_info: usb_info
  - name: eth0
    api: ethernet
    model: w5500
    attributes:
      board: board0
      platform: fake
      clk_pin: 18
      miso_pin: 19
      mosi_pin: 23
      cs_pin: 5
      interrupt_pin: 4
  - name: usb_connected
    api: sensor
    model: binary
  - name: usb_info
    api: sensor
    model: text
  - name: board0
    api: board
    model: fake
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spilink.yaml")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"spilinkd"}, args...))
	return out.String(), errOut.String(), err
}

func TestModelsAction(t *testing.T) {
	out, _, err := runApp(t, "models")
	test.That(t, err, test.ShouldBeNil)
	for _, want := range []string{
		"spilink:component:board", "spilink:builtin:fake", "spilink:builtin:periph",
		"spilink:component:ethernet", "spilink:builtin:w5500",
		"spilink:component:usb_host", "spilink:builtin:max3421e",
		"spilink:builtin:binary", "spilink:builtin:text",
		"ethernet platforms: [fake]", "usb host libraries: [fake]",
	} {
		test.That(t, out, test.ShouldContainSubstring, want)
	}
}

func TestUSBStatesAction(t *testing.T) {
	out, _, err := runApp(t, "usb-states")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "0x90")
	test.That(t, out, test.ShouldContainSubstring, "USB_STATE_RUNNING")
	test.That(t, out, test.ShouldContainSubstring, "0xA0")
	test.That(t, out, test.ShouldContainSubstring, "USB_STATE_ERROR")
}

func TestValidateAction(t *testing.T) {
	path := writeConfig(t, simulatedConfig)
	out, _, err := runApp(t, "--config", path, "validate")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "5 component(s) in setup order")

	board := strings.Index(out, "  board0 ")
	eth := strings.Index(out, "  eth0 ")
	usb := strings.Index(out, "  usb0 ")
	connected := strings.Index(out, "  usb_connected ")
	test.That(t, board, test.ShouldBeGreaterThan, -1)
	test.That(t, eth, test.ShouldBeGreaterThan, board)
	test.That(t, usb, test.ShouldBeGreaterThan, board)
	test.That(t, usb, test.ShouldBeGreaterThan, connected)

	t.Run("missing config flag", func(t *testing.T) {
		_, _, err := runApp(t, "validate")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "--config")
	})

	t.Run("invalid attributes", func(t *testing.T) {
		path := writeConfig(t, strings.Replace(simulatedConfig, "cs_pin: 5", "cs_pin: -5", 1))
		_, _, err := runApp(t, "-c", path, "validate")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "cs_pin")
	})

	t.Run("missing dependency", func(t *testing.T) {
		path := writeConfig(t, strings.Replace(simulatedConfig, "device_info: usb_info", "device_info: nope", 1))
		_, _, err := runApp(t, "-c", path, "validate")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "nope")
	})
}

func findResource[T resource.Resource](t *testing.T, p *process, name resource.Name) T {
	t.Helper()
	for _, res := range p.resources {
		if res.Name() == name {
			typed, ok := res.(T)
			test.That(t, ok, test.ShouldBeTrue)
			return typed
		}
	}
	t.Fatalf("no resource named %s", name)
	var zero T
	return zero
}

func TestProcess(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	cfg, err := config.FromReader(context.Background(), "simulated", strings.NewReader(simulatedConfig), logger)
	test.That(t, err, test.ShouldBeNil)

	promRegistry := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(promRegistry)
	test.That(t, err, test.ShouldBeNil)

	p, err := newProcess(context.Background(), cfg, rec, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.resources, test.ShouldHaveLength, 5)
	test.That(t, p.scheduler.Components(), test.ShouldHaveLength, 3)
	test.That(t, p.network.Len(), test.ShouldEqual, 1)
	test.That(t, p.loggers.Names(), test.ShouldContain, "spilinkd.eth0")
	test.That(t, p.loggers.Names(), test.ShouldContain, "spilinkd.scheduler")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	test.That(t, p.scheduler.Setup(ctx), test.ShouldBeNil)
	test.That(t, p.network.IsConnected(), test.ShouldBeTrue)
	test.That(t, p.network.UseAddress(), test.ShouldEqual, "eth0.local")
	boardLogs := logs.FilterMessageSnippet("fake board").All()
	test.That(t, boardLogs, test.ShouldHaveLength, 1)
	test.That(t, boardLogs[0].LoggerName, test.ShouldEqual, "board0")
	test.That(t, boardLogs[0].ContextMap()["model"], test.ShouldEqual, "spilink:builtin:fake")

	table := p.statusTable()
	test.That(t, table, test.ShouldContainSubstring, "spilink:component:ethernet/eth0")
	test.That(t, table, test.ShouldContainSubstring, "spilink:component:usb_host/usb0")

	p.scheduler.Start(context.Background())
	connected := findResource[*sensor.BinarySensor](t, p, sensor.Named("usb_connected"))
	info := findResource[*sensor.TextSensor](t, p, sensor.Named("usb_info"))
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		state, ok := connected.State()
		test.That(tb, ok, test.ShouldBeTrue)
		test.That(tb, state, test.ShouldBeTrue)
	})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		state, _ := info.State()
		test.That(tb, state, test.ShouldEqual, "Logitech|USB Keyboard|0001")
	})

	eth := findResource[ethernet.Ethernet](t, p, ethernet.Named("eth0"))
	test.That(t, eth.IsConnected(), test.ShouldBeTrue)

	test.That(t, p.Close(context.Background()), test.ShouldBeNil)
}

func TestProcessUnknownModel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg, err := config.FromReader(context.Background(), "unknown", strings.NewReader(`
components:
  - name: thing
    api: ethernet
    model: enc28j60
`), logger)
	test.That(t, err, test.ShouldBeNil)

	_, err = newProcess(context.Background(), cfg, metrics.Noop{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `cannot build component "thing"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no registration")
}

func TestHTTPHandler(t *testing.T) {
	promRegistry := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(promRegistry)
	test.That(t, err, test.ShouldBeNil)
	rec.LinkState("eth0", int(ethernet.LinkStateConnected))

	links := network.NewRegistry()
	handler := newHTTPHandler(promRegistry, links)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/metrics")
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, w.Body.String(), test.ShouldContainSubstring, `spilink_ethernet_link_state{component="eth0"} 2`)

	// No links configured means nothing to wait for.
	test.That(t, get("/readyz").Code, test.ShouldEqual, http.StatusOK)

	links.Add(&staticLink{})
	w = get("/readyz")
	test.That(t, w.Code, test.ShouldEqual, http.StatusServiceUnavailable)

	links.Add(&staticLink{connected: true, useAddress: "eth0.local"})
	w = get("/readyz")
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	test.That(t, w.Body.String(), test.ShouldEqual, "eth0.local\n")
}

type staticLink struct {
	connected  bool
	useAddress string
}

func (l *staticLink) IsConnected() bool { return l.connected }

func (l *staticLink) IPAddress() netip.Addr { return netip.Addr{} }

func (l *staticLink) UseAddress() string { return l.useAddress }
