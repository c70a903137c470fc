package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
)

var (
	widgetAPI   = resource.APINamespaceSpilink.WithComponentType("widget")
	widgetModel = resource.DefaultModelFamily.WithModel("config_test")
)

type widgetConfig struct {
	Board string `json:"board"`
	Pin   int    `json:"pin"`
}

func (c *widgetConfig) Validate(path string) ([]string, error) {
	if c.Pin < 0 {
		return nil, errors.New("pin must not be negative")
	}
	if c.Board == "" {
		return nil, nil
	}
	return []string{c.Board}, nil
}

type widget struct {
	resource.Named
	resource.TriviallyCloseable
}

func init() {
	resource.RegisterComponent(widgetAPI, widgetModel, resource.Registration[*widget, *widgetConfig]{
		Constructor: func(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (*widget, error) {
			return &widget{Named: conf.ResourceName().AsNamed()}, nil
		},
	})
}

func TestFromReaderYAML(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg, err := FromReader(context.Background(), "test.yaml", strings.NewReader(`
logging:
  level: debug
  patterns:
    - pattern: spilink.ethernet
      level: warn
loop_interval: 20ms
components:
  - name: child
    api: widget
    model: spilink:builtin:config_test
    attributes:
      board: parent
      pin: 3
  - name: parent
    api: widget
    model: config_test
`), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "test.yaml")
	test.That(t, cfg.Logging.Level, test.ShouldEqual, logging.DEBUG)
	test.That(t, cfg.Logging.MaxSizeMB, test.ShouldEqual, 10)
	test.That(t, cfg.LoopInterval, test.ShouldEqual, 20*time.Millisecond)
	test.That(t, cfg.HighFrequencyInterval, test.ShouldEqual, DefaultHighFrequencyInterval)

	test.That(t, len(cfg.Components), test.ShouldEqual, 2)
	test.That(t, cfg.Components[0].Name, test.ShouldEqual, "parent")
	test.That(t, cfg.Components[1].Name, test.ShouldEqual, "child")
	test.That(t, cfg.Components[1].ImplicitDependsOn, test.ShouldResemble, []string{"parent"})

	native, err := resource.NativeConfig[*widgetConfig](*cfg.FindComponent("child"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, native.Pin, test.ShouldEqual, 3)
	test.That(t, cfg.FindComponent("nobody"), test.ShouldBeNil)
}

func TestFromReaderJSON(t *testing.T) {
	cfg, err := FromReader(context.Background(), "test.json", strings.NewReader(
		`{"components": [{"name": "w", "api": "widget", "model": "config_test", "attributes": {"pin": 1}}]}`),
		logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.LoopInterval, test.ShouldEqual, DefaultLoopInterval)
	test.That(t, cfg.Logging.Level, test.ShouldEqual, logging.INFO)
}

func TestFromReaderErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, tc := range []struct {
		name     string
		input    string
		contains string
	}{
		{"unknown field", "bogus: 1", "bogus"},
		{"bad level", "logging: {level: loud}", "unknown log level"},
		{"bad pattern", "logging: {patterns: [{pattern: 'a..b', level: info}]}", "invalid logger pattern"},
		{"unknown attribute", `components: [{name: w, api: widget, model: config_test, attributes: {pni: 1}}]`, "pni"},
		{"component validation", `components: [{name: w, api: widget, model: config_test, attributes: {pin: -1}}]`, "pin must not be negative"},
		{"missing name", `components: [{api: widget, model: config_test}]`, `"name" is required`},
		{"missing dependency", `components: [{name: w, api: widget, model: config_test, attributes: {board: b}}]`, "missing components"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader(context.Background(), "bad.yaml", strings.NewReader(tc.input), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
		})
	}
}

func TestSortComponents(t *testing.T) {
	mk := func(name string, deps ...string) resource.Config {
		return resource.Config{Name: name, API: widgetAPI, Model: widgetModel, DependsOn: deps}
	}

	sorted, err := SortComponents([]resource.Config{mk("c", "b"), mk("b", "a"), mk("a"), mk("d", "a", "c")})
	test.That(t, err, test.ShouldBeNil)
	names := make([]string, 0, len(sorted))
	for _, c := range sorted {
		names = append(names, c.Name)
	}
	test.That(t, names, test.ShouldResemble, []string{"a", "b", "c", "d"})

	_, err = SortComponents([]resource.Config{mk("a"), mk("a")})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not unique")

	_, err = SortComponents([]resource.Config{mk("a", "b"), mk("b", "a")})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "circular dependency")
}
