package sensor

import (
	"context"
	"sync"

	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
)

// publisher holds the last published state of a sensor. Publishing the same state twice is a
// no-op so that consumers only see edges.
type publisher[T comparable] struct {
	mu       sync.Mutex
	state    T
	hasState bool
	count    int
}

func (p *publisher[T]) publish(state T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasState && p.state == state {
		return false
	}
	p.state = state
	p.hasState = true
	p.count++
	return true
}

func (p *publisher[T]) get() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.hasState
}

func (p *publisher[T]) readings(conf *Config) map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]interface{}{
		"has_state":    p.hasState,
		"state":        p.state,
		"publishes":    p.count,
		"device_class": conf.DeviceClass,
	}
}

// A BinarySensor publishes a boolean state.
type BinarySensor struct {
	resource.Named
	resource.TriviallyCloseable

	conf   *Config
	pub    publisher[bool]
	logger logging.Logger
}

// NewBinarySensor returns a binary sensor with no state.
func NewBinarySensor(name string, conf *Config, logger logging.Logger) *BinarySensor {
	if conf == nil {
		conf = &Config{}
	}
	return &BinarySensor{Named: Named(name).AsNamed(), conf: conf, logger: logger}
}

// PublishState records `state` and reports whether it differs from the previous one.
func (s *BinarySensor) PublishState(state bool) bool {
	changed := s.pub.publish(state)
	if changed {
		s.logger.Debugw("publishing state", "sensor", s.Name().ShortName(), "state", state)
	}
	return changed
}

// State returns the last published state and whether anything was published yet.
func (s *BinarySensor) State() (bool, bool) {
	return s.pub.get()
}

// Readings returns the published state.
func (s *BinarySensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	return s.pub.readings(s.conf), nil
}

// A TextSensor publishes a string state.
type TextSensor struct {
	resource.Named
	resource.TriviallyCloseable

	conf   *Config
	pub    publisher[string]
	logger logging.Logger
}

// NewTextSensor returns a text sensor with no state.
func NewTextSensor(name string, conf *Config, logger logging.Logger) *TextSensor {
	if conf == nil {
		conf = &Config{}
	}
	return &TextSensor{Named: Named(name).AsNamed(), conf: conf, logger: logger}
}

// PublishState records `state` and reports whether it differs from the previous one.
func (s *TextSensor) PublishState(state string) bool {
	changed := s.pub.publish(state)
	if changed {
		s.logger.Debugw("publishing state", "sensor", s.Name().ShortName(), "state", state)
	}
	return changed
}

// State returns the last published state and whether anything was published yet.
func (s *TextSensor) State() (string, bool) {
	return s.pub.get()
}

// Readings returns the published state.
func (s *TextSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	return s.pub.readings(s.conf), nil
}
