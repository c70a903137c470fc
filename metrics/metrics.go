// Package metrics exposes link supervision counters and gauges.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// A Recorder receives link supervision events from components.
type Recorder interface {
	// LinkState records the numeric link state of an Ethernet component.
	LinkState(component string, state int)
	// Reconnect counts one restarted address acquisition.
	Reconnect(component string)
	// USBState records the task state code of a USB host component.
	USBState(component string, code uint8)
	// DeviceConnected counts one USB device reaching the running state.
	DeviceConnected(component string)
}

// Instrumented is implemented by components that report to a Recorder.
type Instrumented interface {
	SetMetrics(rec Recorder)
}

// Noop is a Recorder that drops everything.
type Noop struct{}

// LinkState does nothing.
func (Noop) LinkState(string, int) {}

// Reconnect does nothing.
func (Noop) Reconnect(string) {}

// USBState does nothing.
func (Noop) USBState(string, uint8) {}

// DeviceConnected does nothing.
func (Noop) DeviceConnected(string) {}

// Prometheus is a Recorder backed by prometheus collectors.
type Prometheus struct {
	LinkStates     *prometheus.GaugeVec
	Reconnects     *prometheus.CounterVec
	USBStates      *prometheus.GaugeVec
	DeviceConnects *prometheus.CounterVec
}

// NewPrometheus registers the link collectors against `reg`, the default registerer when nil.
// Registering twice on the same registerer reuses the existing collectors.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	linkStates, err := registerVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spilink_ethernet_link_state",
		Help: "Ethernet link state: 0 stopped, 1 connecting, 2 connected.",
	}, []string{"component"}))
	if err != nil {
		return nil, err
	}
	reconnects, err := registerVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spilink_ethernet_reconnects_total",
		Help: "Number of restarted address acquisitions.",
	}, []string{"component"}))
	if err != nil {
		return nil, err
	}
	usbStates, err := registerVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spilink_usb_state",
		Help: "USB host task state code.",
	}, []string{"component"}))
	if err != nil {
		return nil, err
	}
	deviceConnects, err := registerVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spilink_usb_device_connects_total",
		Help: "Number of times a USB device reached the running state.",
	}, []string{"component"}))
	if err != nil {
		return nil, err
	}

	return &Prometheus{
		LinkStates:     linkStates,
		Reconnects:     reconnects,
		USBStates:      usbStates,
		DeviceConnects: deviceConnects,
	}, nil
}

func registerVec[T prometheus.Collector](reg prometheus.Registerer, vec T) (T, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return vec, errors.Wrap(err, "collector already registered with incompatible type")
		}
		return vec, err
	}
	return vec, nil
}

// LinkState sets the link state gauge.
func (p *Prometheus) LinkState(component string, state int) {
	p.LinkStates.WithLabelValues(component).Set(float64(state))
}

// Reconnect increments the reconnect counter.
func (p *Prometheus) Reconnect(component string) {
	p.Reconnects.WithLabelValues(component).Inc()
}

// USBState sets the USB state gauge.
func (p *Prometheus) USBState(component string, code uint8) {
	p.USBStates.WithLabelValues(component).Set(float64(code))
}

// DeviceConnected increments the device connect counter.
func (p *Prometheus) DeviceConnected(component string) {
	p.DeviceConnects.WithLabelValues(component).Inc()
}
