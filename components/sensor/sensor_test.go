package sensor

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
)

func TestBinarySensorPublish(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	s := NewBinarySensor("usb_connected", &Config{DeviceClass: "connectivity"}, logger)

	_, has := s.State()
	test.That(t, has, test.ShouldBeFalse)

	test.That(t, s.PublishState(false), test.ShouldBeTrue)
	test.That(t, s.PublishState(false), test.ShouldBeFalse)
	test.That(t, s.PublishState(true), test.ShouldBeTrue)
	test.That(t, logs.FilterMessageSnippet("publishing state").Len(), test.ShouldEqual, 2)

	state, has := s.State()
	test.That(t, has, test.ShouldBeTrue)
	test.That(t, state, test.ShouldBeTrue)

	readings, err := s.Readings(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["state"], test.ShouldEqual, true)
	test.That(t, readings["publishes"], test.ShouldEqual, 2)
	test.That(t, readings["device_class"], test.ShouldEqual, "connectivity")
}

func TestTextSensorPublish(t *testing.T) {
	s := NewTextSensor("usb_info", nil, logging.NewTestLogger(t))
	test.That(t, s.PublishState(""), test.ShouldBeTrue)
	test.That(t, s.PublishState("Acme|Widget|0001"), test.ShouldBeTrue)
	test.That(t, s.PublishState("Acme|Widget|0001"), test.ShouldBeFalse)

	state, has := s.State()
	test.That(t, has, test.ShouldBeTrue)
	test.That(t, state, test.ShouldEqual, "Acme|Widget|0001")
}

func TestSensorRegistration(t *testing.T) {
	reg, ok := resource.LookupRegistration(API, TextModel)
	test.That(t, ok, test.ShouldBeTrue)
	conv, err := reg.AttributeMapConverter(map[string]interface{}{"device_class": "info"})
	test.That(t, err, test.ShouldBeNil)

	res, err := reg.Constructor(context.Background(), nil, resource.Config{
		Name: "usb_info", API: API, Model: TextModel, ConvertedAttributes: conv,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	deps := resource.Dependencies{Named("usb_info"): res}
	s, err := TextFromDependencies(deps, "usb_info")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Name().ShortName(), test.ShouldEqual, "usb_info")

	_, err = BinaryFromDependencies(deps, "usb_info")
	test.That(t, err, test.ShouldNotBeNil)
}
