// Package sensor defines the binary and text sensors that link components publish their state to.
package sensor

import (
	"context"

	"github.com/spilink/spilink/logging"
	"github.com/spilink/spilink/resource"
)

// SubtypeName is the name of the sensor API.
const SubtypeName = "sensor"

// API is a variable that identifies the sensor resource API.
var API = resource.APINamespaceSpilink.WithComponentType(SubtypeName)

var (
	// BinaryModel is the model of a sensor publishing a boolean state.
	BinaryModel = resource.DefaultModelFamily.WithModel("binary")
	// TextModel is the model of a sensor publishing a string state.
	TextModel = resource.DefaultModelFamily.WithModel("text")
)

// Named is a helper for getting the named sensor's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// A Sensor represents a general purpose sensor that can give arbitrary readings of some thing
// that it is sensing.
type Sensor interface {
	resource.Resource
	// Readings return data specific to the type of sensor and can be of any type.
	Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
}

// Config describes a published sensor.
type Config struct {
	// DeviceClass is a free form hint for consumers of the state, e.g. "connectivity".
	DeviceClass string `json:"device_class,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	return nil, nil
}

func init() {
	resource.RegisterComponent(API, BinaryModel, resource.Registration[*BinarySensor, *Config]{
		Constructor: func(
			ctx context.Context,
			_ resource.Dependencies,
			conf resource.Config,
			logger logging.Logger,
		) (*BinarySensor, error) {
			newConf, err := resource.NativeConfig[*Config](conf)
			if err != nil {
				return nil, err
			}
			return NewBinarySensor(conf.ResourceName().Name, newConf, logger), nil
		},
	})
	resource.RegisterComponent(API, TextModel, resource.Registration[*TextSensor, *Config]{
		Constructor: func(
			ctx context.Context,
			_ resource.Dependencies,
			conf resource.Config,
			logger logging.Logger,
		) (*TextSensor, error) {
			newConf, err := resource.NativeConfig[*Config](conf)
			if err != nil {
				return nil, err
			}
			return NewTextSensor(conf.ResourceName().Name, newConf, logger), nil
		},
	})
}

// BinaryFromDependencies returns the named binary sensor.
func BinaryFromDependencies(deps resource.Dependencies, name string) (*BinarySensor, error) {
	return resource.FromDependencies[*BinarySensor](deps, Named(name))
}

// TextFromDependencies returns the named text sensor.
func TextFromDependencies(deps resource.Dependencies, name string) (*TextSensor, error) {
	return resource.FromDependencies[*TextSensor](deps, Named(name))
}
