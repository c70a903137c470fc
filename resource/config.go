package resource

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/spilink/spilink/utils"
)

// A Config describes the configuration of a resource.
type Config struct {
	Name      string   `yaml:"name" json:"name"`
	API       API      `yaml:"api" json:"api"`
	Model     Model    `yaml:"model" json:"model"`
	DependsOn []string `yaml:"depends_on" json:"depends_on"`

	Attributes          utils.AttributeMap `yaml:"attributes" json:"attributes"`
	ConvertedAttributes ConfigValidator    `yaml:"-" json:"-"`
	ImplicitDependsOn   []string           `yaml:"-" json:"-"`
}

// A ConfigValidator validates a configuration and also
// returns dependencies that were implicitly discovered.
type ConfigValidator interface {
	Validate(path string) ([]string, error)
}

// NoNativeConfig is used by models that take no attributes.
type NoNativeConfig struct{}

// Validate always succeeds.
func (NoNativeConfig) Validate(path string) ([]string, error) {
	return nil, nil
}

var noNativeConfigType = reflect.TypeOf(NoNativeConfig{})

// NativeConfig returns the native config from the given config via its converted attributes.
func NativeConfig[T any](conf Config) (T, error) {
	return utils.AssertType[T](conf.ConvertedAttributes)
}

// ResourceName returns the Name for the component.
func (conf *Config) ResourceName() Name {
	return NewName(conf.API, conf.Name)
}

// Dependencies returns the deduplicated union of user-defined and implicit dependencies.
func (conf *Config) Dependencies() []string {
	result := make([]string, 0, len(conf.DependsOn)+len(conf.ImplicitDependsOn))
	seen := make(map[string]struct{})
	appendUniq := func(dep string) {
		if _, ok := seen[dep]; !ok {
			seen[dep] = struct{}{}
			result = append(result, dep)
		}
	}
	for _, dep := range conf.DependsOn {
		appendUniq(dep)
	}
	for _, dep := range conf.ImplicitDependsOn {
		appendUniq(dep)
	}
	return result
}

// String returns a verbose representation of the config.
func (conf *Config) String() string {
	return fmt.Sprintf("%#v", conf)
}

// Validate ensures all parts of the config are valid and returns dependencies.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Name == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if !utils.ValidNameRegex.MatchString(conf.Name) {
		return nil, utils.ErrInvalidName(conf.Name)
	}
	if err := conf.API.Validate(); err != nil {
		return nil, goutils.NewConfigValidationError(path, err)
	}
	if err := conf.Model.Validate(); err != nil {
		return nil, goutils.NewConfigValidationError(path, err)
	}
	if conf.ConvertedAttributes == nil {
		return nil, nil
	}
	return conf.ConvertedAttributes.Validate(path)
}

// TransformAttributeMap uses an attribute map to transform attributes to the prescribed format.
// Durations are parsed from strings and any field implementing encoding.TextUnmarshaler (such as
// netip.Addr) is decoded from its text form. Attributes that match no field are an error.
func TransformAttributeMap[T any](attributes utils.AttributeMap) (T, error) {
	var out T

	var forResult interface{}

	toT := reflect.TypeOf(out)
	if toT == nil {
		return out, nil
	}
	if toT.Kind() == reflect.Ptr {
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           forResult,
		Metadata:         &md,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return out, err
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return out, errors.Errorf("unknown attributes %q", md.Unused)
	}
	return out, nil
}
