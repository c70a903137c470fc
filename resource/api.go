package resource

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Namespace identifies the owner of a set of APIs and models.
type Namespace string

// APINamespaceSpilink is the namespace of every built-in API and model.
const APINamespaceSpilink = Namespace("spilink")

// APITypeComponentName is the type name of hardware backed resources.
const APITypeComponentName = "component"

var (
	reservedChars     = [...]string{":", "+"}
	apiRegexValidator = regexp.MustCompile(`^([\w-]+):([\w-]+):([\w-]+)$`)
)

// ContainsReservedCharacter returns an error if the string contains a reserved character.
func ContainsReservedCharacter(val string) error {
	for _, char := range reservedChars {
		if strings.Contains(val, char) {
			return errors.Errorf("reserved character %s used in name:%q", char, val)
		}
	}
	return nil
}

// APIType is the type of an API within a namespace, e.g. `spilink:component`.
type APIType struct {
	Namespace Namespace `json:"namespace"`
	Name      string    `json:"type"`
}

// WithComponentType returns an API with the given subtype name in the component type.
func (n Namespace) WithComponentType(subtypeName string) API {
	return API{APIType{n, APITypeComponentName}, subtypeName}
}

// Validate ensures that important fields exist and are valid.
func (t APIType) Validate() error {
	if t.Namespace == "" {
		return errors.New("namespace field for resource missing or invalid")
	}
	if t.Name == "" {
		return errors.New("type field for resource missing or invalid")
	}
	if err := ContainsReservedCharacter(string(t.Namespace)); err != nil {
		return err
	}
	return ContainsReservedCharacter(t.Name)
}

// String returns the resource type string for the component.
func (t APIType) String() string {
	return fmt.Sprintf("%s:%s", t.Namespace, t.Name)
}

// API represents a known component API, e.g. `spilink:component:ethernet`.
type API struct {
	Type        APIType
	SubtypeName string `json:"subtype"`
}

// NewAPI return a new API from a triplet like spilink:component:ethernet.
func NewAPI(namespace, typeName, subtypeName string) API {
	return API{APIType{Namespace(namespace), typeName}, subtypeName}
}

// NewAPIFromString returns an API from a string. A bare subtype name such as `ethernet` is taken
// to be a built-in component API.
func NewAPIFromString(apiStr string) (API, error) {
	if matches := apiRegexValidator.FindStringSubmatch(apiStr); matches != nil {
		return NewAPI(matches[1], matches[2], matches[3]), nil
	}
	if apiStr != "" && !strings.Contains(apiStr, ":") {
		return APINamespaceSpilink.WithComponentType(apiStr), nil
	}
	return API{}, errors.Errorf("string %q is not a valid api name", apiStr)
}

// IsComponent returns if this API is for a component.
func (a API) IsComponent() bool {
	return a.Type.Name == APITypeComponentName
}

// Validate ensures that important fields exist and are valid.
func (a API) Validate() error {
	if err := a.Type.Validate(); err != nil {
		return err
	}
	if a.SubtypeName == "" {
		return errors.New("subtype field for resource missing or invalid")
	}
	return ContainsReservedCharacter(a.SubtypeName)
}

// String returns the resource API string.
func (a API) String() string {
	return fmt.Sprintf("%s:%s", a.Type, a.SubtypeName)
}

// MarshalText encodes the API as its string form.
func (a API) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses either the full or the short form of an API.
func (a *API) UnmarshalText(text []byte) error {
	parsed, err := NewAPIFromString(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
