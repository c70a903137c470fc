package resource

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// DefaultModelFamily is the family of every built-in model.
var DefaultModelFamily = ModelFamily{APINamespaceSpilink, "builtin"}

var (
	modelRegexValidator      = regexp.MustCompile(`^([\w-]+):([\w-]+):([\w-]+)$`)
	shortModelRegexValidator = regexp.MustCompile(`^([\w-]+)$`)
)

// ModelFamily is a family of related models.
type ModelFamily struct {
	Namespace Namespace `json:"namespace"`
	Name      string    `json:"model_family"`
}

// WithModel returns a new model with the given name.
func (f ModelFamily) WithModel(name string) Model {
	return Model{f, name}
}

// Validate ensures that important fields exist and are valid.
func (f ModelFamily) Validate() error {
	if f.Namespace == "" {
		return errors.New("namespace field for model missing")
	}
	if f.Name == "" {
		return errors.New("model_family field for model missing")
	}
	if err := ContainsReservedCharacter(string(f.Namespace)); err != nil {
		return err
	}
	return ContainsReservedCharacter(f.Name)
}

// String returns the model family string for the resource.
func (f ModelFamily) String() string {
	return fmt.Sprintf("%s:%s", f.Namespace, f.Name)
}

// Model represents an individual model within a family.
type Model struct {
	Family ModelFamily
	Name   string
}

func builtinModel(name string) Model {
	return DefaultModelFamily.WithModel(name)
}

// NewModelFromString creates a new Model from a fully qualified `ns:family:name` string or a bare
// built-in model name.
func NewModelFromString(modelStr string) (Model, error) {
	if matches := modelRegexValidator.FindStringSubmatch(modelStr); matches != nil {
		return ModelFamily{Namespace(matches[1]), matches[2]}.WithModel(matches[3]), nil
	}
	if shortModelRegexValidator.MatchString(modelStr) {
		return builtinModel(modelStr), nil
	}
	return Model{}, errors.Errorf("string %q is not a valid model name", modelStr)
}

// Validate ensures that important fields exist and are valid.
func (m Model) Validate() error {
	if err := m.Family.Validate(); err != nil {
		return err
	}
	if m.Name == "" {
		return errors.New("name field for model missing")
	}
	return ContainsReservedCharacter(m.Name)
}

// String returns the resource model string for the component.
func (m Model) String() string {
	return fmt.Sprintf("%s:%s", m.Family, m.Name)
}

// MarshalText encodes the model as its string form.
func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses either the full or the short form of a model.
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := NewModelFromString(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
