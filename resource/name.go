package resource

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Name represents a named instance of an API.
type Name struct {
	API  API
	Name string
}

// NewName creates a new resource Name.
func NewName(api API, name string) Name {
	return Name{API: api, Name: name}
}

// NewFromString creates a new Name from a string like `spilink:component:ethernet/eth0`.
func NewFromString(resourceName string) (Name, error) {
	apiStr, name, found := strings.Cut(resourceName, "/")
	if !found || name == "" {
		return Name{}, errors.Errorf("string %q is not a valid resource name", resourceName)
	}
	api, err := NewAPIFromString(apiStr)
	if err != nil {
		return Name{}, err
	}
	return NewName(api, name), nil
}

// Validate ensures that important fields exist and are valid.
func (n Name) Validate() error {
	if n.Name == "" {
		return errors.New("name field for resource is empty")
	}
	return n.API.Validate()
}

// String returns the fully qualified name for the resource.
func (n Name) String() string {
	return fmt.Sprintf("%s/%s", n.API, n.Name)
}

// ShortName returns the name without its API.
func (n Name) ShortName() string {
	return n.Name
}

// AsNamed returns a Named implementation for embedding in resources.
func (n Name) AsNamed() Named {
	return selfNamed{n}
}

type selfNamed struct {
	name Name
}

func (n selfNamed) Name() Name {
	return n.name
}

func (n selfNamed) DoNotImplement() {}
