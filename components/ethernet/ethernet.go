// Package ethernet brings up a W5500 SPI Ethernet chip and supervises its link. The link moves
// between Stopped, Connecting and Connected on scheduler ticks, driven by flags that platform
// events set from their own goroutine.
package ethernet

import (
	"context"
	"net/netip"

	"github.com/spilink/spilink/resource"
)

// SubtypeName is the name of the ethernet API.
const SubtypeName = "ethernet"

// API is a variable that identifies the ethernet resource API.
var API = resource.APINamespaceSpilink.WithComponentType(SubtypeName)

// Named is a helper for getting the named ethernet's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// FromDependencies is a helper for getting the named ethernet from a collection of dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Ethernet, error) {
	return resource.FromDependencies[Ethernet](deps, Named(name))
}

// An Ethernet is a supervised Ethernet link.
type Ethernet interface {
	resource.Resource

	// IsConnected is true iff the link state is Connected.
	IsConnected() bool
	IPAddress() netip.Addr
	UseAddress() string
	Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
}

// LinkState is the state of the link supervisor.
type LinkState int32

// Link states.
const (
	LinkStateStopped LinkState = iota
	LinkStateConnecting
	LinkStateConnected
)

func (s LinkState) String() string {
	switch s {
	case LinkStateStopped:
		return "stopped"
	case LinkStateConnecting:
		return "connecting"
	case LinkStateConnected:
		return "connected"
	}
	return "unknown"
}
