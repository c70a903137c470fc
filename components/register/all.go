// Package register registers all components
package register

import (
	// register components.
	_ "github.com/spilink/spilink/components/board/fake"
	_ "github.com/spilink/spilink/components/board/periph"
	_ "github.com/spilink/spilink/components/ethernet"
	_ "github.com/spilink/spilink/components/sensor"
	_ "github.com/spilink/spilink/components/usbhost"
	// register simulated platforms and host libraries.
	_ "github.com/spilink/spilink/components/ethernet/fake"
	_ "github.com/spilink/spilink/components/usbhost/fake"
)
