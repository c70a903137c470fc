package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/spilink/spilink/components/ethernet"
	"github.com/spilink/spilink/components/usbhost"
	"github.com/spilink/spilink/resource"
)

// ModelsAction prints every registered API/model pair along with the ethernet platforms and USB
// host libraries they can drive.
func ModelsAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "API", "Model"})
	for i, apiModel := range resource.RegisteredAPIModels() {
		t.AppendRow(table.Row{fmt.Sprintf("%d", i+1), apiModel.API.String(), apiModel.Model.String()})
	}
	printf(c.App.Writer, "%s", t.Render())
	printf(c.App.Writer, "ethernet platforms: %v", ethernet.RegisteredPlatforms())
	printf(c.App.Writer, "usb host libraries: %v", usbhost.RegisteredHosts())
	return nil
}

// USBStatesAction prints the USB host task state codes and their names.
func USBStatesAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Code", "State"})
	for _, s := range usbhost.States() {
		t.AppendRow(table.Row{fmt.Sprintf("0x%02X", uint8(s)), s.String()})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}
