package usbhost

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/spilink/spilink/components/usbhost/descriptor"
)

const noData = "-"

// DeviceStrings are the string descriptors a device descriptor points at.
type DeviceStrings struct {
	Manufacturer string
	Product      string
	SerialNumber string
}

func orNoData(s string) string {
	if s == "" {
		return noData
	}
	return s
}

// readString reads string descriptor `index` in the first language the device lists.
func (u *MAX3421E) readString(addr DeviceAddress, index uint8) (string, error) {
	head, err := u.host.StringDescriptor(addr, 0, 0, 1)
	if err != nil {
		return "", errors.Wrap(err, "language table length")
	}
	if len(head) < 1 {
		return "", errors.New("empty language table")
	}
	table, err := u.host.StringDescriptor(addr, 0, 0, uint16(head[0]))
	if err != nil {
		return "", errors.Wrap(err, "language table")
	}
	langID, err := descriptor.LanguageID(table)
	if err != nil {
		return "", err
	}
	head, err = u.host.StringDescriptor(addr, index, langID, 1)
	if err != nil {
		return "", errors.Wrapf(err, "string %d length", index)
	}
	if len(head) < 1 {
		return "", errors.Errorf("empty string %d", index)
	}
	buf, err := u.host.StringDescriptor(addr, index, langID, uint16(head[0]))
	if err != nil {
		return "", errors.Wrapf(err, "string %d", index)
	}
	s, err := descriptor.DecodeString(buf, descriptor.MaxStringChars)
	if errors.Is(err, descriptor.ErrStringTruncated) {
		u.logger.Warnw("string descriptor truncated", "index", index, "max_chars", descriptor.MaxStringChars)
		return s, nil
	}
	return s, err
}

func (u *MAX3421E) readStrings(addr DeviceAddress) (DeviceStrings, error) {
	var strs DeviceStrings
	raw, err := u.host.DeviceDescriptor(addr)
	if err != nil {
		return strs, errors.Wrap(err, "device descriptor")
	}
	dev, err := descriptor.ParseDeviceDescriptor(raw)
	if err != nil {
		return strs, err
	}
	return u.readDeviceStrings(addr, dev)
}

func (u *MAX3421E) readDeviceStrings(addr DeviceAddress, dev descriptor.Device) (DeviceStrings, error) {
	var strs DeviceStrings
	var errs error
	for _, field := range []struct {
		index uint8
		dst   *string
	}{
		{dev.ManufacturerIndex, &strs.Manufacturer},
		{dev.ProductIndex, &strs.Product},
		{dev.SerialNumberIndex, &strs.SerialNumber},
	} {
		if field.index == 0 {
			continue
		}
		s, err := u.readString(addr, field.index)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		*field.dst = s
	}
	return strs, errs
}

// dumpDevices logs every enumerated device. With verbose set the device descriptor and every
// configuration descriptor are logged too.
func (u *MAX3421E) dumpDevices(verbose bool) {
	for _, addr := range u.host.Devices() {
		u.logger.Infof("Addr: %x (Hub: %x, Prnt: %x, Dev: %x)", uint8(addr), addr.Hub(), addr.Parent(), addr.Device())

		raw, err := u.host.DeviceDescriptor(addr)
		if err != nil {
			u.logger.Errorw("cannot read device descriptor", "addr", uint8(addr), "error", err)
			continue
		}
		dev, err := descriptor.ParseDeviceDescriptor(raw)
		if err != nil {
			u.logger.Errorw("cannot parse device descriptor", "addr", uint8(addr), "error", err)
			continue
		}
		strs, err := u.readDeviceStrings(addr, dev)
		if err != nil {
			u.logger.Errorw("cannot read device strings", "addr", uint8(addr), "error", err)
		}

		u.logger.Info("Device descriptor:")
		u.logger.Infof("  Manufacturer:              %s", orNoData(strs.Manufacturer))
		u.logger.Infof("  Product:                   %s", orNoData(strs.Product))
		u.logger.Infof("  Serial number:             %s", orNoData(strs.SerialNumber))
		if !verbose {
			continue
		}
		u.dumpDeviceDescriptor(dev)
		for conf := uint8(0); conf < dev.NumConfigurations; conf++ {
			u.dumpConfiguration(addr, conf)
		}
	}
}

func (u *MAX3421E) dumpDeviceDescriptor(dev descriptor.Device) {
	u.logger.Infof("  Descriptor Length:         %02X", dev.Length)
	u.logger.Infof("  Descriptor type:           %02X", dev.DescriptorType)
	u.logger.Infof("  USB version:               %04X", dev.USBVersion)
	u.logger.Infof("  Device class:              %02X", dev.DeviceClass)
	u.logger.Infof("  Device Subclass:           %02X", dev.DeviceSubClass)
	u.logger.Infof("  Device Protocol:           %02X", dev.DeviceProtocol)
	u.logger.Infof("  Max.packet size:           %02X", dev.MaxPacketSize0)
	u.logger.Infof("  Vendor ID:                 %04X", dev.VendorID)
	u.logger.Infof("  Product ID:                %04X", dev.ProductID)
	u.logger.Infof("  Revision ID:               %04X", dev.DeviceVersion)
	u.logger.Infof("  Mfg.string index:          %02X", dev.ManufacturerIndex)
	u.logger.Infof("  Prod.string index:         %02X", dev.ProductIndex)
	u.logger.Infof("  Serial number index:       %02X", dev.SerialNumberIndex)
	u.logger.Infof("  Number of conf.:           %02X", dev.NumConfigurations)
}

// dumpConfiguration reads configuration `conf` into a buffer bounded by the configured maximum
// and logs every record in it. A longer descriptor is truncated with a warning.
func (u *MAX3421E) dumpConfiguration(addr DeviceAddress, conf uint8) {
	head, err := u.host.ConfigDescriptor(addr, conf, 4)
	if err != nil {
		u.logger.Errorw("cannot read configuration descriptor", "conf", conf, "error", err)
		return
	}
	total, err := descriptor.TotalLength(head)
	if err != nil {
		u.logger.Errorw("cannot read configuration descriptor", "conf", conf, "error", err)
		return
	}
	length, truncated := descriptor.ClampLength(total, u.settings.maxConfigDescriptorLength)
	if truncated {
		u.logger.Warnf("Configuration Descriptor with 0x%04X total length truncated to 0x%04X bytes", total, length)
	}
	buf, err := u.host.ConfigDescriptor(addr, conf, uint16(length))
	if err != nil {
		u.logger.Errorw("cannot read configuration descriptor", "conf", conf, "error", err)
		return
	}
	if len(buf) > length {
		buf = buf[:length]
	}

	err = descriptor.Walk(buf, func(rec descriptor.Record) error {
		u.dumpRecord(rec)
		return nil
	})
	switch {
	case err == nil:
	case truncated && errors.Is(err, descriptor.ErrRecordCutOff):
		u.logger.Debugw("skipped record cut off by truncation", "conf", conf, "error", err)
	default:
		u.logger.Warnw("stopped walking configuration descriptor", "conf", conf, "error", err)
	}
}

func (u *MAX3421E) dumpRecord(rec descriptor.Record) {
	switch rec.Type {
	case descriptor.TypeConfiguration:
		if c, err := descriptor.ParseConfigurationDescriptor(rec.Raw); err == nil {
			u.logger.Info("  Configuration descriptor:")
			u.logger.Infof("    Total length:            %04X", c.TotalLength)
			u.logger.Infof("    Num.intf:                %02X", c.NumInterfaces)
			u.logger.Infof("    Conf.value:              %02X", c.ConfigurationValue)
			u.logger.Infof("    Conf.string:             %02X", c.ConfigurationIndex)
			u.logger.Infof("    Attr.:                   %02X", c.Attributes)
			u.logger.Infof("    Max.pwr:                 %02X", c.MaxPower)
			return
		}
	case descriptor.TypeInterface:
		if i, err := descriptor.ParseInterfaceDescriptor(rec.Raw); err == nil {
			u.logger.Info("  Interface descriptor:")
			u.logger.Infof("    Intf.number:             %02X", i.InterfaceNumber)
			u.logger.Infof("    Alt.:                    %02X", i.AlternateSetting)
			u.logger.Infof("    Endpoints:               %02X", i.NumEndpoints)
			u.logger.Infof("    Intf. Class:             %02X", i.InterfaceClass)
			u.logger.Infof("    Intf. Subclass:          %02X", i.InterfaceSubClass)
			u.logger.Infof("    Intf. Protocol:          %02X", i.InterfaceProtocol)
			u.logger.Infof("    Intf.string:             %02X", i.InterfaceIndex)
			return
		}
	case descriptor.TypeEndpoint:
		if e, err := descriptor.ParseEndpointDescriptor(rec.Raw); err == nil {
			u.logger.Info("  Endpoint descriptor:")
			u.logger.Infof("    Endpoint address:        %02X", e.EndpointAddress)
			u.logger.Infof("    Attr.:                   %02X", e.Attributes)
			u.logger.Infof("    Max.pkt size:            %04X", e.MaxPacketSize)
			u.logger.Infof("    Polling interval:        %02X", e.Interval)
			return
		}
	case descriptor.TypeHub:
		if h, err := descriptor.ParseHubDescriptor(rec.Raw); err == nil {
			u.logger.Info("  Hub descriptor:")
			u.logger.Infof("    Desc.length:             %02X", h.Length)
			u.logger.Infof("    Desc.type:               %02X", h.DescriptorType)
			u.logger.Infof("    Num.ports:               %02X", h.NumPorts)
			u.logger.Infof("    Log.pwr.switch.mode:     %02X", h.LogPwrSwitchMode)
			u.logger.Infof("    Compound device:         %t", h.CompoundDevice)
			u.logger.Infof("    Over current prot.mode:  %02X", h.OverCurrentProtectMode)
			u.logger.Infof("    TT think time:           %02X", h.TTThinkTime)
			u.logger.Infof("    Port indicators:         %t", h.PortIndicatorsSupported)
			u.logger.Infof("    Reserved:                %02X", h.Reserved)
			u.logger.Infof("    Pwr.on to pwr.good:      %02X", h.PwrOn2PwrGood)
			u.logger.Infof("    Hub contr.current:       %02X", h.HubContrCurrent)
			u.logger.Infof("    Trailing:                %s", orNoData(hex.EncodeToString(h.Trailing)))
			return
		}
	}
	u.logger.Info("  Unknown descriptor:")
	u.logger.Infof("    Length:                  %02X", rec.Length)
	u.logger.Infof("    Type:                    %02X", rec.Type)
	u.logger.Infof("    Contents:                %s", orNoData(hex.EncodeToString(rec.Body)))
}
