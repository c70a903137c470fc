// Package descriptor parses the standard USB descriptors read back from a device.
package descriptor

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Descriptor types.
const (
	TypeDevice        = 0x01
	TypeConfiguration = 0x02
	TypeString        = 0x03
	TypeInterface     = 0x04
	TypeEndpoint      = 0x05
	TypeHub           = 0x29
)

// Descriptor sizes.
const (
	DeviceSize        = 18
	ConfigurationSize = 9
	InterfaceSize     = 9
	EndpointSize      = 7
	HubMinSize        = 7
)

// ErrShortDescriptor is returned when a buffer is shorter than the descriptor it should hold.
var ErrShortDescriptor = errors.New("descriptor too short")

func checkSize(data []byte, size int, name string) error {
	if len(data) < size {
		return errors.Wrapf(ErrShortDescriptor, "%s descriptor needs %d bytes, got %d", name, size, len(data))
	}
	return nil
}

// Device is a device descriptor.
type Device struct {
	Length            uint8
	DescriptorType    uint8
	USBVersion        uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

// ParseDeviceDescriptor parses a device descriptor.
func ParseDeviceDescriptor(data []byte) (Device, error) {
	if err := checkSize(data, DeviceSize, "device"); err != nil {
		return Device{}, err
	}
	return Device{
		Length:            data[0],
		DescriptorType:    data[1],
		USBVersion:        binary.LittleEndian.Uint16(data[2:4]),
		DeviceClass:       data[4],
		DeviceSubClass:    data[5],
		DeviceProtocol:    data[6],
		MaxPacketSize0:    data[7],
		VendorID:          binary.LittleEndian.Uint16(data[8:10]),
		ProductID:         binary.LittleEndian.Uint16(data[10:12]),
		DeviceVersion:     binary.LittleEndian.Uint16(data[12:14]),
		ManufacturerIndex: data[14],
		ProductIndex:      data[15],
		SerialNumberIndex: data[16],
		NumConfigurations: data[17],
	}, nil
}

// Configuration is a configuration descriptor header.
type Configuration struct {
	Length             uint8
	DescriptorType     uint8
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	ConfigurationIndex uint8
	Attributes         uint8
	MaxPower           uint8
}

// ParseConfigurationDescriptor parses a configuration descriptor header.
func ParseConfigurationDescriptor(data []byte) (Configuration, error) {
	if err := checkSize(data, ConfigurationSize, "configuration"); err != nil {
		return Configuration{}, err
	}
	return Configuration{
		Length:             data[0],
		DescriptorType:     data[1],
		TotalLength:        binary.LittleEndian.Uint16(data[2:4]),
		NumInterfaces:      data[4],
		ConfigurationValue: data[5],
		ConfigurationIndex: data[6],
		Attributes:         data[7],
		MaxPower:           data[8],
	}, nil
}

// TotalLength reads wTotalLength from the first four bytes of a configuration descriptor.
func TotalLength(data []byte) (uint16, error) {
	if err := checkSize(data, 4, "configuration"); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data[2:4]), nil
}

// Interface is an interface descriptor.
type Interface struct {
	Length            uint8
	DescriptorType    uint8
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	InterfaceIndex    uint8
}

// ParseInterfaceDescriptor parses an interface descriptor.
func ParseInterfaceDescriptor(data []byte) (Interface, error) {
	if err := checkSize(data, InterfaceSize, "interface"); err != nil {
		return Interface{}, err
	}
	return Interface{
		Length:            data[0],
		DescriptorType:    data[1],
		InterfaceNumber:   data[2],
		AlternateSetting:  data[3],
		NumEndpoints:      data[4],
		InterfaceClass:    data[5],
		InterfaceSubClass: data[6],
		InterfaceProtocol: data[7],
		InterfaceIndex:    data[8],
	}, nil
}

// Endpoint is an endpoint descriptor.
type Endpoint struct {
	Length          uint8
	DescriptorType  uint8
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

// ParseEndpointDescriptor parses an endpoint descriptor.
func ParseEndpointDescriptor(data []byte) (Endpoint, error) {
	if err := checkSize(data, EndpointSize, "endpoint"); err != nil {
		return Endpoint{}, err
	}
	return Endpoint{
		Length:          data[0],
		DescriptorType:  data[1],
		EndpointAddress: data[2],
		Attributes:      data[3],
		MaxPacketSize:   binary.LittleEndian.Uint16(data[4:6]),
		Interval:        data[6],
	}, nil
}

// Hub is a hub class descriptor with wHubCharacteristics split into its fields.
type Hub struct {
	Length                  uint8
	DescriptorType          uint8
	NumPorts                uint8
	LogPwrSwitchMode        uint8
	CompoundDevice          bool
	OverCurrentProtectMode  uint8
	TTThinkTime             uint8
	PortIndicatorsSupported bool
	Reserved                uint8
	PwrOn2PwrGood           uint8
	HubContrCurrent         uint8
	// Trailing holds the variable length DeviceRemovable and PortPwrCtrlMask bytes.
	Trailing []byte
}

// ParseHubDescriptor parses a hub descriptor.
func ParseHubDescriptor(data []byte) (Hub, error) {
	if err := checkSize(data, HubMinSize, "hub"); err != nil {
		return Hub{}, err
	}
	characteristics := binary.LittleEndian.Uint16(data[3:5])
	end := int(data[0])
	if end > len(data) {
		end = len(data)
	}
	var trailing []byte
	if end > HubMinSize {
		trailing = append([]byte(nil), data[HubMinSize:end]...)
	}
	return Hub{
		Length:                  data[0],
		DescriptorType:          data[1],
		NumPorts:                data[2],
		LogPwrSwitchMode:        uint8(characteristics & 0x03),
		CompoundDevice:          characteristics&0x04 != 0,
		OverCurrentProtectMode:  uint8(characteristics>>3) & 0x03,
		TTThinkTime:             uint8(characteristics>>5) & 0x03,
		PortIndicatorsSupported: characteristics&0x80 != 0,
		Reserved:                uint8(characteristics >> 8),
		PwrOn2PwrGood:           data[5],
		HubContrCurrent:         data[6],
		Trailing:                trailing,
	}, nil
}
