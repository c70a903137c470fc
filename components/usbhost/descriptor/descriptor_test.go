package descriptor

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

var (
	configRecord  = []byte{0x09, TypeConfiguration, 0x0e, 0x00, 0x01, 0x01, 0x00, 0x80, 0x32}
	unknownRecord = []byte{0x05, 0xff, 0xaa, 0xbb, 0xcc}
)

func TestParseDeviceDescriptor(t *testing.T) {
	raw := []byte{
		0x12, TypeDevice, 0x00, 0x02, 0x00, 0x00, 0x00, 0x40,
		0x6b, 0x1d, 0x04, 0x01, 0x00, 0x01, 0x01, 0x02, 0x03, 0x01,
	}
	dev, err := ParseDeviceDescriptor(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.USBVersion, test.ShouldEqual, uint16(0x0200))
	test.That(t, dev.VendorID, test.ShouldEqual, uint16(0x1d6b))
	test.That(t, dev.ProductID, test.ShouldEqual, uint16(0x0104))
	test.That(t, dev.ManufacturerIndex, test.ShouldEqual, uint8(1))
	test.That(t, dev.SerialNumberIndex, test.ShouldEqual, uint8(3))
	test.That(t, dev.NumConfigurations, test.ShouldEqual, uint8(1))

	_, err = ParseDeviceDescriptor(raw[:10])
	test.That(t, errors.Is(err, ErrShortDescriptor), test.ShouldBeTrue)
}

func TestParseRecords(t *testing.T) {
	conf, err := ParseConfigurationDescriptor(configRecord)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.TotalLength, test.ShouldEqual, uint16(14))
	test.That(t, conf.MaxPower, test.ShouldEqual, uint8(0x32))

	total, err := TotalLength(configRecord[:4])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, total, test.ShouldEqual, uint16(14))

	intf, err := ParseInterfaceDescriptor([]byte{0x09, TypeInterface, 0x00, 0x00, 0x02, 0x03, 0x01, 0x02, 0x00})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, intf.NumEndpoints, test.ShouldEqual, uint8(2))
	test.That(t, intf.InterfaceClass, test.ShouldEqual, uint8(3))

	ep, err := ParseEndpointDescriptor([]byte{0x07, TypeEndpoint, 0x81, 0x03, 0x08, 0x00, 0x0a})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ep.EndpointAddress, test.ShouldEqual, uint8(0x81))
	test.That(t, ep.MaxPacketSize, test.ShouldEqual, uint16(8))

	_, err = ParseEndpointDescriptor([]byte{0x07, TypeEndpoint})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParseHubDescriptor(t *testing.T) {
	// 4 ports, individual power switching, compound, per port over-current, 16 FS bit times,
	// port indicators.
	hub, err := ParseHubDescriptor([]byte{0x09, TypeHub, 0x04, 0xad, 0x00, 0x32, 0x64, 0x00, 0xff})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, hub.NumPorts, test.ShouldEqual, uint8(4))
	test.That(t, hub.LogPwrSwitchMode, test.ShouldEqual, uint8(1))
	test.That(t, hub.CompoundDevice, test.ShouldBeTrue)
	test.That(t, hub.OverCurrentProtectMode, test.ShouldEqual, uint8(1))
	test.That(t, hub.TTThinkTime, test.ShouldEqual, uint8(1))
	test.That(t, hub.PortIndicatorsSupported, test.ShouldBeTrue)
	test.That(t, hub.PwrOn2PwrGood, test.ShouldEqual, uint8(0x32))
	test.That(t, hub.HubContrCurrent, test.ShouldEqual, uint8(0x64))
	test.That(t, hub.Trailing, test.ShouldResemble, []byte{0x00, 0xff})
}

func TestWalk(t *testing.T) {
	buf := append(append([]byte{}, configRecord...), unknownRecord...)

	var records []Record
	err := Walk(buf, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(records), test.ShouldEqual, 2)
	test.That(t, records[0].Type, test.ShouldEqual, uint8(TypeConfiguration))
	test.That(t, records[0].Length, test.ShouldEqual, uint8(9))
	test.That(t, records[1].Type, test.ShouldEqual, uint8(0xff))
	test.That(t, records[1].Offset, test.ShouldEqual, 9)
	test.That(t, records[1].Body, test.ShouldResemble, []byte{0xaa, 0xbb, 0xcc})

	t.Run("record past the end", func(t *testing.T) {
		var seen int
		err := Walk(buf[:12], func(Record) error {
			seen++
			return nil
		})
		test.That(t, errors.Is(err, ErrMalformedRecord), test.ShouldBeTrue)
		test.That(t, errors.Is(err, ErrRecordCutOff), test.ShouldBeTrue)
		test.That(t, seen, test.ShouldEqual, 1)
	})

	t.Run("header past the end", func(t *testing.T) {
		err := Walk(buf[:10], func(Record) error { return nil })
		test.That(t, errors.Is(err, ErrRecordCutOff), test.ShouldBeTrue)
	})

	t.Run("zero length record", func(t *testing.T) {
		err := Walk([]byte{0x00, 0x02, 0x00}, func(Record) error { return nil })
		test.That(t, errors.Is(err, ErrMalformedRecord), test.ShouldBeTrue)
		test.That(t, errors.Is(err, ErrRecordCutOff), test.ShouldBeFalse)
	})

	t.Run("callback error stops the walk", func(t *testing.T) {
		stop := errors.New("stop")
		var seen int
		err := Walk(buf, func(Record) error {
			seen++
			return stop
		})
		test.That(t, err, test.ShouldEqual, stop)
		test.That(t, seen, test.ShouldEqual, 1)
	})
}

func TestClampLength(t *testing.T) {
	n, truncated := ClampLength(0x0120, 0xff)
	test.That(t, n, test.ShouldEqual, 0xff)
	test.That(t, truncated, test.ShouldBeTrue)

	n, truncated = ClampLength(0x20, 0xff)
	test.That(t, n, test.ShouldEqual, 0x20)
	test.That(t, truncated, test.ShouldBeFalse)
}

func stringDescriptor(s string) []byte {
	buf := []byte{0, TypeString}
	for _, r := range s {
		buf = append(buf, byte(r), byte(r>>8))
	}
	buf[0] = byte(len(buf))
	return buf
}

func TestDecodeString(t *testing.T) {
	s, err := DecodeString(stringDescriptor("Acme"), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, "Acme")

	s, err = DecodeString(stringDescriptor("Grüße"), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, "Grüße")

	s, err = DecodeString(stringDescriptor("ABCDEFGH"), 4)
	test.That(t, errors.Is(err, ErrStringTruncated), test.ShouldBeTrue)
	test.That(t, s, test.ShouldEqual, "ABCD")

	long := stringDescriptor(strings.Repeat("x", MaxStringChars))
	s, err = DecodeString(long, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(s), test.ShouldEqual, MaxStringChars)

	_, err = DecodeString([]byte{0x04, TypeDevice, 0x41, 0x00}, 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLanguageID(t *testing.T) {
	id, err := LanguageID([]byte{0x04, TypeString, 0x09, 0x04})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, uint16(0x0409))

	_, err = LanguageID([]byte{0x02, TypeString})
	test.That(t, err, test.ShouldNotBeNil)
}
