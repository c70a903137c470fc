package usbhost

import "fmt"

// State is a task state code of the USB host library. The host task owns every transition; the
// component only observes the codes.
type State uint8

// Task state codes.
const (
	StateDetached                        State = 0x10
	StateDetachedInitialize              State = 0x11
	StateDetachedWaitForDevice           State = 0x12
	StateDetachedIllegal                 State = 0x13
	StateAttachedSettle                  State = 0x20
	StateAttachedResetDevice             State = 0x30
	StateAttachedWaitResetComplete       State = 0x40
	StateAttachedWaitSOF                 State = 0x50
	StateAttachedWaitReset               State = 0x51
	StateAttachedGetDeviceDescriptorSize State = 0x60
	StateAddressing                      State = 0x70
	StateConfiguring                     State = 0x80
	StateRunning                         State = 0x90
	StateError                           State = 0xa0
)

// UnknownStateName is the name of every code outside the vocabulary.
const UnknownStateName = "USB_STATE_UNKNOWN"

var stateNames = map[State]string{
	StateDetached:                        "USB_STATE_DETACHED",
	StateDetachedInitialize:              "USB_DETACHED_SUBSTATE_INITIALIZE",
	StateDetachedWaitForDevice:           "USB_DETACHED_SUBSTATE_WAIT_FOR_DEVICE",
	StateDetachedIllegal:                 "USB_DETACHED_SUBSTATE_ILLEGAL",
	StateAttachedSettle:                  "USB_ATTACHED_SUBSTATE_SETTLE",
	StateAttachedResetDevice:             "USB_ATTACHED_SUBSTATE_RESET_DEVICE",
	StateAttachedWaitResetComplete:       "USB_ATTACHED_SUBSTATE_WAIT_RESET_COMPLETE",
	StateAttachedWaitSOF:                 "USB_ATTACHED_SUBSTATE_WAIT_SOF",
	StateAttachedWaitReset:               "USB_ATTACHED_SUBSTATE_WAIT_RESET",
	StateAttachedGetDeviceDescriptorSize: "USB_ATTACHED_SUBSTATE_GET_DEVICE_DESCRIPTOR_SIZE",
	StateAddressing:                      "USB_STATE_ADDRESSING",
	StateConfiguring:                     "USB_STATE_CONFIGURING",
	StateRunning:                         "USB_STATE_RUNNING",
	StateError:                           "USB_STATE_ERROR",
}

// StateName returns the symbolic name of a state code.
func StateName(s State) string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return UnknownStateName
}

// String returns the symbolic name of the state.
func (s State) String() string {
	return StateName(s)
}

// States returns every known state code in ascending order.
func States() []State {
	return []State{
		StateDetached, StateDetachedInitialize, StateDetachedWaitForDevice, StateDetachedIllegal,
		StateAttachedSettle, StateAttachedResetDevice, StateAttachedWaitResetComplete,
		StateAttachedWaitSOF, StateAttachedWaitReset, StateAttachedGetDeviceDescriptorSize,
		StateAddressing, StateConfiguring, StateRunning, StateError,
	}
}

// RCode is a transfer result code of the USB host library. Zero is success and is never
// returned as an error.
type RCode uint8

var rcodeNames = map[RCode]string{
	0x01: "hrBUSY",
	0x02: "hrBADREQ",
	0x03: "hrUNDEF",
	0x04: "hrNAK",
	0x05: "hrSTALL",
	0x06: "hrTOGERR",
	0x07: "hrWRONGPID",
	0x08: "hrBADBC",
	0x09: "hrPIDERR",
	0x0a: "hrPKTERR",
	0x0b: "hrCRCERR",
	0x0c: "hrKERR",
	0x0d: "hrJERR",
	0x0e: "hrTIMEOUT",
	0x0f: "hrBABBLE",
	0xd6: "USB_ERROR_ADDRESS_NOT_FOUND_IN_POOL",
	0xdb: "USB_ERROR_EP_NOT_FOUND_IN_TBL",
	0xff: "USB_ERROR_TRANSFER_TIMEOUT",
}

func (c RCode) Error() string {
	if name, ok := rcodeNames[c]; ok {
		return fmt.Sprintf("usb transfer failed: %s (0x%02x)", name, uint8(c))
	}
	return fmt.Sprintf("usb transfer failed: 0x%02x", uint8(c))
}
