// Package protocol implements the framed binary codec for the LEGO Wireless
// Protocol as spoken over a hub's UART characteristic.
//
// Every message, in both directions, is framed as:
//
//	[length:u8] [hub id:u8 = 0] [message type:u8] [body...]
//
// where length counts the whole frame including itself. Decode strips the
// header and dispatches on the message type byte; Frame builds the inverse.
// Integers are little-endian, ranges are IEEE-754 float32 little-endian, and
// text fields are NUL-padded ASCII.
package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Inbound and outbound message type bytes.
const (
	TypeHubProperties       = 0x01
	TypePortInfoRequest     = 0x21
	TypePortModeInfoRequest = 0x22
	TypeInputFormatSetup    = 0x41
	TypeInputFormatCombo    = 0x42
	TypeAttachedIO          = 0x04
	TypePortInformation     = 0x43
	TypePortModeInformation = 0x44
	TypePortValue           = 0x45
	TypePortComboValue      = 0x46
	TypePortOutputCommand   = 0x81
	TypePortOutputFeedback  = 0x82
)

// ErrTruncated reports a message body shorter than its declared shape.
var ErrTruncated = errors.New("protocol: truncated message")

// UnknownMessageError is returned by Decode for message types or sub-types
// this engine does not understand. It is recoverable: the caller is expected
// to log the raw bytes and keep processing the stream.
type UnknownMessageError struct {
	Raw []byte
}

func (e *UnknownMessageError) Error() string {
	return fmt.Sprintf("protocol: unknown message %s", HexDump(e.Raw))
}

// HexDump renders raw message bytes the way they appear in session logs.
func HexDump(raw []byte) string {
	if len(raw) == 0 {
		return "(empty)"
	}
	return hex.EncodeToString(raw)
}

// Message is a decoded inbound protocol message.
type Message interface {
	// MessageType returns the wire type byte this message was decoded from.
	MessageType() byte
}

// Decode parses one raw notification payload into a typed message.
// A nil message with a *UnknownMessageError means the frame was well formed
// but carried a type (or sub-type) this engine does not handle.
func Decode(buf []byte) (Message, error) {
	if len(buf) < 3 {
		return nil, fmt.Errorf("%w: frame %s needs at least 3 bytes", ErrTruncated, HexDump(buf))
	}
	msgType := buf[2]
	body := buf[3:]

	switch msgType {
	case TypeHubProperties:
		return decodeHubProperties(body)
	case TypeAttachedIO:
		return decodeAttachedIO(body)
	case TypePortInformation:
		return decodePortInformation(body)
	case TypePortModeInformation:
		return decodePortModeInformation(body)
	case TypePortValue:
		return decodePortValue(body)
	case TypePortComboValue:
		return decodePortComboValue(body)
	case TypePortOutputFeedback:
		return decodePortOutputFeedback(body)
	default:
		return nil, &UnknownMessageError{Raw: buf[2:]}
	}
}

// Hub property identifiers (HubProperties.Property).
const (
	PropertyAdvertisingName = 0x01
	PropertyButton          = 0x02
	PropertyFWVersion       = 0x03
	PropertyHWVersion       = 0x04
	PropertyRSSI            = 0x05
	PropertyBatteryVoltage  = 0x06
	PropertyBatteryType     = 0x07
	PropertyManufacturer    = 0x08
	PropertyRadioFWVersion  = 0x09
	PropertyLWPVersion      = 0x0A
	PropertySystemTypeID    = 0x0B
	PropertyHWNetworkID     = 0x0C
	PropertyPrimaryMAC      = 0x0D
	PropertySecondaryMAC    = 0x0E
	PropertyHWNetworkFamily = 0x0F
)

// Hub property operations (HubProperties.Operation).
const (
	OperationSet            = 0x01
	OperationEnableUpdates  = 0x02
	OperationDisableUpdates = 0x03
	OperationReset          = 0x04
	OperationRequestUpdate  = 0x05
	OperationUpdate         = 0x06
)

var propertyNames = map[byte]string{
	PropertyAdvertisingName: "Advertising Name",
	PropertyButton:          "Button",
	PropertyFWVersion:       "FW Version",
	PropertyHWVersion:       "HW Version",
	PropertyRSSI:            "RSSI",
	PropertyBatteryVoltage:  "Battery Voltage",
	PropertyBatteryType:     "Battery Type",
	PropertyManufacturer:    "Manufacturer Name",
	PropertyRadioFWVersion:  "Radio FW Version",
	PropertyLWPVersion:      "LEGO Wireless Protocol Version",
	PropertySystemTypeID:    "System Type ID",
	PropertyHWNetworkID:     "HW Network ID",
	PropertyPrimaryMAC:      "Primary MAC Address",
	PropertySecondaryMAC:    "Secondary MAC Address",
	PropertyHWNetworkFamily: "HW Network Family",
}

var operationNames = map[byte]string{
	OperationSet:            "Set",
	OperationEnableUpdates:  "Enable Updates",
	OperationDisableUpdates: "Disable Updates",
	OperationReset:          "Reset",
	OperationRequestUpdate:  "Request Update",
	OperationUpdate:         "Update",
}

// HubProperties reports a hub-level property value or acknowledgement.
// A Button property with an Update operation doubles as the hub's physical
// button state report.
type HubProperties struct {
	Property  byte
	Operation byte
	Payload   []byte
}

func (m *HubProperties) MessageType() byte { return TypeHubProperties }

// PropertyName returns a human-readable name for the property byte.
func (m *HubProperties) PropertyName() string { return propertyNames[m.Property] }

// OperationName returns a human-readable name for the operation byte.
func (m *HubProperties) OperationName() string { return operationNames[m.Operation] }

// IsButtonUpdate reports whether this message carries the hub button state.
func (m *HubProperties) IsButtonUpdate() bool {
	return m.Property == PropertyButton && m.Operation == OperationUpdate
}

func decodeHubProperties(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: hub properties body %s", ErrTruncated, HexDump(body))
	}
	prop, op := body[0], body[1]
	if _, ok := propertyNames[prop]; !ok {
		return nil, &UnknownMessageError{Raw: body}
	}
	if _, ok := operationNames[op]; !ok {
		return nil, &UnknownMessageError{Raw: body}
	}
	return &HubProperties{Property: prop, Operation: op, Payload: body[2:]}, nil
}

// Attach event values (AttachedIO.Event).
const (
	IODetached        = 0x00
	IOAttached        = 0x01
	IOAttachedVirtual = 0x02
)

// AttachedIO reports a peripheral appearing on, or vanishing from, a port.
type AttachedIO struct {
	Port  byte
	Event byte

	// Attach and virtual attach only.
	DeviceID uint16

	// Attach only: raw hardware and software revisions, little-endian.
	HWVersion [4]byte
	SWVersion [4]byte

	// Virtual attach only: the two physical ports behind the virtual one.
	PortA byte
	PortB byte
}

func (m *AttachedIO) MessageType() byte { return TypeAttachedIO }

func decodeAttachedIO(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: attached io body %s", ErrTruncated, HexDump(body))
	}
	m := &AttachedIO{Port: body[0], Event: body[1]}
	rest := body[2:]

	switch m.Event {
	case IODetached:
		return m, nil
	case IOAttached:
		if len(rest) < 10 {
			return nil, fmt.Errorf("%w: attach body %s needs device id and versions", ErrTruncated, HexDump(body))
		}
		m.DeviceID = binary.LittleEndian.Uint16(rest[0:2])
		copy(m.HWVersion[:], rest[2:6])
		copy(m.SWVersion[:], rest[6:10])
		return m, nil
	case IOAttachedVirtual:
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: virtual attach body %s needs device id and port pair", ErrTruncated, HexDump(body))
		}
		m.DeviceID = binary.LittleEndian.Uint16(rest[0:2])
		m.PortA = rest[2]
		m.PortB = rest[3]
		return m, nil
	default:
		return nil, &UnknownMessageError{Raw: body}
	}
}

// Port information sub-types (second body byte of a 0x43 message).
const (
	PortInfoModeInfo     = 0x01
	PortInfoCombinations = 0x02
)

// PortInformation carries the mode bitmap and port capability flags
// (sub-type 1 of a port information reply).
type PortInformation struct {
	Port           byte
	Output         bool
	Input          bool
	Combinable     bool
	Synchronizable bool
	ModeCount      byte
	InputModes     uint16
	OutputModes    uint16
}

func (m *PortInformation) MessageType() byte { return TypePortInformation }

// PortCombinations lists the legal mode combinations for a combinable port
// (sub-type 2 of a port information reply).
type PortCombinations struct {
	Port         byte
	Combinations [][]byte
}

func (m *PortCombinations) MessageType() byte { return TypePortInformation }

func decodePortInformation(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: port information body %s", ErrTruncated, HexDump(body))
	}
	port, infoType := body[0], body[1]
	rest := body[2:]

	switch infoType {
	case PortInfoModeInfo:
		if len(rest) < 6 {
			return nil, fmt.Errorf("%w: port %d mode info %s", ErrTruncated, port, HexDump(body))
		}
		caps := rest[0]
		return &PortInformation{
			Port:           port,
			Output:         caps&(1<<0) != 0,
			Input:          caps&(1<<1) != 0,
			Combinable:     caps&(1<<2) != 0,
			Synchronizable: caps&(1<<3) != 0,
			ModeCount:      rest[1],
			InputModes:     binary.LittleEndian.Uint16(rest[2:4]),
			OutputModes:    binary.LittleEndian.Uint16(rest[4:6]),
		}, nil
	case PortInfoCombinations:
		m := &PortCombinations{Port: port}
		for len(rest) >= 2 {
			mask := binary.LittleEndian.Uint16(rest[0:2])
			rest = rest[2:]
			if mask == 0 {
				break
			}
			var modes []byte
			for i := 0; i < 16; i++ {
				if mask&(1<<i) != 0 {
					modes = append(modes, byte(i))
				}
			}
			m.Combinations = append(m.Combinations, modes)
		}
		return m, nil
	default:
		return nil, &UnknownMessageError{Raw: body}
	}
}

// Port mode information sub-types (PortModeInformation.InfoType).
const (
	ModeInfoName        = 0x00
	ModeInfoRawRange    = 0x01
	ModeInfoPctRange    = 0x02
	ModeInfoSIRange     = 0x03
	ModeInfoSymbol      = 0x04
	ModeInfoMapping     = 0x05
	ModeInfoValueFormat = 0x80
)

// Dataset numeric kinds (PortModeInformation.DatasetType).
const (
	Dataset8Bit  = 0x00
	Dataset16Bit = 0x01
	Dataset32Bit = 0x02
	DatasetFloat = 0x03
)

// PortModeInformation carries one piece of metadata about one mode of one
// port. InfoType selects which of the remaining fields is populated.
type PortModeInformation struct {
	Port     byte
	Mode     byte
	InfoType byte

	Name   string // ModeInfoName
	Symbol string // ModeInfoSymbol

	// ModeInfoRawRange, ModeInfoPctRange, ModeInfoSIRange.
	RangeMin float32
	RangeMax float32

	Mapping [2]byte // ModeInfoMapping

	// ModeInfoValueFormat.
	Datasets        byte
	DatasetType     byte
	DatasetFigures  byte
	DatasetDecimals byte
}

func (m *PortModeInformation) MessageType() byte { return TypePortModeInformation }

// DatasetTypeName names the dataset numeric kind for logging.
func (m *PortModeInformation) DatasetTypeName() string {
	switch m.DatasetType {
	case Dataset8Bit:
		return "8b"
	case Dataset16Bit:
		return "16b"
	case Dataset32Bit:
		return "32b"
	case DatasetFloat:
		return "float"
	default:
		return fmt.Sprintf("unknown(0x%02x)", m.DatasetType)
	}
}

func decodePortModeInformation(body []byte) (Message, error) {
	if len(body) < 3 {
		return nil, fmt.Errorf("%w: port mode information body %s", ErrTruncated, HexDump(body))
	}
	m := &PortModeInformation{Port: body[0], Mode: body[1], InfoType: body[2]}
	rest := body[3:]

	switch m.InfoType {
	case ModeInfoName:
		m.Name = decodePaddedASCII(rest)
	case ModeInfoSymbol:
		m.Symbol = decodePaddedASCII(rest)
	case ModeInfoRawRange, ModeInfoPctRange, ModeInfoSIRange:
		if len(rest) < 8 {
			return nil, fmt.Errorf("%w: port %d mode %d range %s", ErrTruncated, m.Port, m.Mode, HexDump(body))
		}
		m.RangeMin = math.Float32frombits(binary.LittleEndian.Uint32(rest[0:4]))
		m.RangeMax = math.Float32frombits(binary.LittleEndian.Uint32(rest[4:8]))
	case ModeInfoMapping:
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: port %d mode %d mapping %s", ErrTruncated, m.Port, m.Mode, HexDump(body))
		}
		m.Mapping[0] = rest[0]
		m.Mapping[1] = rest[1]
	case ModeInfoValueFormat:
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: port %d mode %d value format %s", ErrTruncated, m.Port, m.Mode, HexDump(body))
		}
		m.Datasets = rest[0]
		m.DatasetType = rest[1]
		m.DatasetFigures = rest[2]
		m.DatasetDecimals = rest[3]
	default:
		return nil, &UnknownMessageError{Raw: body}
	}
	return m, nil
}

func decodePaddedASCII(raw []byte) string {
	return strings.TrimRight(string(raw), "\x00")
}

// PortValue carries a single-mode sensor reading. Payload is the raw dataset
// bytes; the bound peripheral's capability model knows their shape.
type PortValue struct {
	Port    byte
	Payload []byte
}

func (m *PortValue) MessageType() byte { return TypePortValue }

func decodePortValue(body []byte) (Message, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("%w: port value body %s", ErrTruncated, HexDump(body))
	}
	return &PortValue{Port: body[0], Payload: body[1:]}, nil
}

// PortComboValue carries a combined-mode sensor reading. Payload starts with
// the reserved byte and presence bitmask described by the capability model.
type PortComboValue struct {
	Port    byte
	Payload []byte
}

func (m *PortComboValue) MessageType() byte { return TypePortComboValue }

func decodePortComboValue(body []byte) (Message, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("%w: port combo value body %s", ErrTruncated, HexDump(body))
	}
	return &PortComboValue{Port: body[0], Payload: body[1:]}, nil
}

// PortOutputFeedback acknowledges an output command on a port.
type PortOutputFeedback struct {
	Port     byte
	Feedback byte
}

func (m *PortOutputFeedback) MessageType() byte { return TypePortOutputFeedback }

// InProgress reports buffer empty with a command still executing.
func (m *PortOutputFeedback) InProgress() bool { return m.Feedback&0x01 != 0 }

// Completed reports buffer empty with the last command finished.
func (m *PortOutputFeedback) Completed() bool { return m.Feedback&0x02 != 0 }

// Discarded reports the command was dropped by the hub.
func (m *PortOutputFeedback) Discarded() bool { return m.Feedback&0x04 != 0 }

// Idle reports the port is idle.
func (m *PortOutputFeedback) Idle() bool { return m.Feedback&0x08 != 0 }

// Busy reports the command buffer is full.
func (m *PortOutputFeedback) Busy() bool { return m.Feedback&0x10 != 0 }

func decodePortOutputFeedback(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: output feedback body %s", ErrTruncated, HexDump(body))
	}
	return &PortOutputFeedback{Port: body[0], Feedback: body[1]}, nil
}
