package protocol

import "encoding/binary"

// Combined-mode setup sub-commands (0x42 messages).
const (
	comboSetModeOrder = 0x01
	comboLock         = 0x02
	comboUnlockStart  = 0x03
)

// Port output sub-commands (0x81 messages).
const (
	subWriteDirectModeData  = 0x51
	subGotoAbsolutePosition = 0x0d
	subStartSpeedForDegrees = 0x0b
)

// Motor end states for positioning commands.
const (
	EndStateFloat = 0
	EndStateHold  = 126
	EndStateBrake = 127
)

// profileAccelDecel enables both the acceleration and deceleration profiles
// on positioning commands, matching what the official apps send.
const profileAccelDecel = 0x03

// executeImmediate requests immediate execution with command feedback.
const executeImmediate = 0x01

// Frame wraps a message body in the common header. The length byte counts the
// entire frame: itself, the hub id, the type byte, and the body.
func Frame(msgType byte, body []byte) []byte {
	frame := make([]byte, 0, 3+len(body))
	frame = append(frame, byte(3+len(body)), 0x00, msgType)
	return append(frame, body...)
}

// SetupInputFormat activates notifications for a single mode on a port.
// delta is the minimum change in sensed value that triggers an update.
func SetupInputFormat(port, mode byte, delta uint32, notify bool) []byte {
	body := make([]byte, 7)
	body[0] = port
	body[1] = mode
	binary.LittleEndian.PutUint32(body[2:6], delta)
	if notify {
		body[6] = 1
	}
	return Frame(TypeInputFormatSetup, body)
}

// LockPort locks a port for combined-mode setup. The hub buffers mode
// activations until UnlockAndStart.
func LockPort(port byte) []byte {
	return Frame(TypeInputFormatCombo, []byte{port, comboLock})
}

// UnlockAndStart ends combined-mode setup and starts multi-mode updates.
func UnlockAndStart(port byte) []byte {
	return Frame(TypeInputFormatCombo, []byte{port, comboUnlockStart})
}

// SetModeDatasetOrder fixes the reporting order for a combined-mode port.
// Each entry byte encodes (mode << 4) | dataset index; entries must appear in
// the order the modes were activated. Combination table row 0 is used, which
// is the only row LEGO firmware populates in practice.
func SetModeDatasetOrder(port byte, entries []byte) []byte {
	body := make([]byte, 0, 3+len(entries))
	body = append(body, port, comboSetModeOrder, 0x00)
	body = append(body, entries...)
	return Frame(TypeInputFormatCombo, body)
}

// ComboEntry encodes one dataset-order entry for SetModeDatasetOrder.
func ComboEntry(mode byte, dataset int) byte {
	return mode<<4 | byte(dataset)
}

// WriteDirectModeData issues an immediate output command carrying raw mode
// data, e.g. a motor power byte or an RGB triple.
func WriteDirectModeData(port, mode byte, data ...byte) []byte {
	body := make([]byte, 0, 4+len(data))
	body = append(body, port, executeImmediate, subWriteDirectModeData, mode)
	body = append(body, data...)
	return Frame(TypePortOutputCommand, body)
}

// GotoAbsolutePosition rotates a tacho motor to an absolute position in
// degrees, holding at the end.
func GotoAbsolutePosition(port byte, pos int32, speed, maxPower byte) []byte {
	body := make([]byte, 11)
	body[0] = port
	body[1] = executeImmediate
	body[2] = subGotoAbsolutePosition
	binary.LittleEndian.PutUint32(body[3:7], uint32(pos))
	body[7] = speed
	body[8] = maxPower
	body[9] = EndStateHold
	body[10] = profileAccelDecel
	return Frame(TypePortOutputCommand, body)
}

// StartSpeedForDegrees rotates a tacho motor the given number of degrees from
// its current position, direction taken from the sign of speed.
func StartSpeedForDegrees(port byte, degrees int32, speed, maxPower byte) []byte {
	body := make([]byte, 11)
	body[0] = port
	body[1] = executeImmediate
	body[2] = subStartSpeedForDegrees
	binary.LittleEndian.PutUint32(body[3:7], uint32(degrees))
	body[7] = speed
	body[8] = maxPower
	body[9] = EndStateHold
	body[10] = profileAccelDecel
	return Frame(TypePortOutputCommand, body)
}

// SubscribeButtonReports enables hub button updates via the hub properties
// channel. Button state then arrives as HubProperties update messages.
func SubscribeButtonReports() []byte {
	return Frame(TypeHubProperties, []byte{PropertyButton, OperationEnableUpdates})
}

// RequestPortInformation queries a port for its mode bitmap (PortInfoModeInfo)
// or legal mode combinations (PortInfoCombinations).
func RequestPortInformation(port, infoType byte) []byte {
	return Frame(TypePortInfoRequest, []byte{port, infoType})
}

// RequestPortModeInformation queries one metadata item (name, range, symbol,
// mapping, value format) for one mode of a port.
func RequestPortModeInformation(port, mode, infoType byte) []byte {
	return Frame(TypePortModeInfoRequest, []byte{port, mode, infoType})
}
