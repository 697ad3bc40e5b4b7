package hub

import (
	"errors"
	"fmt"
)

// ErrNotAttached is returned when an output command is issued for a
// peripheral that has not been bound to a physical port yet.
var ErrNotAttached = errors.New("hub: peripheral not attached to a port")

// DifferentPeripheralOnPortError is protocol-fatal: the hub reported a device
// on a port that was explicitly reserved for a different peripheral type.
type DifferentPeripheralOnPortError struct {
	Port       byte
	Peripheral string // declared peripheral name holding the reservation
	Declared   uint16 // device id the declaration expects
	Reported   uint16 // device id the hub reported
}

func (e *DifferentPeripheralOnPortError) Error() string {
	return fmt.Sprintf("hub: port %d is reserved for %q (device 0x%04x) but hub reported device 0x%04x",
		e.Port, e.Peripheral, e.Declared, e.Reported)
}

// UnknownDeviceError is protocol-fatal: an attach event carried a device id
// absent from the device registry.
type UnknownDeviceError struct {
	Port     byte
	DeviceID uint16
}

func (e *UnknownDeviceError) Error() string {
	return fmt.Sprintf("hub: unknown device id 0x%04x attached on port %d", e.DeviceID, e.Port)
}
