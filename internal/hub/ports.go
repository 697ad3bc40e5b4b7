package hub

import (
	"github.com/brickline/brickline/internal/device"
	"github.com/brickline/brickline/internal/protocol"
)

// PortState tracks where a port is in its attach lifecycle.
type PortState int

const (
	PortUnknown PortState = iota
	PortDetected
	PortBound
	PortActivated
	PortStreaming
	PortDetached
)

func (s PortState) String() string {
	switch s {
	case PortDetected:
		return "detected"
	case PortBound:
		return "bound"
	case PortActivated:
		return "activated"
	case PortStreaming:
		return "streaming"
	case PortDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// ModeInfo accumulates the metadata the hub reports for one mode of a port.
type ModeInfo struct {
	Name   string
	Symbol string
	Input  bool
	Output bool

	RawMin, RawMax float32
	PctMin, PctMax float32
	SIMin, SIMax   float32

	Mapping [2]byte

	Datasets        byte
	DatasetType     byte
	DatasetFigures  byte
	DatasetDecimals byte
}

// PortInfo is the harvested metadata for one physical or virtual port. It is
// created lazily on the first attach or query reply naming the port and only
// discarded at hub teardown.
type PortInfo struct {
	DeviceID   uint16
	DeviceName string
	State      PortState

	Input          bool
	Output         bool
	Combinable     bool
	Synchronizable bool

	Modes            map[byte]*ModeInfo
	ModeCombinations [][]byte

	// Virtual ports are backed by a pair of physical ports.
	Virtual bool
	PortA   byte
	PortB   byte
}

func (h *Hub) portInfo(port byte) *PortInfo {
	info, ok := h.ports[port]
	if !ok {
		info = &PortInfo{Modes: make(map[byte]*ModeInfo)}
		h.ports[port] = info
	}
	return info
}

func (info *PortInfo) mode(mode byte) *ModeInfo {
	m, ok := info.Modes[mode]
	if !ok {
		m = &ModeInfo{}
		info.Modes[mode] = m
	}
	return m
}

// handleAttachedIO drives the port state machine for attach, virtual attach
// and detach events. Unknown device ids and fixed-port mismatches are
// protocol-fatal; an attach nothing was declared for is dropped.
func (h *Hub) handleAttachedIO(m *protocol.AttachedIO) error {
	if m.Event == protocol.IODetached {
		h.handleDetach(m.Port)
		return nil
	}

	name, ok := device.Name(m.DeviceID)
	if !ok {
		return &UnknownDeviceError{Port: m.Port, DeviceID: m.DeviceID}
	}

	info := h.portInfo(m.Port)
	info.DeviceID = m.DeviceID
	info.DeviceName = name
	info.State = PortDetected
	if m.Event == protocol.IOAttachedVirtual {
		info.Virtual = true
		info.PortA = m.PortA
		info.PortB = m.PortB
		h.log.Info("virtual port attached", "port", m.Port, "device", name,
			"portA", m.PortA, "portB", m.PortB)
	} else {
		h.log.Info("port attached", "port", m.Port, "device", name,
			"hw", m.HWVersion, "sw", m.SWVersion)
	}

	if h.queryPortInfo {
		h.send(protocol.RequestPortInformation(m.Port, protocol.PortInfoModeInfo))
	}

	p, err := h.matchPeripheral(m.Port, m.DeviceID)
	if err != nil {
		return err
	}
	if p == nil {
		// Physically present, but nothing declared cares about it.
		h.log.Debug("no declared peripheral for attach", "port", m.Port, "device", name)
		return nil
	}
	return h.bind(p, m.Port, info)
}

// matchPeripheral finds the declared peripheral an attach event belongs to.
// A reservation for this exact port wins and must agree on the device type;
// otherwise the first declared, still-unbound peripheral of the reported
// device type takes the port. Declaration order decides ties.
func (h *Hub) matchPeripheral(port byte, deviceID uint16) (*Peripheral, error) {
	for _, p := range h.peripherals {
		if p.reservesPort(port) {
			if p.profile.DeviceID != deviceID {
				return nil, &DifferentPeripheralOnPortError{
					Port:       port,
					Peripheral: p.name,
					Declared:   p.profile.DeviceID,
					Reported:   deviceID,
				}
			}
			return p, nil
		}
	}
	for _, p := range h.peripherals {
		if !p.fixed && !p.isBound() && p.profile.DeviceID == deviceID {
			return p, nil
		}
	}
	return nil, nil
}

func (h *Hub) bind(p *Peripheral, port byte, info *PortInfo) error {
	p.bindPort(port)
	h.byPort[port] = p
	info.State = PortBound
	h.log.Info("peripheral bound", "peripheral", p.name, "port", port)

	if err := p.activate(); err != nil {
		return err
	}
	info.State = PortActivated
	h.emit(p, "attached")
	return nil
}

// handleDetach marks the port detached and clears the peripheral binding so a
// later attach, on this or any other port of the same device type, can rebind
// it.
func (h *Hub) handleDetach(port byte) {
	info := h.portInfo(port)
	info.State = PortDetached
	p, ok := h.byPort[port]
	if !ok {
		h.log.Debug("detach on unbound port", "port", port)
		return
	}
	delete(h.byPort, port)
	p.unbindPort()
	h.log.Info("peripheral detached", "peripheral", p.name, "port", port)
	h.emit(p, "detached")
}

func (h *Hub) handlePortInformation(m *protocol.PortInformation) {
	info := h.portInfo(m.Port)
	info.Input = m.Input
	info.Output = m.Output
	info.Combinable = m.Combinable
	info.Synchronizable = m.Synchronizable
	for i := 0; i < 16; i++ {
		if m.InputModes&(1<<i) != 0 {
			info.mode(byte(i)).Input = true
		}
		if m.OutputModes&(1<<i) != 0 {
			info.mode(byte(i)).Output = true
		}
	}
	h.log.Debug("port information", "port", m.Port, "modes", m.ModeCount,
		"combinable", m.Combinable)

	if h.queryPortInfo {
		h.queryModeDetails(m.Port, info)
	}
}

// queryModeDetails asks the hub for the deep per-mode metadata. This is very
// chatty, which is why it hides behind the query_port_info flag.
func (h *Hub) queryModeDetails(port byte, info *PortInfo) {
	if info.Combinable {
		h.send(protocol.RequestPortInformation(port, protocol.PortInfoCombinations))
	}
	infoTypes := []byte{
		protocol.ModeInfoName,
		protocol.ModeInfoValueFormat,
		protocol.ModeInfoRawRange,
		protocol.ModeInfoPctRange,
		protocol.ModeInfoSIRange,
		protocol.ModeInfoSymbol,
		protocol.ModeInfoMapping,
	}
	for mode := 0; mode < 16; mode++ {
		if _, ok := info.Modes[byte(mode)]; !ok {
			continue
		}
		for _, it := range infoTypes {
			h.send(protocol.RequestPortModeInformation(port, byte(mode), it))
		}
	}
}

func (h *Hub) handlePortCombinations(m *protocol.PortCombinations) {
	info := h.portInfo(m.Port)
	info.ModeCombinations = m.Combinations
	h.log.Debug("port mode combinations", "port", m.Port, "combinations", m.Combinations)
}

func (h *Hub) handlePortModeInformation(m *protocol.PortModeInformation) {
	mode := h.portInfo(m.Port).mode(m.Mode)
	switch m.InfoType {
	case protocol.ModeInfoName:
		mode.Name = m.Name
	case protocol.ModeInfoSymbol:
		mode.Symbol = m.Symbol
	case protocol.ModeInfoRawRange:
		mode.RawMin, mode.RawMax = m.RangeMin, m.RangeMax
	case protocol.ModeInfoPctRange:
		mode.PctMin, mode.PctMax = m.RangeMin, m.RangeMax
	case protocol.ModeInfoSIRange:
		mode.SIMin, mode.SIMax = m.RangeMin, m.RangeMax
	case protocol.ModeInfoMapping:
		mode.Mapping = m.Mapping
	case protocol.ModeInfoValueFormat:
		mode.Datasets = m.Datasets
		mode.DatasetType = m.DatasetType
		mode.DatasetFigures = m.DatasetFigures
		mode.DatasetDecimals = m.DatasetDecimals
	}
	h.log.Debug("port mode information", "port", m.Port, "mode", m.Mode,
		"info", m.InfoType)
}

// Port returns the harvested metadata for a port, if any has arrived.
func (h *Hub) Port(port byte) (*PortInfo, bool) {
	info, ok := h.ports[port]
	return info, ok
}
