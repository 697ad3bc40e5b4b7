// Package hub implements the protocol engine for one LEGO hub: the port
// attachment state machine, the dispatch of decoded messages to bound
// peripherals, the peripheral activation sequences and the motor ramp
// controller.
//
// All hub state is owned by the single goroutine running Run. The transport
// hands raw notifications off through a buffered channel, and outbound
// commands leave through another; those two channels are the only
// cross-thread boundaries.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brickline/brickline/internal/protocol"
)

// ButtonPort is the synthetic port number the hub's physical button is
// modeled on, so button reports flow through the ordinary value pipeline.
const ButtonPort = 255

// Transport writes raw frames to the hub. Implemented by the BLE
// characteristic wrapper; tests substitute a recorder.
type Transport interface {
	Write(data []byte) error
}

// Event is a peripheral-level notification handed to the optional event sink
// (the telemetry relay). Field names match the JSON the relay publishes.
type Event struct {
	Hub            string `json:"hub"`
	PeripheralType string `json:"peripheral_type"`
	PeripheralName string `json:"peripheral_name"`
	PeripheralPort int    `json:"peripheral_port"`
	Message        string `json:"message"`
}

// Options configures a Hub.
type Options struct {
	QueryPortInfo  bool
	InboundBuffer  int // raw notification queue depth (default 64)
	OutboundBuffer int // command queue depth (default 64)
	Logger         *slog.Logger
}

// Hub is the protocol engine for one connected hub device.
type Hub struct {
	name          string
	kind          Kind
	queryPortInfo bool
	log           *slog.Logger

	transport Transport
	inbound   chan []byte
	outbound  chan []byte

	ports       map[byte]*PortInfo
	byPort      map[byte]*Peripheral
	peripherals []*Peripheral // declaration order decides attach matching
	byName      map[string]*Peripheral

	sink func(Event)
}

// New creates a hub engine. No transport is required until Run.
func New(name string, kind Kind, opts Options) *Hub {
	if opts.InboundBuffer <= 0 {
		opts.InboundBuffer = 64
	}
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:          name,
		kind:          kind,
		queryPortInfo: opts.QueryPortInfo,
		log:           logger.With("hub", name),
		inbound:       make(chan []byte, opts.InboundBuffer),
		outbound:      make(chan []byte, opts.OutboundBuffer),
		ports:         make(map[byte]*PortInfo),
		byPort:        make(map[byte]*Peripheral),
		byName:        make(map[string]*Peripheral),
	}
}

// Name returns the hub's declared name.
func (h *Hub) Name() string { return h.name }

// Kind returns the hub's model identity.
func (h *Hub) Kind() Kind { return h.kind }

// SetTransport wires the outbound command path. Must be called before Run.
func (h *Hub) SetTransport(t Transport) { h.transport = t }

// SetEventSink registers an observer for peripheral-level events. Must be
// called before Run.
func (h *Hub) SetEventSink(sink func(Event)) { h.sink = sink }

// HandleNotification accepts one raw notification payload from the transport.
// Safe to call from the transport's callback thread: it only copies the bytes
// and enqueues them. A full queue drops the notification rather than block
// the BLE stack.
func (h *Hub) HandleNotification(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case h.inbound <- buf:
	default:
		h.log.Warn("inbound queue full, dropping notification", "raw", protocol.HexDump(buf))
	}
}

// Run processes messages until ctx is cancelled or a protocol-fatal error
// ends the session. Other hubs are unaffected by this hub's session ending.
func (h *Hub) Run(ctx context.Context) error {
	if h.transport == nil {
		return errors.New("hub: no transport configured")
	}

	writerDone := make(chan struct{})
	writerCtx, cancelWriter := context.WithCancel(ctx)
	defer cancelWriter()
	go h.writeLoop(writerCtx, writerDone)
	defer func() { <-writerDone }()

	h.synthesizeButtonAttach()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-h.inbound:
			if err := h.dispatch(raw); err != nil {
				h.log.Error("session terminated", "error", err, "raw", protocol.HexDump(raw))
				return err
			}
		}
	}
}

// writeLoop drains the outbound queue into the transport, preserving enqueue
// order.
func (h *Hub) writeLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-h.outbound:
			if err := h.transport.Write(frame); err != nil {
				h.log.Error("transport write failed", "error", err, "raw", protocol.HexDump(frame))
			}
		}
	}
}

// send enqueues an outbound frame. Blocks when the queue is full, which
// back-pressures activation bursts instead of reordering them.
func (h *Hub) send(frame []byte) {
	h.outbound <- frame
}

// synthesizeButtonAttach fakes an attach event on the reserved button port
// for any declared button peripheral. The hub never sends a real attach for
// its own button, but modeling it as a peripheral keeps the rest of the
// pipeline uniform.
func (h *Hub) synthesizeButtonAttach() {
	for _, p := range h.peripherals {
		if p.profile.DeviceID != buttonDeviceID || p.isBound() {
			continue
		}
		info := h.portInfo(ButtonPort)
		info.DeviceID = buttonDeviceID
		info.DeviceName = p.profile.Name()
		info.State = PortDetected
		if err := h.bind(p, ButtonPort, info); err != nil {
			h.log.Error("button attach failed", "peripheral", p.name, "error", err)
		}
	}
}

// dispatch decodes one raw frame and routes it. Unknown messages are logged
// as hex and skipped; a returned error is protocol-fatal for this session.
func (h *Hub) dispatch(raw []byte) error {
	msg, err := protocol.Decode(raw)
	if err != nil {
		var unknown *protocol.UnknownMessageError
		if errors.As(err, &unknown) {
			h.log.Warn("unhandled message", "raw", protocol.HexDump(unknown.Raw))
			return nil
		}
		return fmt.Errorf("hub: %w", err)
	}

	switch m := msg.(type) {
	case *protocol.AttachedIO:
		return h.handleAttachedIO(m)
	case *protocol.PortInformation:
		h.handlePortInformation(m)
	case *protocol.PortCombinations:
		h.handlePortCombinations(m)
	case *protocol.PortModeInformation:
		h.handlePortModeInformation(m)
	case *protocol.PortValue:
		return h.handleValue(m.Port, m.Payload)
	case *protocol.PortComboValue:
		return h.handleValue(m.Port, m.Payload)
	case *protocol.PortOutputFeedback:
		h.log.Debug("output feedback", "port", m.Port,
			"completed", m.Completed(), "discarded", m.Discarded(), "busy", m.Busy())
	case *protocol.HubProperties:
		h.handleHubProperties(m)
	default:
		h.log.Warn("unrouted message type", "type", fmt.Sprintf("0x%02x", msg.MessageType()))
	}
	return nil
}

// handleValue forwards a value payload to the peripheral bound on the port.
// Values for unbound ports are dropped.
func (h *Hub) handleValue(port byte, payload []byte) error {
	p, ok := h.byPort[port]
	if !ok {
		h.log.Debug("value for unbound port", "port", port, "raw", protocol.HexDump(payload))
		return nil
	}
	if err := p.update(payload); err != nil {
		return fmt.Errorf("hub: port %d: %w", port, err)
	}
	h.portInfo(port).State = PortStreaming
	if p.onChange != nil {
		p.onChange(p)
	}
	h.emit(p, fmt.Sprintf("value change %s", p.valueSummary()))
	return nil
}

// handleHubProperties logs property reports and rewrites button updates into
// the value pipeline on the reserved button port.
func (h *Hub) handleHubProperties(m *protocol.HubProperties) {
	h.log.Debug("hub property", "property", m.PropertyName(),
		"operation", m.OperationName(), "raw", protocol.HexDump(m.Payload))
	if !m.IsButtonUpdate() {
		return
	}
	if err := h.handleValue(ButtonPort, m.Payload); err != nil {
		h.log.Error("button value update failed", "error", err)
	}
}

func (h *Hub) emit(p *Peripheral, msg string) {
	if h.sink == nil {
		return
	}
	port := -1
	if n, ok := p.Port(); ok {
		port = int(n)
	}
	h.sink(Event{
		Hub:            h.name,
		PeripheralType: p.profile.Type,
		PeripheralName: p.name,
		PeripheralPort: port,
		Message:        msg,
	})
}
