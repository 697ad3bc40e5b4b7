package hub

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brickline/brickline/internal/device"
	"github.com/brickline/brickline/internal/protocol"
)

const buttonDeviceID = device.IDButton

// CapabilityRequest names one capability to activate, with an optional update
// threshold (0 means the profile default).
type CapabilityRequest struct {
	Name  string
	Delta uint32
}

// Declaration is the static, user-authored description of one peripheral.
type Declaration struct {
	Type         string // device profile name, e.g. "vision_sensor"
	Name         string
	Port         *byte // reserve an exact port; nil binds the first match
	Capabilities []CapabilityRequest

	// OnChange is invoked on the hub's engine goroutine after each decoded
	// value update. Required when any capability is requested.
	OnChange func(*Peripheral)
}

type resolvedCapability struct {
	device.Capability
	delta uint32
}

// Peripheral is a declared peripheral plus its runtime binding state. The
// engine goroutine mutates it; accessors take the mutex so other goroutines
// (motor ramps, the caller's control code) can read safely.
type Peripheral struct {
	hub     *Hub
	name    string
	profile *device.Profile
	caps    []resolvedCapability

	fixed     bool
	fixedPort byte

	onChange func(*Peripheral)

	mu      sync.Mutex
	bound   bool
	port    byte
	values  map[byte]device.Value
	lastRaw []byte // raw payload for peripherals with no declared capabilities
}

// Attach validates a declaration and registers the peripheral on the hub.
// Every violation here is configuration-fatal and reported before any
// transport connection exists.
func (h *Hub) Attach(decl Declaration) (*Peripheral, error) {
	profile, err := device.Lookup(decl.Type)
	if err != nil {
		return nil, err
	}
	if decl.Name == "" {
		return nil, fmt.Errorf("hub: peripheral of type %q needs a name", decl.Type)
	}
	if _, ok := h.byName[decl.Name]; ok {
		return nil, fmt.Errorf("hub: duplicate peripheral name %q on hub %q", decl.Name, h.name)
	}
	if len(decl.Capabilities) > 0 && decl.OnChange == nil {
		return nil, fmt.Errorf("hub: peripheral %q requests capabilities but has no change handler", decl.Name)
	}

	caps := make([]resolvedCapability, 0, len(decl.Capabilities))
	for _, req := range decl.Capabilities {
		c, ok := profile.Capability(req.Name)
		if !ok {
			return nil, fmt.Errorf("hub: peripheral %q: type %q has no capability %q",
				decl.Name, decl.Type, req.Name)
		}
		if len(decl.Capabilities) > 1 && !profile.ComboAllowed(c.Mode) {
			return nil, fmt.Errorf("hub: peripheral %q: capability %q cannot be combined with others",
				decl.Name, req.Name)
		}
		delta := req.Delta
		if delta == 0 {
			delta = profile.DefaultDelta
		}
		caps = append(caps, resolvedCapability{Capability: c, delta: delta})
	}

	p := &Peripheral{
		hub:      h,
		name:     decl.Name,
		profile:  profile,
		onChange: decl.OnChange,
		values:   make(map[byte]device.Value),
	}
	if decl.Port != nil {
		p.fixed = true
		p.fixedPort = *decl.Port
	}
	p.caps = caps

	h.peripherals = append(h.peripherals, p)
	h.byName[decl.Name] = p
	return p, nil
}

// Peripheral looks up a declared peripheral by name.
func (h *Hub) Peripheral(name string) (*Peripheral, bool) {
	p, ok := h.byName[name]
	return p, ok
}

// Name returns the declared peripheral name.
func (p *Peripheral) Name() string { return p.name }

// Type returns the declaration type name.
func (p *Peripheral) Type() string { return p.profile.Type }

// Port returns the bound physical port, if any.
func (p *Peripheral) Port() (byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port, p.bound
}

// Value returns the latest decoded reading for a capability.
func (p *Peripheral) Value(capName string) (device.Value, bool) {
	c, ok := p.profile.Capability(capName)
	if !ok {
		return device.Value{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[c.Mode]
	return v, ok
}

// Raw returns the last undecoded payload, for peripherals declared with no
// capabilities.
func (p *Peripheral) Raw() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRaw
}

// WaitBound polls until the peripheral has been bound to a port.
func (p *Peripheral) WaitBound(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p.isBound() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("hub: waiting for %q to attach: %w", p.name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *Peripheral) isBound() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bound
}

func (p *Peripheral) reservesPort(port byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return (p.fixed && p.fixedPort == port) || (p.bound && p.port == port)
}

func (p *Peripheral) bindPort(port byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bound = true
	p.port = port
}

func (p *Peripheral) unbindPort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bound = false
}

// activate enqueues the input-format setup sequence for the bound port. One
// capability is a plain setup; several require the lock / per-mode setup /
// dataset order / unlock dance. Output-only quirk devices get their notify
// mode enabled, and the hub button subscribes via the properties channel.
func (p *Peripheral) activate() error {
	p.mu.Lock()
	if !p.bound {
		p.mu.Unlock()
		return ErrNotAttached
	}
	port := p.port
	p.values = make(map[byte]device.Value)
	p.mu.Unlock()

	switch {
	case p.profile.DeviceID == buttonDeviceID:
		p.hub.send(protocol.SubscribeButtonReports())
	case len(p.caps) == 0:
		if p.profile.NotifyOnAttach {
			p.hub.send(protocol.SetupInputFormat(port, p.profile.NotifyMode, 1, true))
		}
	case len(p.caps) == 1:
		c := p.caps[0]
		p.hub.send(protocol.SetupInputFormat(port, c.Mode, c.delta, true))
	default:
		p.hub.send(protocol.LockPort(port))
		for _, c := range p.caps {
			p.hub.send(protocol.SetupInputFormat(port, c.Mode, c.delta, true))
		}
		var entries []byte
		for _, c := range p.caps {
			for i := 0; i < c.Shape.Count; i++ {
				entries = append(entries, protocol.ComboEntry(c.Mode, i))
			}
		}
		p.hub.send(protocol.SetModeDatasetOrder(port, entries))
		p.hub.send(protocol.UnlockAndStart(port))
	}
	return nil
}

// update decodes one value payload according to the declared capability
// count: none stores the raw bytes, one decodes a single-mode payload, and
// several decode a combined-mode payload.
func (p *Peripheral) update(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch len(p.caps) {
	case 0:
		p.lastRaw = append(p.lastRaw[:0], payload...)
		return nil
	case 1:
		v, err := device.DecodeSingle(p.caps[0].Capability, payload)
		if err != nil {
			return err
		}
		p.values[p.caps[0].Mode] = v
		return nil
	default:
		caps := make([]device.Capability, len(p.caps))
		for i, c := range p.caps {
			caps[i] = c.Capability
		}
		return device.DecodeCombo(caps, p.values, payload)
	}
}

// valueSummary renders current readings for event sinks and logs.
func (p *Peripheral) valueSummary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.caps) == 0 {
		return protocol.HexDump(p.lastRaw)
	}
	parts := make([]string, 0, len(p.values))
	for mode, v := range p.values {
		for _, c := range p.caps {
			if c.Mode == mode {
				parts = append(parts, fmt.Sprintf("%s=%s", c.Name, v))
			}
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// SetOutput issues a WriteDirectModeData output command on the bound port.
func (p *Peripheral) SetOutput(mode byte, data ...byte) error {
	p.mu.Lock()
	if !p.bound {
		p.mu.Unlock()
		return ErrNotAttached
	}
	port := p.port
	p.mu.Unlock()
	p.hub.send(protocol.WriteDirectModeData(port, mode, data...))
	return nil
}

// SetColor sets a preset color on hub and RGB lights (mode 0).
func (p *Peripheral) SetColor(c device.Color) error {
	return p.SetOutput(0, byte(c))
}

// SetBrightness drives an external light. Range -100..100; 0 is off and both
// extremes are full brightness.
func (p *Peripheral) SetBrightness(brightness int) error {
	return p.SetOutput(0, byte(int8(brightness)))
}

// Sound is one of the Duplo speaker's preset sounds.
type Sound byte

const (
	SoundBrake   Sound = 3
	SoundStation Sound = 5
	SoundWater   Sound = 7
	SoundHorn    Sound = 9
	SoundSteam   Sound = 10
)

// PlaySound plays a preset sound on the Duplo speaker (mode 1).
func (p *Peripheral) PlaySound(s Sound) error {
	return p.SetOutput(1, byte(s))
}
