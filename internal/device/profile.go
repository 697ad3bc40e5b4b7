package device

import "fmt"

// Shape describes the wire layout of one capability's readings: how many
// datasets each update carries and how wide each dataset is.
type Shape struct {
	Count  int  // datasets per reading, e.g. 3 for RGB
	Width  int  // bytes per dataset: 1, 2 or 4
	Signed bool // interpret datasets as two's complement
}

// Capability is one sensing mode of a device type. Mode is the
// protocol-assigned mode number sent in setup commands and encoded into
// combined-mode dataset ordering.
type Capability struct {
	Name  string
	Mode  byte
	Shape Shape
}

// Profile is the static description of one peripheral type. Capabilities are
// in protocol order; AllowedCombo lists the mode numbers that may be
// activated together (empty means every capability must be activated alone).
type Profile struct {
	Type         string // declaration type name, e.g. "vision_sensor"
	DeviceID     uint16
	Capabilities []Capability
	AllowedCombo []byte
	DefaultDelta uint32 // default update threshold

	// Motor marks devices that accept speed output on mode 0.
	Motor bool
	// Tacho marks motors that also accept positioning commands.
	Tacho bool

	// NotifyOnAttach marks output devices that still need an input-format
	// setup on NotifyMode before output commands take effect (Duplo speaker).
	NotifyOnAttach bool
	NotifyMode     byte
}

// Name returns the registry display name for this profile's device id.
func (p *Profile) Name() string {
	name, _ := Name(p.DeviceID)
	return name
}

// Capability finds a capability by name.
func (p *Profile) Capability(name string) (Capability, bool) {
	for _, c := range p.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// ComboAllowed reports whether a mode may take part in combined-mode sensing.
func (p *Profile) ComboAllowed(mode byte) bool {
	for _, m := range p.AllowedCombo {
		if m == mode {
			return true
		}
	}
	return false
}

// profiles is keyed by declaration type name. The shapes and combos mirror
// the capabilities each physical device actually reports.
var profiles = map[string]*Profile{
	"wedo_motor": {
		DeviceID: IDWedoMotor,
		Motor:    true,
	},
	"train_motor": {
		DeviceID: IDTrainMotor,
		Motor:    true,
	},
	"duplo_train_motor": {
		DeviceID: IDDuploTrainMotor,
		Motor:    true,
	},
	"button": {
		DeviceID: IDButton,
		Capabilities: []Capability{
			{Name: "sense_press", Mode: 0, Shape: Shape{Count: 1, Width: 1}},
		},
		AllowedCombo: []byte{0},
	},
	"light": {
		DeviceID: IDLight,
	},
	"rgb_light": {
		DeviceID: IDRGBLight,
	},
	"duplo_speaker": {
		DeviceID:       IDDuploSpeaker,
		NotifyOnAttach: true,
		NotifyMode:     1,
	},
	"voltage_sensor": {
		DeviceID: IDVoltage,
		Capabilities: []Capability{
			{Name: "sense_s", Mode: 0, Shape: Shape{Count: 1, Width: 2}},
			{Name: "sense_l", Mode: 1, Shape: Shape{Count: 1, Width: 2}},
		},
	},
	"current_sensor": {
		DeviceID: IDCurrent,
		Capabilities: []Capability{
			{Name: "sense_s", Mode: 0, Shape: Shape{Count: 1, Width: 2}},
			{Name: "sense_l", Mode: 1, Shape: Shape{Count: 1, Width: 2}},
		},
	},
	"external_tilt_sensor": {
		DeviceID: IDExternalTilt,
		Capabilities: []Capability{
			{Name: "sense_angle", Mode: 0, Shape: Shape{Count: 2, Width: 1, Signed: true}},
			{Name: "sense_orientation", Mode: 1, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_impact", Mode: 2, Shape: Shape{Count: 3, Width: 1}},
		},
	},
	"motion_sensor": {
		DeviceID: IDMotionSensor,
		Capabilities: []Capability{
			{Name: "sense_distance", Mode: 0, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_count", Mode: 1, Shape: Shape{Count: 1, Width: 4}},
		},
	},
	"vision_sensor": {
		DeviceID: IDVisionSensor,
		Capabilities: []Capability{
			{Name: "sense_color", Mode: 0, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_distance", Mode: 1, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_count", Mode: 2, Shape: Shape{Count: 1, Width: 4}},
			{Name: "sense_reflectivity", Mode: 3, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_ambient", Mode: 4, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_rgb", Mode: 6, Shape: Shape{Count: 3, Width: 2}},
		},
		AllowedCombo: []byte{0, 1, 2, 3, 6},
	},
	"internal_tilt_sensor": {
		DeviceID: IDInternalTilt,
		Capabilities: []Capability{
			{Name: "sense_angle", Mode: 0, Shape: Shape{Count: 2, Width: 1, Signed: true}},
			{Name: "sense_tilt", Mode: 1, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_orientation", Mode: 2, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_impact", Mode: 3, Shape: Shape{Count: 1, Width: 4}},
			{Name: "sense_acceleration_3_axis", Mode: 4, Shape: Shape{Count: 3, Width: 1, Signed: true}},
		},
		AllowedCombo: []byte{0, 1, 2, 3, 4},
	},
	"duplo_vision_sensor": {
		DeviceID: IDDuploVision,
		Capabilities: []Capability{
			{Name: "sense_color", Mode: 0, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_ctag", Mode: 1, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_reflectivity", Mode: 2, Shape: Shape{Count: 1, Width: 1}},
			{Name: "sense_rgb", Mode: 3, Shape: Shape{Count: 3, Width: 2}},
		},
		AllowedCombo: []byte{0, 1, 2, 3},
	},
	"duplo_speedometer": {
		DeviceID: IDDuploSpeedometer,
		Capabilities: []Capability{
			{Name: "sense_speed", Mode: 0, Shape: Shape{Count: 1, Width: 2, Signed: true}},
			{Name: "sense_count", Mode: 1, Shape: Shape{Count: 1, Width: 4, Signed: true}},
		},
		AllowedCombo: []byte{0, 1},
	},
	"remote_buttons": {
		DeviceID: IDRemoteButtons,
		Capabilities: []Capability{
			{Name: "sense_press", Mode: 4, Shape: Shape{Count: 3, Width: 1}},
		},
	},
	"external_motor": {
		DeviceID:     IDExternalMotor,
		Capabilities: tachoCapabilities,
		AllowedCombo: []byte{1, 2},
		Motor:        true,
		Tacho:        true,
	},
	"internal_motor": {
		DeviceID:     IDInternalMotor,
		Capabilities: tachoCapabilities,
		AllowedCombo: []byte{1, 2},
		// The built-in tachos oscillate; a wider default threshold keeps the
		// update stream quiet.
		DefaultDelta: 2,
		Motor:        true,
		Tacho:        true,
	},
	"technic_large_motor": {
		DeviceID:     IDTechnicLargeMotor,
		Capabilities: tachoCapabilities,
		AllowedCombo: []byte{1, 2},
		Motor:        true,
		Tacho:        true,
	},
	"technic_xl_motor": {
		DeviceID:     IDTechnicXLMotor,
		Capabilities: tachoCapabilities,
		AllowedCombo: []byte{1, 2},
		Motor:        true,
		Tacho:        true,
	},
}

// tachoCapabilities is shared by every motor with a built-in tachometer.
var tachoCapabilities = []Capability{
	{Name: "sense_speed", Mode: 1, Shape: Shape{Count: 1, Width: 1, Signed: true}},
	{Name: "sense_pos", Mode: 2, Shape: Shape{Count: 1, Width: 4, Signed: true}},
}

func init() {
	for typ, p := range profiles {
		p.Type = typ
		if p.DefaultDelta == 0 {
			p.DefaultDelta = 1
		}
	}
}

// Lookup finds a profile by declaration type name.
func Lookup(typ string) (*Profile, error) {
	p, ok := profiles[typ]
	if !ok {
		return nil, fmt.Errorf("device: unknown peripheral type %q", typ)
	}
	return p, nil
}

// Types returns all known declaration type names (order unspecified).
func Types() []string {
	out := make([]string, 0, len(profiles))
	for typ := range profiles {
		out = append(out, typ)
	}
	return out
}
