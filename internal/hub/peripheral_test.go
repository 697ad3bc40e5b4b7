package hub

import (
	"testing"

	"github.com/brickline/brickline/internal/device"
	"github.com/brickline/brickline/internal/protocol"
)

func noopChange(*Peripheral) {}

func TestAttachValidation(t *testing.T) {
	tests := []struct {
		name string
		decl Declaration
	}{
		{"unknown type", Declaration{Type: "warp_drive", Name: "w"}},
		{"empty name", Declaration{Type: "train_motor"}},
		{
			"capabilities without handler",
			Declaration{Type: "vision_sensor", Name: "v",
				Capabilities: []CapabilityRequest{{Name: "sense_color"}}},
		},
		{
			"unknown capability",
			Declaration{Type: "vision_sensor", Name: "v", OnChange: noopChange,
				Capabilities: []CapabilityRequest{{Name: "sense_smell"}}},
		},
		{
			"non-combinable capability in combination",
			Declaration{Type: "vision_sensor", Name: "v", OnChange: noopChange,
				Capabilities: []CapabilityRequest{
					{Name: "sense_color"},
					{Name: "sense_ambient"}, // mode 4, not in the allowed combo set
				}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHub(t)
			if _, err := h.Attach(tt.decl); err == nil {
				t.Errorf("Attach(%+v) succeeded, want error", tt.decl)
			}
		})
	}
}

func TestAttachRejectsDuplicateName(t *testing.T) {
	h := newTestHub(t)
	if _, err := h.Attach(Declaration{Type: "train_motor", Name: "m"}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if _, err := h.Attach(Declaration{Type: "light", Name: "m"}); err == nil {
		t.Fatal("Attach should reject a duplicate peripheral name")
	}
}

func TestPeripheralLookup(t *testing.T) {
	h := newTestHub(t)
	p, err := h.Attach(Declaration{Type: "rgb_light", Name: "status"})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	got, ok := h.Peripheral("status")
	if !ok || got != p {
		t.Error("Peripheral lookup failed")
	}
	if p.Name() != "status" || p.Type() != "rgb_light" {
		t.Errorf("Name/Type = %q/%q", p.Name(), p.Type())
	}
}

func TestSingleCapabilityActivation(t *testing.T) {
	h := newTestHub(t)
	_, err := h.Attach(Declaration{Type: "vision_sensor", Name: "eyes", OnChange: noopChange,
		Capabilities: []CapabilityRequest{{Name: "sense_color", Delta: 2}}})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := h.dispatch(attachFrame(1, device.IDVisionSensor)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	frames := drainOutbound(h)
	if len(frames) != 1 {
		t.Fatalf("frame count = %d, want 1", len(frames))
	}
	want := protocol.SetupInputFormat(1, 0, 2, true)
	if string(frames[0]) != string(want) {
		t.Errorf("activation frame = %x, want %x", frames[0], want)
	}
}

func TestDefaultDeltaFromProfile(t *testing.T) {
	h := newTestHub(t)
	_, err := h.AttachMotor(Declaration{Type: "internal_motor", Name: "m", OnChange: noopChange,
		Capabilities: []CapabilityRequest{{Name: "sense_speed"}}})
	if err != nil {
		t.Fatalf("AttachMotor: %v", err)
	}

	if err := h.dispatch(attachFrame(0, device.IDInternalMotor)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	frames := drainOutbound(h)
	want := protocol.SetupInputFormat(0, 1, 2, true) // internal motors default to delta 2
	if len(frames) != 1 || string(frames[0]) != string(want) {
		t.Errorf("activation frame = %x, want %x", frames, want)
	}
}

func TestComboActivationSequence(t *testing.T) {
	h := newTestHub(t)
	_, err := h.Attach(Declaration{Type: "vision_sensor", Name: "eyes", OnChange: noopChange,
		Capabilities: []CapabilityRequest{
			{Name: "sense_color"},
			{Name: "sense_rgb"},
		}})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := h.dispatch(attachFrame(1, device.IDVisionSensor)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	frames := drainOutbound(h)
	want := [][]byte{
		protocol.LockPort(1),
		protocol.SetupInputFormat(1, 0, 1, true),
		protocol.SetupInputFormat(1, 6, 1, true),
		// One entry per dataset: color, then the three RGB channels.
		protocol.SetModeDatasetOrder(1, []byte{0x00, 0x60, 0x61, 0x62}),
		protocol.UnlockAndStart(1),
	}
	if len(frames) != len(want) {
		t.Fatalf("frame count = %d, want %d: %x", len(frames), len(want), frames)
	}
	for i := range want {
		if string(frames[i]) != string(want[i]) {
			t.Errorf("frame[%d] = %x, want %x", i, frames[i], want[i])
		}
	}
}

func TestSpeakerNotifyOnAttach(t *testing.T) {
	h := newTestHub(t)
	if _, err := h.Attach(Declaration{Type: "duplo_speaker", Name: "horn"}); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := h.dispatch(attachFrame(1, device.IDDuploSpeaker)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	frames := drainOutbound(h)
	want := protocol.SetupInputFormat(1, 1, 1, true)
	if len(frames) != 1 || string(frames[0]) != string(want) {
		t.Errorf("activation = %x, want %x", frames, want)
	}
}

func TestSingleValueUpdate(t *testing.T) {
	h := newTestHub(t)
	var seen []int64
	p, err := h.Attach(Declaration{Type: "vision_sensor", Name: "eyes",
		Capabilities: []CapabilityRequest{{Name: "sense_color"}},
		OnChange: func(p *Peripheral) {
			v, _ := p.Value("sense_color")
			seen = append(seen, v.Scalar())
		}})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := h.dispatch(attachFrame(1, device.IDVisionSensor)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := h.dispatch(portValueFrame(1, 0x05)); err != nil {
		t.Fatalf("dispatch value: %v", err)
	}

	if len(seen) != 1 || seen[0] != 5 {
		t.Errorf("observed values = %v, want [5]", seen)
	}
	v, ok := p.Value("sense_color")
	if !ok || v.Scalar() != 5 {
		t.Errorf("Value = %v/%v", v, ok)
	}
	info, _ := h.Port(1)
	if info.State != PortStreaming {
		t.Errorf("port state = %v, want streaming", info.State)
	}
}

func TestComboValueUpdate(t *testing.T) {
	h := newTestHub(t)
	p, err := h.Attach(Declaration{Type: "vision_sensor", Name: "eyes", OnChange: noopChange,
		Capabilities: []CapabilityRequest{
			{Name: "sense_color"},
			{Name: "sense_distance"},
		}})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := h.dispatch(attachFrame(1, device.IDVisionSensor)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	drainOutbound(h)

	// Both slots present.
	combo := protocol.Frame(protocol.TypePortComboValue, []byte{0x01, 0x00, 0x03, 0x06, 0x09})
	if err := h.dispatch(combo); err != nil {
		t.Fatalf("dispatch combo: %v", err)
	}
	if v, _ := p.Value("sense_color"); v.Scalar() != 6 {
		t.Errorf("color = %v, want 6", v)
	}
	if v, _ := p.Value("sense_distance"); v.Scalar() != 9 {
		t.Errorf("distance = %v, want 9", v)
	}

	// Only the distance slot present; color keeps its prior value.
	combo = protocol.Frame(protocol.TypePortComboValue, []byte{0x01, 0x00, 0x02, 0x02})
	if err := h.dispatch(combo); err != nil {
		t.Fatalf("dispatch combo: %v", err)
	}
	if v, _ := p.Value("sense_color"); v.Scalar() != 6 {
		t.Errorf("color = %v after partial update, want 6", v)
	}
	if v, _ := p.Value("sense_distance"); v.Scalar() != 2 {
		t.Errorf("distance = %v, want 2", v)
	}
}

func TestValueForUnboundPortIsDropped(t *testing.T) {
	h := newTestHub(t)
	if err := h.dispatch(portValueFrame(7, 0x01)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func TestMalformedValuePayloadIsFatal(t *testing.T) {
	h := newTestHub(t)
	_, err := h.Attach(Declaration{Type: "duplo_speedometer", Name: "s", OnChange: noopChange,
		Capabilities: []CapabilityRequest{{Name: "sense_count"}}})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := h.dispatch(attachFrame(1, device.IDDuploSpeedometer)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// sense_count needs 4 bytes; send 2.
	if err := h.dispatch(portValueFrame(1, 0x01, 0x02)); err == nil {
		t.Fatal("short value payload should be protocol-fatal")
	}
}

func TestButtonSynthesisAndReports(t *testing.T) {
	h := newTestHub(t)
	var presses []int64
	p, err := h.Attach(Declaration{Type: "button", Name: "btn",
		Capabilities: []CapabilityRequest{{Name: "sense_press"}},
		OnChange: func(p *Peripheral) {
			v, _ := p.Value("sense_press")
			presses = append(presses, v.Scalar())
		}})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	h.synthesizeButtonAttach()
	port, ok := p.Port()
	if !ok || port != ButtonPort {
		t.Fatalf("button port = %d/%v, want %d/true", port, ok, ButtonPort)
	}
	frames := drainOutbound(h)
	want := protocol.SubscribeButtonReports()
	if len(frames) != 1 || string(frames[0]) != string(want) {
		t.Fatalf("subscription = %x, want %x", frames, want)
	}

	// Button state arrives as a hub property update and is rerouted through
	// the value pipeline.
	press := protocol.Frame(protocol.TypeHubProperties,
		[]byte{protocol.PropertyButton, protocol.OperationUpdate, 0x01})
	if err := h.dispatch(press); err != nil {
		t.Fatalf("dispatch press: %v", err)
	}
	release := protocol.Frame(protocol.TypeHubProperties,
		[]byte{protocol.PropertyButton, protocol.OperationUpdate, 0x00})
	if err := h.dispatch(release); err != nil {
		t.Fatalf("dispatch release: %v", err)
	}

	if len(presses) != 2 || presses[0] != 1 || presses[1] != 0 {
		t.Errorf("presses = %v, want [1 0]", presses)
	}
}

func TestNonButtonPropertyIsIgnored(t *testing.T) {
	h := newTestHub(t)
	rssi := protocol.Frame(protocol.TypeHubProperties,
		[]byte{protocol.PropertyRSSI, protocol.OperationUpdate, 0xc0})
	if err := h.dispatch(rssi); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func TestSetOutputRequiresBinding(t *testing.T) {
	h := newTestHub(t)
	p, err := h.Attach(Declaration{Type: "rgb_light", Name: "led"})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := p.SetColor(device.ColorRed); err != ErrNotAttached {
		t.Errorf("SetColor before binding = %v, want ErrNotAttached", err)
	}
}

func TestOutputHelpers(t *testing.T) {
	h := newTestHub(t)
	led, err := h.Attach(Declaration{Type: "rgb_light", Name: "led"})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	speaker, err := h.Attach(Declaration{Type: "duplo_speaker", Name: "horn"})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := h.dispatch(attachFrame(2, device.IDRGBLight)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if err := h.dispatch(attachFrame(3, device.IDDuploSpeaker)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	drainOutbound(h)

	if err := led.SetColor(device.ColorBlue); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	if err := speaker.PlaySound(SoundHorn); err != nil {
		t.Fatalf("PlaySound: %v", err)
	}

	frames := drainOutbound(h)
	wantColor := protocol.WriteDirectModeData(2, 0, byte(device.ColorBlue))
	wantSound := protocol.WriteDirectModeData(3, 1, byte(SoundHorn))
	if len(frames) != 2 || string(frames[0]) != string(wantColor) || string(frames[1]) != string(wantSound) {
		t.Errorf("frames = %x, want %x then %x", frames, wantColor, wantSound)
	}
}
