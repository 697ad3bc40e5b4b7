package device

import "testing"

func TestLookupKnownTypes(t *testing.T) {
	for _, typ := range Types() {
		p, err := Lookup(typ)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", typ, err)
		}
		if p.Type != typ {
			t.Errorf("profile %q has Type %q", typ, p.Type)
		}
		if _, ok := Name(p.DeviceID); !ok {
			t.Errorf("profile %q device id 0x%04x missing from registry", typ, p.DeviceID)
		}
		if p.DefaultDelta == 0 {
			t.Errorf("profile %q has zero default delta", typ)
		}
		for _, c := range p.Capabilities {
			if c.Shape.Count < 1 || c.Shape.Width < 1 {
				t.Errorf("profile %q capability %q has shape %+v", typ, c.Name, c.Shape)
			}
		}
	}
}

func TestLookupUnknownType(t *testing.T) {
	if _, err := Lookup("warp_drive"); err == nil {
		t.Error("Lookup should fail for unknown type")
	}
}

func TestProfileCapability(t *testing.T) {
	p, err := Lookup("vision_sensor")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	c, ok := p.Capability("sense_rgb")
	if !ok {
		t.Fatal("vision_sensor should have sense_rgb")
	}
	if c.Mode != 6 || c.Shape.Count != 3 || c.Shape.Width != 2 {
		t.Errorf("sense_rgb = %+v", c)
	}
	if _, ok := p.Capability("sense_smell"); ok {
		t.Error("Capability should miss on unknown name")
	}
}

func TestProfileComboAllowed(t *testing.T) {
	p, _ := Lookup("vision_sensor")
	if !p.ComboAllowed(0) || !p.ComboAllowed(6) {
		t.Error("vision sensor modes 0 and 6 should be combinable")
	}
	if p.ComboAllowed(4) {
		t.Error("vision sensor ambient mode is not combinable")
	}

	motor, _ := Lookup("train_motor")
	if motor.ComboAllowed(0) {
		t.Error("plain motors have no combinable modes")
	}
}

func TestMotorFlags(t *testing.T) {
	tests := []struct {
		typ   string
		motor bool
		tacho bool
	}{
		{"train_motor", true, false},
		{"duplo_train_motor", true, false},
		{"external_motor", true, true},
		{"internal_motor", true, true},
		{"technic_xl_motor", true, true},
		{"vision_sensor", false, false},
	}
	for _, tt := range tests {
		p, err := Lookup(tt.typ)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.typ, err)
		}
		if p.Motor != tt.motor || p.Tacho != tt.tacho {
			t.Errorf("%s: motor/tacho = %v/%v, want %v/%v", tt.typ, p.Motor, p.Tacho, tt.motor, tt.tacho)
		}
	}
}

func TestInternalMotorDefaultDelta(t *testing.T) {
	p, _ := Lookup("internal_motor")
	if p.DefaultDelta != 2 {
		t.Errorf("internal_motor DefaultDelta = %d, want 2", p.DefaultDelta)
	}
	ext, _ := Lookup("external_motor")
	if ext.DefaultDelta != 1 {
		t.Errorf("external_motor DefaultDelta = %d, want 1", ext.DefaultDelta)
	}
}

func TestDuploSpeakerQuirk(t *testing.T) {
	p, _ := Lookup("duplo_speaker")
	if !p.NotifyOnAttach || p.NotifyMode != 1 {
		t.Errorf("duplo_speaker quirk = %+v", p)
	}
}

func TestRegistryNames(t *testing.T) {
	tests := []struct {
		id   uint16
		want string
	}{
		{IDButton, "Button"},
		{IDTrainMotor, "System Train Motor"},
		{IDVisionSensor, "Vision Sensor"},
		{IDInternalMotor, "Internal Motor with Tacho"},
	}
	for _, tt := range tests {
		got, ok := Name(tt.id)
		if !ok {
			t.Errorf("Name(0x%04x) missing", tt.id)
			continue
		}
		if got != tt.want {
			t.Errorf("Name(0x%04x) = %q, want %q", tt.id, got, tt.want)
		}
	}
	if _, ok := Name(0xffff); ok {
		t.Error("Name should miss for unregistered id")
	}
}
