package device

import (
	"fmt"
)

// Value is one decoded capability reading: either a scalar or a fixed-length
// vector, depending on the capability's dataset count.
type Value struct {
	scalar int64
	vec    []int64
	vector bool
}

// ScalarValue wraps a single dataset reading.
func ScalarValue(v int64) Value {
	return Value{scalar: v}
}

// VectorValue wraps a multi-dataset reading.
func VectorValue(vs []int64) Value {
	return Value{vec: vs, vector: true}
}

// IsVector reports whether the value holds more than one dataset.
func (v Value) IsVector() bool { return v.vector }

// Scalar returns the single dataset reading; zero for vector values.
func (v Value) Scalar() int64 {
	if v.vector {
		return 0
	}
	return v.scalar
}

// Vector returns the multi-dataset reading; nil for scalar values. The
// returned slice is the live backing store and is updated in place by
// combined-mode decoding.
func (v Value) Vector() []int64 {
	if !v.vector {
		return nil
	}
	return v.vec
}

func (v Value) String() string {
	if v.vector {
		return fmt.Sprint(v.vec)
	}
	return fmt.Sprint(v.scalar)
}

// convert reads one dataset of the given shape from raw.
func convertDataset(raw []byte, shape Shape) int64 {
	var u uint64
	for i := 0; i < shape.Width; i++ {
		u |= uint64(raw[i]) << (8 * i)
	}
	if shape.Signed {
		switch shape.Width {
		case 1:
			return int64(int8(u))
		case 2:
			return int64(int16(u))
		case 4:
			return int64(int32(u))
		}
	}
	return int64(u)
}

// DecodeSingle decodes a single-mode value payload for one capability:
// Count consecutive little-endian datasets of Width bytes each.
func DecodeSingle(cap Capability, payload []byte) (Value, error) {
	shape := cap.Shape
	need := shape.Count * shape.Width
	if len(payload) < need {
		return Value{}, fmt.Errorf("device: %s value needs %d bytes, got %d (%x)",
			cap.Name, need, len(payload), payload)
	}
	if shape.Count == 1 {
		return ScalarValue(convertDataset(payload, shape)), nil
	}
	vec := make([]int64, shape.Count)
	for i := 0; i < shape.Count; i++ {
		vec[i] = convertDataset(payload[i*shape.Width:], shape)
	}
	return VectorValue(vec), nil
}

// DecodeCombo decodes a combined-mode value payload in place into values,
// keyed by mode number.
//
// The payload is [reserved][presence bitmask][data...]. Slot indices count
// one per dataset of every declared capability, in declaration order; only
// slots whose presence bit is set carry data, and absent slots leave the
// prior value untouched. The slot walk must consume byte widths exactly as
// declared or every later capability decodes garbage.
func DecodeCombo(caps []Capability, values map[byte]Value, payload []byte) error {
	if len(payload) < 2 {
		return fmt.Errorf("device: combo value needs reserved byte and bitmask, got %x", payload)
	}
	mask := payload[1]
	data := payload[2:]

	slot := 0
	for _, cap := range caps {
		shape := cap.Shape
		for dataset := 0; dataset < shape.Count; dataset++ {
			if mask&(1<<slot) == 0 {
				slot++
				continue
			}
			if len(data) < shape.Width {
				return fmt.Errorf("device: combo value for %s dataset %d needs %d bytes, got %d",
					cap.Name, dataset, shape.Width, len(data))
			}
			v := convertDataset(data, shape)
			data = data[shape.Width:]

			if shape.Count == 1 {
				values[cap.Mode] = ScalarValue(v)
			} else {
				prior, ok := values[cap.Mode]
				if !ok || !prior.IsVector() {
					prior = VectorValue(make([]int64, shape.Count))
					values[cap.Mode] = prior
				}
				prior.Vector()[dataset] = v
			}
			slot++
		}
	}
	return nil
}

// SpeedByte maps a motor speed in -100..100 (plus the brake sentinel 127) to
// the byte the hub expects in WriteDirectModeData output commands. Negative
// speeds become their unsigned two's complement byte.
func SpeedByte(speed int) byte {
	if speed == 127 {
		return 127
	}
	if speed > 100 {
		speed = 100
	}
	return byte(speed)
}
