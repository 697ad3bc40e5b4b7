package hub

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/brickline/brickline/internal/device"
	"github.com/brickline/brickline/internal/protocol"
)

// defaultRampTick is the interval between ramp speed steps.
const defaultRampTick = 100 * time.Millisecond

// Motor wraps a motor peripheral with speed state and the ramp controller.
// At most one ramp runs per motor; any direct speed command or newer ramp
// cancels it.
type Motor struct {
	*Peripheral

	mu    sync.Mutex
	speed int
	ramp  *rampTask
	tick  time.Duration
}

type rampTask struct {
	stop chan struct{}
	done chan struct{}
}

// AttachMotor declares a motor peripheral. The declaration type must carry
// motor output support.
func (h *Hub) AttachMotor(decl Declaration) (*Motor, error) {
	p, err := h.Attach(decl)
	if err != nil {
		return nil, err
	}
	if !p.profile.Motor {
		return nil, fmt.Errorf("hub: peripheral %q: type %q is not a motor", decl.Name, decl.Type)
	}
	return &Motor{Peripheral: p, tick: defaultRampTick}, nil
}

// Speed returns the last commanded speed.
func (m *Motor) Speed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// SetSpeed commands an immediate speed in -100..100, or 127 to float.
// An in-flight ramp is cancelled first; the cancelled ramp emits nothing
// after this call returns.
func (m *Motor) SetSpeed(speed int) error {
	m.mu.Lock()
	m.cancelRampLocked()
	err := m.applySpeedLocked(speed)
	m.mu.Unlock()
	return err
}

// Brake actively brakes the motor.
func (m *Motor) Brake() error {
	return m.SetSpeed(protocol.EndStateBrake)
}

// RampSpeed ramps from the current speed to target over the given duration,
// stepping every 100ms. The duration must exceed one step interval. The ramp
// runs on its own goroutine and is cancelled by any competing speed command.
func (m *Motor) RampSpeed(target int, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if duration <= m.tick {
		return fmt.Errorf("hub: ramp duration %v must exceed the %v step interval", duration, m.tick)
	}
	if !m.isBound() {
		return ErrNotAttached
	}
	m.cancelRampLocked()

	steps := int(math.Ceil(float64(duration.Milliseconds()) / float64(m.tick.Milliseconds())))
	start := m.speed
	t := &rampTask{stop: make(chan struct{}), done: make(chan struct{})}
	m.ramp = t
	go m.runRamp(t, start, target, steps)
	return nil
}

// cancelRampLocked detaches and stops the current ramp, if any. Callers hold
// m.mu; the ramp goroutine re-checks ownership under the same mutex, so once
// this returns the old ramp can no longer emit a speed command.
func (m *Motor) cancelRampLocked() {
	if m.ramp == nil {
		return
	}
	close(m.ramp.stop)
	m.ramp = nil
}

func (m *Motor) runRamp(t *rampTask, start, target, steps int) {
	defer close(t.done)
	step := float64(target-start) / float64(steps)
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for i := 1; i <= steps; i++ {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}

		next := int(math.Round(float64(start) + float64(i)*step))
		if i == steps {
			next = target
		}

		m.mu.Lock()
		if m.ramp != t {
			m.mu.Unlock()
			return
		}
		err := m.applySpeedLocked(next)
		if i == steps {
			m.ramp = nil
		}
		m.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// applySpeedLocked records and emits a speed command. The caller holds m.mu.
func (m *Motor) applySpeedLocked(speed int) error {
	m.Peripheral.mu.Lock()
	if !m.Peripheral.bound {
		m.Peripheral.mu.Unlock()
		return ErrNotAttached
	}
	port := m.Peripheral.port
	m.Peripheral.mu.Unlock()

	m.speed = speed
	m.hub.send(protocol.WriteDirectModeData(port, 0, device.SpeedByte(speed)))
	return nil
}

// GotoPosition rotates a tachometer motor to an absolute position in degrees.
func (m *Motor) GotoPosition(position int32, speed, maxPower int) error {
	if !m.profile.Tacho {
		return fmt.Errorf("hub: motor %q has no position encoder", m.name)
	}
	m.mu.Lock()
	m.cancelRampLocked()
	m.mu.Unlock()

	m.Peripheral.mu.Lock()
	if !m.Peripheral.bound {
		m.Peripheral.mu.Unlock()
		return ErrNotAttached
	}
	port := m.Peripheral.port
	m.Peripheral.mu.Unlock()

	m.hub.send(protocol.GotoAbsolutePosition(port, position,
		device.SpeedByte(speed), byte(maxPower)))
	return nil
}

// Rotate turns a tachometer motor through a relative angle in degrees.
// Negative speed reverses the direction of travel.
func (m *Motor) Rotate(degrees int32, speed, maxPower int) error {
	if !m.profile.Tacho {
		return fmt.Errorf("hub: motor %q has no position encoder", m.name)
	}
	m.mu.Lock()
	m.cancelRampLocked()
	m.mu.Unlock()

	m.Peripheral.mu.Lock()
	if !m.Peripheral.bound {
		m.Peripheral.mu.Unlock()
		return ErrNotAttached
	}
	port := m.Peripheral.port
	m.Peripheral.mu.Unlock()

	m.hub.send(protocol.StartSpeedForDegrees(port, degrees,
		device.SpeedByte(speed), byte(maxPower)))
	return nil
}
