package ble

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func testSession(adapter Adapter, address string) *Session {
	return NewSession(adapter, "train", "Train Base", address, SessionOptions{
		ScanTimeout: 100 * time.Millisecond,
	})
}

func TestSessionConnectByName(t *testing.T) {
	adapter := newMockAdapter([]Device{
		{Name: "HUB NO.4", Address: "aa:01", RSSI: -40},
		{Name: "Train Base", Address: "aa:02", RSSI: -55},
	})
	s := testSession(adapter, "")

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	frame := []byte{0x05, 0x00, 0x41, 0x00, 0x01}
	if err := s.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}
	char := adapter.latestConnection().uartChar
	if len(char.writes) != 1 || !bytes.Equal(char.writes[0], frame) {
		t.Fatalf("written frames = %x, want [%x]", char.writes, frame)
	}
}

func TestSessionConnectByAddressSkipsScan(t *testing.T) {
	// No advertised devices at all: an exact address must not need a scan.
	adapter := newMockAdapter(nil)
	s := testSession(adapter, "aa:07")

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func TestSessionConnectNameNotFound(t *testing.T) {
	adapter := newMockAdapter([]Device{
		{Name: "HUB NO.4", Address: "aa:01", RSSI: -40},
	})
	s := testSession(adapter, "")

	if err := s.Connect(context.Background()); err == nil {
		t.Fatal("Connect succeeded with no matching hub advertised")
	}
}

func TestSessionSubscribeDeliversNotifications(t *testing.T) {
	adapter := newMockAdapter([]Device{{Name: "Train Base", Address: "aa:02"}})
	s := testSession(adapter, "")
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var got []byte
	if err := s.Subscribe(func(data []byte) { got = data }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	payload := []byte{0x06, 0x00, 0x45, 0x01, 0x02, 0x03}
	adapter.latestConnection().uartChar.SimulateNotification(payload)
	if !bytes.Equal(got, payload) {
		t.Fatalf("notification = %x, want %x", got, payload)
	}
}

func TestSessionWriteBeforeConnect(t *testing.T) {
	s := testSession(newMockAdapter(nil), "")
	if err := s.Write([]byte{0x01}); err == nil {
		t.Fatal("Write before Connect should fail")
	}
	if err := s.Subscribe(func([]byte) {}); err == nil {
		t.Fatal("Subscribe before Connect should fail")
	}
}

func TestSessionClose(t *testing.T) {
	adapter := newMockAdapter([]Device{{Name: "Train Base", Address: "aa:02"}})
	s := testSession(adapter, "")
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !adapter.latestConnection().disconnected {
		t.Fatal("Close did not disconnect the connection")
	}
	if err := s.Write([]byte{0x01}); err == nil {
		t.Fatal("Write after Close should fail")
	}
}
