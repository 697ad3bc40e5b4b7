package ble

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionOptions configures hub discovery.
type SessionOptions struct {
	ScanTimeout time.Duration // how long one discovery scan runs (default 30s)
	Logger      *slog.Logger
}

// Session owns the BLE link for one hub: discovery, connection, and the
// characteristic both directions flow through. Its Write method satisfies the
// engine's transport interface.
type Session struct {
	adapter Adapter
	hubName string // declared hub name, for logs
	bleName string // advertised local name to match
	address string // exact address; skips name matching when set
	timeout time.Duration
	log     *slog.Logger

	conn Connection
	char Characteristic
}

// NewSession prepares a session for one hub. The hub is located by exact
// address when one is given, otherwise by the advertised name for its model.
func NewSession(adapter Adapter, hubName, advertisedName, address string, opts SessionOptions) *Session {
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		adapter: adapter,
		hubName: hubName,
		bleName: advertisedName,
		address: address,
		timeout: opts.ScanTimeout,
		log:     logger.With("hub", hubName),
	}
}

// Connect locates the hub, connects, and discovers the UART characteristic.
func (s *Session) Connect(ctx context.Context) error {
	address := s.address
	if address == "" {
		found, err := s.find(ctx)
		if err != nil {
			return err
		}
		address = found
	}

	conn, err := s.adapter.Connect(ctx, address)
	if err != nil {
		return err
	}

	char, err := conn.DiscoverCharacteristic(UARTServiceUUID, UARTCharUUID)
	if err != nil {
		conn.Disconnect()
		return fmt.Errorf("ble: hub %q: %w", s.hubName, err)
	}

	s.conn = conn
	s.char = char
	s.log.Info("connected", "address", address)
	return nil
}

// find scans for a hub advertising the LEGO service under the expected name.
func (s *Session) find(ctx context.Context) (string, error) {
	s.log.Info("scanning", "name", s.bleName, "timeout", s.timeout)
	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	devices, err := s.adapter.Scan(scanCtx, UARTServiceUUID)
	if err != nil {
		return "", fmt.Errorf("ble: hub %q: %w", s.hubName, err)
	}
	for _, d := range devices {
		if d.Name == s.bleName {
			s.log.Info("found hub", "address", d.Address, "rssi", d.RSSI)
			return d.Address, nil
		}
	}
	return "", fmt.Errorf("ble: hub %q: no device named %q found in %v", s.hubName, s.bleName, s.timeout)
}

// Subscribe registers the notification handler for inbound frames. Call after
// Connect.
func (s *Session) Subscribe(handler func(data []byte)) error {
	if s.char == nil {
		return fmt.Errorf("ble: hub %q: not connected", s.hubName)
	}
	return s.char.Subscribe(handler)
}

// Write sends one raw frame to the hub.
func (s *Session) Write(data []byte) error {
	if s.char == nil {
		return fmt.Errorf("ble: hub %q: not connected", s.hubName)
	}
	return s.char.Write(data)
}

// OnDisconnect registers a callback for connection loss. Call after Connect.
func (s *Session) OnDisconnect(cb func()) {
	if s.conn != nil {
		s.conn.OnDisconnect(cb)
	}
}

// Close drops the connection.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Disconnect()
	s.conn = nil
	s.char = nil
	return err
}
