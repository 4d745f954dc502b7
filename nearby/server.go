// Copyright (c) 2020 Sperax
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package nearby is the connection engine: it owns the discovery registry,
// the TCP listener, advertising state, and drives the send and receive
// pipelines described by the framing codec, encrypted stream, and
// handshake packages. A single long-lived object with a public wrapper
// type and a private impl guarded by one RWMutex, plus a separate mutex
// for the BLE rendezvous table.
package nearby

import (
	"bytes"
	"io"
	"log"
	"net"
	"sync"

	"github.com/julian-baumann/data-rct/discovery"
	"github.com/julian-baumann/data-rct/wire"
)

// Server is the nearby sharing connection engine for one local Device.
type Server struct {
	*serverImpl
}

type serverImpl struct {
	mu sync.RWMutex

	device           *wire.Device
	destinationDir   string
	incomingDelegate IncomingConnectionDelegate

	config   *Config
	registry *discovery.Registry

	listener    net.Listener
	advertising bool

	tcpInfo *wire.TcpConnectionInfo
	bleInfo *wire.BluetoothLeConnectionInfo

	bleServer   BleServerImplementation
	l2capClient L2CapClient

	l2capMu          sync.Mutex
	l2capConnections map[string]chan io.ReadWriteCloser

	advertisementCache []byte
	advertisementValid bool

	die     chan struct{}
	dieOnce sync.Once
}

// NewServer constructs a Server for device, which will write accepted
// file transfers into destinationDir and hand every accepted raw
// connection to delegate once its TransferRequest has been parsed.
func NewServer(device *wire.Device, destinationDir string, delegate IncomingConnectionDelegate) (*Server, error) {
	if device == nil {
		return nil, ErrDeviceIdRequired
	}
	if device.Id == "" {
		return nil, ErrDeviceIdRequired
	}
	if device.Name == "" {
		return nil, ErrDeviceNameRequired
	}

	impl := &serverImpl{
		device:           device,
		destinationDir:   destinationDir,
		incomingDelegate: delegate,
		config:           NewDefaultConfig(),
		registry:         discovery.NewRegistry(),
		l2capConnections: make(map[string]chan io.ReadWriteCloser),
		die:              make(chan struct{}),
	}
	return &Server{serverImpl: impl}, nil
}

// Registry returns the engine's discovery registry, the only supported
// way for an application to observe or feed discovered peers.
func (s *serverImpl) Registry() *discovery.Registry {
	return s.registry
}

// AddBleServerImpl injects the BLE advertiser/server. Call before Start.
func (s *serverImpl) AddBleServerImpl(impl BleServerImplementation) {
	s.mu.Lock()
	s.bleServer = impl
	s.mu.Unlock()
}

// AddL2CapClient injects the BLE outbound L2CAP client. Call before any
// send_file that may need BLE fallback.
func (s *serverImpl) AddL2CapClient(impl L2CapClient) {
	s.mu.Lock()
	s.l2capClient = impl
	s.mu.Unlock()
}

// ChangeDevice replaces the advertised identity and invalidates the cached
// advertisement payload.
func (s *serverImpl) ChangeDevice(device *wire.Device) {
	s.mu.Lock()
	s.device = device
	s.advertisementValid = false
	s.mu.Unlock()
}

// SetTcpDetails externally refreshes the advertised TCP endpoint.
func (s *serverImpl) SetTcpDetails(info *wire.TcpConnectionInfo) {
	s.mu.Lock()
	s.tcpInfo = info
	s.advertisementValid = false
	s.mu.Unlock()
}

// SetBleDetails externally refreshes the advertised BLE endpoint.
func (s *serverImpl) SetBleDetails(info *wire.BluetoothLeConnectionInfo) {
	s.mu.Lock()
	s.bleInfo = info
	s.advertisementValid = false
	s.mu.Unlock()
}

// Start is idempotent: calling it twice has no effect beyond the first.
// It binds a TCP listener from the configured preferred port list, starts
// the accept loop, flips advertising on, and starts the injected BLE
// server and discovery scanner, if any.
func (s *serverImpl) Start() error {
	s.mu.Lock()
	if s.advertising {
		s.mu.Unlock()
		return nil
	}

	listener, err := listenPreferredPort(s.config.PreferredPorts)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if s.tcpInfo == nil {
		s.tcpInfo = &wire.TcpConnectionInfo{Hostname: localIPv4(), Port: boundPort(listener)}
	} else if s.tcpInfo.Port == 0 {
		s.tcpInfo.Port = boundPort(listener)
	}

	s.listener = listener
	s.advertising = true
	s.advertisementValid = false
	bleServer := s.bleServer
	s.mu.Unlock()

	if err := s.registry.Start(); err != nil {
		log.Printf("nearby: discovery scanner failed to start: %v", err)
	}

	go s.acceptLoop(listener)

	if bleServer != nil {
		return bleServer.StartServer()
	}
	return nil
}

// Stop is idempotent. It tears down the TCP listener, flips advertising
// off, and stops the injected BLE server and discovery scanner, if any.
// In-flight connections are left to finish normally.
func (s *serverImpl) Stop() error {
	s.mu.Lock()
	if !s.advertising {
		s.mu.Unlock()
		return nil
	}
	s.advertising = false
	listener := s.listener
	s.listener = nil
	bleServer := s.bleServer
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	if err := s.registry.Stop(); err != nil {
		log.Printf("nearby: discovery scanner failed to stop: %v", err)
	}
	if bleServer != nil {
		return bleServer.StopServer()
	}
	return nil
}

func (s *serverImpl) acceptLoop(listener net.Listener) {
	config := s.readConfig()
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go s.HandleIncomingConnection(&deadlineConn{Conn: conn, readTimeout: config.ReadTimeout, writeTimeout: config.WriteTimeout})
	}
}

// GetAdvertisementData returns the framed DeviceDiscoveryMessage bytes for
// the current ConnectionInfo. It returns nil before Start and a
// memoized, non-empty payload afterward; the payload is invalidated
// whenever the local Device or either endpoint changes.
func (s *serverImpl) GetAdvertisementData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.advertising {
		return nil
	}
	if s.advertisementValid {
		return s.advertisementCache
	}

	msg := &wire.DeviceDiscoveryMessage{
		ConnectionInfo: &wire.DeviceConnectionInfo{
			Device: s.device,
			Tcp:    s.tcpInfo,
			Ble:    s.bleInfo,
		},
	}

	var buf bytes.Buffer
	if err := wire.WriteMessage(&buf, msg); err != nil {
		log.Printf("nearby: failed to build advertisement payload: %v", err)
		return nil
	}

	s.advertisementCache = buf.Bytes()
	s.advertisementValid = true
	return s.advertisementCache
}

func (s *serverImpl) localDevice() *wire.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.device
}

func (s *serverImpl) readConfig() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}
