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

// Package discovery maintains the process-wide table of currently
// reachable peers, fed by whatever BLE scanner the host application
// injects. Membership is dynamic and advertisement-driven rather than
// configured up front.
package discovery

import (
	"reflect"
	"sync"

	"github.com/julian-baumann/data-rct/wire"
)

// Listener receives registry change notifications. Implementations must
// return quickly; the registry invokes listeners synchronously while not
// holding its lock.
type Listener interface {
	DeviceAdded(id string, info *wire.DeviceConnectionInfo)
	DeviceRemoved(id string)
}

// Scanner is the injected BLE central-role collaborator responsible for
// discovering peers and feeding their advertisements back into the
// registry via ParseDiscoveryMessage.
type Scanner interface {
	StartScanning() error
	StopScanning() error
}

// Registry is the mapping from device id to its currently advertised
// ConnectionInfo. It is safe for concurrent use: parse_discovery_message
// may be invoked from any goroutine the BLE scanner uses to deliver
// advertisements.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]*wire.DeviceConnectionInfo
	listeners []Listener
	scanner   Scanner
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*wire.DeviceConnectionInfo)}
}

// SetScanner injects the BLE scanner that Start/Stop will drive.
func (r *Registry) SetScanner(s Scanner) {
	r.mu.Lock()
	r.scanner = s
	r.mu.Unlock()
}

// Start clears the registry and delegates to the injected scanner's
// StartScanning. It is a no-op with respect to the scanner if none has
// been set.
func (r *Registry) Start() error {
	r.mu.Lock()
	r.devices = make(map[string]*wire.DeviceConnectionInfo)
	scanner := r.scanner
	r.mu.Unlock()

	if scanner == nil {
		return nil
	}
	return scanner.StartScanning()
}

// Stop delegates to the injected scanner's StopScanning.
func (r *Registry) Stop() error {
	r.mu.RLock()
	scanner := r.scanner
	r.mu.RUnlock()

	if scanner == nil {
		return nil
	}
	return scanner.StopScanning()
}

// AddListener registers l to receive future add/remove notifications. It
// does not replay existing entries.
func (r *Registry) AddListener(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// ParseDiscoveryMessage decodes a DeviceDiscoveryMessage payload observed
// by the BLE scanner and applies it to the registry. The payload is the
// bare message body as produced by DeviceDiscoveryMessage.Marshal; a
// payload carrying a varint length prefix, such as the one
// Server.GetAdvertisementData returns, is not accepted. When the
// message carries a BLE sub-block and bleUUIDHint is non-empty, the hint
// overwrites the sub-block's uuid before it is stored: the scanner knows
// the peer's BLE address even when the advertisement doesn't self-report
// it. It may be called concurrently from any goroutine the BLE scanner
// uses to deliver advertisements.
func (r *Registry) ParseDiscoveryMessage(payload []byte, bleUUIDHint string) error {
	msg := new(wire.DeviceDiscoveryMessage)
	if err := msg.Unmarshal(payload); err != nil {
		return err
	}

	switch {
	case msg.ConnectionInfo != nil:
		if bleUUIDHint != "" && msg.ConnectionInfo.Ble != nil {
			msg.ConnectionInfo.Ble.Uuid = bleUUIDHint
		}
		r.applyConnectionInfo(msg.ConnectionInfo)
	case msg.OfflineDeviceId != nil:
		r.applyOffline(*msg.OfflineDeviceId)
	}
	return nil
}

func (r *Registry) applyConnectionInfo(info *wire.DeviceConnectionInfo) {
	if info.Device == nil {
		return
	}
	id := info.Device.Id

	r.mu.Lock()
	existing, present := r.devices[id]
	changed := !present || !reflect.DeepEqual(existing, info)
	if changed {
		r.devices[id] = info
	}
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l.DeviceAdded(id, info)
		}
	}
}

func (r *Registry) applyOffline(id string) {
	r.mu.Lock()
	_, present := r.devices[id]
	if present {
		delete(r.devices, id)
	}
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	if present {
		for _, l := range listeners {
			l.DeviceRemoved(id)
		}
	}
}

// GetConnectionDetails returns a deep copy of the stored ConnectionInfo
// for id, or nil if no entry exists. The returned value shares no pointer
// with the registry's internal state, so a caller is free to mutate it.
func (r *Registry) GetConnectionDetails(id string) *wire.DeviceConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.devices[id]
	if !ok {
		return nil
	}
	return cloneConnectionInfo(info)
}

// Snapshot returns a deep copy of every currently known device's
// ConnectionInfo.
func (r *Registry) Snapshot() []*wire.DeviceConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*wire.DeviceConnectionInfo, 0, len(r.devices))
	for _, info := range r.devices {
		out = append(out, cloneConnectionInfo(info))
	}
	return out
}

// cloneConnectionInfo deep-copies info so callers can never observe or
// corrupt the registry's own state through the returned pointer.
func cloneConnectionInfo(info *wire.DeviceConnectionInfo) *wire.DeviceConnectionInfo {
	out := &wire.DeviceConnectionInfo{}
	if info.Device != nil {
		device := *info.Device
		out.Device = &device
	}
	if info.Tcp != nil {
		tcp := *info.Tcp
		out.Tcp = &tcp
	}
	if info.Ble != nil {
		ble := *info.Ble
		out.Ble = &ble
	}
	return out
}
