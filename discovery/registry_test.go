package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/julian-baumann/data-rct/wire"
)

type recordingListener struct {
	added   []string
	removed []string
}

func (l *recordingListener) DeviceAdded(id string, info *wire.DeviceConnectionInfo) {
	l.added = append(l.added, id)
}

func (l *recordingListener) DeviceRemoved(id string) {
	l.removed = append(l.removed, id)
}

func encodeDiscoveryMessage(t *testing.T, msg *wire.DeviceDiscoveryMessage) []byte {
	body, err := msg.Marshal()
	assert.Nil(t, err)
	return body
}

func TestRegistryAddAndGet(t *testing.T) {
	reg := NewRegistry()
	l := &recordingListener{}
	reg.AddListener(l)

	payload := encodeDiscoveryMessage(t, &wire.DeviceDiscoveryMessage{
		ConnectionInfo: &wire.DeviceConnectionInfo{
			Device: &wire.Device{Id: "B", Name: "Bob"},
			Tcp:    &wire.TcpConnectionInfo{Hostname: "127.0.0.1", Port: 9000},
		},
	})

	assert.Nil(t, reg.ParseDiscoveryMessage(payload, "ble-hint"))
	assert.Equal(t, []string{"B"}, l.added)

	info := reg.GetConnectionDetails("B")
	assert.NotNil(t, info)
	assert.Equal(t, "Bob", info.Device.Name)
}

func TestRegistryBleUuidHintOverwritesSelfReportedUuid(t *testing.T) {
	reg := NewRegistry()

	payload := encodeDiscoveryMessage(t, &wire.DeviceDiscoveryMessage{
		ConnectionInfo: &wire.DeviceConnectionInfo{
			Device: &wire.Device{Id: "F", Name: "Fred"},
			Ble:    &wire.BluetoothLeConnectionInfo{Uuid: "self-reported-uuid", Psm: 42},
		},
	})

	assert.Nil(t, reg.ParseDiscoveryMessage(payload, "scanner-observed-uuid"))

	info := reg.GetConnectionDetails("F")
	assert.NotNil(t, info)
	assert.Equal(t, "scanner-observed-uuid", info.Ble.Uuid)
	assert.Equal(t, uint32(42), info.Ble.Psm)
}

func TestRegistryDedupDoesNotRefireOnIdenticalInfo(t *testing.T) {
	reg := NewRegistry()
	l := &recordingListener{}
	reg.AddListener(l)

	payload := encodeDiscoveryMessage(t, &wire.DeviceDiscoveryMessage{
		ConnectionInfo: &wire.DeviceConnectionInfo{
			Device: &wire.Device{Id: "C"},
			Tcp:    &wire.TcpConnectionInfo{Hostname: "127.0.0.1", Port: 9001},
		},
	})

	assert.Nil(t, reg.ParseDiscoveryMessage(payload, ""))
	assert.Nil(t, reg.ParseDiscoveryMessage(payload, ""))
	assert.Equal(t, []string{"C"}, l.added)
}

func TestRegistryRefiresOnChangedInfo(t *testing.T) {
	reg := NewRegistry()
	l := &recordingListener{}
	reg.AddListener(l)

	first := encodeDiscoveryMessage(t, &wire.DeviceDiscoveryMessage{
		ConnectionInfo: &wire.DeviceConnectionInfo{
			Device: &wire.Device{Id: "D"},
			Tcp:    &wire.TcpConnectionInfo{Hostname: "127.0.0.1", Port: 9002},
		},
	})
	second := encodeDiscoveryMessage(t, &wire.DeviceDiscoveryMessage{
		ConnectionInfo: &wire.DeviceConnectionInfo{
			Device: &wire.Device{Id: "D"},
			Tcp:    &wire.TcpConnectionInfo{Hostname: "127.0.0.1", Port: 9003},
		},
	})

	assert.Nil(t, reg.ParseDiscoveryMessage(first, ""))
	assert.Nil(t, reg.ParseDiscoveryMessage(second, ""))
	assert.Equal(t, []string{"D", "D"}, l.added)
	assert.Equal(t, uint32(9003), reg.GetConnectionDetails("D").Tcp.Port)
}

func TestRegistryRemoveOnOffline(t *testing.T) {
	reg := NewRegistry()
	l := &recordingListener{}
	reg.AddListener(l)

	online := encodeDiscoveryMessage(t, &wire.DeviceDiscoveryMessage{
		ConnectionInfo: &wire.DeviceConnectionInfo{
			Device: &wire.Device{Id: "E"},
			Tcp:    &wire.TcpConnectionInfo{Hostname: "127.0.0.1", Port: 9004},
		},
	})
	offlineId := "E"
	offline := encodeDiscoveryMessage(t, &wire.DeviceDiscoveryMessage{OfflineDeviceId: &offlineId})

	assert.Nil(t, reg.ParseDiscoveryMessage(online, ""))
	assert.Nil(t, reg.ParseDiscoveryMessage(offline, ""))
	assert.Equal(t, []string{"E"}, l.removed)
	assert.Nil(t, reg.GetConnectionDetails("E"))
}

func TestRegistryOfflineForUnknownIdDoesNotNotify(t *testing.T) {
	reg := NewRegistry()
	l := &recordingListener{}
	reg.AddListener(l)

	id := "unknown"
	offline := encodeDiscoveryMessage(t, &wire.DeviceDiscoveryMessage{OfflineDeviceId: &id})
	assert.Nil(t, reg.ParseDiscoveryMessage(offline, ""))
	assert.Empty(t, l.removed)
}
