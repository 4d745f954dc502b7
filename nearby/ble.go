package nearby

import "io"

// Protocol-wide constants. These are the well-known UUIDs and defaults
// every platform BLE implementation must agree on to interoperate.
const (
	DiscoveryServiceUUID        = "68D60EB2-8AAA-4D72-8851-BD6D64E169B7"
	DiscoveryCharacteristicUUID = "0BEBF3FE-9A5E-4ED1-8157-76281B3F0DA5"

	ProtocolVersion = 1

	// ChunkSize is the I/O chunk size used by both the send and receive
	// pipelines when streaming file bytes.
	ChunkSize = 1024

	// tcpConnectTimeoutSeconds bounds how long an outbound TCP dial may take
	// before the engine falls back to BLE (or gives up).
	tcpConnectTimeoutSeconds = 2
)

// preferredTcpPorts lists the ports start() tries in order before falling
// back to an OS-assigned ephemeral port.
var preferredTcpPorts = []int{80, 8080, 0}

// Device-type tags for wire.Device.DeviceType.
const (
	DeviceTypeMobile   int32 = 0
	DeviceTypeComputer int32 = 1
	DeviceTypeOther    int32 = 2
)

// DeviceTypeName returns the lowercase tag name for t, or "other" for any
// unrecognized value.
func DeviceTypeName(t int32) string {
	switch t {
	case DeviceTypeMobile:
		return "mobile"
	case DeviceTypeComputer:
		return "computer"
	default:
		return "other"
	}
}

// ParseDeviceType is the inverse of DeviceTypeName.
func ParseDeviceType(name string) int32 {
	switch name {
	case "mobile":
		return DeviceTypeMobile
	case "computer":
		return DeviceTypeComputer
	default:
		return DeviceTypeOther
	}
}

// NativeStream is the raw duplex stream abstraction the BLE layer hands
// the engine; the engine treats it identically to a TCP net.Conn.
type NativeStream interface {
	io.Reader
	io.Writer
	Flush() error
	Disconnect() error
}

// BleServerImplementation is the injected peripheral-role collaborator:
// advertiser plus inbound L2CAP acceptor. When it accepts a raw stream it
// must call back into Server.HandleIncomingConnection.
type BleServerImplementation interface {
	StartServer() error
	StopServer() error
}

// L2CapClient is the injected outbound L2CAP collaborator. OpenL2CapConnection
// is fire-and-forget; on success the implementation must eventually call
// Server.HandleIncomingBleConnection with the matching connectionID.
type L2CapClient interface {
	OpenL2CapConnection(connectionID, peripheralUUID string, psm uint32) error
}
