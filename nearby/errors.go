package nearby

import "errors"

var (
	// ErrUnreachable mirrors the original implementation's Unreachable
	// variant, which is likewise never constructed there: every actual
	// connect failure surfaces as one of the more specific errors below.
	// Kept for callers that want a single catch-all to compare against.
	ErrUnreachable = errors.New("nearby: peer unreachable")

	// ErrFailedToGetConnectionDetails is returned when the receiver is
	// not present in the discovery registry.
	ErrFailedToGetConnectionDetails = errors.New("nearby: no connection details for receiver")

	// ErrFailedToGetTcpDetails is returned when the receiver's
	// ConnectionInfo has neither a Tcp nor a Ble endpoint.
	ErrFailedToGetTcpDetails = errors.New("nearby: receiver has no tcp endpoint")

	// ErrFailedToGetSocketAddress is returned when the receiver's
	// hostname:port cannot be resolved.
	ErrFailedToGetSocketAddress = errors.New("nearby: failed to resolve socket address")

	// ErrFailedToOpenTcpStream is returned when the TCP dial fails or
	// times out.
	ErrFailedToOpenTcpStream = errors.New("nearby: failed to open tcp stream")

	// ErrFailedToGetBleDetails is returned when BLE fallback is
	// attempted but the receiver's ConnectionInfo has no Ble endpoint.
	ErrFailedToGetBleDetails = errors.New("nearby: receiver has no ble endpoint")

	// ErrInternalBleHandlerNotAvailable is returned when BLE fallback is
	// attempted but no L2CapClient has been injected.
	ErrInternalBleHandlerNotAvailable = errors.New("nearby: no l2cap client configured")

	// ErrFailedToEstablishBleConnection is returned when the L2CAP
	// rendezvous is abandoned because the server's die channel is closed
	// before HandleIncomingBleConnection fires.
	ErrFailedToEstablishBleConnection = errors.New("nearby: failed to establish ble connection")

	// ErrFailedToEncryptStream is returned by SendFile, wrapping the
	// cause, when the initiator handshake fails over an otherwise open
	// transport.
	ErrFailedToEncryptStream = errors.New("nearby: failed to establish encrypted stream")

	// ErrFailedToGetTransferRequestResponse is returned when reading the
	// TransferRequestResponse frame fails.
	ErrFailedToGetTransferRequestResponse = errors.New("nearby: failed to read transfer request response")

	// ErrDeclined is returned by send_file when the receiver declines
	// the transfer.
	ErrDeclined = errors.New("nearby: transfer declined by receiver")

	// ErrAlreadyResolved is returned by ConnectionRequest.Accept/Decline
	// when called a second time on the same request.
	ErrAlreadyResolved = errors.New("nearby: connection request already resolved")

	// ErrConfigTcpConnectTimeout is returned by Config.Validate when the
	// TCP connect timeout is not positive.
	ErrConfigTcpConnectTimeout = errors.New("nearby: config tcp connect timeout must be positive")

	// ErrConfigPreferredPorts is returned by Config.Validate when the
	// preferred port list is empty.
	ErrConfigPreferredPorts = errors.New("nearby: config preferred ports must not be empty")

	// ErrConfigChunkSize is returned by Config.Validate when the chunk
	// size is not positive.
	ErrConfigChunkSize = errors.New("nearby: config chunk size must be positive")

	// ErrDeviceIdRequired is returned when a local Device has an empty
	// id.
	ErrDeviceIdRequired = errors.New("nearby: device id must not be empty")

	// ErrDeviceNameRequired is returned when a local Device has an empty
	// name.
	ErrDeviceNameRequired = errors.New("nearby: device name must not be empty")
)
