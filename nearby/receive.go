package nearby

import (
	"io"
	"log"

	"github.com/julian-baumann/data-rct/handshake"
	"github.com/julian-baumann/data-rct/wire"
)

// HandleIncomingConnection runs the receive pipeline for one raw duplex
// stream handed in from the TCP accept loop or a BLE server callback: run
// the responder handshake, read one framed TransferRequest, and hand the
// application a ConnectionRequest. On any failure before the application
// delegate is reached, the stream is closed silently — no reply is owed
// on a malformed or unencryptable stream.
func (s *serverImpl) HandleIncomingConnection(conn io.ReadWriteCloser) {
	stream, err := handshake.InitiateReceiver(conn)
	if err != nil {
		log.Printf("nearby: responder handshake failed: %v", err)
		conn.Close()
		return
	}

	request := new(wire.TransferRequest)
	if err := wire.ReadMessage(stream, request); err != nil {
		stream.Close()
		return
	}

	s.mu.RLock()
	delegate := s.incomingDelegate
	destinationDir := s.destinationDir
	s.mu.RUnlock()

	if delegate == nil {
		stream.Close()
		return
	}

	delegate.OnIncomingConnection(newConnectionRequest(request, stream, destinationDir))
}
