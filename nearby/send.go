package nearby

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"code.cloudfoundry.org/bytefmt"
	"github.com/google/uuid"

	"github.com/julian-baumann/data-rct/handshake"
	"github.com/julian-baumann/data-rct/wire"
)

// SendFile runs the full send pipeline for one file: look up the
// receiver's ConnectionInfo, connect (TCP preferred, BLE L2CAP fallback),
// run the initiator handshake, exchange TransferRequest/Response, and
// stream the file, reporting progress to delegate throughout.
func (s *serverImpl) SendFile(receiverID string, path string, delegate SendProgressDelegate) error {
	if delegate == nil {
		delegate = noopSendDelegate{}
	}
	delegate.OnSendProgress(SendProgressState{Kind: SendConnecting})

	info := s.registry.GetConnectionDetails(receiverID)
	if info == nil {
		return ErrFailedToGetConnectionDetails
	}

	rawStream, err := s.connect(info)
	if err != nil {
		return err
	}

	stream, err := handshake.InitiateSender(rawStream)
	if err != nil {
		rawStream.Close()
		return fmt.Errorf("%w: %v", ErrFailedToEncryptStream, err)
	}
	defer stream.Close()

	delegate.OnSendProgress(SendProgressState{Kind: SendRequesting})

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}
	fileName := filepath.Base(path)
	fileSize := uint64(stat.Size())

	request := &wire.TransferRequest{
		Device: s.localDevice(),
		FileTransferIntent: &wire.FileTransferIntent{
			FileName: &fileName,
			FileSize: fileSize,
			Multiple: false,
		},
	}
	if err := wire.WriteMessage(stream, request); err != nil {
		return err
	}

	response := new(wire.TransferRequestResponse)
	if err := wire.ReadMessage(stream, response); err != nil {
		return ErrFailedToGetTransferRequestResponse
	}
	if !response.Accepted {
		delegate.OnSendProgress(SendProgressState{Kind: SendDeclined})
		return ErrDeclined
	}

	delegate.OnSendProgress(SendProgressState{Kind: SendTransferring, Progress: 0})

	buf := make([]byte, s.readConfig().ChunkSize)
	var sent uint64
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := stream.Write(buf[:n]); werr != nil {
				return werr
			}
			sent += uint64(n)
			delegate.OnSendProgress(SendProgressState{
				Kind:     SendTransferring,
				Progress: progressRatio(sent, fileSize),
			})
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}

	if sent >= fileSize {
		log.Printf("nearby: sent %s to %s", bytefmt.ByteSize(sent), receiverID)
		delegate.OnSendProgress(SendProgressState{Kind: SendFinished})
		return nil
	}
	delegate.OnSendProgress(SendProgressState{Kind: SendCancelled})
	return nil
}

// connect opens a raw duplex stream to info, trying TCP first and falling
// back to BLE L2CAP when TCP fails and a BLE endpoint plus L2CAP client
// are both available.
func (s *serverImpl) connect(info *wire.DeviceConnectionInfo) (io.ReadWriteCloser, error) {
	tcpAttempted := false
	if info.Tcp != nil {
		tcpAttempted = true
		stream, err := s.connectTcp(info.Tcp)
		if err == nil {
			return stream, nil
		}
	}

	if info.Ble == nil {
		if !tcpAttempted {
			return nil, ErrFailedToGetTcpDetails
		}
		return nil, ErrFailedToGetBleDetails
	}

	s.mu.RLock()
	l2cap := s.l2capClient
	s.mu.RUnlock()
	if l2cap == nil {
		return nil, ErrInternalBleHandlerNotAvailable
	}

	stream, err := s.connectBle(l2cap, info.Ble)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (s *serverImpl) connectTcp(info *wire.TcpConnectionInfo) (io.ReadWriteCloser, error) {
	address := net.JoinHostPort(info.Hostname, strconv.Itoa(int(info.Port)))
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, ErrFailedToGetSocketAddress
	}

	config := s.readConfig()
	conn, err := net.DialTimeout("tcp", tcpAddr.String(), config.TcpConnectTimeout)
	if err != nil {
		return nil, ErrFailedToOpenTcpStream
	}
	return &deadlineConn{Conn: conn, readTimeout: config.ReadTimeout, writeTimeout: config.WriteTimeout}, nil
}

func (s *serverImpl) connectBle(client L2CapClient, info *wire.BluetoothLeConnectionInfo) (io.ReadWriteCloser, error) {
	connectionID := uuid.NewString()
	waiter := make(chan io.ReadWriteCloser, 1)

	s.l2capMu.Lock()
	s.l2capConnections[connectionID] = waiter
	s.l2capMu.Unlock()

	if err := client.OpenL2CapConnection(connectionID, info.Uuid, info.Psm); err != nil {
		s.l2capMu.Lock()
		delete(s.l2capConnections, connectionID)
		s.l2capMu.Unlock()
		return nil, err
	}

	select {
	case stream := <-waiter:
		return stream, nil
	case <-s.die:
		s.l2capMu.Lock()
		delete(s.l2capConnections, connectionID)
		s.l2capMu.Unlock()
		return nil, ErrFailedToEstablishBleConnection
	}
}

// HandleIncomingBleConnection routes a raw stream the L2CAP client has
// just established back to the send_file call awaiting connectionID. If
// no one is waiting (the caller gave up, or connectionID is unknown), the
// stream is closed.
func (s *serverImpl) HandleIncomingBleConnection(connectionID string, stream io.ReadWriteCloser) {
	s.l2capMu.Lock()
	waiter, ok := s.l2capConnections[connectionID]
	if ok {
		delete(s.l2capConnections, connectionID)
	}
	s.l2capMu.Unlock()

	if !ok {
		stream.Close()
		return
	}
	waiter <- stream
}
