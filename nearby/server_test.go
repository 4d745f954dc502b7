package nearby

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/julian-baumann/data-rct/wire"
)

type recordingSendDelegate struct {
	mu     sync.Mutex
	states []SendProgressState
}

func (d *recordingSendDelegate) OnSendProgress(state SendProgressState) {
	d.mu.Lock()
	d.states = append(d.states, state)
	d.mu.Unlock()
}

func (d *recordingSendDelegate) kinds() []SendProgressKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]SendProgressKind, len(d.states))
	for i, s := range d.states {
		kinds[i] = s.Kind
	}
	return kinds
}

type recordingReceiveDelegate struct {
	mu     sync.Mutex
	states []ReceiveProgressState
}

func (d *recordingReceiveDelegate) OnReceiveProgress(state ReceiveProgressState) {
	d.mu.Lock()
	d.states = append(d.states, state)
	d.mu.Unlock()
}

func (d *recordingReceiveDelegate) kinds() []ReceiveProgressKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]ReceiveProgressKind, len(d.states))
	for i, s := range d.states {
		kinds[i] = s.Kind
	}
	return kinds
}

type autoAcceptDelegate struct {
	receiveDelegate *recordingReceiveDelegate
	accepted        chan error
}

func (d *autoAcceptDelegate) OnIncomingConnection(req *ConnectionRequest) {
	go func() {
		d.accepted <- req.Accept(d.receiveDelegate)
	}()
}

type declineDelegate struct {
	declined chan error
}

func (d *declineDelegate) OnIncomingConnection(req *ConnectionRequest) {
	go func() {
		d.declined <- req.Decline()
	}()
}

func newBobAndAlice(t *testing.T, destDir string, incoming IncomingConnectionDelegate) (*Server, *Server) {
	alice := &wire.Device{Id: "A", Name: "Alice", DeviceType: 2, ProtocolVersion: 1}
	bob := &wire.Device{Id: "B", Name: "Bob", DeviceType: 2, ProtocolVersion: 1}

	sender, err := NewServer(alice, destDir, nil)
	assert.Nil(t, err)

	receiver, err := NewServer(bob, destDir, incoming)
	assert.Nil(t, err)

	return sender, receiver
}

func TestLoopbackFileTransferOverTcp(t *testing.T) {
	destDir := t.TempDir()
	recv := &recordingReceiveDelegate{}
	accepted := make(chan error, 1)
	incoming := &autoAcceptDelegate{receiveDelegate: recv, accepted: accepted}

	sender, receiver := newBobAndAlice(t, destDir, incoming)
	assert.Nil(t, receiver.Start())
	defer receiver.Stop()

	port := receiver.tcpInfo.Port
	assert.NotZero(t, port)

	sender.Registry().ParseDiscoveryMessage(encodeConnectionInfo(t, "B", "127.0.0.1", port, nil), "")

	srcPath := filepath.Join(t.TempDir(), "hello.txt")
	assert.Nil(t, os.WriteFile(srcPath, []byte("hello"), 0o644))

	send := &recordingSendDelegate{}
	assert.Nil(t, sender.SendFile("B", srcPath, send))

	assert.Nil(t, <-accepted)

	assert.Equal(t, []SendProgressKind{
		SendConnecting, SendRequesting, SendTransferring, SendTransferring, SendFinished,
	}, send.kinds())

	recvKinds := recv.kinds()
	assert.Equal(t, ReceiveHandshake, recvKinds[0])
	assert.Equal(t, ReceiveFinished, recvKinds[len(recvKinds)-1])

	got, err := os.ReadFile(filepath.Join(destDir, "hello.txt"))
	assert.Nil(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestDeclinedTransfer(t *testing.T) {
	destDir := t.TempDir()
	declined := make(chan error, 1)
	incoming := &declineDelegate{declined: declined}

	sender, receiver := newBobAndAlice(t, destDir, incoming)
	assert.Nil(t, receiver.Start())
	defer receiver.Stop()

	sender.Registry().ParseDiscoveryMessage(encodeConnectionInfo(t, "B", "127.0.0.1", receiver.tcpInfo.Port, nil), "")

	srcPath := filepath.Join(t.TempDir(), "hello.txt")
	assert.Nil(t, os.WriteFile(srcPath, []byte("hello"), 0o644))

	send := &recordingSendDelegate{}
	err := sender.SendFile("B", srcPath, send)
	assert.Equal(t, ErrDeclined, err)
	assert.Nil(t, <-declined)

	assert.Equal(t, SendDeclined, send.kinds()[len(send.kinds())-1])

	_, statErr := os.Stat(filepath.Join(destDir, "hello.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

type fakeL2CapClient struct {
	sender   *Server
	receiver *Server
}

func (c *fakeL2CapClient) OpenL2CapConnection(connectionID, peripheralUUID string, psm uint32) error {
	clientSide, serverSide := net.Pipe()
	go c.receiver.HandleIncomingConnection(serverSide)
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.sender.HandleIncomingBleConnection(connectionID, clientSide)
	}()
	return nil
}

func TestTcpUnreachableFallsBackToBle(t *testing.T) {
	destDir := t.TempDir()
	recv := &recordingReceiveDelegate{}
	accepted := make(chan error, 1)
	incoming := &autoAcceptDelegate{receiveDelegate: recv, accepted: accepted}

	sender, receiver := newBobAndAlice(t, destDir, incoming)
	assert.Nil(t, receiver.Start())
	defer receiver.Stop()

	closedPortListener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	closedPort := uint32(closedPortListener.Addr().(*net.TCPAddr).Port)
	closedPortListener.Close()

	sender.AddL2CapClient(&fakeL2CapClient{sender: sender, receiver: receiver})
	ble := &wire.BluetoothLeConnectionInfo{Uuid: "peer-uuid", Psm: 128}
	sender.Registry().ParseDiscoveryMessage(encodeConnectionInfo(t, "B", "127.0.0.1", closedPort, ble), "")

	srcPath := filepath.Join(t.TempDir(), "hello.txt")
	assert.Nil(t, os.WriteFile(srcPath, []byte("hello"), 0o644))

	send := &recordingSendDelegate{}
	assert.Nil(t, sender.SendFile("B", srcPath, send))
	assert.Nil(t, <-accepted)
	assert.Equal(t, SendFinished, send.kinds()[len(send.kinds())-1])
}

type refusingL2CapClient struct {
	err error
}

func (c *refusingL2CapClient) OpenL2CapConnection(connectionID, peripheralUUID string, psm uint32) error {
	return c.err
}

func TestBleConnectFailurePropagatesUnderlyingError(t *testing.T) {
	destDir := t.TempDir()
	sender, _ := newBobAndAlice(t, destDir, nil)

	closedPortListener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	closedPort := uint32(closedPortListener.Addr().(*net.TCPAddr).Port)
	closedPortListener.Close()

	refusalErr := errors.New("l2cap: no peripheral in range")
	sender.AddL2CapClient(&refusingL2CapClient{err: refusalErr})
	ble := &wire.BluetoothLeConnectionInfo{Uuid: "peer-uuid", Psm: 128}
	sender.Registry().ParseDiscoveryMessage(encodeConnectionInfo(t, "B", "127.0.0.1", closedPort, ble), "")

	srcPath := filepath.Join(t.TempDir(), "hello.txt")
	assert.Nil(t, os.WriteFile(srcPath, []byte("hello"), 0o644))

	err = sender.SendFile("B", srcPath, nil)
	assert.Equal(t, refusalErr, err)
	assert.NotEqual(t, ErrUnreachable, err)
}

func TestMissingBleFallbackReturnsFailedToGetBleDetails(t *testing.T) {
	destDir := t.TempDir()
	sender, _ := newBobAndAlice(t, destDir, nil)

	closedPortListener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	closedPort := uint32(closedPortListener.Addr().(*net.TCPAddr).Port)
	closedPortListener.Close()

	sender.Registry().ParseDiscoveryMessage(encodeConnectionInfo(t, "B", "127.0.0.1", closedPort, nil), "")

	srcPath := filepath.Join(t.TempDir(), "hello.txt")
	assert.Nil(t, os.WriteFile(srcPath, []byte("hello"), 0o644))

	err = sender.SendFile("B", srcPath, nil)
	assert.Equal(t, ErrFailedToGetBleDetails, err)
}

func TestHandshakeMismatchClosesSilently(t *testing.T) {
	destDir := t.TempDir()
	recv := &recordingReceiveDelegate{}
	accepted := make(chan error, 1)
	incoming := &autoAcceptDelegate{receiveDelegate: recv, accepted: accepted}

	_, receiver := newBobAndAlice(t, destDir, incoming)
	assert.Nil(t, receiver.Start())
	defer receiver.Stop()

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(receiver.tcpInfo.Port))))
	assert.Nil(t, err)

	garbage := make([]byte, 31)
	_, err = conn.Write(append([]byte{31}, garbage...))
	assert.Nil(t, err)
	conn.Close()

	select {
	case <-accepted:
		t.Fatal("application delegate should not have been notified")
	case <-time.After(100 * time.Millisecond):
	}
}

func encodeConnectionInfo(t *testing.T, id, hostname string, port uint32, ble *wire.BluetoothLeConnectionInfo) []byte {
	msg := &wire.DeviceDiscoveryMessage{
		ConnectionInfo: &wire.DeviceConnectionInfo{
			Device: &wire.Device{Id: id, Name: id},
			Tcp:    &wire.TcpConnectionInfo{Hostname: hostname, Port: port},
			Ble:    ble,
		},
	}
	body, err := msg.Marshal()
	assert.Nil(t, err)
	return body
}

var _ io.ReadWriteCloser = (*net.TCPConn)(nil)
