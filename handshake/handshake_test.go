package handshake

import (
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pipeConn struct {
	net.Conn
}

func TestHandshakeEstablishesMatchingStream(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	var senderStream, receiverStream interface {
		io.ReadWriteCloser
	}
	var senderErr, receiverErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		senderStream, senderErr = InitiateSender(pipeConn{clientConn})
	}()
	go func() {
		defer wg.Done()
		receiverStream, receiverErr = InitiateReceiver(pipeConn{serverConn})
	}()
	wg.Wait()

	assert.Nil(t, senderErr)
	assert.Nil(t, receiverErr)

	plaintext := []byte("handshake complete")
	writeDone := make(chan error, 1)
	go func() {
		_, err := senderStream.Write(plaintext)
		writeDone <- err
	}()

	got := make([]byte, len(plaintext))
	_, err := io.ReadFull(receiverStream, got)
	assert.Nil(t, err)
	assert.Nil(t, <-writeDone)
	assert.Equal(t, plaintext, got)
}

func TestInitiateReceiverRejectsGarbage(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		clientConn.Write([]byte{0xff, 0xff, 0xff, 0xff})
		clientConn.Close()
	}()

	_, err := InitiateReceiver(pipeConn{serverConn})
	assert.NotNil(t, err)
}
