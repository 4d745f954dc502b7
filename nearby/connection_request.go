package nearby

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"code.cloudfoundry.org/bytefmt"

	"github.com/julian-baumann/data-rct/wire"
)

// defaultFileName is used when a FileTransferIntent omits a file name.
const defaultFileName = "temp.zip"

// IncomingConnectionDelegate is handed a ConnectionRequest for every raw
// stream the engine accepts, once the responder handshake and the framed
// TransferRequest have both succeeded.
type IncomingConnectionDelegate interface {
	OnIncomingConnection(request *ConnectionRequest)
}

// ConnectionRequest is the opaque handle given to the receiving
// application. Exactly one of Accept or Decline must be called; after
// that the handle is terminal.
type ConnectionRequest struct {
	mu             sync.Mutex
	resolved       bool
	cancelled      int32
	request        *wire.TransferRequest
	stream         io.ReadWriteCloser
	destinationDir string
}

func newConnectionRequest(request *wire.TransferRequest, stream io.ReadWriteCloser, destinationDir string) *ConnectionRequest {
	return &ConnectionRequest{request: request, stream: stream, destinationDir: destinationDir}
}

// Sender returns the Device that initiated this request.
func (c *ConnectionRequest) Sender() *wire.Device {
	return c.request.Device
}

// FileTransferIntent returns the file transfer details of this request, or
// nil if this request carries a clipboard intent instead.
func (c *ConnectionRequest) FileTransferIntent() *wire.FileTransferIntent {
	return c.request.FileTransferIntent
}

// ClipboardTransferIntent returns the clipboard details of this request,
// or nil if this request carries a file transfer intent instead.
func (c *ConnectionRequest) ClipboardTransferIntent() *wire.ClipboardTransferIntent {
	return c.request.ClipboardTransferIntent
}

// Cancel requests that an in-progress file write loop stop at its next
// iteration boundary. It is safe to call from any goroutine.
func (c *ConnectionRequest) Cancel() {
	atomic.StoreInt32(&c.cancelled, 1)
}

func (c *ConnectionRequest) isCancelled() bool {
	return atomic.LoadInt32(&c.cancelled) == 1
}

func (c *ConnectionRequest) resolve() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return ErrAlreadyResolved
	}
	c.resolved = true
	return nil
}

// Decline sends TransferRequestResponse{accepted: false} and closes the
// stream.
func (c *ConnectionRequest) Decline() error {
	if err := c.resolve(); err != nil {
		return err
	}
	defer c.stream.Close()
	return wire.WriteMessage(c.stream, &wire.TransferRequestResponse{Accepted: false})
}

// Accept emits Handshake progress, sends
// TransferRequestResponse{accepted: true}, and dispatches on the request's
// intent: a file transfer streams into destinationDir, a clipboard
// transfer emits Finished at once and reads nothing further from the
// stream (its text is already available from ClipboardTransferIntent).
func (c *ConnectionRequest) Accept(delegate ReceiveProgressDelegate) error {
	if err := c.resolve(); err != nil {
		return err
	}
	if delegate == nil {
		delegate = noopReceiveDelegate{}
	}
	defer c.stream.Close()

	delegate.OnReceiveProgress(ReceiveProgressState{Kind: ReceiveHandshake})
	if err := wire.WriteMessage(c.stream, &wire.TransferRequestResponse{Accepted: true}); err != nil {
		return err
	}

	switch {
	case c.request.FileTransferIntent != nil:
		return c.receiveFile(delegate, c.request.FileTransferIntent)
	case c.request.ClipboardTransferIntent != nil:
		return c.receiveClipboard(delegate, c.request.ClipboardTransferIntent)
	}
	return nil
}

func (c *ConnectionRequest) receiveFile(delegate ReceiveProgressDelegate, intent *wire.FileTransferIntent) error {
	fileName := defaultFileName
	if intent.FileName != nil && *intent.FileName != "" {
		fileName = *intent.FileName
	}
	destination := filepath.Join(c.destinationDir, fileName)

	f, err := os.Create(destination)
	if err != nil {
		return err
	}

	var written uint64
	buf := make([]byte, ChunkSize)
	for {
		if c.isCancelled() {
			break
		}
		toRead := buf
		if remaining := intent.FileSize - written; remaining < uint64(len(buf)) {
			toRead = buf[:remaining]
		}
		if len(toRead) == 0 {
			break
		}
		n, rerr := c.stream.Read(toRead)
		if n > 0 {
			if _, werr := f.Write(toRead[:n]); werr != nil {
				f.Close()
				return werr
			}
			written += uint64(n)
			delegate.OnReceiveProgress(ReceiveProgressState{
				Kind:     ReceiveTransferring,
				Progress: progressRatio(written, intent.FileSize),
			})
		}
		if rerr != nil || n == 0 {
			break
		}
		if written >= intent.FileSize {
			break
		}
	}
	f.Close()

	if written != intent.FileSize {
		os.Remove(destination)
		delegate.OnReceiveProgress(ReceiveProgressState{Kind: ReceiveCancelled})
		return nil
	}

	log.Printf("nearby: received %s from %s", bytefmt.ByteSize(written), c.request.Device.Id)
	delegate.OnReceiveProgress(ReceiveProgressState{Kind: ReceiveFinished})
	return nil
}

func (c *ConnectionRequest) receiveClipboard(delegate ReceiveProgressDelegate, intent *wire.ClipboardTransferIntent) error {
	delegate.OnReceiveProgress(ReceiveProgressState{Kind: ReceiveFinished})
	return nil
}

func progressRatio(done, total uint64) float64 {
	if total == 0 {
		return 1
	}
	return float64(done) / float64(total)
}
