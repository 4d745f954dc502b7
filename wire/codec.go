package wire

import (
	"io"

	"github.com/golang/protobuf/proto"
)

// MaxMessageLength bounds the varint length prefix accepted by ReadMessage,
// sized for the larger transfer-intent payloads this protocol carries.
const MaxMessageLength = 32 * 1024 * 1024

// Marshaler is implemented by every message type in this package.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Unmarshaler is implemented by every message type in this package.
type Unmarshaler interface {
	Unmarshal(data []byte) error
}

// WriteMessage frames m as a varint length prefix followed by its
// marshaled body and writes it to w.
func WriteMessage(w io.Writer, m Marshaler) error {
	body, err := m.Marshal()
	if err != nil {
		return err
	}
	prefix := proto.EncodeVarint(uint64(len(body)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadMessage reads one varint-length-prefixed body from r and unmarshals
// it into m. It blocks until a full message has arrived or r returns an
// error.
func ReadMessage(r io.Reader, m Unmarshaler) error {
	length, err := readUvarint(r)
	if err != nil {
		return err
	}
	if length > MaxMessageLength {
		return ErrMessageTooLarge
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return m.Unmarshal(body)
}

// readUvarint reads a protobuf-style base-128 varint one byte at a time,
// since io.Reader gives no way to peek ahead.
func readUvarint(r io.Reader) (uint64, error) {
	var buf [1]byte
	var x uint64
	var s uint
	for i := 0; i < 10; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		b := buf[0]
		if b < 0x80 {
			if i == 9 && b > 1 {
				return 0, ErrInvalidFraming
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, ErrInvalidFraming
}
