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

// Package encryption wraps an arbitrary io.ReadWriteCloser in an
// unauthenticated XChaCha20 keystream, decorating a raw connection
// before any application bytes touch it.
package encryption

import (
	"io"

	"golang.org/x/crypto/chacha20"
)

// KeySize is the length in bytes of the shared symmetric key.
const KeySize = chacha20.KeySize

// NonceSize is the length in bytes of the XChaCha20 nonce (the "IV" in the
// handshake messages).
const NonceSize = chacha20.NonceSizeX

// Stream wraps an underlying io.ReadWriteCloser with a single XChaCha20
// keystream shared between reads and writes. Both ends must be
// constructed with the identical key and nonce; the keystream advances
// monotonically on every byte processed by either Read or Write, so the
// two sides must produce and consume bytes in matching order — this is
// the framed request/response protocol's job, not this type's. No
// authentication tag is added at this layer.
type Stream struct {
	conn   io.ReadWriteCloser
	cipher *chacha20.Cipher
}

// NewStream builds a Stream over conn using key and nonce. Both peers
// construct their Stream with the identical key and nonce; one peer's
// keystream position for a given logical byte always lines up with the
// other peer's, because both sides issue reads and writes in the same
// relative order dictated by the protocol above this layer.
func NewStream(conn io.ReadWriteCloser, key, nonce []byte) (*Stream, error) {
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	return &Stream{conn: conn, cipher: cipher}, nil
}

// Read pulls up to len(p) ciphertext bytes from the underlying stream and
// applies the current keystream position in place, producing plaintext.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	if n > 0 {
		s.cipher.XORKeyStream(p[:n], p[:n])
	}
	return n, err
}

// Write encrypts p with the current keystream position and forwards the
// ciphertext to the underlying stream.
func (s *Stream) Write(p []byte) (int, error) {
	ciphertext := make([]byte, len(p))
	s.cipher.XORKeyStream(ciphertext, p)
	return s.conn.Write(ciphertext)
}

// Close releases the underlying stream.
func (s *Stream) Close() error {
	return s.conn.Close()
}

// flusher is implemented by underlying streams that buffer writes and need
// an explicit push, such as nearby.NativeStream over BLE L2CAP.
type flusher interface {
	Flush() error
}

// Flush forwards to the underlying stream's Flush when it supports one
// (e.g. a buffered BLE L2CAP connection); it is a no-op over a transport
// like net.Conn that writes through immediately.
func (s *Stream) Flush() error {
	if f, ok := s.conn.(flusher); ok {
		return f.Flush()
	}
	return nil
}
