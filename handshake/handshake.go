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

// Package handshake performs the ephemeral X25519 key exchange that
// bootstraps an encryption.Stream over a freshly connected transport. It
// is a forward-secret exchange scoped to a single connection: there is
// no persistent peer identity to authenticate here, only a session key
// to agree on.
package handshake

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"

	"github.com/julian-baumann/data-rct/encryption"
	"github.com/julian-baumann/data-rct/wire"
)

var (
	// ErrInvalidForeignPublicKey is returned when a peer's advertised
	// X25519 public key is not exactly 32 bytes, or fails the all-zero
	// low-order-point check.
	ErrInvalidForeignPublicKey = errors.New("handshake: invalid foreign public key")

	// ErrInvalidNonce is returned when the responder's IV is not exactly
	// encryption.NonceSize bytes.
	ErrInvalidNonce = errors.New("handshake: invalid nonce")
)

// InitiateSender runs the initiator side of the handshake: generate an
// ephemeral key pair, send EncryptionRequest, read EncryptionResponse,
// derive the shared secret, and wrap conn in an encryption.Stream keyed
// with the responder's chosen IV.
func InitiateSender(conn io.ReadWriteCloser) (*encryption.Stream, error) {
	scalar, public, err := generateKeyPair()
	if err != nil {
		return nil, err
	}

	if err := wire.WriteMessage(conn, &wire.EncryptionRequest{PublicKey: public}); err != nil {
		return nil, err
	}

	resp := new(wire.EncryptionResponse)
	if err := wire.ReadMessage(conn, resp); err != nil {
		return nil, err
	}
	if len(resp.Iv) != encryption.NonceSize {
		return nil, ErrInvalidNonce
	}

	shared, err := sharedSecret(scalar, resp.PublicKey)
	if err != nil {
		return nil, err
	}

	return encryption.NewStream(conn, shared, resp.Iv)
}

// InitiateReceiver runs the responder side of the handshake: read
// EncryptionRequest, generate an ephemeral key pair and a random IV, send
// EncryptionResponse, derive the shared secret, and wrap conn in an
// encryption.Stream.
func InitiateReceiver(conn io.ReadWriteCloser) (*encryption.Stream, error) {
	req := new(wire.EncryptionRequest)
	if err := wire.ReadMessage(conn, req); err != nil {
		return nil, err
	}

	scalar, public, err := generateKeyPair()
	if err != nil {
		return nil, err
	}

	iv := make([]byte, encryption.NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	if err := wire.WriteMessage(conn, &wire.EncryptionResponse{PublicKey: public, Iv: iv}); err != nil {
		return nil, err
	}

	shared, err := sharedSecret(scalar, req.PublicKey)
	if err != nil {
		return nil, err
	}

	return encryption.NewStream(conn, shared, iv)
}

func generateKeyPair() (scalar, public []byte, err error) {
	scalar = make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(scalar); err != nil {
		return nil, nil, err
	}
	public, err = curve25519.X25519(scalar, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return scalar, public, nil
}

func sharedSecret(scalar, peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != curve25519.PointSize {
		return nil, ErrInvalidForeignPublicKey
	}
	shared, err := curve25519.X25519(scalar, peerPublic)
	if err != nil {
		return nil, ErrInvalidForeignPublicKey
	}
	return shared, nil
}
