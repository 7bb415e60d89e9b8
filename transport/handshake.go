// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/routerpeer/lib/codec"
	"github.com/bureau-foundation/routerpeer/lib/identity"
)

// ProtocolVersion is sent in the handshake hello. A router rejects
// versions it does not speak.
const ProtocolVersion = 1

// handshakeNonceSize is the size of the router's random challenge.
const handshakeNonceSize = 32

// DefaultHandshakeTimeout bounds the whole handshake when the caller
// does not configure a dial timeout.
const DefaultHandshakeTimeout = 10 * time.Second

// Signer proves possession of an identity. *identity.Keypair
// implements it.
type Signer interface {
	Identity() identity.Identity
	Sign(message []byte) []byte
}

// The handshake records, each CBOR in its own frame:
//
//	peer   -> router  hello
//	router -> peer    challenge
//	peer   -> router  proof
//	router -> peer    verdict
type (
	hello struct {
		Version      int               `cbor:"version"`
		Identity     identity.Identity `cbor:"identity"`
		ConnectionID string            `cbor:"connection_id"`
	}
	challenge struct {
		Nonce []byte `cbor:"nonce"`
	}
	proof struct {
		Signature []byte `cbor:"signature"`
	}
	verdict struct {
		Welcome bool   `cbor:"welcome"`
		Reason  string `cbor:"reason,omitempty"`
	}
)

// HandshakeError is returned when the router refuses the handshake.
type HandshakeError struct {
	Address string
	Reason  string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("router %s rejected handshake: %s", e.Address, e.Reason)
}

// IsHandshakeError reports whether err is or wraps a *HandshakeError.
func IsHandshakeError(err error) bool {
	var handshakeError *HandshakeError
	return errors.As(err, &handshakeError)
}

// proofMessage is what the peer signs: the router's nonce followed by
// the peer's own identity, so a proof cannot be replayed for a
// different identity.
func proofMessage(nonce []byte, peer identity.Identity) []byte {
	message := make([]byte, 0, len(nonce)+len(peer))
	message = append(message, nonce...)
	message = append(message, peer[:]...)
	return message
}

// clientHandshake runs the peer side of the handshake.
func clientHandshake(conn Conn, signer Signer, connectionID string) error {
	greeting := hello{
		Version:      ProtocolVersion,
		Identity:     signer.Identity(),
		ConnectionID: connectionID,
	}
	if err := writeRecord(conn, greeting); err != nil {
		return fmt.Errorf("sending hello: %w", err)
	}

	var received challenge
	if err := readRecord(conn, &received); err != nil {
		return fmt.Errorf("reading challenge: %w", err)
	}
	if len(received.Nonce) != handshakeNonceSize {
		return fmt.Errorf("challenge nonce is %d bytes, want %d", len(received.Nonce), handshakeNonceSize)
	}

	signature := signer.Sign(proofMessage(received.Nonce, greeting.Identity))
	if err := writeRecord(conn, proof{Signature: signature}); err != nil {
		return fmt.Errorf("sending proof: %w", err)
	}

	var result verdict
	if err := readRecord(conn, &result); err != nil {
		return fmt.Errorf("reading verdict: %w", err)
	}
	if !result.Welcome {
		return &HandshakeError{Address: conn.RemoteAddress(), Reason: result.Reason}
	}
	return nil
}

// serverHandshake runs the router side of the handshake. authorize,
// when non-nil, is consulted after the signature checks out; its error
// text is sent to the peer as the rejection reason.
func serverHandshake(conn Conn, authorize func(identity.Identity) error) (hello, error) {
	var greeting hello
	if err := readRecord(conn, &greeting); err != nil {
		return hello{}, fmt.Errorf("reading hello: %w", err)
	}

	reject := func(reason string) (hello, error) {
		// Best effort: the peer may already be gone.
		_ = writeRecord(conn, verdict{Reason: reason})
		return hello{}, fmt.Errorf("rejected %s: %s", conn.RemoteAddress(), reason)
	}

	if greeting.Version != ProtocolVersion {
		return reject(fmt.Sprintf("unsupported protocol version %d", greeting.Version))
	}
	if greeting.Identity.IsZero() {
		return reject("missing identity")
	}

	nonce := make([]byte, handshakeNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return hello{}, fmt.Errorf("generating challenge nonce: %w", err)
	}
	if err := writeRecord(conn, challenge{Nonce: nonce}); err != nil {
		return hello{}, fmt.Errorf("sending challenge: %w", err)
	}

	var received proof
	if err := readRecord(conn, &received); err != nil {
		return hello{}, fmt.Errorf("reading proof: %w", err)
	}
	if !greeting.Identity.Verify(proofMessage(nonce, greeting.Identity), received.Signature) {
		return reject("signature verification failed")
	}

	if authorize != nil {
		if err := authorize(greeting.Identity); err != nil {
			return reject(err.Error())
		}
	}

	if err := writeRecord(conn, verdict{Welcome: true}); err != nil {
		return hello{}, fmt.Errorf("sending welcome: %w", err)
	}
	return greeting, nil
}

func writeRecord(conn Conn, record any) error {
	data, err := codec.Marshal(record)
	if err != nil {
		return err
	}
	return conn.WriteFrame(data)
}

func readRecord(conn Conn, record any) error {
	data, err := conn.ReadFrame()
	if err != nil {
		return err
	}
	return codec.Unmarshal(data, record)
}
