// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/routerpeer/lib/identity"
	"github.com/bureau-foundation/routerpeer/protocol"
)

// ErrServerClosed is returned by Accept after Close.
var ErrServerClosed = errors.New("transport: server closed")

// ServerConfig configures a Server.
type ServerConfig struct {
	// Codec frames outbound payloads.
	Codec FrameCodec

	// Authorize admits or rejects a peer after it proves its identity.
	// Nil admits everyone.
	Authorize func(identity.Identity) error

	// HandshakeTimeout bounds each handshake. Zero means
	// DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration

	// Logger receives handshake failures. Nil means slog.Default().
	Logger *slog.Logger
}

// Server is the router end of the transport: it accepts peers over TCP
// (Listen) and WebSocket (ServeHTTP), authenticates them, and hands
// them out through Accept. It backs the tests and local development;
// it does no routing of its own.
type Server struct {
	config   ServerConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	accepted  chan *ServerConn
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer returns a server with no listeners.
func NewServer(config ServerConfig) *Server {
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsReadBuffer,
			WriteBufferSize: wsWriteBuffer,
		},
		accepted: make(chan *ServerConn),
		closed:   make(chan struct{}),
	}
}

// Listen starts accepting TCP peers on address (for example
// "127.0.0.1:0").
func (s *Server) Listen(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		listener.Close()
		return errors.New("transport: server is already listening")
	}
	s.listener = listener
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Address returns the TCP listen address in host:port form, or "" when
// Listen has not been called.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.logger.Error("accept failed", "error", err)
			}
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.admit(newStreamConn(conn, s.config.Codec))
		}()
	}
}

// ServeHTTP upgrades the request to a WebSocket and admits the peer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	s.admit(newWebsocketConn(conn, s.config.Codec))
}

// admit runs the handshake and queues the peer for Accept.
func (s *Server) admit(conn Conn) {
	if err := conn.SetDeadline(time.Now().Add(s.config.HandshakeTimeout)); err != nil {
		conn.Close()
		return
	}
	greeting, err := serverHandshake(conn, s.config.Authorize)
	if err != nil {
		s.logger.Info("peer handshake failed", "remote", conn.RemoteAddress(), "error", err)
		conn.Close()
		return
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return
	}

	peer := &ServerConn{
		conn:         conn,
		Identity:     greeting.Identity,
		ConnectionID: greeting.ConnectionID,
	}
	select {
	case s.accepted <- peer:
	case <-s.closed:
		conn.Close()
	}
}

// Accept returns the next authenticated peer.
func (s *Server) Accept(ctx context.Context) (*ServerConn, error) {
	select {
	case peer := <-s.accepted:
		return peer, nil
	case <-s.closed:
		return nil, ErrServerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the TCP listener and rejects peers still waiting for
// Accept. Connections already returned by Accept stay open.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
	return err
}

// ServerConn is one authenticated peer as seen by the router.
type ServerConn struct {
	conn Conn

	// Identity is the peer's proven identity.
	Identity identity.Identity

	// ConnectionID is the peer's id for this connection, from its
	// hello.
	ConnectionID string
}

// Send writes message to the peer.
func (c *ServerConn) Send(message protocol.Message) error {
	payload, err := protocol.Encode(message)
	if err != nil {
		return err
	}
	return c.conn.WriteFrame(payload)
}

// SendRaw writes an arbitrary payload, bypassing message encoding.
func (c *ServerConn) SendRaw(payload []byte) error {
	return c.conn.WriteFrame(payload)
}

// SendEncoded writes frame bytes exactly as given, header included.
func (c *ServerConn) SendEncoded(frame []byte) error {
	return c.conn.WriteEncoded(frame)
}

// Receive blocks until the peer sends a message.
func (c *ServerConn) Receive() (protocol.Message, error) {
	payload, err := c.conn.ReadFrame()
	if err != nil {
		return nil, err
	}
	message, err := protocol.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding message from %s: %w", c.Identity.Fingerprint(), err)
	}
	return message, nil
}

// Close disconnects the peer.
func (c *ServerConn) Close() error { return c.conn.Close() }
