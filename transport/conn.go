// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Compile-time interface checks.
var (
	_ Conn = (*streamConn)(nil)
	_ Conn = (*websocketConn)(nil)
)

const (
	wsReadBuffer       = 4096
	wsWriteBuffer      = 4096
	wsPingInterval     = 30 * time.Second
	wsPingWriteTimeout = 5 * time.Second
)

// Conn carries frames between a peer and its router. Implementations
// allow one concurrent reader and any number of concurrent writers.
type Conn interface {
	// ReadFrame blocks until a frame arrives and returns its
	// decompressed payload. Errors wrapping ErrMalformedFrame leave the
	// connection usable for the next frame.
	ReadFrame() ([]byte, error)

	// WriteFrame frames payload with the connection's codec and sends
	// it.
	WriteFrame(payload []byte) error

	// WriteEncoded sends frame, which must already carry its header,
	// without inspecting it.
	WriteEncoded(frame []byte) error

	// SetDeadline bounds all pending and future reads and writes. The
	// zero time clears it.
	SetDeadline(t time.Time) error

	// RemoteAddress describes the other end for logs.
	RemoteAddress() string

	Close() error
}

// IsWebsocketAddress reports whether address selects the WebSocket
// transport.
func IsWebsocketAddress(address string) bool {
	return strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://")
}

// Dial opens a connection to a router. Addresses beginning with ws://
// or wss:// use WebSocket; anything else is a TCP host:port. timeout
// bounds connection establishment only; zero means only the context
// deadline applies.
func Dial(ctx context.Context, address string, timeout time.Duration, codec FrameCodec) (Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if IsWebsocketAddress(address) {
		dialer := &websocket.Dialer{
			ReadBufferSize:   wsReadBuffer,
			WriteBufferSize:  wsWriteBuffer,
			HandshakeTimeout: timeout,
			Proxy:            http.ProxyFromEnvironment,
		}
		conn, response, err := dialer.DialContext(ctx, address, nil)
		if err != nil {
			if response != nil {
				return nil, fmt.Errorf("dialing %s: %w (HTTP status %s)", address, err, response.Status)
			}
			return nil, fmt.Errorf("dialing %s: %w", address, err)
		}
		return newWebsocketConn(conn, codec), nil
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	return newStreamConn(conn, codec), nil
}

// streamConn frames over a byte stream.
type streamConn struct {
	conn    net.Conn
	reader  *bufio.Reader
	codec   FrameCodec
	writeMu sync.Mutex
}

func newStreamConn(conn net.Conn, codec FrameCodec) *streamConn {
	return &streamConn{conn: conn, reader: bufio.NewReader(conn), codec: codec}
}

func (c *streamConn) ReadFrame() ([]byte, error) {
	return ReadFrame(c.reader)
}

func (c *streamConn) WriteFrame(payload []byte) error {
	frame, err := c.codec.Encode(payload)
	if err != nil {
		return err
	}
	return c.WriteEncoded(frame)
}

func (c *streamConn) WriteEncoded(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (c *streamConn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

func (c *streamConn) RemoteAddress() string { return c.conn.RemoteAddr().String() }

func (c *streamConn) Close() error { return c.conn.Close() }

// websocketConn sends one frame per binary message and keeps idle
// connections alive with pings.
type websocketConn struct {
	conn      *websocket.Conn
	codec     FrameCodec
	writeMu   sync.Mutex
	pingReset chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newWebsocketConn(conn *websocket.Conn, codec FrameCodec) *websocketConn {
	conn.SetReadLimit(frameHeaderLength + MaxFrameLength)
	wc := &websocketConn{
		conn:      conn,
		codec:     codec,
		pingReset: make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
	wc.wg.Add(1)
	go wc.pingLoop()
	return wc
}

func (c *websocketConn) ReadFrame() ([]byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read websocket message: %w", err)
	}
	if messageType != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: unexpected websocket message type %d", ErrMalformedFrame, messageType)
	}
	return DecodeFrame(data)
}

func (c *websocketConn) WriteFrame(payload []byte) error {
	frame, err := c.codec.Encode(payload)
	if err != nil {
		return err
	}
	return c.WriteEncoded(frame)
}

func (c *websocketConn) WriteEncoded(frame []byte) error {
	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.BinaryMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write websocket message: %w", err)
	}

	// Delay the next idle ping.
	select {
	case c.pingReset <- struct{}{}:
	default:
	}
	return nil
}

func (c *websocketConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func (c *websocketConn) RemoteAddress() string { return c.conn.RemoteAddr().String() }

func (c *websocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	c.wg.Wait()
	return err
}

// pingLoop sends a ping after each idle interval.
func (c *websocketConn) pingLoop() {
	defer c.wg.Done()
	timer := time.NewTimer(wsPingInterval)
	defer timer.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-c.pingReset:
			timer.Reset(wsPingInterval)
		case <-timer.C:
			deadline := time.Now().Add(wsPingWriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
			timer.Reset(wsPingInterval)
		}
	}
}
