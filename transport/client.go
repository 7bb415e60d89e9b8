// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/routerpeer/lib/clock"
	"github.com/bureau-foundation/routerpeer/lib/codec"
	"github.com/bureau-foundation/routerpeer/protocol"
)

// ErrClosed is returned by Send after the client has shut down.
var ErrClosed = errors.New("transport: client closed")

// errDenied ends a session when the router refuses authorization.
var errDenied = errors.New("router denied authorization")

// errShutdown ends a session when the client is closing.
var errShutdown = errors.New("client shutting down")

// ResponseKind discriminates what Receive delivered.
type ResponseKind uint8

const (
	// ResponseMessage carries a message from the router.
	ResponseMessage ResponseKind = iota
	// ResponseDenied reports that the router refused this peer. The
	// client closes immediately afterwards.
	ResponseDenied
	// ResponseConnected reports a completed handshake.
	ResponseConnected
	// ResponseDisconnected reports a lost connection or a failed
	// connection round. Err says why.
	ResponseDisconnected
)

// String returns the kind name.
func (k ResponseKind) String() string {
	switch k {
	case ResponseMessage:
		return "message"
	case ResponseDenied:
		return "denied"
	case ResponseConnected:
		return "connected"
	case ResponseDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("response(%d)", uint8(k))
	}
}

// Response is one item from the client's inbound stream.
type Response struct {
	Kind    ResponseKind
	Message protocol.Message
	Address string
	Err     error
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Signer authenticates the peer during the handshake. Required.
	Signer Signer

	// Addresses are tried in order on every connection round.
	// Required.
	Addresses []string

	// DialTimeout bounds connection establishment plus handshake.
	// Zero means DefaultHandshakeTimeout.
	DialTimeout time.Duration

	// Reconnect keeps the client alive across disconnects. When false
	// the client closes after its first session ends or its first
	// connection round fails.
	Reconnect bool

	// InitialBackoff is the wait before reconnecting after a lost
	// session. Consecutive rounds in which no address connects double
	// it, up to MaxBackoff. Zero values mean 1s and 30s.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Codec frames outbound payloads.
	Codec FrameCodec

	// QueueSize is the outbound queue capacity. Zero means 64.
	QueueSize int

	// Clock drives backoff waits. Nil means the real clock.
	Clock clock.Clock

	// Logger receives connection lifecycle records. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Client is a session channel to a router. It owns the connection,
// reconnects with backoff, and replays subscriptions and the published
// page on every new connection. Send and Receive are safe for
// concurrent use.
type Client struct {
	config ClientConfig
	id     uuid.UUID
	logger *slog.Logger
	clock  clock.Clock

	outbound  chan protocol.Message
	responses chan Response
	sticky    *stickyState

	// pending holds a message taken from outbound whose write failed;
	// it is sent first on the next connection. Only the run goroutine
	// touches it.
	pending protocol.Message

	started   atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient validates config and returns an unstarted client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Signer == nil {
		return nil, errors.New("transport: ClientConfig.Signer is required")
	}
	if len(config.Addresses) == 0 {
		return nil, errors.New("transport: ClientConfig.Addresses is empty")
	}
	config.Addresses = slices.Clone(config.Addresses)
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultHandshakeTimeout
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}

	id := uuid.New()
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("client_id", id.String(), "identity", config.Signer.Identity().Fingerprint())

	return &Client{
		config:    config,
		id:        id,
		logger:    logger,
		clock:     config.Clock,
		outbound:  make(chan protocol.Message, config.QueueSize),
		responses: make(chan Response, config.QueueSize),
		sticky:    newStickyState(),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// ID identifies this client in logs on both ends.
func (c *Client) ID() uuid.UUID { return c.id }

// Start launches the connection loop. It returns immediately;
// connection progress is reported through Receive. Cancelling ctx has
// the same effect as Close.
func (c *Client) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.run(ctx)
}

// Send queues message for delivery. Messages are written in Send order.
// Send blocks only while the queue is full and fails only once the
// client is closed or ctx is done.
func (c *Client) Send(ctx context.Context, message protocol.Message) error {
	if message == nil {
		return errors.New("transport: nil message")
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.outbound <- message:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next response. ok is false once the client has
// closed and every response has been consumed, or when ctx is done.
func (c *Client) Receive(ctx context.Context) (response Response, ok bool) {
	select {
	case response, ok = <-c.responses:
		return response, ok
	case <-ctx.Done():
		return Response{}, false
	}
}

// Close shuts the client down and waits for the connection loop to
// exit. Queued messages that were not yet written are dropped.
func (c *Client) Close() error {
	c.shutdown()
	if c.started.Load() {
		<-c.done
	}
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// deliver hands a message response to Receive. It gives up when the
// client closes.
func (c *Client) deliver(response Response) bool {
	select {
	case c.responses <- response:
		return true
	case <-c.closed:
		return false
	}
}

// notify queues a lifecycle response without blocking. A consumer that
// is not keeping up loses lifecycle notices, never messages.
func (c *Client) notify(response Response) {
	select {
	case c.responses <- response:
	default:
		c.logger.Debug("dropping lifecycle notice", "kind", response.Kind, "address", response.Address)
	}
}

func (c *Client) run(parent context.Context) {
	defer close(c.done)
	defer close(c.responses)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
			c.shutdown()
		}
	}()

	backoff := c.config.InitialBackoff
	sessions := 0
	for {
		connected := false
		var lastErr error
		for _, address := range c.config.Addresses {
			if c.isClosed() || ctx.Err() != nil {
				return
			}
			conn, err := c.connect(ctx, address)
			if err != nil {
				lastErr = err
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn("router connection failed", "address", address, "error", err)
				continue
			}

			connected = true
			sessions++
			err = c.session(ctx, conn, address, sessions > 1)
			conn.Close()

			if errors.Is(err, errShutdown) || ctx.Err() != nil {
				return
			}
			if errors.Is(err, errDenied) {
				c.logger.Warn("router denied authorization", "address", address)
				select {
				case c.responses <- Response{Kind: ResponseDenied, Address: address, Err: err}:
				case <-ctx.Done():
				}
				c.shutdown()
				return
			}

			c.logger.Info("router connection lost", "address", address, "error", err)
			c.notify(Response{Kind: ResponseDisconnected, Address: address, Err: err})
			break
		}

		if !connected {
			c.notify(Response{Kind: ResponseDisconnected, Err: lastErr})
		}
		if !c.config.Reconnect {
			c.shutdown()
			return
		}

		if connected {
			backoff = c.config.InitialBackoff
		}
		c.logger.Debug("waiting before next connection round", "backoff", backoff)
		select {
		case <-c.clock.After(backoff):
		case <-c.closed:
			return
		}
		if !connected {
			backoff = min(backoff*2, c.config.MaxBackoff)
		}
	}
}

// connect dials address and completes the handshake.
func (c *Client) connect(ctx context.Context, address string) (Conn, error) {
	conn, err := Dial(ctx, address, c.config.DialTimeout, c.config.Codec)
	if err != nil {
		return nil, err
	}

	connectionID := uuid.New().String()
	if err := conn.SetDeadline(time.Now().Add(c.config.DialTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting handshake deadline: %w", err)
	}
	if err := clientHandshake(conn, c.config.Signer, connectionID); err != nil {
		conn.Close()
		var handshakeError *HandshakeError
		if errors.As(err, &handshakeError) {
			handshakeError.Address = address
		}
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clearing handshake deadline: %w", err)
	}

	c.logger.Info("connected to router", "address", address, "connection_id", connectionID)
	return conn, nil
}

// session pumps messages over one established connection until it
// fails, the router denies the peer, or the client closes.
func (c *Client) session(ctx context.Context, conn Conn, address string, replay bool) error {
	c.notify(Response{Kind: ResponseConnected, Address: address})

	group, groupContext := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-groupContext.Done()
		return conn.Close()
	})

	group.Go(func() error {
		for {
			payload, err := conn.ReadFrame()
			if errors.Is(err, ErrMalformedFrame) {
				c.logger.Debug("dropping malformed frame", "address", address, "error", err)
				continue
			}
			if err != nil {
				return fmt.Errorf("reading from router: %w", err)
			}
			message, err := protocol.Decode(payload)
			if err != nil {
				if c.logger.Enabled(groupContext, slog.LevelDebug) {
					notation, diagnoseErr := codec.Diagnose(payload)
					if diagnoseErr != nil {
						notation = fmt.Sprintf("%x", payload)
					}
					c.logger.Debug("dropping malformed message",
						"address", address, "error", err, "frame", notation)
				}
				continue
			}
			if router, ok := message.(*protocol.RouterMessage); ok && router.Op == protocol.RouterDenied {
				return errDenied
			}
			if !c.deliver(Response{Kind: ResponseMessage, Message: message, Address: address}) {
				return errShutdown
			}
		}
	})

	group.Go(func() error {
		if replay {
			messages, pageStale := c.sticky.replay()
			if pageStale {
				c.logger.Warn("replaying a page that missed incremental updates", "address", address)
			}
			c.logger.Debug("replaying session commands", "address", address, "count", len(messages))
			for _, message := range messages {
				if err := c.write(conn, message); err != nil {
					return err
				}
			}
		}
		if c.pending != nil {
			if err := c.write(conn, c.pending); err != nil {
				return err
			}
			c.sticky.record(c.pending)
			c.pending = nil
		}
		for {
			select {
			case <-groupContext.Done():
				return nil
			case <-c.closed:
				return errShutdown
			case message := <-c.outbound:
				if err := c.write(conn, message); err != nil {
					c.pending = message
					return err
				}
				c.sticky.record(message)
			}
		}
	})

	err := group.Wait()
	if err == nil {
		err = errors.New("connection closed")
	}
	return err
}

func (c *Client) write(conn Conn, message protocol.Message) error {
	payload, err := protocol.Encode(message)
	if err != nil {
		// An unencodable message can never be sent; drop it rather
		// than tear down the connection.
		c.logger.Error("dropping unencodable message", "category", message.Category(), "op", message.Operation(), "error", err)
		return nil
	}
	if err := conn.WriteFrame(payload); err != nil {
		return fmt.Errorf("writing to router: %w", err)
	}
	return nil
}
