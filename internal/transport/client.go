// Package transport implements the reconnecting device↔hub channel:
// single-writer-per-connection framed JSON over a websocket, reply
// futures keyed by msg_id, type-keyed dispatch, and
// backoff-then-reconnect on close.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/protocol"
	"github.com/gorilla/websocket"
)

// Handler processes one inbound envelope of a given type. Handler
// failures never tear down the connection; they are absorbed locally.
type Handler func(ctx context.Context, env protocol.Envelope)

// Client is a reconnecting, single-reader/single-writer transport.
// Pending reply futures are tracked by msg_id and resolved by
// reply_to.
type Client struct {
	url       string
	authToken string
	backoff   time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	handlers map[protocol.MsgType]Handler
	pending  map[string]chan replyResult

	closed chan struct{}
}

type replyResult struct {
	env protocol.Envelope
	err error
}

func NewClient(wsURL, authToken string, backoff time.Duration) *Client {
	return &Client{
		url:       wsURL,
		authToken: authToken,
		backoff:   backoff,
		handlers:  make(map[protocol.MsgType]Handler),
		pending:   make(map[string]chan replyResult),
		closed:    make(chan struct{}),
	}
}

// OnType registers the handler invoked for every inbound envelope of
// type t that is not a reply to a pending future.
func (c *Client) OnType(t protocol.MsgType, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = h
}

// Run dials, authenticates, and services the connection until ctx is
// cancelled, reconnecting with backoff on every recoverable close. A
// 401/403 rejection terminates without retry.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.runOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if errs.Is(err, errs.AuthErrorKind) {
			log.Printf("transport: auth rejected, terminating: %v", err)
			return err
		}

		log.Printf("transport: connection lost, retrying in %s: %v", c.backoff, err)
		c.cancelPending(errs.Transport("connection closed", err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return errs.Unexpectedf("parse ws url", err)
	}
	q := u.Query()
	q.Set("token", c.authToken)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return errs.Auth("rejected by hub", err)
		}
		return errs.Transport("dial failed", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errs.Transport("read failed", err)
		}
		env, err := protocol.Decode(data)
		if err != nil {
			log.Printf("transport: malformed frame: %v", err)
			continue
		}
		c.dispatch(ctx, env)
	}
}

func (c *Client) dispatch(ctx context.Context, env protocol.Envelope) {
	if env.ReplyTo != "" {
		c.mu.Lock()
		ch, ok := c.pending[env.ReplyTo]
		if ok {
			delete(c.pending, env.ReplyTo)
		}
		c.mu.Unlock()
		if ok {
			ch <- replyResult{env: env}
			return
		}
	}

	c.mu.Lock()
	h, ok := c.handlers[env.Type]
	c.mu.Unlock()
	if !ok {
		return
	}
	h(ctx, env)
}

// Send writes env to the active connection. writeMu keeps concurrent
// senders off the socket; gorilla allows only one writer at a time.
func (c *Client) Send(env protocol.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errs.Transport("not connected", nil)
	}

	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errs.Transport("write failed", err)
	}
	return nil
}

// Request sends env and awaits the envelope whose reply_to matches its
// msg_id, or times out.
func (c *Client) Request(ctx context.Context, env protocol.Envelope, timeout time.Duration) (protocol.Envelope, error) {
	ch := make(chan replyResult, 1)
	c.mu.Lock()
	c.pending[env.ID] = ch
	c.mu.Unlock()

	if err := c.Send(env); err != nil {
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
		return protocol.Envelope{}, err
	}

	select {
	case result := <-ch:
		return result.env, result.err
	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pending, env.ID)
		c.mu.Unlock()
		return protocol.Envelope{}, errs.Transport(fmt.Sprintf("reply to %s timed out", env.ID), nil)
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

// cancelPending resolves every pending reply future with a transport
// error once the connection is gone.
func (c *Client) cancelPending(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- replyResult{err: cause}
		delete(c.pending, id)
	}
}
