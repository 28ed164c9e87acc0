// Package transport is a msgpack-rpc client.
//
// A request is [0, msgid, method, params] and a response is
// [1, msgid, error, result]. Responses are matched to requests by msgid so
// any number of requests may be outstanding on one connection; they may
// complete in any order.
package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/ugorji/go/codec"
)

const (
	typeRequest      = 0
	typeResponse     = 1
	typeNotification = 2
)

// Reply is the result of a successful request.
type Reply struct {
	// MsgID is the correlation identifier of the request.
	MsgID uint32

	// Result is the msgpack encoded result. Use Unmarshal to decode it.
	Result codec.Raw
}

// Callback is the completion handler of Call.
type Callback func(err error, result codec.Raw, msgID uint32)

// Client is a msgpack-rpc client over one connection. It is safe for
// concurrent use.
type Client struct {
	// Options.
	logger  zerolog.Logger
	timeout time.Duration

	// Immutable fields.
	conn net.Conn
	done chan struct{} // closed when the read loop exits

	wmu sync.Mutex // serializes writes

	// Mutable fields.
	mu      sync.Mutex
	seq     uint32
	pending map[uint32]*call // nil if closed
}

type call struct {
	msgID uint32
	reply Reply
	err   error
	done  chan struct{}
}

type request struct {
	_struct bool `codec:",toarray"`
	Type    int
	MsgID   uint32
	Method  string
	Params  []interface{}
}

// Dial connects to host:port and creates a Client.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Client, error) {
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, errors.Wrap(err, "transport.Dial")
	}
	c, err := NewClient(conn, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient creates a Client over conn. The Client owns conn from now on.
func NewClient(conn net.Conn, opts ...Option) (*Client, error) {
	c := &Client{
		logger:  zerolog.Nop(),
		conn:    conn,
		done:    make(chan struct{}),
		pending: make(map[uint32]*call),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	go c.readLoop()
	return c, nil
}

// Timeout returns the timeout set by OptTimeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// RemoteAddr returns the address of the server.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Request sends a request and waits for its response.
//
// If ctx has no deadline and a timeout is configured, the timeout applies.
// When ctx is done before the response arrives, the request is abandoned (not
// withdrawn) and ctx.Err() is returned. The returned Reply always carries the
// msgid when the request was sent, even on error.
func (c *Client) Request(ctx context.Context, method string, params ...interface{}) (Reply, error) {
	cl, err := c.send(method, params)
	if err != nil {
		return Reply{}, err
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	select {
	case <-cl.done:
		cl.reply.MsgID = cl.msgID
		return cl.reply, cl.err
	case <-ctx.Done():
		c.abandon(cl.msgID)
		return Reply{MsgID: cl.msgID}, ctx.Err()
	}
}

// Call is the callback form of Request. cb is invoked exactly once in
// another goroutine. The configured timeout applies.
func (c *Client) Call(method string, params []interface{}, cb Callback) {
	go func() {
		reply, err := c.Request(context.Background(), method, params...)
		cb(err, reply.Result, reply.MsgID)
	}()
}

func (c *Client) send(method string, params []interface{}) (*call, error) {
	if params == nil {
		params = []interface{}{}
	}

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.seq++
	cl := &call{
		msgID: c.seq,
		done:  make(chan struct{}),
	}
	c.pending[cl.msgID] = cl
	c.mu.Unlock()

	data, err := Marshal(&request{
		Type:   typeRequest,
		MsgID:  cl.msgID,
		Method: method,
		Params: params,
	})
	if err != nil {
		c.abandon(cl.msgID)
		return nil, errors.Wrapf(err, "encode request %q", method)
	}

	c.wmu.Lock()
	_, err = c.conn.Write(data)
	c.wmu.Unlock()
	if err != nil {
		c.abandon(cl.msgID)
		if c.isClosed() {
			return nil, ErrClosed
		}
		return nil, errors.Wrapf(err, "write request %q", method)
	}
	return cl, nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending == nil
}

func (c *Client) abandon(msgID uint32) {
	c.mu.Lock()
	if c.pending != nil {
		delete(c.pending, msgID)
	}
	c.mu.Unlock()
}

func (c *Client) complete(msgID uint32, result codec.Raw, err error) {
	c.mu.Lock()
	cl := c.pending[msgID]
	if cl != nil {
		delete(c.pending, msgID)
	}
	c.mu.Unlock()

	if cl == nil {
		c.logger.Debug().
			Str("fn", "complete").
			Uint32("msgid", msgID).
			Msg("Response for unknown or abandoned request")
		return
	}
	cl.reply.Result = result
	cl.err = err
	close(cl.done)
}

func (c *Client) readLoop() {
	defer close(c.done)

	dec := NewStreamDecoder(c.conn)
	for {
		var frame []codec.Raw
		if err := dec.Decode(&frame); err != nil {
			c.shutdown(err)
			return
		}
		if err := c.handleFrame(frame); err != nil {
			c.logger.Error().
				Str("fn", "readLoop").
				Err(err).
				Msg("Bad frame")
			c.shutdown(err)
			return
		}
	}
}

func (c *Client) handleFrame(frame []codec.Raw) error {
	if len(frame) == 0 {
		return ErrMalformedFrame
	}
	for i := range frame {
		if len(frame[i]) == 0 {
			frame[i] = nilRaw
		}
	}
	var typ int
	if err := Unmarshal(frame[0], &typ); err != nil {
		return errors.Wrap(ErrMalformedFrame, err.Error())
	}

	switch typ {
	case typeResponse:
		if len(frame) != 4 {
			return ErrMalformedFrame
		}
		var (
			msgID  uint32
			remote interface{}
		)
		if err := Unmarshal(frame[1], &msgID); err != nil {
			return errors.Wrap(ErrMalformedFrame, err.Error())
		}
		if err := Unmarshal(frame[2], &remote); err != nil {
			return errors.Wrap(ErrMalformedFrame, err.Error())
		}
		if remote != nil {
			c.complete(msgID, nil, &RemoteError{MsgID: msgID, Value: remote})
		} else {
			c.complete(msgID, frame[3], nil)
		}
		return nil

	case typeNotification:
		c.logger.Debug().
			Str("fn", "handleFrame").
			Msg("Ignore notification")
		return nil

	default:
		return errors.Wrapf(ErrMalformedFrame, "unexpected message type %d", typ)
	}
}

// shutdown fails all pending requests. cause is only logged: callers always
// see ErrClosed.
func (c *Client) shutdown(cause error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending == nil {
		return
	}
	c.logger.Debug().
		Str("fn", "shutdown").
		Err(cause).
		Int("pending", len(pending)).
		Msg("Client shutdown")

	c.conn.Close()
	for _, cl := range pending {
		cl.err = ErrClosed
		close(cl.done)
	}
}

// Close closes the connection. Outstanding requests fail with ErrClosed.
func (c *Client) Close() error {
	if c.isClosed() {
		return ErrClosed
	}

	c.shutdown(ErrClosed)
	<-c.done
	return nil
}
