// Package client implements the customer side of the cafe protocol:
// it dials the server, performs the connect handshake, issues
// requests, and surfaces asynchronous server notifications on a
// channel so they never consume a pending response slot.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/baristanet/cafe/go/cafe"
	"github.com/baristanet/cafe/go/protocol"
)

// responseTimeout bounds how long a request waits for its response.
const responseTimeout = 15 * time.Second

// Client is one customer connection.
type Client struct {
	conn  net.Conn
	codec *protocol.Codec

	// Demuxed inbound frames: responses are consumed by request
	// methods, notifications by the Notifications channel.
	resps chan string
	notes chan string

	mu      sync.Mutex
	readErr error
}

// Dial connects to the cafe server at `addr`.
func Dial(addr string) (*Client, error) {
	var conn, err = net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing cafe server: %w", err)
	}

	var c = &Client{
		conn:  conn,
		codec: protocol.NewCodec(conn),
		resps: make(chan string, 4),
		notes: make(chan string, 16),
	}
	go c.readLoop()
	return c, nil
}

// readLoop demuxes inbound text frames. It exits on the first
// transport error, which also closes the responses channel so that
// pending requests fail promptly.
func (c *Client) readLoop() {
	for {
		var text, err = c.codec.ReadText()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			close(c.resps)
			return
		}

		if protocol.IsNotification(text) {
			select {
			case c.notes <- text:
			default: // Drop rather than stall the session.
			}
			continue
		}
		c.resps <- text
	}
}

// response returns the next response frame.
func (c *Client) response() (string, error) {
	select {
	case text, ok := <-c.resps:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			return "", fmt.Errorf("connection lost: %w", c.readErr)
		}
		return text, nil
	case <-time.After(responseTimeout):
		return "", fmt.Errorf("timed out awaiting server response")
	}
}

func (c *Client) expect(want string) error {
	var got, err = c.response()
	if err != nil {
		return err
	} else if got != want {
		return fmt.Errorf("expected %q response, got %q", want, got)
	}
	return nil
}

// Connect sends the customer descriptor and awaits CONNECTED.
func (c *Client) Connect(customer cafe.Customer) error {
	if err := c.codec.WriteCustomer(customer); err != nil {
		return fmt.Errorf("sending customer descriptor: %w", err)
	}
	return c.expect(protocol.RespConnected)
}

// OrderStatus requests and returns the order status blob.
func (c *Client) OrderStatus() (string, error) {
	if err := c.codec.WriteText(protocol.ReqOrderStatus); err != nil {
		return "", err
	}
	if err := c.expect(protocol.RespOrderStatus); err != nil {
		return "", err
	}
	return c.response()
}

// Collect attempts an all-or-nothing collection, returning the
// server's verdict token: COLLECT_ORDER_READY,
// COLLECT_ORDER_NOT_READY, or NO_ORDER_FOUND.
func (c *Client) Collect() (string, error) {
	if err := c.codec.WriteText(protocol.ReqCollect); err != nil {
		return "", err
	}
	return c.response()
}

// NewOrder submits additional items mid-session. An empty order is
// permitted (and confirmed).
func (c *Client) NewOrder(items []cafe.Item) error {
	if err := c.codec.WriteText(protocol.ReqNewOrder); err != nil {
		return err
	}
	if err := c.expect(protocol.RespNewOrderReady); err != nil {
		return err
	}
	if err := c.codec.WriteItems(items); err != nil {
		return fmt.Errorf("sending order items: %w", err)
	}
	return c.expect(protocol.RespNewOrderConfirmed)
}

// Terminate ends the session cleanly and closes the connection.
func (c *Client) Terminate() error {
	if err := c.codec.WriteText(protocol.ReqTerminate); err != nil {
		return err
	}
	if err := c.expect(protocol.RespTerminateConfirmed); err != nil {
		return err
	}
	return c.Close()
}

// Notifications returns the channel of asynchronous server
// notifications ("SERVER: ..." frames).
func (c *Client) Notifications() <-chan string { return c.notes }

// Close tears down the connection.
func (c *Client) Close() error { return c.conn.Close() }
