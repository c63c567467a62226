// Package protocol implements the cafe wire protocol: a sequence of
// self-describing framed objects carried over a single bidirectional
// byte stream. Each frame is one JSON envelope per line, tagged with
// the payload kind so a reader can discover whether it holds a text
// token, a customer descriptor, or a list of items.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/baristanet/cafe/go/cafe"
)

// Request tokens sent by the client.
const (
	ReqOrderStatus = "ORDER_STATUS"
	ReqCollect     = "COLLECT_ORDER"
	ReqNewOrder    = "NEW_ORDER"
	ReqTerminate   = "TERMINATE"
)

// Response tokens sent by the server.
const (
	RespConnected          = "CONNECTED"
	RespOrderStatus        = "ORDER_STATUS_CONFIRMED"
	RespCollectReady       = "COLLECT_ORDER_READY"
	RespCollectNotReady    = "COLLECT_ORDER_NOT_READY"
	RespNoOrderFound       = "NO_ORDER_FOUND"
	RespNewOrderReady      = "NEW_ORDER_READY"
	RespNewOrderConfirmed  = "NEW_ORDER_CONFIRMED"
	RespTerminateConfirmed = "TERMINATE_CONFIRMED"
)

// NotifyPrefix marks a server-originated asynchronous notification.
// Such frames may arrive between a request and its response, and do
// not consume a pending response slot.
const NotifyPrefix = "SERVER: "

// IsNotification returns whether a text frame is an asynchronous
// notification rather than a response.
func IsNotification(text string) bool {
	return strings.HasPrefix(text, NotifyPrefix)
}

// Frame kinds.
const (
	KindText     = "text"
	KindCustomer = "customer"
	KindItems    = "items"
)

// Frame is one framed object. Exactly one payload field is set,
// per the Kind discriminator.
type Frame struct {
	Kind     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Customer *cafe.Customer `json:"customer,omitempty"`
	Items    []cafe.Item    `json:"items,omitempty"`
}

// Maximum time we'll wait for a write we initiate to complete.
// We don't probe liveness ourselves, instead relying on TCP keep-alive.
const writeTimeout = 10 * time.Second

// Codec reads and writes Frames over a stream connection. Writes are
// serialized by an internal mutex: a session's request/response loop
// and brew workers delivering notifications may both write, and each
// frame must reach the wire intact. Reads are not locked; a session's
// handler is the sole reader of its connection.
type Codec struct {
	rw  io.ReadWriter
	dec *json.Decoder
	enc *json.Encoder

	wmu sync.Mutex
}

// NewCodec wraps a stream connection.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		rw:  rw,
		dec: json.NewDecoder(rw),
		enc: json.NewEncoder(rw),
	}
}

// Read returns the next Frame from the stream.
func (c *Codec) Read() (Frame, error) {
	var frame Frame
	if err := c.dec.Decode(&frame); err != nil {
		return Frame{}, err
	}

	switch frame.Kind {
	case KindText, KindItems:
		// Pass.
	case KindCustomer:
		if frame.Customer == nil {
			return Frame{}, fmt.Errorf("customer frame is missing its descriptor")
		}
	default:
		return Frame{}, fmt.Errorf("frame has unknown type %q", frame.Kind)
	}
	return frame, nil
}

// ReadText returns the next Frame, requiring that it be a text frame.
func (c *Codec) ReadText() (string, error) {
	var frame, err = c.Read()
	if err != nil {
		return "", err
	} else if frame.Kind != KindText {
		return "", fmt.Errorf("expected a text frame, not %q", frame.Kind)
	}
	return frame.Text, nil
}

// WriteText writes a text frame.
func (c *Codec) WriteText(text string) error {
	return c.write(Frame{Kind: KindText, Text: text})
}

// WriteCustomer writes a customer descriptor frame.
func (c *Codec) WriteCustomer(customer cafe.Customer) error {
	return c.write(Frame{Kind: KindCustomer, Customer: &customer})
}

// WriteItems writes an item list frame. An empty list is valid.
func (c *Codec) WriteItems(items []cafe.Item) error {
	return c.write(Frame{Kind: KindItems, Items: items})
}

func (c *Codec) write(frame Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if conn, ok := c.rw.(net.Conn); ok {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	return c.enc.Encode(frame)
}
