package client

import (
	"net"
	"testing"
	"time"

	"github.com/baristanet/cafe/go/cafe"
	"github.com/baristanet/cafe/go/protocol"
	"github.com/stretchr/testify/require"
)

// scriptServer accepts one connection and runs `script` against it.
func scriptServer(t *testing.T, script func(*protocol.Codec)) string {
	t.Helper()

	var listener, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		var conn, err = listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(protocol.NewCodec(conn))
	}()
	return listener.Addr().String()
}

func TestNotificationsDoNotConsumeResponseSlots(t *testing.T) {
	var addr = scriptServer(t, func(codec *protocol.Codec) {
		var frame, err = codec.Read()
		require.NoError(t, err)
		require.Equal(t, protocol.KindCustomer, frame.Kind)
		require.NoError(t, codec.WriteText(protocol.RespConnected))

		// A notification lands between the status confirmation and
		// its blob; the client must still return the blob.
		_, err = codec.ReadText()
		require.NoError(t, err)
		require.NoError(t, codec.WriteText(protocol.RespOrderStatus))
		require.NoError(t, codec.WriteText(protocol.NotifyPrefix+"Your 1 tea is ready for pickup!"))
		require.NoError(t, codec.WriteText("status blob"))
	})

	var c, err = Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Connect(cafe.Customer{Name: "Ada", ID: 1}))

	status, err := c.OrderStatus()
	require.NoError(t, err)
	require.Equal(t, "status blob", status)

	select {
	case note := <-c.Notifications():
		require.Equal(t, protocol.NotifyPrefix+"Your 1 tea is ready for pickup!", note)
	case <-time.After(time.Second):
		t.Fatal("notification was not surfaced")
	}
}

func TestConnectSurfacesUnexpectedResponses(t *testing.T) {
	var addr = scriptServer(t, func(codec *protocol.Codec) {
		var _, err = codec.Read()
		require.NoError(t, err)
		require.NoError(t, codec.WriteText("UNEXPECTED"))
	})

	var c, err = Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Connect(cafe.Customer{Name: "Ada", ID: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "UNEXPECTED")
}

func TestLostConnectionFailsPendingRequests(t *testing.T) {
	var addr = scriptServer(t, func(codec *protocol.Codec) {
		var _, err = codec.Read()
		require.NoError(t, err)
		// Close without replying.
	})

	var c, err = Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Connect(cafe.Customer{Name: "Ada", ID: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection lost")
}
