package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient() *Client {
	return &Client{
		logger:  zap.NewNop(),
		pending: make(map[int]chan *rpcResponse),
		nextID:  1,
	}
}

func TestDispatchRoutesToPendingRequest(t *testing.T) {
	c := newTestClient()
	ch := make(chan *rpcResponse, 1)
	c.pending[7] = ch

	c.dispatch([]byte(`{"jsonrpc":"2.0","id":7,"result":{"tools":[]}}`))

	select {
	case resp := <-ch:
		require.NotNil(t, resp)
		assert.Equal(t, 7, resp.ID)
		assert.Nil(t, resp.Error)
	default:
		t.Fatal("response was not delivered")
	}
	assert.Empty(t, c.pending, "pending entry should be consumed")
}

func TestDispatchErrorResponse(t *testing.T) {
	c := newTestClient()
	ch := make(chan *rpcResponse, 1)
	c.pending[1] = ch

	c.dispatch([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`))

	resp := <-ch
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
	assert.Equal(t, "Method not found", resp.Error.Message)
}

func TestDispatchIgnoresUnknownIDAndNotifications(t *testing.T) {
	c := newTestClient()

	// Unknown id: no pending channel, must not panic.
	c.dispatch([]byte(`{"jsonrpc":"2.0","id":99,"result":{}}`))

	// Notification: no result, no error.
	c.dispatch([]byte(`{"jsonrpc":"2.0","method":"notifications/progress"}`))

	// Garbage line.
	c.dispatch([]byte(`not json`))
}

func TestCallWhenDisconnected(t *testing.T) {
	c := newTestClient()
	c.config.Name = "test"

	_, err := c.call(context.Background(), "tools/list", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
