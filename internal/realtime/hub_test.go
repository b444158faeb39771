package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"nhooyr.io/websocket"
)

type fakeConn struct {
	writeErr error
	written  [][]byte
	closed   bool
}

func (f *fakeConn) Write(ctx context.Context, typ websocket.MessageType, p []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, p)
	return nil
}

func (f *fakeConn) Close(code websocket.StatusCode, reason string) error {
	f.closed = true
	return nil
}

func TestDeliverReachesAllSessions(t *testing.T) {
	hub := NewHub()
	c1, c2 := &fakeConn{}, &fakeConn{}
	hub.register("u1", c1)
	hub.register("u1", c2)
	hub.register("u2", &fakeConn{})

	hub.Deliver(context.Background(), "u1", []byte(`{"type":"new_message"}`))

	assert.Len(t, c1.written, 1)
	assert.Len(t, c2.written, 1)
	assert.Equal(t, 2, hub.SessionCount("u1"))
}

func TestDeliverPrunesFailedSessions(t *testing.T) {
	hub := NewHub()
	dead := &fakeConn{writeErr: errors.New("broken pipe")}
	alive := &fakeConn{}
	hub.register("u1", dead)
	hub.register("u1", alive)

	hub.Deliver(context.Background(), "u1", []byte("x"))

	// The dead session is closed and removed, the healthy one stays
	assert.True(t, dead.closed)
	assert.Equal(t, 1, hub.SessionCount("u1"))

	hub.Deliver(context.Background(), "u1", []byte("y"))
	assert.Len(t, alive.written, 2)
}

func TestDeliverNoSessionsIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Deliver(context.Background(), "nobody", []byte("x"))
	assert.Equal(t, 0, hub.SessionCount("nobody"))
}

func TestUnregisterRemovesEmptyUserEntry(t *testing.T) {
	hub := NewHub()
	conn := &fakeConn{}
	hub.register("u1", conn)
	hub.unregister("u1", conn)

	assert.Equal(t, 0, hub.SessionCount("u1"))
	hub.mu.RLock()
	_, exists := hub.sessions["u1"]
	hub.mu.RUnlock()
	assert.False(t, exists)
}
