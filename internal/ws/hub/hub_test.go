package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c *Connection) []byte {
	t.Helper()

	select {
	case b, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return b
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestHub_BroadcastToTopic(t *testing.T) {
	req := require.New(t)

	h := NewHub()
	go h.Run()

	a := NewConnection(nil, 1)
	b := NewConnection(nil, 2)
	h.Register(a)
	h.Register(b)

	h.Subscribe(a, "room:1")
	h.Subscribe(b, "room:1")
	h.Broadcast("room:1", []byte("hello"))

	req.Equal([]byte("hello"), recv(t, a))
	req.Equal([]byte("hello"), recv(t, b))
}

func TestHub_TopicIsolation(t *testing.T) {
	req := require.New(t)

	h := NewHub()
	go h.Run()

	a := NewConnection(nil, 1)
	b := NewConnection(nil, 2)
	h.Register(a)
	h.Register(b)

	h.Subscribe(a, "room:1", "user:1")
	h.Subscribe(b, "room:2")

	h.Broadcast("room:2", []byte("for-b"))
	// Marker after the isolated payload: commands are processed in order, so
	// once the marker lands, anything a should have received already did.
	h.Broadcast("user:1", []byte("marker"))

	req.Equal([]byte("for-b"), recv(t, b))
	req.Equal([]byte("marker"), recv(t, a))
	req.Empty(a.send)
}

func TestHub_Unsubscribe(t *testing.T) {
	req := require.New(t)

	h := NewHub()
	go h.Run()

	a := NewConnection(nil, 1)
	h.Register(a)
	h.Subscribe(a, "room:7", "user:1")

	h.Unsubscribe(a, "room:7")
	h.Broadcast("room:7", []byte("gone"))
	h.Broadcast("user:1", []byte("marker"))

	req.Equal([]byte("marker"), recv(t, a))
	req.Empty(a.send)
}

func TestHub_BroadcastExceptUser(t *testing.T) {
	req := require.New(t)

	h := NewHub()
	go h.Run()

	sender := NewConnection(nil, 1)
	other := NewConnection(nil, 2)
	h.Register(sender)
	h.Register(other)
	h.Subscribe(sender, "room:3", "user:1")
	h.Subscribe(other, "room:3")

	h.BroadcastExceptUser("room:3", []byte("echo-free"), 1)
	h.Broadcast("user:1", []byte("marker"))

	req.Equal([]byte("echo-free"), recv(t, other))
	req.Equal([]byte("marker"), recv(t, sender))
	req.Empty(sender.send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	req := require.New(t)

	h := NewHub()
	go h.Run()

	a := NewConnection(nil, 1)
	h.Register(a)
	h.Subscribe(a, "room:9")

	h.Unregister(a)

	select {
	case _, ok := <-a.send:
		req.False(ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}

	// Broadcasting to the dropped topic must not panic or resurrect it.
	h.Broadcast("room:9", []byte("nobody"))
}

// A broadcast enqueued right after a subscribe must always see the
// subscription; repeated interleavings flush out any command reordering.
func TestHub_SubscribeThenBroadcastNeverDrops(t *testing.T) {
	req := require.New(t)

	h := NewHub()
	go h.Run()

	for i := 0; i < 200; i++ {
		c := NewConnection(nil, 1)
		h.Register(c)
		h.Subscribe(c, "room:1")
		h.Broadcast("room:1", []byte("hello"))

		req.Equal([]byte("hello"), recv(t, c))

		h.Unregister(c)
	}
}

// Interleaved subscribe/unregister/broadcast must never push to a closed
// send channel and take the hub goroutine down with it.
func TestHub_UnregisterBroadcastInterleaving(t *testing.T) {
	req := require.New(t)

	h := NewHub()
	go h.Run()

	keeper := NewConnection(nil, 99)
	h.Register(keeper)
	h.Subscribe(keeper, "user:99")

	for i := 0; i < 200; i++ {
		c := NewConnection(nil, 1)
		h.Register(c)
		h.Subscribe(c, "room:1")
		h.Unregister(c)
		h.Broadcast("room:1", []byte("after-close"))
	}

	// The hub loop is still alive and delivering.
	h.Broadcast("user:99", []byte("still-running"))
	req.Equal([]byte("still-running"), recv(t, keeper))
}

func TestConnection_SendAfterCloseIsSafe(t *testing.T) {
	req := require.New(t)

	c := NewConnection(nil, 1)
	c.CloseSend()

	req.NotPanics(func() {
		c.Send([]byte("late"))
	})

	// Closing twice is a no-op as well.
	req.NotPanics(c.CloseSend)
}

func TestConnection_SendDropsWhenFull(t *testing.T) {
	req := require.New(t)

	c := NewConnection(nil, 1)
	for i := 0; i < cap(c.send); i++ {
		c.Send([]byte("fill"))
	}

	// Must not block; the payload for the stalled client is dropped.
	done := make(chan struct{})
	go func() {
		c.Send([]byte("overflow"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full buffer")
	}

	req.Len(c.send, cap(c.send))
}
