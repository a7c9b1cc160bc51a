package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogHub_RegisterAndUnregister(t *testing.T) {
	hub := NewLogHub()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	_, err = hub.Register(2, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, hub.RoomSize(1))
	assert.Equal(t, 1, hub.RoomSize(2))

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.RoomSize(1))

	hub.UnregisterClient(b)
	assert.Equal(t, 0, hub.RoomSize(1))

	_, open := <-a.Send
	assert.False(t, open)
}

func TestLogHub_BroadcastIsScopedToRoom(t *testing.T) {
	hub := NewLogHub()
	watcher, err := hub.Register(5, nil)
	require.NoError(t, err)
	other, err := hub.Register(6, nil)
	require.NoError(t, err)

	hub.Broadcast(5, `{"type":"comment_created"}`)

	assert.Equal(t, `{"type":"comment_created"}`, string(<-watcher.Send))
	assert.Empty(t, other.Send)
}

func TestLogHub_RoomLimit(t *testing.T) {
	hub := NewLogHub()
	for i := 0; i < maxConnsPerLog; i++ {
		_, err := hub.Register(3, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(3, nil)
	assert.ErrorIs(t, err, ErrRoomFull)

	_, err = hub.Register(4, nil)
	assert.NoError(t, err)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewLogHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer; i++ {
		c.TrySend([]byte("x"))
	}
	assert.NotPanics(t, func() { c.TrySend([]byte("overflow")) })
	assert.Len(t, c.Send, sendBuffer)

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("after close")) })
}

func TestLogHub_ShutdownRejectsNewClients(t *testing.T) {
	hub := NewLogHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.RoomSize(1))

	_, err = hub.Register(1, nil)
	assert.ErrorIs(t, err, ErrHubClosed)

	// A late unregister from a pump must not double close.
	assert.NotPanics(t, func() { hub.UnregisterClient(c) })
}

func TestLogHub_StartWiringForwardsEvents(t *testing.T) {
	n := newTestNotifier(t)
	hub := NewLogHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := hub.Register(21, nil)
	require.NoError(t, err)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishLogEvent(ctx, 21, EventLikeToggled, LikeToggledPayload{Liked: true, LikesCount: 1}))
	assert.Eventually(t, func() bool { return len(c.Send) == 1 }, testEventuallyTimeout, testPollInterval)
}
