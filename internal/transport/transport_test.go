package transport

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusBroadcastsToOthers(t *testing.T) {
	testlog.Start(t)
	bus := NewMemoryBus()
	a, err := bus.Join(1, 8)
	require.NoError(t, err)
	b, err := bus.Join(2, 8)
	require.NoError(t, err)
	c, err := bus.Join(3, 8)
	require.NoError(t, err)
	_, err = bus.Join(2, 8)
	assert.ErrorIs(t, err, ErrDuplicatePeer)

	msg := &protocol.ObjectSyncMessage{ObjectID: 4, Sender: 1, SyncType: protocol.SetOwner}
	require.NoError(t, a.Send(context.Background(), msg))

	for _, ep := range []*MemoryEndpoint{b, c} {
		got, err := ep.Pending()
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, protocol.SetOwner, got[0].SyncType)
		assert.Equal(t, int32(4), got[0].ObjectID)
	}
	own, err := a.Pending()
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestMemoryEndpointCloseAndOverflow(t *testing.T) {
	testlog.Start(t)
	bus := NewMemoryBus()
	a, _ := bus.Join(1, 1)
	b, _ := bus.Join(2, 1)

	msg := &protocol.ObjectSyncMessage{ObjectID: 1, Sender: 1, SyncType: protocol.RemoveOwner}
	require.NoError(t, a.Send(context.Background(), msg))
	require.NoError(t, a.Send(context.Background(), msg))
	assert.Equal(t, 1, b.Dropped())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.RemoveOwner, got.SyncType)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, err = b.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Send(ctx, msg), ErrClosed)
}

func TestUDPLoopback(t *testing.T) {
	testlog.Start(t)
	recv, err := ListenUDP(UDPConfig{ListenAddr: "127.0.0.1:0", ReadTimeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer recv.Close()

	send, err := ListenUDP(UDPConfig{ListenAddr: "127.0.0.1:0", Peers: []string{recv.LocalAddr().String()}})
	require.NoError(t, err)
	defer send.Close()

	msg := &protocol.ObjectSyncMessage{
		ObjectID:     9,
		Sender:       5,
		SyncType:     protocol.GenericSync,
		Position:     [3]float32{1, 2, 3},
		Rotation:     [4]float32{0, 0, 0, 1},
		HasVariables: true,
		Variables:    []float32{0.5, 0, 0, 1},
	}
	require.NoError(t, send.Send(context.Background(), msg))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := recv.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestListenUDPRequiresAddr(t *testing.T) {
	_, err := ListenUDP(UDPConfig{})
	assert.ErrorIs(t, err, ErrNoListenAddr)
}
