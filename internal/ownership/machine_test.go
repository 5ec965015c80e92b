package ownership

import (
	"testing"
	"time"

	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/protocol/session"
	"github.com/danmuck/objsync/internal/registry"
	"github.com/danmuck/objsync/internal/testutil/testlog"
	"github.com/danmuck/objsync/internal/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	peerA protocol.PeerID = 1
	peerB protocol.PeerID = 2
	peerC protocol.PeerID = 3
)

type fixture struct {
	m    *Machine
	obj  *SyncedObject
	item *variant.Pickupable
}

func newFixture(t *testing.T, local protocol.PeerID) fixture {
	t.Helper()
	reg := registry.New(registry.DefaultOptions[*SyncedObject]())
	item := variant.NewPickupable()
	obj := NewSyncedObject(variant.TypePickupable, item)
	id, err := reg.Register(obj, 7)
	require.NoError(t, err)
	obj.ID = id
	m := NewMachine(StaticIdentity{ID: local}, reg, session.Config{
		RequestTimeout: time.Second,
		MaxAttempts:    2,
		Backoff:        session.BackoffConfig{InitialDelay: 500 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second},
	})
	return fixture{m: m, obj: obj, item: item}
}

func msg(st protocol.SyncType, sender, target protocol.PeerID) *protocol.ObjectSyncMessage {
	return &protocol.ObjectSyncMessage{ObjectID: 7, Sender: sender, Target: target, SyncType: st}
}

func (f fixture) state(t *testing.T) State {
	t.Helper()
	s, err := f.m.State(7)
	require.NoError(t, err)
	return s
}

func TestSetOwnerAdoptsOnlyWhenUnowned(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)

	_, err := f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)
	assert.Equal(t, peerB, f.obj.Owner)
	assert.Equal(t, OwnedRemote, f.state(t))
	assert.True(t, f.item.Kinematic)

	_, err = f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)
	assert.Equal(t, peerB, f.obj.Owner, "repeated grant is a no-op")

	_, err = f.m.Apply(msg(protocol.SetOwner, peerC, 0))
	require.NoError(t, err)
	assert.Equal(t, peerB, f.obj.Owner, "conflicting claim is ignored")
}

func TestRemoveThenSetOwnerRoundTrip(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, err := f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)
	before := *f.obj

	_, err = f.m.Apply(msg(protocol.RemoveOwner, peerB, 0))
	require.NoError(t, err)
	assert.Equal(t, protocol.NoOwner, f.obj.Owner)
	assert.False(t, f.obj.Enabled)

	_, err = f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)
	assert.Equal(t, before.Owner, f.obj.Owner)
	assert.Equal(t, before.Enabled, f.obj.Enabled)
}

func TestRemoveOwnerFromNonOwnerIsNoop(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, err := f.m.EnterSyncRange(7)
	require.NoError(t, err)

	_, err = f.m.Apply(msg(protocol.RemoveOwner, peerB, 0))
	require.NoError(t, err)
	assert.Equal(t, peerA, f.obj.Owner)
	assert.True(t, f.obj.Enabled)
}

func TestForceSetOwnerAlwaysWins(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, err := f.m.EnterSyncRange(7)
	require.NoError(t, err)
	f.item.Held = true

	for i := 0; i < 2; i++ {
		_, err = f.m.Apply(msg(protocol.ForceSetOwner, peerB, 0))
		require.NoError(t, err)
		assert.Equal(t, peerB, f.obj.Owner)
		assert.False(t, f.obj.Enabled)
	}
	assert.False(t, f.item.Held, "previous local owner is notified")

	_, err = f.m.Apply(msg(protocol.ForceSetOwner, peerC, 0))
	require.NoError(t, err)
	assert.Equal(t, peerC, f.obj.Owner)
}

func TestForceSetOwnerRaceIsLastArrivalWins(t *testing.T) {
	testlog.Start(t)
	x := newFixture(t, peerA)
	y := newFixture(t, peerA)

	_, _ = x.m.Apply(msg(protocol.ForceSetOwner, peerB, 0))
	_, _ = x.m.Apply(msg(protocol.ForceSetOwner, peerC, 0))
	_, _ = y.m.Apply(msg(protocol.ForceSetOwner, peerC, 0))
	_, _ = y.m.Apply(msg(protocol.ForceSetOwner, peerB, 0))

	assert.Equal(t, peerC, x.obj.Owner)
	assert.Equal(t, peerB, y.obj.Owner)
}

func TestTakeControlByForceLocally(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, err := f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)

	out, err := f.m.TakeControlByForce(7)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, protocol.ForceSetOwner, out[0].SyncType)
	assert.Equal(t, peerA, out[0].Sender)
	assert.Equal(t, peerA, f.obj.Owner)
	assert.True(t, f.obj.Enabled)
	assert.False(t, f.item.Kinematic)
}

func TestRequestAndAccept(t *testing.T) {
	testlog.Start(t)
	requester := newFixture(t, peerA)
	owner := newFixture(t, peerB)
	now := time.Unix(10, 0)

	_, err := owner.m.EnterSyncRange(7)
	require.NoError(t, err)
	_, err = requester.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)

	out, err := requester.m.RequestOwnership(7, now)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, protocol.RequestSync, out[0].SyncType)
	assert.Equal(t, peerB, out[0].Target)
	assert.Equal(t, RequestPending, requester.state(t))
	assert.False(t, requester.obj.Enabled)

	grant, err := owner.m.Apply(&out[0])
	require.NoError(t, err)
	require.Len(t, grant, 1)
	assert.Equal(t, protocol.SyncRequestAccepted, grant[0].SyncType)
	assert.Equal(t, peerA, grant[0].Target)
	assert.Equal(t, peerA, owner.obj.Owner)
	assert.False(t, owner.obj.Enabled)

	_, err = requester.m.Apply(&grant[0])
	require.NoError(t, err)
	assert.Equal(t, peerA, requester.obj.Owner)
	assert.True(t, requester.obj.Enabled)
	assert.Equal(t, OwnedLocal, requester.state(t))
}

func TestAcceptedObservedByThirdPeer(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerC)
	_, err := f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)
	_, err = f.m.Apply(msg(protocol.SyncRequestAccepted, peerB, peerA))
	require.NoError(t, err)
	assert.Equal(t, peerA, f.obj.Owner)
	assert.False(t, f.obj.Enabled)
}

func TestRequestSyncIgnoredWhenNotOwner(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	out, err := f.m.Apply(msg(protocol.RequestSync, peerB, peerA))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, protocol.NoOwner, f.obj.Owner)

	_, err = f.m.EnterSyncRange(7)
	require.NoError(t, err)
	out, err = f.m.Apply(msg(protocol.RequestSync, peerB, peerC))
	require.NoError(t, err)
	assert.Empty(t, out, "request addressed to another peer")
	assert.Equal(t, peerA, f.obj.Owner)
}

func TestRequestRetriesThenAbandons(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, err := f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)
	start := time.Unix(0, 0)

	_, err = f.m.RequestOwnership(7, start)
	require.NoError(t, err)
	assert.Empty(t, f.m.ExpireRequests(start.Add(500*time.Millisecond)))

	out := f.m.ExpireRequests(start.Add(time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, protocol.RequestSync, out[0].SyncType)
	snap, err := f.m.Snapshot(7)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.PendingAttempts)

	// second attempt waits timeout plus one backoff step
	assert.Empty(t, f.m.ExpireRequests(start.Add(2*time.Second)))
	assert.Empty(t, f.m.ExpireRequests(start.Add(2500*time.Millisecond)))
	assert.Equal(t, OwnedRemote, f.state(t))
}

func TestPendingRequestClaimsReleasedObject(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, err := f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	require.NoError(t, err)
	_, err = f.m.RequestOwnership(7, time.Unix(0, 0))
	require.NoError(t, err)

	out, err := f.m.Apply(msg(protocol.RemoveOwner, peerB, 0))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, protocol.SetOwner, out[0].SyncType)
	assert.Equal(t, OwnedLocal, f.state(t))
	assert.True(t, f.obj.Enabled)
}

func TestForceCancelsPendingRequest(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, _ = f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	_, _ = f.m.RequestOwnership(7, time.Unix(0, 0))

	_, err := f.m.Apply(msg(protocol.ForceSetOwner, peerC, 0))
	require.NoError(t, err)
	assert.Equal(t, OwnedRemote, f.state(t))
	assert.Empty(t, f.m.ExpireRequests(time.Unix(60, 0)))
}

func TestExitSyncRangeReleases(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	out, err := f.m.EnterSyncRange(7)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, protocol.SetOwner, out[0].SyncType)

	out, err = f.m.ExitSyncRange(7)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, protocol.RemoveOwner, out[0].SyncType)
	assert.Equal(t, protocol.NoOwner, f.obj.Owner)
	assert.False(t, f.obj.Enabled)

	out, err = f.m.ExitSyncRange(7)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTransformAppliedDespitePayloadMismatch(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, _ = f.m.Apply(msg(protocol.SetOwner, peerB, 0))
	f.item.Velocity = variant.Vec3{X: 4}

	in := msg(protocol.GenericSync, peerB, 0)
	in.Position = [3]float32{1, 2, 3}
	in.Rotation = [4]float32{0, 0, 0, 1}
	in.HasVariables = true
	in.Variables = []float32{1, 2, 3}

	_, err := f.m.Apply(in)
	assert.ErrorIs(t, err, variant.ErrPayloadLengthMismatch)
	assert.Equal(t, variant.Vec3{X: 1, Y: 2, Z: 3}, f.obj.Transform().Position)
	assert.Equal(t, variant.Vec3{X: 4}, f.item.Velocity)
}

func TestSyncFromNonOwner(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, _ = f.m.EnterSyncRange(7)

	stale := msg(protocol.GenericSync, peerB, 0)
	stale.Position = [3]float32{9, 9, 9}
	_, err := f.m.Apply(stale)
	require.NoError(t, err)
	assert.Equal(t, variant.Vec3{}, f.obj.Transform().Position)

	periodic := msg(protocol.PeriodicSync, peerB, 0)
	periodic.Position = [3]float32{8, 8, 8}
	out, err := f.m.Apply(periodic)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, variant.Vec3{}, f.obj.Transform().Position)
	assert.Equal(t, peerA, f.obj.Owner)
}

func TestUnknownObjectAndLocalErrors(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	unknown := msg(protocol.SetOwner, peerB, 0)
	unknown.ObjectID = 99
	_, err := f.m.Apply(unknown)
	assert.ErrorIs(t, err, ErrUnknownObject)

	_, err = f.m.EnterSyncRange(99)
	assert.ErrorIs(t, err, ErrUnknownObject)

	assert.ErrorIs(t, f.m.SetSyncEnabled(7, false), ErrNotOwner)
	_, _ = f.m.EnterSyncRange(7)
	require.NoError(t, f.m.SetSyncEnabled(7, false))
	assert.False(t, f.obj.Enabled)

	require.NoError(t, f.m.SetConstantSync(7, true))
	assert.True(t, f.obj.ConstantSync)
	assert.True(t, f.item.ConstantSync)
}

func TestLoopbackIgnored(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, peerA)
	_, err := f.m.Apply(msg(protocol.ForceSetOwner, peerA, 0))
	require.NoError(t, err)
	assert.Equal(t, protocol.NoOwner, f.obj.Owner)
}
