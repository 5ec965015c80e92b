package variant

import (
	"errors"
	"testing"

	"github.com/danmuck/objsync/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTripForEveryVariant(t *testing.T) {
	testlog.Start(t)

	p := NewPickupable()
	p.Velocity = Vec3{1.5, -2, 0.25}
	p.Held = true
	gotP := NewPickupable()
	require.NoError(t, gotP.DecodeVariables(p.EncodeVariables()))
	assert.Equal(t, p.Velocity, gotP.Velocity)
	assert.Equal(t, p.Held, gotP.Held)

	v := NewAIVehicle()
	v.Throttle = 0.8
	v.Steering = -0.3
	v.Brake = 0.1
	v.TargetSpeed = 22
	v.Waypoint = 14
	gotV := NewAIVehicle()
	require.NoError(t, gotV.DecodeVariables(v.EncodeVariables()))
	assert.Equal(t, v.values(), gotV.values())
}

func TestDecodeLengthMismatchLeavesStateUnchanged(t *testing.T) {
	testlog.Start(t)
	v := NewAIVehicle()
	v.Throttle = 0.4
	v.Waypoint = 3
	before := v.values()

	err := v.DecodeVariables([]float32{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPayloadLengthMismatch))

	var mismatch *PayloadLengthMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, AIVehicleVarCount, mismatch.Want)
	assert.Equal(t, 3, mismatch.Got)
	assert.Equal(t, before, v.values())

	p := NewPickupable()
	assert.ErrorIs(t, p.DecodeVariables(nil), ErrPayloadLengthMismatch)
}

func TestPickupableCanSync(t *testing.T) {
	testlog.Start(t)
	p := NewPickupable()
	assert.False(t, p.CanSync(), "resting item should not sync")

	p.Velocity = Vec3{X: 3}
	assert.True(t, p.CanSync(), "moving item should sync")
	p.EncodeVariables()

	p.Velocity = Vec3{}
	assert.True(t, p.CanSync(), "item that just stopped should sync once")
	p.EncodeVariables()
	assert.False(t, p.CanSync())

	p.Held = true
	assert.True(t, p.CanSync(), "held item always syncs")
}

func TestPickupableHooks(t *testing.T) {
	testlog.Start(t)
	p := NewPickupable()
	p.Held = true

	p.OnOwnerSetRemote()
	assert.True(t, p.Kinematic)

	p.OnControlTakenByForce()
	assert.False(t, p.Held)

	p.OnOwnerSetLocal()
	assert.False(t, p.Kinematic)

	p.OnConstantSyncChanged(true)
	assert.True(t, p.ConstantSync)
}

func TestAIVehicleCanSyncAndHooks(t *testing.T) {
	testlog.Start(t)
	v := NewAIVehicle()
	assert.False(t, v.CanSync())
	v.Steering = 0.5
	assert.True(t, v.CanSync())
	v.EncodeVariables()
	assert.False(t, v.CanSync())

	v.OnConstantSyncChanged(true)
	assert.True(t, v.PlayerDriven)
	assert.False(t, v.AIDriving)

	v.OnOwnerSetLocal()
	assert.False(t, v.AIDriving, "player-driven vehicle must not hand back to AI")

	v.OnConstantSyncChanged(false)
	v.OnOwnerSetLocal()
	assert.True(t, v.AIDriving)

	v.Throttle = 1
	v.OnControlTakenByForce()
	assert.False(t, v.AIDriving)
	assert.Zero(t, v.Throttle)
}

func TestCatalog(t *testing.T) {
	testlog.Start(t)
	c := DefaultCatalog()
	assert.Equal(t, []Type{TypeAIVehicle, TypePickupable}, c.Types())

	v, err := c.New(TypePickupable)
	require.NoError(t, err)
	assert.IsType(t, &Pickupable{}, v)

	_, err = c.New("hovercraft")
	assert.ErrorIs(t, err, ErrUnsupportedObjectType)

	err = c.Register(TypePickupable, func() Variant { return NewPickupable() })
	assert.ErrorIs(t, err, ErrConstructorExists)

	for _, bad := range []Type{"", "Boat", "_boat", "boat__x"} {
		assert.ErrorIs(t, c.Register(bad, func() Variant { return NewPickupable() }), ErrUnsupportedObjectType, "tag %q", bad)
	}

	require.NoError(t, c.Register("nil_boat", func() Variant { return nil }))
	_, err = c.New("nil_boat")
	assert.ErrorIs(t, err, ErrUnsupportedObjectType)

	assert.Equal(t, TypeAIVehicle, ParseType("  AI_Vehicle "))
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, float64(Distance(Vec3{0, 0, 0}, Vec3{3, 4, 0})), 1e-6)
}
