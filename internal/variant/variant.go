// Package variant defines the per-object-type behavior every synced object
// delegates to, and the built-in variants.
package variant

import "math"

// Type tags which Variant implementation governs an object.
type Type string

const (
	TypePickupable Type = "pickupable"
	TypeAIVehicle  Type = "ai_vehicle"
)

type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Vec3) float32 {
	return a.Sub(b).Len()
}

type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat is the zero rotation.
var IdentityQuat = Quat{W: 1}

// Transform is the position and rotation snapshot of an object.
type Transform struct {
	Position Vec3
	Rotation Quat
}

// Variant is the capability set each object type implements. Hooks are pure
// notifications used by the variant to adjust its local physics and input.
type Variant interface {
	Transform() *Transform
	CanSync() bool
	PeriodicSyncEnabled() bool
	EncodeVariables() []float32
	DecodeVariables(vars []float32) error

	OnOwnerSetRemote()
	OnControlTakenByForce()
	OnConstantSyncChanged(enabled bool)
}

// LocalOwnerHook is implemented by variants that react when the local peer
// becomes the owner.
type LocalOwnerHook interface {
	OnOwnerSetLocal()
}

func boolToFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
