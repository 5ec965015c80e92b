package variant

import "math"

// AIVehicleVarCount is the fixed payload length: throttle, steering, brake,
// target speed, waypoint index.
const AIVehicleVarCount = 5

// AIVehicle is a vehicle driven by local AI while owned, or by a player who
// switches it to constant sync.
type AIVehicle struct {
	transform Transform

	Throttle    float32
	Steering    float32
	Brake       float32
	TargetSpeed float32
	Waypoint    int32

	// AIDriving is true while the local AI controls the vehicle.
	AIDriving bool
	// PlayerDriven mirrors the constant sync flag.
	PlayerDriven bool
	Periodic     bool
	InputEpsilon float32

	last [AIVehicleVarCount]float32
}

var _ Variant = (*AIVehicle)(nil)

func NewAIVehicle() *AIVehicle {
	return &AIVehicle{
		transform:    Transform{Rotation: IdentityQuat},
		AIDriving:    true,
		Periodic:     true,
		InputEpsilon: 0.001,
	}
}

func (v *AIVehicle) Transform() *Transform {
	return &v.transform
}

func (v *AIVehicle) CanSync() bool {
	cur := v.values()
	for i := range cur {
		if absf(cur[i]-v.last[i]) > v.InputEpsilon {
			return true
		}
	}
	return false
}

func (v *AIVehicle) PeriodicSyncEnabled() bool {
	return v.Periodic
}

func (v *AIVehicle) EncodeVariables() []float32 {
	cur := v.values()
	v.last = cur
	out := make([]float32, AIVehicleVarCount)
	copy(out, cur[:])
	return out
}

func (v *AIVehicle) DecodeVariables(vars []float32) error {
	if err := checkLen(TypeAIVehicle, AIVehicleVarCount, vars); err != nil {
		return err
	}
	v.Throttle = vars[0]
	v.Steering = vars[1]
	v.Brake = vars[2]
	v.TargetSpeed = vars[3]
	v.Waypoint = int32(math.Round(float64(vars[4])))
	v.last = v.values()
	return nil
}

func (v *AIVehicle) OnOwnerSetRemote() {
	v.AIDriving = false
}

// OnOwnerSetLocal hands the vehicle back to local AI unless a player drives it.
func (v *AIVehicle) OnOwnerSetLocal() {
	v.AIDriving = !v.PlayerDriven
}

func (v *AIVehicle) OnControlTakenByForce() {
	v.AIDriving = false
	v.Throttle = 0
}

func (v *AIVehicle) OnConstantSyncChanged(enabled bool) {
	v.PlayerDriven = enabled
	v.AIDriving = !enabled
}

func (v *AIVehicle) values() [AIVehicleVarCount]float32 {
	return [AIVehicleVarCount]float32{v.Throttle, v.Steering, v.Brake, v.TargetSpeed, float32(v.Waypoint)}
}
