package variant

// PickupableVarCount is the fixed payload length: velocity xyz, held flag.
const PickupableVarCount = 4

// Pickupable is an item a player can pick up, carry, and throw.
type Pickupable struct {
	transform Transform

	Velocity Vec3
	Held     bool

	// Kinematic is set while a remote peer drives the item; local physics
	// must not integrate it.
	Kinematic    bool
	ConstantSync bool

	// VelocityEpsilon is the speed below which a resting item stops
	// producing generic syncs.
	VelocityEpsilon float32

	lastVelocity Vec3
	lastHeld     bool
}

var _ Variant = (*Pickupable)(nil)

func NewPickupable() *Pickupable {
	return &Pickupable{
		transform:       Transform{Rotation: IdentityQuat},
		VelocityEpsilon: 0.01,
	}
}

func (p *Pickupable) Transform() *Transform {
	return &p.transform
}

func (p *Pickupable) CanSync() bool {
	if p.Held || p.Held != p.lastHeld {
		return true
	}
	if p.Velocity.Len() > p.VelocityEpsilon {
		return true
	}
	return Distance(p.Velocity, p.lastVelocity) > p.VelocityEpsilon
}

func (p *Pickupable) PeriodicSyncEnabled() bool {
	return true
}

func (p *Pickupable) EncodeVariables() []float32 {
	p.lastVelocity = p.Velocity
	p.lastHeld = p.Held
	return []float32{p.Velocity.X, p.Velocity.Y, p.Velocity.Z, boolToFloat(p.Held)}
}

func (p *Pickupable) DecodeVariables(vars []float32) error {
	if err := checkLen(TypePickupable, PickupableVarCount, vars); err != nil {
		return err
	}
	p.Velocity = Vec3{vars[0], vars[1], vars[2]}
	p.Held = vars[3] >= 0.5
	p.lastVelocity = p.Velocity
	p.lastHeld = p.Held
	return nil
}

func (p *Pickupable) OnOwnerSetRemote() {
	p.Kinematic = true
}

// OnControlTakenByForce drops the item from the local hand.
func (p *Pickupable) OnControlTakenByForce() {
	p.Held = false
	p.Kinematic = true
}

func (p *Pickupable) OnConstantSyncChanged(enabled bool) {
	p.ConstantSync = enabled
}

// OnOwnerSetLocal returns the item to local physics.
func (p *Pickupable) OnOwnerSetLocal() {
	p.Kinematic = false
}
