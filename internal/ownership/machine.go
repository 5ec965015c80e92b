package ownership

import (
	"fmt"
	"math/rand"

	"github.com/danmuck/objsync/internal/observability"
	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/protocol/session"
	"github.com/danmuck/objsync/internal/registry"
	"github.com/danmuck/objsync/internal/variant"
	"github.com/rs/zerolog/log"
)

// Machine applies ownership messages and local actions to the objects held
// in a registry. Every method returns the messages the caller must send.
type Machine struct {
	identity Identity
	objects  *registry.Registry[*SyncedObject]
	requests *session.RequestOutbox
	cfg      session.Config
	rng      *rand.Rand
	label    string
}

func NewMachine(identity Identity, objects *registry.Registry[*SyncedObject], cfg session.Config) *Machine {
	return &Machine{
		identity: identity,
		objects:  objects,
		requests: session.NewRequestOutbox(),
		cfg:      cfg.WithDefaults(),
		rng:      rand.New(rand.NewSource(int64(identity.LocalID()))),
		label:    identity.LocalID().String(),
	}
}

func (m *Machine) Identity() Identity {
	return m.identity
}

func (m *Machine) Objects() *registry.Registry[*SyncedObject] {
	return m.objects
}

func (m *Machine) lookup(id int32) (*SyncedObject, error) {
	obj, ok := m.objects.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownObject, id)
	}
	return obj, nil
}

// State returns the local view of object id.
func (m *Machine) State(id int32) (State, error) {
	obj, err := m.lookup(id)
	if err != nil {
		return Unowned, err
	}
	return m.stateOf(obj), nil
}

func (m *Machine) stateOf(obj *SyncedObject) State {
	if _, pending := m.requests.Get(obj.ID); pending {
		return RequestPending
	}
	switch {
	case obj.Owner == protocol.NoOwner:
		return Unowned
	case m.identity.IsLocal(obj.Owner):
		return OwnedLocal
	default:
		return OwnedRemote
	}
}

func (m *Machine) Snapshot(id int32) (Snapshot, error) {
	obj, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		ID:           obj.ID,
		Type:         obj.Type,
		State:        m.stateOf(obj).String(),
		Owner:        obj.Owner,
		Enabled:      obj.Enabled,
		ConstantSync: obj.ConstantSync,
		Transform:    *obj.Transform(),
	}
	if req, ok := m.requests.Get(id); ok {
		snap.PendingAttempts = req.Attempts
	}
	return snap, nil
}

// Forget drops per-object protocol state for an object being released.
func (m *Machine) Forget(id int32) {
	m.requests.Remove(id)
}

// transition runs fn and records the state change it caused, if any.
func (m *Machine) transition(obj *SyncedObject, fn func()) {
	before := m.stateOf(obj)
	fn()
	after := m.stateOf(obj)
	if before != after {
		observability.RecordTransition(m.label, before.String(), after.String())
		log.Debug().Msgf("ownership.Machine.transition object=%d from=%s to=%s owner=%s", obj.ID, before, after, obj.Owner)
	}
}

func (m *Machine) message(obj *SyncedObject, st protocol.SyncType, target protocol.PeerID) protocol.ObjectSyncMessage {
	return protocol.ObjectSyncMessage{
		ObjectID: obj.ID,
		Sender:   m.identity.LocalID(),
		Target:   target,
		SyncType: st,
	}
}

// TransformMessage builds a GenericSync or PeriodicSync carrying obj's
// transform and variant state.
func (m *Machine) TransformMessage(obj *SyncedObject, st protocol.SyncType) protocol.ObjectSyncMessage {
	msg := m.message(obj, st, protocol.NoOwner)
	tf := obj.Transform()
	msg.Position = [3]float32{tf.Position.X, tf.Position.Y, tf.Position.Z}
	msg.Rotation = [4]float32{tf.Rotation.X, tf.Rotation.Y, tf.Rotation.Z, tf.Rotation.W}
	if vars := obj.Variant.EncodeVariables(); len(vars) > 0 {
		msg.HasVariables = true
		msg.Variables = vars
	}
	return msg
}

func (m *Machine) becomeLocalOwner(obj *SyncedObject) {
	m.requests.Remove(obj.ID)
	obj.Owner = m.identity.LocalID()
	obj.Enabled = true
	if hook, ok := obj.Variant.(variant.LocalOwnerHook); ok {
		hook.OnOwnerSetLocal()
	}
}

// Apply applies one inbound message. Unknown objects are reported with
// ErrUnknownObject. A variable payload that fails to decode is reported after
// the transform has been applied.
func (m *Machine) Apply(msg *protocol.ObjectSyncMessage) ([]protocol.ObjectSyncMessage, error) {
	if msg == nil {
		return nil, protocol.ErrNilMessage
	}
	obj, err := m.lookup(msg.ObjectID)
	if err != nil {
		observability.RecordDropped(m.label, "unknown_object")
		return nil, err
	}
	if m.identity.IsLocal(msg.Sender) {
		log.Trace().Msgf("ownership.Machine.Apply loopback %s", msg)
		return nil, nil
	}
	observability.RecordMessage(m.label, "in", msg.SyncType.String())

	var out []protocol.ObjectSyncMessage
	switch msg.SyncType {
	case protocol.SetOwner:
		m.applySetOwner(obj, msg.Sender)
	case protocol.RemoveOwner:
		out = m.applyRemoveOwner(obj, msg.Sender)
	case protocol.ForceSetOwner:
		m.applyForceSetOwner(obj, msg.Sender)
	case protocol.GenericSync, protocol.PeriodicSync:
		return nil, m.applyTransform(obj, msg)
	case protocol.RequestSync:
		out = m.applyRequestSync(obj, msg)
	case protocol.SyncRequestAccepted:
		m.applyAccepted(obj, msg)
	default:
		observability.RecordDropped(m.label, "unknown_sync_type")
		return nil, fmt.Errorf("%w: %d", protocol.ErrUnknownSyncType, uint32(msg.SyncType))
	}
	return out, nil
}

func (m *Machine) applySetOwner(obj *SyncedObject, sender protocol.PeerID) {
	switch obj.Owner {
	case protocol.NoOwner:
		m.transition(obj, func() {
			obj.Owner = sender
			obj.Enabled = false
			obj.Variant.OnOwnerSetRemote()
		})
	case sender:
	default:
		observability.RecordDropped(m.label, "owner_conflict")
		log.Debug().Msgf("ownership.Machine.applySetOwner conflict object=%d owner=%s claimant=%s", obj.ID, obj.Owner, sender)
	}
}

func (m *Machine) applyRemoveOwner(obj *SyncedObject, sender protocol.PeerID) []protocol.ObjectSyncMessage {
	if obj.Owner != sender {
		return nil
	}
	var out []protocol.ObjectSyncMessage
	m.transition(obj, func() {
		obj.Owner = protocol.NoOwner
		obj.Enabled = false
		// A request waiting on the departing owner becomes a claim.
		if _, pending := m.requests.Get(obj.ID); pending {
			m.becomeLocalOwner(obj)
			out = append(out, m.message(obj, protocol.SetOwner, protocol.NoOwner))
		}
	})
	return out
}

func (m *Machine) applyForceSetOwner(obj *SyncedObject, sender protocol.PeerID) {
	m.transition(obj, func() {
		prev := obj.Owner
		m.requests.Remove(obj.ID)
		obj.Owner = sender
		obj.Enabled = false
		switch {
		case m.identity.IsLocal(prev):
			obj.Variant.OnControlTakenByForce()
		case prev != sender:
			obj.Variant.OnOwnerSetRemote()
		}
	})
}

func (m *Machine) applyTransform(obj *SyncedObject, msg *protocol.ObjectSyncMessage) error {
	if obj.Owner != protocol.NoOwner && obj.Owner != msg.Sender {
		observability.RecordDropped(m.label, "stale_sync")
		log.Trace().Msgf("ownership.Machine.applyTransform stale object=%d owner=%s sender=%s", obj.ID, obj.Owner, msg.Sender)
		return nil
	}

	tf := obj.Transform()
	tf.Position = variant.Vec3{X: msg.Position[0], Y: msg.Position[1], Z: msg.Position[2]}
	tf.Rotation = variant.Quat{X: msg.Rotation[0], Y: msg.Rotation[1], Z: msg.Rotation[2], W: msg.Rotation[3]}
	if !msg.HasVariables {
		return nil
	}
	if err := obj.Variant.DecodeVariables(msg.Variables); err != nil {
		observability.RecordDropped(m.label, "payload_length")
		return fmt.Errorf("object %d: %w", obj.ID, err)
	}
	return nil
}

func (m *Machine) applyRequestSync(obj *SyncedObject, msg *protocol.ObjectSyncMessage) []protocol.ObjectSyncMessage {
	if msg.Target != protocol.NoOwner && !m.identity.IsLocal(msg.Target) {
		return nil
	}
	if !m.identity.IsLocal(obj.Owner) {
		log.Debug().Msgf("ownership.Machine.applyRequestSync not owner object=%d requester=%s", obj.ID, msg.Sender)
		return nil
	}
	m.transition(obj, func() {
		obj.Owner = msg.Sender
		obj.Enabled = false
		obj.Variant.OnOwnerSetRemote()
	})
	log.Info().Msgf("ownership.Machine.applyRequestSync granted object=%d to=%s", obj.ID, msg.Sender)
	return []protocol.ObjectSyncMessage{m.message(obj, protocol.SyncRequestAccepted, msg.Sender)}
}

func (m *Machine) applyAccepted(obj *SyncedObject, msg *protocol.ObjectSyncMessage) {
	if msg.Target == protocol.NoOwner {
		return
	}
	if m.identity.IsLocal(msg.Target) {
		m.transition(obj, func() { m.becomeLocalOwner(obj) })
		log.Info().Msgf("ownership.Machine.applyAccepted object=%d granted_by=%s", obj.ID, msg.Sender)
		return
	}
	if m.identity.IsLocal(obj.Owner) {
		observability.RecordDropped(m.label, "owner_conflict")
		log.Debug().Msgf("ownership.Machine.applyAccepted ignored grant object=%d target=%s", obj.ID, msg.Target)
		return
	}
	m.transition(obj, func() {
		obj.Owner = msg.Target
		obj.Enabled = false
	})
}
