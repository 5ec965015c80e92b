package ownership

import (
	"time"

	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

// EnterSyncRange claims an unowned object for the local peer.
func (m *Machine) EnterSyncRange(id int32) ([]protocol.ObjectSyncMessage, error) {
	obj, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if obj.Owner != protocol.NoOwner {
		return nil, nil
	}
	m.transition(obj, func() { m.becomeLocalOwner(obj) })
	return []protocol.ObjectSyncMessage{m.message(obj, protocol.SetOwner, protocol.NoOwner)}, nil
}

// ExitSyncRange releases an object the local peer owns.
func (m *Machine) ExitSyncRange(id int32) ([]protocol.ObjectSyncMessage, error) {
	obj, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if !m.identity.IsLocal(obj.Owner) {
		return nil, nil
	}
	m.transition(obj, func() {
		obj.Owner = protocol.NoOwner
		obj.Enabled = false
	})
	return []protocol.ObjectSyncMessage{m.message(obj, protocol.RemoveOwner, protocol.NoOwner)}, nil
}

// TakeControlByForce makes the local peer the owner whatever the current
// state.
func (m *Machine) TakeControlByForce(id int32) ([]protocol.ObjectSyncMessage, error) {
	obj, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	m.transition(obj, func() { m.becomeLocalOwner(obj) })
	log.Info().Msgf("ownership.Machine.TakeControlByForce object=%d", id)
	return []protocol.ObjectSyncMessage{m.message(obj, protocol.ForceSetOwner, protocol.NoOwner)}, nil
}

// RequestOwnership claims an unowned object, or asks the remote owner to
// hand it over. The request is retried by ExpireRequests until accepted or
// exhausted.
func (m *Machine) RequestOwnership(id int32, now time.Time) ([]protocol.ObjectSyncMessage, error) {
	obj, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	switch m.stateOf(obj) {
	case Unowned:
		return m.EnterSyncRange(id)
	case OwnedLocal, RequestPending:
		return nil, nil
	}
	m.transition(obj, func() {
		m.requests.Upsert(session.PendingRequest{
			ObjectID: id,
			Owner:    obj.Owner,
			QueuedAt: now,
		})
		m.requests.MarkAttempt(id, now, session.RequestDeadline(m.cfg, 1, now, m.rng))
	})
	return []protocol.ObjectSyncMessage{m.message(obj, protocol.RequestSync, obj.Owner)}, nil
}

// ExpireRequests re-sends or abandons requests whose deadline has passed.
func (m *Machine) ExpireRequests(now time.Time) []protocol.ObjectSyncMessage {
	var out []protocol.ObjectSyncMessage
	for _, req := range m.requests.Due(now) {
		obj, ok := m.objects.Get(req.ObjectID)
		if !ok {
			m.requests.Remove(req.ObjectID)
			continue
		}
		switch {
		case obj.Owner == protocol.NoOwner:
			m.transition(obj, func() { m.becomeLocalOwner(obj) })
			out = append(out, m.message(obj, protocol.SetOwner, protocol.NoOwner))
		case m.identity.IsLocal(obj.Owner):
			m.requests.Remove(req.ObjectID)
		case session.Exhausted(m.cfg, req.Attempts):
			m.transition(obj, func() { m.requests.Remove(req.ObjectID) })
			log.Warn().Msgf("ownership.Machine.ExpireRequests abandoned object=%d owner=%s attempts=%d", obj.ID, obj.Owner, req.Attempts)
		default:
			attempt := req.Attempts + 1
			m.requests.MarkAttempt(req.ObjectID, now, session.RequestDeadline(m.cfg, attempt, now, m.rng))
			log.Debug().Msgf("ownership.Machine.ExpireRequests retry object=%d owner=%s attempt=%d", obj.ID, obj.Owner, attempt)
			out = append(out, m.message(obj, protocol.RequestSync, obj.Owner))
		}
	}
	return out
}

// SetConstantSync toggles per-tick generic sync for an object.
func (m *Machine) SetConstantSync(id int32, enabled bool) error {
	obj, err := m.lookup(id)
	if err != nil {
		return err
	}
	if obj.ConstantSync == enabled {
		return nil
	}
	obj.ConstantSync = enabled
	obj.Variant.OnConstantSyncChanged(enabled)
	return nil
}

// SetSyncEnabled pauses or resumes generic sync for an object the local peer
// owns.
func (m *Machine) SetSyncEnabled(id int32, enabled bool) error {
	obj, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !m.identity.IsLocal(obj.Owner) {
		return ErrNotOwner
	}
	obj.Enabled = enabled
	return nil
}
