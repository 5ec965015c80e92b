package peer

import (
	"errors"
	"time"

	"github.com/danmuck/objsync/internal/observability"
	"github.com/danmuck/objsync/internal/ownership"
	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/protocol/session"
	"github.com/danmuck/objsync/internal/registry"
	"github.com/danmuck/objsync/internal/trigger"
	"github.com/danmuck/objsync/internal/variant"
	"github.com/rs/zerolog/log"
)

// EngineConfig configures one peer engine.
type EngineConfig struct {
	Identity         ownership.Identity
	Catalog          *variant.Catalog
	Locator          trigger.Locator
	SyncRange        float32
	PeriodicRange    float32
	PeriodicInterval time.Duration
	Session          session.Config
}

// Engine is the per-peer tick step. It is not safe for concurrent use.
type Engine struct {
	machine *ownership.Machine
	policy  *trigger.Policy
	catalog *variant.Catalog
	seq     uint64
	label   string
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Identity == nil || cfg.Identity.LocalID() == protocol.NoOwner {
		return nil, errors.New("peer: engine requires a non-zero local peer id")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = variant.DefaultCatalog()
	}
	opts := registry.DefaultOptions[*ownership.SyncedObject]()
	if cfg.PeriodicInterval > 0 {
		opts.PeriodicInterval = cfg.PeriodicInterval
	}
	if cfg.PeriodicRange > 0 {
		opts.PeriodicRange = cfg.PeriodicRange
	}
	opts.Distance = trigger.DistanceTo(cfg.Locator)
	opts.IsLocal = cfg.Identity.IsLocal

	machine := ownership.NewMachine(cfg.Identity, registry.New(opts), cfg.Session)
	return &Engine{
		machine: machine,
		policy:  trigger.New(machine, trigger.Config{SyncRange: cfg.SyncRange}, cfg.Locator),
		catalog: cfg.Catalog,
		label:   cfg.Identity.LocalID().String(),
	}, nil
}

func (e *Engine) LocalID() protocol.PeerID {
	return e.machine.Identity().LocalID()
}

// Spawn registers a new object of type tag. requestedID is an explicit id
// or registry.AutoID.
func (e *Engine) Spawn(tag variant.Type, requestedID int32) (int32, error) {
	v, err := e.catalog.New(tag)
	if err != nil {
		return 0, err
	}
	obj := ownership.NewSyncedObject(tag, v)
	id, err := e.machine.Objects().Register(obj, requestedID)
	if err != nil {
		return 0, err
	}
	obj.ID = id
	observability.SetLiveObjects(e.label, e.machine.Objects().Len())
	log.Debug().Msgf("peer.Engine.Spawn id=%d type=%s", id, tag)
	return id, nil
}

// Despawn releases an object. A locally owned object is released to other
// peers first; the returned messages carry that release.
func (e *Engine) Despawn(id int32) ([]protocol.ObjectSyncMessage, error) {
	out, err := e.machine.ExitSyncRange(id)
	if err != nil {
		return nil, err
	}
	e.machine.Forget(id)
	if err := e.machine.Objects().Release(id); err != nil {
		return nil, err
	}
	observability.SetLiveObjects(e.label, e.machine.Objects().Len())
	return e.stamp(out), nil
}

// Variant returns the variant bound to object id.
func (e *Engine) Variant(id int32) (variant.Variant, bool) {
	obj, ok := e.machine.Objects().Get(id)
	if !ok {
		return nil, false
	}
	return obj.Variant, true
}

// Tick applies inbound in arrival order, retries expired ownership requests,
// then runs the sync trigger over every object. It returns the messages to
// send.
func (e *Engine) Tick(now time.Time, inbound []protocol.ObjectSyncMessage) []protocol.ObjectSyncMessage {
	var out []protocol.ObjectSyncMessage
	for i := range inbound {
		replies, err := e.machine.Apply(&inbound[i])
		if err != nil {
			e.logApplyError(&inbound[i], err)
		}
		out = append(out, replies...)
	}
	out = append(out, e.machine.ExpireRequests(now)...)
	out = append(out, e.policy.Run(now)...)
	return e.stamp(out)
}

func (e *Engine) logApplyError(msg *protocol.ObjectSyncMessage, err error) {
	switch {
	case errors.Is(err, ownership.ErrUnknownObject):
		log.Debug().Msgf("peer.Engine.Tick dropped %s: %v", msg, err)
	case errors.Is(err, variant.ErrPayloadLengthMismatch):
		log.Warn().Msgf("peer.Engine.Tick variables rejected %s: %v", msg, err)
	default:
		log.Warn().Msgf("peer.Engine.Tick apply failed %s: %v", msg, err)
	}
}

func (e *Engine) stamp(out []protocol.ObjectSyncMessage) []protocol.ObjectSyncMessage {
	for i := range out {
		e.seq++
		out[i].Seq = e.seq
		observability.RecordMessage(e.label, "out", out[i].SyncType.String())
	}
	return out
}

// Claim, Release, Force and Request are the local ownership actions. Each
// returns the messages to send.
func (e *Engine) Claim(id int32) ([]protocol.ObjectSyncMessage, error) {
	return e.action(e.machine.EnterSyncRange(id))
}

func (e *Engine) Release(id int32) ([]protocol.ObjectSyncMessage, error) {
	return e.action(e.machine.ExitSyncRange(id))
}

func (e *Engine) Force(id int32) ([]protocol.ObjectSyncMessage, error) {
	return e.action(e.machine.TakeControlByForce(id))
}

func (e *Engine) Request(id int32, now time.Time) ([]protocol.ObjectSyncMessage, error) {
	return e.action(e.machine.RequestOwnership(id, now))
}

func (e *Engine) action(out []protocol.ObjectSyncMessage, err error) ([]protocol.ObjectSyncMessage, error) {
	if err != nil {
		return nil, err
	}
	return e.stamp(out), nil
}

func (e *Engine) SetConstantSync(id int32, enabled bool) error {
	return e.machine.SetConstantSync(id, enabled)
}

func (e *Engine) SetSyncEnabled(id int32, enabled bool) error {
	return e.machine.SetSyncEnabled(id, enabled)
}

// Object returns a snapshot of object id.
func (e *Engine) Object(id int32) (ownership.Snapshot, error) {
	return e.machine.Snapshot(id)
}

// Snapshot returns every object in ascending id order.
func (e *Engine) Snapshot() []ownership.Snapshot {
	ids := e.machine.Objects().IDs()
	out := make([]ownership.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := e.machine.Snapshot(id)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out
}
