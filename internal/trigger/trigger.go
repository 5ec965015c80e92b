// Package trigger decides, once per tick and per object, which sync messages
// the local peer sends.
package trigger

import (
	"time"

	"github.com/danmuck/objsync/internal/ownership"
	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/registry"
	"github.com/danmuck/objsync/internal/variant"
	"github.com/rs/zerolog/log"
)

// Locator reports where the local peer is. ok is false while it has no
// position, which disables range checks.
type Locator interface {
	LocalPosition() (pos variant.Vec3, ok bool)
}

// FixedLocator is a Locator at a settable position.
type FixedLocator struct {
	Pos     variant.Vec3
	Present bool
}

func (f *FixedLocator) LocalPosition() (variant.Vec3, bool) {
	return f.Pos, f.Present
}

// DistanceTo adapts a Locator for the registry's periodic sync gate.
func DistanceTo(loc Locator) registry.DistanceFunc[*ownership.SyncedObject] {
	return func(obj *ownership.SyncedObject) (float32, bool) {
		if loc == nil {
			return 0, false
		}
		pos, ok := loc.LocalPosition()
		if !ok {
			return 0, false
		}
		return variant.Distance(pos, obj.Transform().Position), true
	}
}

type Config struct {
	// SyncRange is the claim and release radius. Zero disables automatic
	// claiming.
	SyncRange float32
}

type Policy struct {
	machine *ownership.Machine
	cfg     Config
	locator Locator
}

func New(machine *ownership.Machine, cfg Config, locator Locator) *Policy {
	return &Policy{machine: machine, cfg: cfg, locator: locator}
}

// Run evaluates every registered object in ascending id order.
func (p *Policy) Run(now time.Time) []protocol.ObjectSyncMessage {
	var out []protocol.ObjectSyncMessage
	objects := p.machine.Objects()
	for _, id := range objects.IDs() {
		obj, ok := objects.Get(id)
		if !ok {
			continue
		}
		out = append(out, p.Step(obj, now)...)
	}
	return out
}

// Step evaluates one object.
func (p *Policy) Step(obj *ownership.SyncedObject, now time.Time) []protocol.ObjectSyncMessage {
	out := p.syncRange(obj)

	if obj.Enabled && (obj.ConstantSync || obj.Variant.CanSync()) {
		out = append(out, p.machine.TransformMessage(obj, protocol.GenericSync))
	}

	if obj.Variant.PeriodicSyncEnabled() &&
		p.machine.Objects().ShouldPeriodicSync(obj.ID, obj.Owner, obj.Enabled, now) {
		out = append(out, p.machine.TransformMessage(obj, protocol.PeriodicSync))
	}
	return out
}

func (p *Policy) syncRange(obj *ownership.SyncedObject) []protocol.ObjectSyncMessage {
	if p.cfg.SyncRange <= 0 {
		return nil
	}
	dist, ok := DistanceTo(p.locator)(obj)
	if !ok {
		return nil
	}
	inRange := dist <= p.cfg.SyncRange
	local := p.machine.Identity().IsLocal(obj.Owner)

	var (
		out []protocol.ObjectSyncMessage
		err error
	)
	switch {
	case inRange && obj.Owner == protocol.NoOwner:
		out, err = p.machine.EnterSyncRange(obj.ID)
	case !inRange && local:
		out, err = p.machine.ExitSyncRange(obj.ID)
	}
	if err != nil {
		log.Warn().Err(err).Msgf("trigger.Policy.syncRange object=%d", obj.ID)
		return nil
	}
	return out
}
