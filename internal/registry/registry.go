package registry

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/danmuck/objsync/internal/protocol"
	"github.com/rs/zerolog/log"
)

// AutoID requests automatic id allocation from Register.
const AutoID int32 = -1

var (
	ErrDuplicateID = errors.New("registry: duplicate object id")
	ErrInvalidID   = errors.New("registry: invalid object id")
	ErrUnknownID   = errors.New("registry: unknown object id")
	ErrExhausted   = errors.New("registry: object ids exhausted")
)

// DistanceFunc returns the distance between the local peer and obj. ok is
// false when the local peer has no position.
type DistanceFunc[T any] func(obj T) (dist float32, ok bool)

// Options configures the periodic sync gate.
type Options[T any] struct {
	PeriodicInterval time.Duration
	PeriodicRange    float32
	Distance         DistanceFunc[T]
	IsLocal          func(protocol.PeerID) bool
}

func DefaultOptions[T any]() Options[T] {
	return Options[T]{
		PeriodicInterval: 2 * time.Second,
		PeriodicRange:    50,
	}
}

// Registry maps object ids to live entries. It is owned by one peer engine
// and is not safe for concurrent use.
type Registry[T any] struct {
	opts    Options[T]
	objects map[int32]T
	lastPer map[int32]time.Time
	nextID  int32
	// exhausted is set once math.MaxInt32 has been handed out or claimed.
	exhausted bool
}

func New[T any](opts Options[T]) *Registry[T] {
	if opts.PeriodicInterval <= 0 {
		opts.PeriodicInterval = DefaultOptions[T]().PeriodicInterval
	}
	return &Registry[T]{
		opts:    opts,
		objects: make(map[int32]T),
		lastPer: make(map[int32]time.Time),
	}
}

// Register binds obj to requestedID, or to the next unused id when
// requestedID is AutoID.
func (r *Registry[T]) Register(obj T, requestedID int32) (int32, error) {
	id := requestedID
	switch {
	case requestedID == AutoID:
		for {
			if r.exhausted {
				return 0, ErrExhausted
			}
			if _, live := r.objects[r.nextID]; !live {
				break
			}
			r.advance(r.nextID)
		}
		id = r.nextID
		r.advance(id)
	case requestedID < 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidID, requestedID)
	default:
		if _, live := r.objects[requestedID]; live {
			return 0, fmt.Errorf("%w: %d", ErrDuplicateID, requestedID)
		}
		if requestedID >= r.nextID {
			r.advance(requestedID)
		}
	}
	r.objects[id] = obj
	log.Debug().Msgf("registry.Registry.Register id=%d auto=%t", id, requestedID == AutoID)
	return id, nil
}

// advance moves automatic allocation past used without wrapping.
func (r *Registry[T]) advance(used int32) {
	if used == math.MaxInt32 {
		r.nextID = used
		r.exhausted = true
		return
	}
	r.nextID = used + 1
}

func (r *Registry[T]) Get(id int32) (T, bool) {
	obj, ok := r.objects[id]
	return obj, ok
}

// IDs returns the live ids in ascending order.
func (r *Registry[T]) IDs() []int32 {
	out := make([]int32, 0, len(r.objects))
	for id := range r.objects {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry[T]) Len() int {
	return len(r.objects)
}

// Release removes id and its periodic sync bookkeeping. Released ids are not
// handed out again by automatic allocation.
func (r *Registry[T]) Release(id int32) error {
	if _, ok := r.objects[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	delete(r.objects, id)
	delete(r.lastPer, id)
	log.Debug().Msgf("registry.Registry.Release id=%d", id)
	return nil
}

// ShouldPeriodicSync reports whether id may send a periodic sync at now.
// The interval must have elapsed since the last authorized sync, and the
// object must either be owned locally with localEnabled set or lie within
// PeriodicRange of the local peer. A true result is recorded, so each object
// is authorized at most once per interval.
func (r *Registry[T]) ShouldPeriodicSync(id int32, owner protocol.PeerID, localEnabled bool, now time.Time) bool {
	obj, ok := r.objects[id]
	if !ok {
		return false
	}
	if last, seen := r.lastPer[id]; seen && now.Sub(last) < r.opts.PeriodicInterval {
		return false
	}
	if !r.ownedLocally(owner, localEnabled) && !r.inRange(obj) {
		return false
	}
	r.lastPer[id] = now
	return true
}

func (r *Registry[T]) ownedLocally(owner protocol.PeerID, localEnabled bool) bool {
	if !localEnabled || owner == protocol.NoOwner || r.opts.IsLocal == nil {
		return false
	}
	return r.opts.IsLocal(owner)
}

func (r *Registry[T]) inRange(obj T) bool {
	if r.opts.Distance == nil {
		return false
	}
	d, ok := r.opts.Distance(obj)
	return ok && d <= r.opts.PeriodicRange
}
