package ownership

import (
	"github.com/danmuck/objsync/internal/protocol"
	"github.com/danmuck/objsync/internal/variant"
)

// State is the local view of an object's ownership.
type State int

const (
	Unowned State = iota
	OwnedLocal
	OwnedRemote
	RequestPending
)

func (s State) String() string {
	switch s {
	case Unowned:
		return "unowned"
	case OwnedLocal:
		return "owned_local"
	case OwnedRemote:
		return "owned_remote"
	case RequestPending:
		return "request_pending"
	}
	return "unknown"
}

// SyncedObject is one registered object and its ownership flags.
type SyncedObject struct {
	ID      int32
	Type    variant.Type
	Variant variant.Variant

	Owner protocol.PeerID
	// Enabled is true only while the local peer owns the object and sends
	// generic syncs for it.
	Enabled      bool
	ConstantSync bool
}

func NewSyncedObject(t variant.Type, v variant.Variant) *SyncedObject {
	return &SyncedObject{Type: t, Variant: v}
}

func (o *SyncedObject) Transform() *variant.Transform {
	return o.Variant.Transform()
}

// Identity answers every "is this me" question for the local peer.
type Identity interface {
	LocalID() protocol.PeerID
	IsLocal(id protocol.PeerID) bool
}

// StaticIdentity is an Identity with a fixed local peer id.
type StaticIdentity struct {
	ID protocol.PeerID
}

func (s StaticIdentity) LocalID() protocol.PeerID {
	return s.ID
}

func (s StaticIdentity) IsLocal(id protocol.PeerID) bool {
	return id != protocol.NoOwner && id == s.ID
}

// Snapshot is a read-only view of one object for inspection.
type Snapshot struct {
	ID              int32             `json:"id"`
	Type            variant.Type      `json:"type"`
	State           string            `json:"state"`
	Owner           protocol.PeerID   `json:"owner"`
	Enabled         bool              `json:"enabled"`
	ConstantSync    bool              `json:"constant_sync"`
	Transform       variant.Transform `json:"transform"`
	PendingAttempts int               `json:"pending_attempts,omitempty"`
}
