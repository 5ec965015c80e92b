package protocol

import (
	"fmt"

	"github.com/danmuck/objsync/internal/protocol/schema"
)

// PeerID identifies one peer in a session.
type PeerID uint64

// NoOwner is the owner sentinel for an object nobody is authoritative for.
// As a message target it means broadcast.
const NoOwner PeerID = 0

func (p PeerID) String() string {
	if p == NoOwner {
		return "none"
	}
	return fmt.Sprintf("peer-%d", uint64(p))
}

// SyncType selects what a receiver does with an ObjectSyncMessage.
type SyncType uint32

const (
	GenericSync         = SyncType(schema.MsgGenericSync)
	PeriodicSync        = SyncType(schema.MsgPeriodicSync)
	SetOwner            = SyncType(schema.MsgSetOwner)
	RemoveOwner         = SyncType(schema.MsgRemoveOwner)
	ForceSetOwner       = SyncType(schema.MsgForceSetOwner)
	RequestSync         = SyncType(schema.MsgRequestSync)
	SyncRequestAccepted = SyncType(schema.MsgSyncRequestAccepted)
)

func (t SyncType) String() string {
	switch t {
	case GenericSync:
		return "generic_sync"
	case PeriodicSync:
		return "periodic_sync"
	case SetOwner:
		return "set_owner"
	case RemoveOwner:
		return "remove_owner"
	case ForceSetOwner:
		return "force_set_owner"
	case RequestSync:
		return "request_sync"
	case SyncRequestAccepted:
		return "sync_request_accepted"
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

// CarriesTransform reports whether messages of this type carry authoritative
// position and rotation.
func (t SyncType) CarriesTransform() bool {
	return t == GenericSync || t == PeriodicSync
}

// ObjectSyncMessage is the per-object message exchanged between peers.
type ObjectSyncMessage struct {
	Seq      uint64
	ObjectID int32
	Sender   PeerID
	// Target addresses RequestSync to the owner and names the new owner in
	// SyncRequestAccepted. NoOwner elsewhere.
	Target   PeerID
	SyncType SyncType
	Position [3]float32
	Rotation [4]float32

	// Variables is only meaningful when HasVariables is set.
	HasVariables bool
	Variables    []float32
}

func (m ObjectSyncMessage) String() string {
	return fmt.Sprintf(
		"%s object=%d sender=%s target=%s vars=%d",
		m.SyncType,
		m.ObjectID,
		m.Sender,
		m.Target,
		len(m.Variables),
	)
}
