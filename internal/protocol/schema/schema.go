package schema

import (
	"fmt"

	"github.com/danmuck/objsync/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs, one per sync type.
const (
	MsgGenericSync         uint32 = 0
	MsgPeriodicSync        uint32 = 1
	MsgSetOwner            uint32 = 2
	MsgRemoveOwner         uint32 = 3
	MsgForceSetOwner       uint32 = 4
	MsgRequestSync         uint32 = 5
	MsgSyncRequestAccepted uint32 = 6
)

// Field IDs.
const (
	FieldObjectID uint16 = 1
	FieldSender   uint16 = 2
	FieldTarget   uint16 = 3

	FieldPosition uint16 = 100
	FieldRotation uint16 = 101

	FieldVariables uint16 = 200
)

// Fixed vector lengths for transform fields.
const (
	PositionLen = 3
	RotationLen = 4
)

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var header = []Requirement{
	{FieldObjectID, tlv.TypeI32},
	{FieldSender, tlv.TypeU64},
}

var transform = []Requirement{
	{FieldPosition, tlv.TypeF32Vec},
	{FieldRotation, tlv.TypeF32Vec},
}

var requirements = map[uint32][]Requirement{
	MsgGenericSync:         concat(header, transform),
	MsgPeriodicSync:        concat(header, transform),
	MsgSetOwner:            header,
	MsgRemoveOwner:         header,
	MsgForceSetOwner:       header,
	MsgRequestSync:         concat(header, []Requirement{{FieldTarget, tlv.TypeU64}}),
	MsgSyncRequestAccepted: concat(header, []Requirement{{FieldTarget, tlv.TypeU64}}),
}

var vectorLens = map[uint16]int{
	FieldPosition: PositionLen,
	FieldRotation: RotationLen,
}

// Known reports whether messageType has a registered schema.
func Known(messageType uint32) bool {
	_, ok := requirements[messageType]
	return ok
}

// Validate enforces required fields and required field types for a message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	log.Trace().Msgf("schema.Validate message_type=%d fields=%d", messageType, len(fields))
	reqs, ok := requirements[messageType]
	if !ok {
		log.Debug().Msgf("schema.Validate unknown message_type=%d", messageType)
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Debug().Msgf(
				"schema.Validate missing field message_type=%d field_id=%d",
				messageType,
				req.ID,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Debug().Msgf(
				"schema.Validate type mismatch message_type=%d field_id=%d got=%d want=%d",
				messageType,
				req.ID,
				f.Type,
				req.Type,
			)
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
		if want, ok := vectorLens[req.ID]; ok && len(f.Value) != want*4 {
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "vector length mismatch"}
		}
	}
	return nil
}

func concat(parts ...[]Requirement) []Requirement {
	out := make([]Requirement, 0)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
