package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/danmuck/objsync/internal/protocol/frame"
	"github.com/danmuck/objsync/internal/protocol/schema"
	"github.com/danmuck/objsync/internal/protocol/tlv"
)

// Encode writes msg to w as one frame.
func Encode(w io.Writer, msg *ObjectSyncMessage) error {
	if msg == nil {
		return ErrNilMessage
	}
	messageType := uint32(msg.SyncType)
	if !schema.Known(messageType) {
		return fmt.Errorf("%w: %d", ErrUnknownSyncType, messageType)
	}
	if !msg.HasVariables && len(msg.Variables) > 0 {
		return ErrVariablesFlagMismatch
	}

	fields := messageFields(msg)
	if err := schema.Validate(messageType, fields); err != nil {
		return err
	}

	var flags uint32
	if msg.HasVariables {
		flags |= frame.FlagHasVariables
	}
	return frame.WriteFrame(w, frame.Frame{
		Header: frame.Header{
			MessageID:   msg.Seq,
			MessageType: messageType,
			Flags:       flags,
		},
		Payload: tlv.EncodeFields(fields),
	}, frame.DefaultLimits())
}

// Marshal returns the wire bytes for msg.
func Marshal(msg *ObjectSyncMessage) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func messageFields(msg *ObjectSyncMessage) []tlv.Field {
	fields := []tlv.Field{
		tlv.I32(schema.FieldObjectID, msg.ObjectID),
		tlv.U64(schema.FieldSender, uint64(msg.Sender)),
	}
	if msg.Target != NoOwner || msg.SyncType == RequestSync || msg.SyncType == SyncRequestAccepted {
		fields = append(fields, tlv.U64(schema.FieldTarget, uint64(msg.Target)))
	}
	if msg.SyncType.CarriesTransform() {
		fields = append(fields,
			tlv.F32Vec(schema.FieldPosition, msg.Position[:]),
			tlv.F32Vec(schema.FieldRotation, msg.Rotation[:]),
		)
	}
	if msg.HasVariables {
		fields = append(fields, tlv.F32Vec(schema.FieldVariables, msg.Variables))
	}
	return fields
}
