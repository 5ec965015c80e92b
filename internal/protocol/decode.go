package protocol

import (
	"bytes"
	"io"

	"github.com/danmuck/objsync/internal/protocol/frame"
	"github.com/danmuck/objsync/internal/protocol/schema"
	"github.com/danmuck/objsync/internal/protocol/tlv"
)

// Decode reads a single message from r.
func Decode(r io.Reader) (*ObjectSyncMessage, error) {
	f, err := frame.ReadFrame(r, frame.DefaultLimits())
	if err != nil {
		return nil, err
	}

	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return nil, err
	}
	messageType := f.Header.MessageType
	if err := schema.Validate(messageType, fields); err != nil {
		return nil, err
	}

	msg := &ObjectSyncMessage{
		Seq:      f.Header.MessageID,
		SyncType: SyncType(messageType),
	}

	objectField, _ := tlv.GetField(fields, schema.FieldObjectID)
	if msg.ObjectID, err = objectField.AsI32(); err != nil {
		return nil, err
	}
	senderField, _ := tlv.GetField(fields, schema.FieldSender)
	sender, err := senderField.AsU64()
	if err != nil {
		return nil, err
	}
	msg.Sender = PeerID(sender)

	if targetField, ok := tlv.GetField(fields, schema.FieldTarget); ok {
		target, err := targetField.AsU64()
		if err != nil {
			return nil, err
		}
		msg.Target = PeerID(target)
	}

	if msg.SyncType.CarriesTransform() {
		posField, _ := tlv.GetField(fields, schema.FieldPosition)
		pos, err := posField.AsF32Vec()
		if err != nil {
			return nil, err
		}
		copy(msg.Position[:], pos)
		rotField, _ := tlv.GetField(fields, schema.FieldRotation)
		rot, err := rotField.AsF32Vec()
		if err != nil {
			return nil, err
		}
		copy(msg.Rotation[:], rot)
	}

	varsField, hasVars := tlv.GetField(fields, schema.FieldVariables)
	if hasVars != (f.Header.Flags&frame.FlagHasVariables != 0) {
		return nil, ErrVariablesFlagMismatch
	}
	if hasVars {
		vars, err := varsField.AsF32Vec()
		if err != nil {
			return nil, err
		}
		msg.HasVariables = true
		msg.Variables = vars
	}
	return msg, nil
}

// Unmarshal decodes one message from a datagram.
func Unmarshal(b []byte) (*ObjectSyncMessage, error) {
	return Decode(bytes.NewReader(b))
}
