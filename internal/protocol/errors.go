package protocol

import "errors"

var (
	ErrNilMessage            = errors.New("protocol: nil message")
	ErrUnknownSyncType       = errors.New("protocol: unknown sync type")
	ErrVariablesFlagMismatch = errors.New("protocol: variables flag mismatch")
)
