package ownership

import "errors"

var (
	ErrUnknownObject = errors.New("ownership: unknown object")
	ErrNotOwner      = errors.New("ownership: local peer is not the owner")
)
