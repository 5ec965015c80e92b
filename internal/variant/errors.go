package variant

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedObjectType = errors.New("variant: unsupported object type")
	ErrPayloadLengthMismatch = errors.New("variant: payload length mismatch")
	ErrConstructorExists     = errors.New("variant: constructor already registered")
)

// PayloadLengthMismatchError reports a decoded payload whose length does not
// match the variant's fixed format.
type PayloadLengthMismatchError struct {
	Type Type
	Want int
	Got  int
}

func (e *PayloadLengthMismatchError) Error() string {
	return fmt.Sprintf("variant: %s payload length mismatch: got %d want %d", e.Type, e.Got, e.Want)
}

func (e *PayloadLengthMismatchError) Is(target error) bool {
	return target == ErrPayloadLengthMismatch
}

func checkLen(t Type, want int, vars []float32) error {
	if len(vars) != want {
		return &PayloadLengthMismatchError{Type: t, Want: want, Got: len(vars)}
	}
	return nil
}
