package registry

import (
	"errors"
	"fmt"
)

// ErrDuplicateHandler matches every DuplicateHandlerError.
var ErrDuplicateHandler = errors.New("duplicate handler")

// DuplicateHandlerError is returned by strict registries when a key is reused.
type DuplicateHandlerError struct {
	Collection string
	Name       string
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("duplicate %s handler %q", e.Collection, e.Name)
}

// Is matches ErrDuplicateHandler.
func (e *DuplicateHandlerError) Is(target error) bool {
	return target == ErrDuplicateHandler
}
