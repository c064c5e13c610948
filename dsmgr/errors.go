package dsmgr

import (
	"errors"
	"fmt"
)

// ErrConflictingValues is returned by imports supplying both a binary payload
// and a JSON values document.
var ErrConflictingValues = errors.New("import supplies both data and values")

// InvalidDatasetError is returned when imported content does not describe a
// loadable dataset. It wraps the parse or assignment failure.
type InvalidDatasetError struct {
	Name string
	Err  error
}

func (e InvalidDatasetError) Error() string {
	return fmt.Sprintf("invalid dataset %s: %v", e.Name, e.Err)
}

func (e InvalidDatasetError) Unwrap() error {
	return e.Err
}

func (e InvalidDatasetError) Is(target error) bool {
	_, ok := target.(InvalidDatasetError)
	return ok
}
