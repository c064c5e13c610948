package dap

import (
	"errors"
	"fmt"
)

// ErrFrozen is returned when mutating a variable that has been frozen.
var ErrFrozen = errors.New("variable is frozen")

// TypeMismatchError is returned when a value cannot be losslessly represented
// by the declared type of a variable.
type TypeMismatchError struct {
	Tag   TypeTag
	Value any
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: cannot represent %v (%T) as %s", e.Value, e.Value, e.Tag)
}

func (e TypeMismatchError) Is(target error) bool {
	_, ok := target.(TypeMismatchError)
	return ok
}

// DuplicateNameError is returned when adding a member whose name is already
// used by a sibling.
type DuplicateNameError struct {
	Parent string
	Name   string
}

func (e DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate name %q in %q", e.Name, e.Parent)
}

func (e DuplicateNameError) Is(target error) bool {
	_, ok := target.(DuplicateNameError)
	return ok
}

// NotFoundError is returned when a named member or path does not resolve.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Name)
}

func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	return ok
}

// ArrayLengthError is returned when the number of array elements does not
// match the product of the declared dimensions.
type ArrayLengthError struct {
	Name string
	Want int
	Got  int
}

func (e ArrayLengthError) Error() string {
	return fmt.Sprintf("array %s: expected %d elements, got %d", e.Name, e.Want, e.Got)
}

func (e ArrayLengthError) Is(target error) bool {
	_, ok := target.(ArrayLengthError)
	return ok
}

// AlreadyOwnedError is returned when adding a variable that already has a
// parent.
type AlreadyOwnedError struct {
	Name   string
	Parent string
}

func (e AlreadyOwnedError) Error() string {
	return fmt.Sprintf("variable %q already belongs to %q", e.Name, e.Parent)
}

func (e AlreadyOwnedError) Is(target error) bool {
	_, ok := target.(AlreadyOwnedError)
	return ok
}

// InvalidNameError is returned for names containing reserved characters.
type InvalidNameError struct {
	Name string
}

func (e InvalidNameError) Error() string {
	return fmt.Sprintf("invalid name %q", e.Name)
}

func (e InvalidNameError) Is(target error) bool {
	_, ok := target.(InvalidNameError)
	return ok
}

// InvalidGridError is returned when a grid's maps do not match the shape of
// its array.
type InvalidGridError struct {
	Name   string
	Reason string
}

func (e InvalidGridError) Error() string {
	return fmt.Sprintf("invalid grid %s: %s", e.Name, e.Reason)
}

func (e InvalidGridError) Is(target error) bool {
	_, ok := target.(InvalidGridError)
	return ok
}
