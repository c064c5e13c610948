package dap

import (
	"fmt"
	"strings"
)

/*
Type tags and variants of the DAP data model. Every variable carries exactly
one type tag, assigned at construction. Tags are grouped into five variants
(scalar, array, structure, sequence, grid), and the variant is what the codec,
the DDS builder, and renderers dispatch on.
*/

////////////////////////////////////////////////////////////////////////////////

// TypeTag identifies the declared type of a variable.
type TypeTag int

const (
	Byte TypeTag = iota + 1
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
	String
	URL
	Array
	Structure
	Sequence
	Grid
)

// Kind is the variant of a type tag.
type Kind int

const (
	KindScalar Kind = iota
	KindArray
	KindStructure
	KindSequence
	KindGrid

	// NumKinds is the number of variants, for sizing dispatch tables.
	NumKinds
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindStructure:
		return "structure"
	case KindSequence:
		return "sequence"
	case KindGrid:
		return "grid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// nolint:gochecknoglobals
var tagNames = map[TypeTag]string{
	Byte:      "Byte",
	Int16:     "Int16",
	UInt16:    "UInt16",
	Int32:     "Int32",
	UInt32:    "UInt32",
	Float32:   "Float32",
	Float64:   "Float64",
	String:    "String",
	URL:       "Url",
	Array:     "Array",
	Structure: "Structure",
	Sequence:  "Sequence",
	Grid:      "Grid",
}

// String returns the DDS keyword for the tag.
func (t TypeTag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TypeTag(%d)", int(t))
}

// ParseTypeTag parses a DDS/DAS type keyword. Matching is case-insensitive.
func ParseTypeTag(s string) (TypeTag, error) {
	for tag, name := range tagNames {
		if strings.EqualFold(name, s) {
			return tag, nil
		}
	}
	return 0, fmt.Errorf("unrecognized type %q", s)
}

// Kind returns the variant of the tag.
func (t TypeTag) Kind() Kind {
	switch t {
	case Array:
		return KindArray
	case Structure:
		return KindStructure
	case Sequence:
		return KindSequence
	case Grid:
		return KindGrid
	default:
		return KindScalar
	}
}

// IsScalar reports whether the tag is a scalar type.
func (t TypeTag) IsScalar() bool {
	return t >= Byte && t <= URL
}

// IsNumeric reports whether the tag is an integer or floating point type.
func (t TypeTag) IsNumeric() bool {
	return t >= Byte && t <= Float64
}

// Width returns the encoded width in bytes of a fixed-width scalar, or zero
// for variable-width and constructor types.
func (t TypeTag) Width() int {
	switch t {
	case Byte:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}
