package dap

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

/*
Variable is the single tagged-variant type of the data model. Rather than one
type per DAP class, a Variable carries a type tag and the payload for its
variant:

  - scalars hold one value (or nothing, before the first assignment),
  - structures and sequences hold ordered member templates,
  - arrays hold an element template, a dimension list and flat row-major data,
  - grids hold an array followed by its coordinate map arrays,
  - sequences additionally hold rows, or a producer of rows.

Variables form a tree: every member has exactly one parent. Once a tree has
been built it may be frozen, after which all mutation fails with ErrFrozen and
the tree may be shared read-only across goroutines.
*/

////////////////////////////////////////////////////////////////////////////////

// Dim is one array dimension. Name is optional.
type Dim struct {
	Size int
	Name string
}

// Variable is a node in a DAP variable tree.
type Variable struct {
	name   string
	tag    TypeTag
	parent *Variable
	frozen bool

	value any
	set   bool

	// Members of structures, sequences and grids. For grids the first member
	// is the array and the remainder are maps.
	members []*Variable

	template *Variable
	dims     []Dim
	data     []any

	rows   [][]*Variable
	source RowSource
}

// RowSource produces sequence rows one at a time. Next returns io.EOF when
// there are no more rows.
type RowSource interface {
	Next() ([]*Variable, error)
}

// RowFunc adapts a function to the RowSource interface.
type RowFunc func() ([]*Variable, error)

// Next calls f.
func (f RowFunc) Next() ([]*Variable, error) {
	return f()
}

type sliceRows struct {
	rows [][]*Variable
	i    int
}

func (s *sliceRows) Next() ([]*Variable, error) {
	if s.i >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.i]
	s.i++
	return row, nil
}

const reservedChars = ".{}[];,=:\""

// ValidateName checks that a name contains no characters reserved by the DDS
// and DAS grammars. The empty name is valid.
func ValidateName(name string) error {
	if strings.ContainsAny(name, reservedChars) {
		return InvalidNameError{Name: name}
	}
	for _, r := range name {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return InvalidNameError{Name: name}
		}
	}
	return nil
}

// EscapeName returns the form of name written in DDS and DAS text. Letters
// and underscores pass through, as do digits, '-' and '+' after the first
// byte. Every other byte, '%' included, is written as %XX.
func EscapeName(name string) string {
	sb := &strings.Builder{}
	for i := 0; i < len(name); i++ {
		b := name[i]
		if isWordByte(b, i == 0) {
			sb.WriteByte(b)
			continue
		}
		fmt.Fprintf(sb, "%%%02X", b)
	}
	return sb.String()
}

func isWordByte(b byte, first bool) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', b == '_':
		return true
	case '0' <= b && b <= '9', b == '-', b == '+':
		return !first
	default:
		return false
	}
}

// UnescapeName reverses EscapeName. A '%' not followed by two hex digits is
// kept as is.
func UnescapeName(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	sb := &strings.Builder{}
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if b, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				sb.WriteByte(byte(b))
				i += 2
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// NumElements returns the product of the dimension sizes, failing if a size
// is negative or the product does not fit in an int.
func NumElements(dims ...Dim) (int, error) {
	n := uint64(1)
	for _, d := range dims {
		if d.Size < 0 {
			return 0, fmt.Errorf("negative dimension size %d", d.Size)
		}
		hi, lo := bits.Mul64(n, uint64(d.Size))
		if hi != 0 || lo > math.MaxInt {
			return 0, fmt.Errorf("dimension %d overflows the element count", d.Size)
		}
		n = lo
	}
	return int(n), nil
}

// NewScalar returns an unset scalar variable.
func NewScalar(tag TypeTag, name string) (*Variable, error) {
	if !tag.IsScalar() {
		return nil, fmt.Errorf("%s is not a scalar type", tag)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Variable{name: name, tag: tag}, nil
}

// NewStructure returns an empty structure.
func NewStructure(name string) (*Variable, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Variable{name: name, tag: Structure}, nil
}

// NewSequence returns an empty sequence.
func NewSequence(name string) (*Variable, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Variable{name: name, tag: Sequence}, nil
}

// New returns a variable of a scalar, structure or sequence tag. Arrays and
// grids need their shape and are built with NewArray and NewGrid.
func New(tag TypeTag, name string) (*Variable, error) {
	switch tag.Kind() {
	case KindScalar:
		return NewScalar(tag, name)
	case KindStructure:
		return NewStructure(name)
	case KindSequence:
		return NewSequence(name)
	default:
		return nil, fmt.Errorf("cannot construct %s without a shape", tag)
	}
}

// NewArray returns an array of the given element template and dimensions.
// The template takes the array's name and becomes owned by the array.
func NewArray(name string, template *Variable, dims ...Dim) (*Variable, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if template == nil {
		return nil, errors.New("array template is required")
	}
	if template.tag == Array {
		return nil, fmt.Errorf("array %s: arrays of arrays are not supported", name)
	}
	if template.parent != nil {
		return nil, AlreadyOwnedError{Name: template.name, Parent: template.parent.name}
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("array %s: at least one dimension is required", name)
	}
	if _, err := NumElements(dims...); err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	for _, d := range dims {
		if err := ValidateName(d.Name); err != nil {
			return nil, err
		}
	}
	v := &Variable{
		name:     name,
		tag:      Array,
		template: template,
		dims:     append([]Dim{}, dims...),
	}
	template.name = name
	template.parent = v
	return v, nil
}

// NewGrid returns a grid of the given array and coordinate maps. The array's
// rank must equal the number of maps, and map i must be a one-dimensional
// array whose size matches dimension i.
func NewGrid(name string, array *Variable, maps ...*Variable) (*Variable, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if array == nil || array.tag != Array {
		return nil, InvalidGridError{Name: name, Reason: "grid array must be an array"}
	}
	if !array.template.tag.IsScalar() {
		return nil, InvalidGridError{Name: name, Reason: "grid array must have scalar elements"}
	}
	if len(maps) != len(array.dims) {
		return nil, InvalidGridError{
			Name:   name,
			Reason: fmt.Sprintf("array has rank %d but %d maps", len(array.dims), len(maps)),
		}
	}
	seen := map[string]bool{array.name: true}
	for i, m := range maps {
		if m == nil || m.tag != Array || len(m.dims) != 1 || !m.template.tag.IsScalar() {
			return nil, InvalidGridError{Name: name, Reason: fmt.Sprintf("map %d must be a one-dimensional array", i)}
		}
		if m.dims[0].Size != array.dims[i].Size {
			return nil, InvalidGridError{
				Name:   name,
				Reason: fmt.Sprintf("map %s has size %d but dimension %d has size %d", m.name, m.dims[0].Size, i, array.dims[i].Size),
			}
		}
		if m.name != "" && seen[m.name] {
			return nil, DuplicateNameError{Parent: name, Name: m.name}
		}
		seen[m.name] = true
	}
	for _, m := range append([]*Variable{array}, maps...) {
		if m.parent != nil {
			return nil, AlreadyOwnedError{Name: m.name, Parent: m.parent.name}
		}
	}
	v := &Variable{name: name, tag: Grid}
	array.parent = v
	v.members = append(v.members, array)
	for _, m := range maps {
		m.parent = v
		v.members = append(v.members, m)
	}
	return v, nil
}

// Name returns the variable's name.
func (v *Variable) Name() string {
	return v.name
}

// Tag returns the variable's type tag.
func (v *Variable) Tag() TypeTag {
	return v.tag
}

// Kind returns the variable's variant.
func (v *Variable) Kind() Kind {
	return v.tag.Kind()
}

// Parent returns the owning variable, or nil for a root.
func (v *Variable) Parent() *Variable {
	return v.parent
}

// Frozen reports whether the variable has been frozen.
func (v *Variable) Frozen() bool {
	return v.frozen
}

// Path returns the dot-qualified path of the variable from its root. Array
// templates share the name of their array and contribute no extra segment.
func (v *Variable) Path() string {
	if v.parent == nil {
		return v.name
	}
	if v.parent.tag == Array {
		return v.parent.Path()
	}
	prefix := v.parent.Path()
	if prefix == "" {
		return v.name
	}
	return prefix + "." + v.name
}

// Rename changes the variable's name.
func (v *Variable) Rename(name string) error {
	if v.frozen {
		return ErrFrozen
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	if p := v.parent; p != nil && p.tag != Array {
		for _, sibling := range p.members {
			if sibling != v && name != "" && sibling.name == name {
				return DuplicateNameError{Parent: p.name, Name: name}
			}
		}
	}
	v.name = name
	if v.template != nil {
		v.template.name = name
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Scalars

// SetValue assigns a scalar value. If the value cannot be represented by the
// variable's type, TypeMismatchError is returned and the prior value is kept.
func (v *Variable) SetValue(x any) error {
	if v.frozen {
		return ErrFrozen
	}
	if !v.tag.IsScalar() {
		return TypeMismatchError{Tag: v.tag, Value: x}
	}
	coerced, err := Coerce(v.tag, x)
	if err != nil {
		return err
	}
	v.value = coerced
	v.set = true
	return nil
}

// Value returns the scalar value and whether it has been set.
func (v *Variable) Value() (any, bool) {
	return v.value, v.set
}

// Unset clears a scalar value.
func (v *Variable) Unset() error {
	if v.frozen {
		return ErrFrozen
	}
	v.value = nil
	v.set = false
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Constructors

// AddChild appends a member to a structure or sequence.
func (v *Variable) AddChild(child *Variable) error {
	if v.frozen {
		return ErrFrozen
	}
	if v.tag != Structure && v.tag != Sequence {
		return fmt.Errorf("cannot add members to %s %s", v.tag, v.name)
	}
	if child == nil {
		return fmt.Errorf("%s %s: member is nil", v.tag, v.name)
	}
	if child.parent != nil {
		return AlreadyOwnedError{Name: child.name, Parent: child.parent.name}
	}
	for p := v; p != nil; p = p.parent {
		if p == child {
			return AlreadyOwnedError{Name: child.name, Parent: v.name}
		}
	}
	if child.name != "" {
		for _, m := range v.members {
			if m.name == child.name {
				return DuplicateNameError{Parent: v.name, Name: child.name}
			}
		}
	}
	if v.tag == Sequence && len(v.rows) > 0 {
		return fmt.Errorf("sequence %s: cannot add members after rows are present", v.name)
	}
	child.parent = v
	v.members = append(v.members, child)
	return nil
}

// Child returns the member with the given name.
func (v *Variable) Child(name string) (*Variable, error) {
	for _, m := range v.members {
		if m.name == name {
			return m, nil
		}
	}
	if v.template != nil && v.template.tag != Array {
		for _, m := range v.template.members {
			if m.name == name {
				return m, nil
			}
		}
	}
	return nil, NotFoundError{Name: joinPath(v.Path(), name)}
}

// Children returns the members of a constructor in declaration order. The
// sequence may be iterated any number of times.
func (v *Variable) Children() iter.Seq[*Variable] {
	return func(yield func(*Variable) bool) {
		for _, m := range v.members {
			if !yield(m) {
				return
			}
		}
	}
}

// NumChildren returns the number of members.
func (v *Variable) NumChildren() int {
	return len(v.members)
}

// All returns the variable and all of its descendants in depth-first
// pre-order. Members of an array's constructor template are included.
func (v *Variable) All() iter.Seq[*Variable] {
	return func(yield func(*Variable) bool) {
		v.walk(yield)
	}
}

// Walk calls fn on the variable and its descendants in the order of All,
// stopping at the first error.
func (v *Variable) Walk(fn func(*Variable) error) error {
	var err error
	v.walk(func(x *Variable) bool {
		err = fn(x)
		return err == nil
	})
	return err
}

func (v *Variable) walk(yield func(*Variable) bool) bool {
	if !yield(v) {
		return false
	}
	if v.template != nil {
		for _, m := range v.template.members {
			if !m.walk(yield) {
				return false
			}
		}
	}
	for _, m := range v.members {
		if !m.walk(yield) {
			return false
		}
	}
	return true
}

////////////////////////////////////////////////////////////////////////////////
// Arrays

// Template returns the element template of an array.
func (v *Variable) Template() *Variable {
	return v.template
}

// Dims returns a copy of the array dimensions.
func (v *Variable) Dims() []Dim {
	return append([]Dim{}, v.dims...)
}

// Len returns the number of elements of an array (the product of its
// dimension sizes), or 1 for non-arrays. NewArray guarantees the product fits.
func (v *Variable) Len() int {
	n, _ := NumElements(v.dims...)
	return n
}

// SetData replaces the elements of an array. Scalar elements are coerced to
// the template type; constructor elements must be variables shaped like the
// template. On error the prior data is kept.
func (v *Variable) SetData(data []any) error {
	if v.frozen {
		return ErrFrozen
	}
	if v.tag != Array {
		return TypeMismatchError{Tag: v.tag, Value: data}
	}
	if len(data) != v.Len() {
		return ArrayLengthError{Name: v.Path(), Want: v.Len(), Got: len(data)}
	}
	out := make([]any, len(data))
	if v.template.tag.IsScalar() {
		for i, x := range data {
			c, err := Coerce(v.template.tag, x)
			if err != nil {
				return fmt.Errorf("element %d of %s: %w", i, v.Path(), err)
			}
			out[i] = c
		}
	} else {
		seen := make(map[*Variable]bool, len(data))
		for i, x := range data {
			elem, ok := x.(*Variable)
			if !ok || !Equal(elem, v.template) {
				return fmt.Errorf("element %d of %s: %w", i, v.Path(), TypeMismatchError{Tag: v.template.tag, Value: x})
			}
			if elem.parent != nil && elem.parent != v {
				return fmt.Errorf("element %d of %s: %w", i, v.Path(), AlreadyOwnedError{Name: elem.name, Parent: elem.parent.name})
			}
			if seen[elem] || elem == v.template {
				return fmt.Errorf("element %d of %s: %w", i, v.Path(), AlreadyOwnedError{Name: elem.name, Parent: v.name})
			}
			seen[elem] = true
			out[i] = elem
		}
		for _, x := range v.data {
			if elem, ok := x.(*Variable); ok && !seen[elem] {
				elem.parent = nil
			}
		}
		for _, x := range out {
			x.(*Variable).parent = v
		}
	}
	v.data = out
	return nil
}

// Data returns the flat row-major elements of an array. The returned slice
// must not be modified.
func (v *Variable) Data() []any {
	return v.data
}

// Elem returns element i of an array.
func (v *Variable) Elem(i int) (any, error) {
	if i < 0 || i >= len(v.data) {
		return nil, fmt.Errorf("index %d out of range for %s (%d elements)", i, v.Path(), len(v.data))
	}
	return v.data[i], nil
}

// NewElement returns an unowned copy of a constructor array's template, for
// use as an element in SetData.
func (v *Variable) NewElement() *Variable {
	return v.template.Clone()
}

////////////////////////////////////////////////////////////////////////////////
// Grids

// Array returns the data array of a grid.
func (v *Variable) Array() *Variable {
	if v.tag != Grid || len(v.members) == 0 {
		return nil
	}
	return v.members[0]
}

// Maps returns the coordinate maps of a grid.
func (v *Variable) Maps() []*Variable {
	if v.tag != Grid || len(v.members) == 0 {
		return nil
	}
	return v.members[1:]
}

////////////////////////////////////////////////////////////////////////////////
// Sequences

// NewRow returns a fresh row shaped like the sequence's members.
func (v *Variable) NewRow() []*Variable {
	row := make([]*Variable, len(v.members))
	for i, m := range v.members {
		row[i] = m.Clone()
		row[i].parent = v
	}
	return row
}

// AppendRow adds a materialized row to a sequence.
func (v *Variable) AppendRow(row ...*Variable) error {
	if v.frozen {
		return ErrFrozen
	}
	if v.tag != Sequence {
		return fmt.Errorf("%s is not a sequence", v.name)
	}
	if err := v.checkRow(row); err != nil {
		return err
	}
	for _, m := range row {
		m.parent = v
	}
	v.rows = append(v.rows, row)
	return nil
}

func (v *Variable) checkRow(row []*Variable) error {
	if len(row) != len(v.members) {
		return fmt.Errorf("sequence %s: row has %d members, expected %d", v.Path(), len(row), len(v.members))
	}
	for i, m := range row {
		if !Equal(m, v.members[i]) {
			return fmt.Errorf("sequence %s: row member %d does not match %s", v.Path(), i, v.members[i].name)
		}
	}
	return nil
}

// SetRowSource attaches a producer of rows to a sequence. The producer is
// consumed by the first reader of Rows.
func (v *Variable) SetRowSource(src RowSource) error {
	if v.frozen {
		return ErrFrozen
	}
	if v.tag != Sequence {
		return fmt.Errorf("%s is not a sequence", v.name)
	}
	v.source = src
	return nil
}

// Rows returns the rows of a sequence: the attached producer if there is one,
// otherwise an iterator over the materialized rows.
func (v *Variable) Rows() RowSource {
	if v.source != nil {
		return v.source
	}
	return &sliceRows{rows: v.rows}
}

// Streaming reports whether the sequence has a row producer attached.
func (v *Variable) Streaming() bool {
	return v.source != nil
}

// NumRows returns the number of materialized rows.
func (v *Variable) NumRows() int {
	return len(v.rows)
}

// ClearRows removes all materialized rows and any row producer.
func (v *Variable) ClearRows() error {
	if v.frozen {
		return ErrFrozen
	}
	v.rows = nil
	v.source = nil
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Whole-tree operations

// Freeze marks the variable and all of its descendants immutable.
func (v *Variable) Freeze() {
	v.frozen = true
	for _, m := range v.members {
		m.Freeze()
	}
	if v.template != nil {
		v.template.Freeze()
	}
	for _, x := range v.data {
		if elem, ok := x.(*Variable); ok {
			elem.Freeze()
		}
	}
	for _, row := range v.rows {
		for _, m := range row {
			m.Freeze()
		}
	}
}

// Clone returns an unfrozen, unowned deep copy. A row producer, if attached,
// is shared with the copy.
func (v *Variable) Clone() *Variable {
	c := &Variable{
		name:   v.name,
		tag:    v.tag,
		value:  v.value,
		set:    v.set,
		source: v.source,
	}
	for _, m := range v.members {
		mc := m.Clone()
		mc.parent = c
		c.members = append(c.members, mc)
	}
	if v.template != nil {
		c.template = v.template.Clone()
		c.template.parent = c
		c.dims = append([]Dim{}, v.dims...)
	}
	if v.data != nil {
		c.data = make([]any, len(v.data))
		for i, x := range v.data {
			if elem, ok := x.(*Variable); ok {
				ec := elem.Clone()
				ec.parent = c
				c.data[i] = ec
				continue
			}
			c.data[i] = x
		}
	}
	for _, row := range v.rows {
		rc := make([]*Variable, len(row))
		for i, m := range row {
			rc[i] = m.Clone()
			rc[i].parent = c
		}
		c.rows = append(c.rows, rc)
	}
	return c
}

// Equal reports whether two variables have the same structure: names, type
// tags, nesting, and dimension names and sizes. Values are not compared.
func Equal(a, b *Variable) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.name != b.name || a.tag != b.tag {
		return false
	}
	if len(a.members) != len(b.members) || len(a.dims) != len(b.dims) {
		return false
	}
	for i := range a.dims {
		if a.dims[i] != b.dims[i] {
			return false
		}
	}
	if (a.template == nil) != (b.template == nil) {
		return false
	}
	if a.template != nil && !Equal(a.template, b.template) {
		return false
	}
	for i := range a.members {
		if !Equal(a.members[i], b.members[i]) {
			return false
		}
	}
	return true
}

// EqualValues reports whether two variables have the same structure and hold
// the same values, including materialized sequence rows. NaN equals NaN.
func EqualValues(a, b *Variable) bool {
	if !Equal(a, b) {
		return false
	}
	if a.set != b.set || !equalScalar(a.value, b.value) {
		return false
	}
	if len(a.data) != len(b.data) {
		return false
	}
	for i := range a.data {
		ea, aok := a.data[i].(*Variable)
		eb, bok := b.data[i].(*Variable)
		if aok != bok {
			return false
		}
		if aok {
			if !EqualValues(ea, eb) {
				return false
			}
			continue
		}
		if !equalScalar(a.data[i], b.data[i]) {
			return false
		}
	}
	for i := range a.members {
		if !EqualValues(a.members[i], b.members[i]) {
			return false
		}
	}
	if len(a.rows) != len(b.rows) {
		return false
	}
	for i := range a.rows {
		for j := range a.rows[i] {
			if !EqualValues(a.rows[i][j], b.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

func equalScalar(a, b any) bool {
	switch x := a.(type) {
	case float32:
		y, ok := b.(float32)
		return ok && (x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y))))
	case float64:
		y, ok := b.(float64)
		return ok && (x == y || (math.IsNaN(x) && math.IsNaN(y)))
	default:
		return a == b
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
