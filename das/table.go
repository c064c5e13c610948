package das

import (
	"fmt"
	"io"
	"strings"

	"github.com/wkalt/dapd/dap"
)

// GlobalContainer is the conventional name of the container holding
// dataset-wide attributes.
const GlobalContainer = "NC_GLOBAL"

// Attribute is a named, typed list of values. Values are held in the Go
// representation of their type, as produced by dap.Coerce.
type Attribute struct {
	Name   string
	Type   dap.TypeTag
	Values []any
}

// String returns the values as comma-separated text.
func (a *Attribute) String() string {
	parts := make([]string, len(a.Values))
	for i, v := range a.Values {
		parts[i] = dap.FormatValue(v)
	}
	return strings.Join(parts, ", ")
}

// Float64 returns the first value as a float64, if the attribute is numeric
// and non-empty.
func (a *Attribute) Float64() (float64, bool) {
	if !a.Type.IsNumeric() || len(a.Values) == 0 {
		return 0, false
	}
	f, err := dap.Coerce(dap.Float64, a.Values[0])
	if err != nil {
		return 0, false
	}
	return f.(float64), true
}

// Container is a named group of attributes and nested containers.
type Container struct {
	name       string
	attributes []*Attribute
	containers []*Container
}

// NewContainer returns an empty container.
func NewContainer(name string) *Container {
	return &Container{name: name}
}

// Name returns the container name.
func (c *Container) Name() string {
	return c.name
}

// Attributes returns the container's attributes in declaration order.
func (c *Container) Attributes() []*Attribute {
	return c.attributes
}

// Containers returns the nested containers in declaration order.
func (c *Container) Containers() []*Container {
	return c.containers
}

func (c *Container) has(name string) bool {
	for _, a := range c.attributes {
		if a.Name == name {
			return true
		}
	}
	for _, n := range c.containers {
		if n.name == name {
			return true
		}
	}
	return false
}

// validateName rejects names that cannot appear in DAS text. Unlike
// variables, containers and attributes are never anonymous.
func validateName(name string) error {
	if name == "" {
		return dap.InvalidNameError{Name: name}
	}
	return dap.ValidateName(name)
}

// AddAttribute appends an attribute. Values are coerced to the attribute type,
// and at least one is required.
func (c *Container) AddAttribute(name string, tag dap.TypeTag, values ...any) (*Attribute, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !tag.IsScalar() {
		return nil, fmt.Errorf("attribute %s: %s is not an attribute type", name, tag)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("attribute %s: %w", name, ErrNoValues)
	}
	if c.has(name) {
		return nil, dap.DuplicateNameError{Parent: c.name, Name: name}
	}
	coerced := make([]any, len(values))
	for i, v := range values {
		x, err := dap.Coerce(tag, v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		coerced[i] = x
	}
	a := &Attribute{Name: name, Type: tag, Values: coerced}
	c.attributes = append(c.attributes, a)
	return a, nil
}

// AddContainer appends a nested container.
func (c *Container) AddContainer(name string) (*Container, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if c.has(name) {
		return nil, dap.DuplicateNameError{Parent: c.name, Name: name}
	}
	n := NewContainer(name)
	c.containers = append(c.containers, n)
	return n, nil
}

// Attribute returns the attribute with the given name.
func (c *Container) Attribute(name string) (*Attribute, error) {
	for _, a := range c.attributes {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, NotFoundError{Path: joinPath(c.name, name)}
}

// Container returns the nested container with the given name.
func (c *Container) Container(name string) (*Container, error) {
	for _, n := range c.containers {
		if n.name == name {
			return n, nil
		}
	}
	return nil, NotFoundError{Path: joinPath(c.name, name)}
}

// Lookup resolves a dotted path relative to the container, in which every
// segment but the last names a nested container.
func (c *Container) Lookup(path string) (*Attribute, error) {
	segments := strings.Split(path, ".")
	current := c
	for _, segment := range segments[:len(segments)-1] {
		next, err := current.Container(segment)
		if err != nil {
			return nil, NotFoundError{Path: path}
		}
		current = next
	}
	a, err := current.Attribute(segments[len(segments)-1])
	if err != nil {
		return nil, NotFoundError{Path: path}
	}
	return a, nil
}

// Table is a parsed attribute structure.
type Table struct {
	root *Container
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{root: NewContainer("")}
}

// Containers returns the top-level containers.
func (t *Table) Containers() []*Container {
	return t.root.containers
}

// AddContainer appends a top-level container.
func (t *Table) AddContainer(name string) (*Container, error) {
	return t.root.AddContainer(name)
}

// Container resolves a dotted container path, such as the path of a member of
// a structure.
func (t *Table) Container(path string) (*Container, error) {
	current := t.root
	for _, segment := range strings.Split(path, ".") {
		next, err := current.Container(segment)
		if err != nil {
			return nil, NotFoundError{Path: path}
		}
		current = next
	}
	return current, nil
}

// Lookup resolves a dotted attribute path such as "site.inner.units".
func (t *Table) Lookup(path string) (*Attribute, error) {
	return t.root.Lookup(path)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	return &Table{root: t.root.clone()}
}

func (c *Container) clone() *Container {
	out := NewContainer(c.name)
	for _, a := range c.attributes {
		out.attributes = append(out.attributes, &Attribute{
			Name:   a.Name,
			Type:   a.Type,
			Values: append([]any{}, a.Values...),
		})
	}
	for _, n := range c.containers {
		out.containers = append(out.containers, n.clone())
	}
	return out
}

// Equal reports whether two tables hold the same containers and attributes in
// the same order.
func Equal(a, b *Table) bool {
	return equalContainer(a.root, b.root)
}

func equalContainer(a, b *Container) bool {
	if a.name != b.name || len(a.attributes) != len(b.attributes) || len(a.containers) != len(b.containers) {
		return false
	}
	for i, x := range a.attributes {
		y := b.attributes[i]
		if x.Name != y.Name || x.Type != y.Type || len(x.Values) != len(y.Values) {
			return false
		}
		for j := range x.Values {
			if dap.FormatValue(x.Values[j]) != dap.FormatValue(y.Values[j]) {
				return false
			}
		}
	}
	for i := range a.containers {
		if !equalContainer(a.containers[i], b.containers[i]) {
			return false
		}
	}
	return true
}

// String returns the DAS text.
func (t *Table) String() string {
	sb := &strings.Builder{}
	_ = Format(sb, t)
	return sb.String()
}

// Format writes the DAS text for t to w.
func Format(w io.Writer, t *Table) error {
	if _, err := io.WriteString(w, "Attributes {\n"); err != nil {
		return err
	}
	for _, c := range t.root.containers {
		if err := formatContainer(w, c, 1); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}

func formatContainer(w io.Writer, c *Container, indent int) error {
	pad := strings.Repeat("    ", indent)
	if _, err := fmt.Fprintf(w, "%s%s {\n", pad, dap.EscapeName(c.name)); err != nil {
		return err
	}
	for _, a := range c.attributes {
		values := make([]string, len(a.Values))
		for i, v := range a.Values {
			if a.Type == dap.String || a.Type == dap.URL {
				values[i] = escape(dap.FormatValue(v))
				continue
			}
			values[i] = dap.FormatValue(v)
		}
		if _, err := fmt.Fprintf(w, "%s    %s %s %s;\n", pad, a.Type, dap.EscapeName(a.Name), strings.Join(values, ", ")); err != nil {
			return err
		}
	}
	for _, n := range c.containers {
		if err := formatContainer(w, n, indent+1); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s}\n", pad)
	return err
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
