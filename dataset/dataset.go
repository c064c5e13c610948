package dataset

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/wkalt/dapd/codec"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/das"
	"github.com/wkalt/dapd/dds"
)

/*
Package dataset composes a parsed DDS and DAS into a named collection of
top-level variables with attributes. Attribute containers are matched to
variables by path. Containers that name no variable are kept in the table but
are unreachable through AttributesFor; DDS and DAS documents are often
produced independently, so this is not an error. Unreachable reports them.
*/

////////////////////////////////////////////////////////////////////////////////

// Dataset is a named root of top-level variables plus their attributes.
type Dataset struct {
	name        string
	variables   []*dap.Variable
	attributes  *das.Table
	unreachable []string
	frozen      bool
}

// New composes a dataset from a parsed DDS and attribute table. A nil table
// is treated as empty.
func New(d *dds.DDS, table *das.Table) *Dataset {
	if table == nil {
		table = das.NewTable()
	}
	ds := &Dataset{
		name:       d.Name,
		variables:  d.Variables,
		attributes: table,
	}
	ds.unreachable = ds.crossLink()
	return ds
}

// Build parses DDS and DAS text and composes them. dasText may be nil.
func Build(ddsText, dasText io.Reader) (*Dataset, error) {
	d, err := dds.Parse(ddsText)
	if err != nil {
		return nil, err
	}
	table := das.NewTable()
	if dasText != nil {
		table, err = das.Parse(dasText)
		if err != nil {
			return nil, err
		}
	}
	return New(d, table), nil
}

// crossLink returns the paths of containers that do not correspond to any
// variable. The global container is never unreachable.
func (d *Dataset) crossLink() []string {
	var unreachable []string
	var visit func(prefix string, c *das.Container)
	visit = func(prefix string, c *das.Container) {
		path := joinPath(prefix, c.Name())
		v, err := d.Variable(path)
		if err != nil {
			unreachable = append(unreachable, path)
			return
		}
		// Containers nested under base-typed variables are attribute groups.
		if v.Kind() == dap.KindScalar || v.Kind() == dap.KindArray && v.Template().Tag().IsScalar() {
			return
		}
		for _, n := range c.Containers() {
			visit(path, n)
		}
	}
	for _, c := range d.attributes.Containers() {
		if c.Name() == das.GlobalContainer || strings.HasPrefix(c.Name(), "DODS_") {
			continue
		}
		visit("", c)
	}
	return unreachable
}

// Name returns the dataset name.
func (d *Dataset) Name() string {
	return d.name
}

// Variables returns the top-level variables in declaration order.
func (d *Dataset) Variables() []*dap.Variable {
	return d.variables
}

// Variable resolves a dot-qualified variable path.
func (d *Dataset) Variable(path string) (*dap.Variable, error) {
	segments := strings.Split(path, ".")
	var current *dap.Variable
	for _, v := range d.variables {
		if v.Name() == segments[0] {
			current = v
			break
		}
	}
	if current == nil {
		return nil, dap.NotFoundError{Name: path}
	}
	for _, segment := range segments[1:] {
		next, err := current.Child(segment)
		if err != nil {
			return nil, dap.NotFoundError{Name: path}
		}
		current = next
	}
	return current, nil
}

// AllVariables returns every variable in the dataset in depth-first
// pre-order. The sequence may be iterated any number of times.
func (d *Dataset) AllVariables() iter.Seq[*dap.Variable] {
	return func(yield func(*dap.Variable) bool) {
		for _, v := range d.variables {
			for x := range v.All() {
				if !yield(x) {
					return
				}
			}
		}
	}
}

// Attributes returns the attribute table.
func (d *Dataset) Attributes() *das.Table {
	return d.attributes
}

// AttributesFor returns the attribute container of a variable, if it has one.
func (d *Dataset) AttributesFor(v *dap.Variable) (*das.Container, bool) {
	c, err := d.attributes.Container(v.Path())
	if err != nil {
		return nil, false
	}
	return c, true
}

// Unreachable returns the paths of attribute containers that name no
// variable.
func (d *Dataset) Unreachable() []string {
	return d.unreachable
}

// DDS returns a DDS view of the dataset.
func (d *Dataset) DDS() *dds.DDS {
	return &dds.DDS{Name: d.name, Variables: d.variables}
}

// Freeze makes the variable tree immutable. A frozen dataset may be shared
// across goroutines.
func (d *Dataset) Freeze() {
	for _, v := range d.variables {
		v.Freeze()
	}
	d.frozen = true
}

// Frozen reports whether the dataset has been frozen.
func (d *Dataset) Frozen() bool {
	return d.frozen
}

// Clone returns an unfrozen deep copy.
func (d *Dataset) Clone() *Dataset {
	vars := make([]*dap.Variable, len(d.variables))
	for i, v := range d.variables {
		vars[i] = v.Clone()
	}
	return &Dataset{
		name:        d.name,
		variables:   vars,
		attributes:  d.attributes.Clone(),
		unreachable: append([]string{}, d.unreachable...),
	}
}

// Encode writes the binary values of all top-level variables to w.
func (d *Dataset) Encode(ctx context.Context, w io.Writer) error {
	if err := codec.EncodeAll(ctx, w, d.variables); err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.name, err)
	}
	return nil
}

// Decode fills all top-level variables from a binary stream.
func (d *Dataset) Decode(r io.Reader) error {
	if err := codec.DecodeAll(r, d.variables); err != nil {
		return fmt.Errorf("failed to decode %s: %w", d.name, err)
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
