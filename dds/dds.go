package dds

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/wkalt/dapd/dap"
)

/*
Package dds parses and formats the Dataset Descriptor Structure, the textual
description of a dataset's variables, their types and their shapes. Parsing
produces a tree of dap.Variable. Formatting is the inverse: any tree produced
by Parse formats to text that parses back to a structurally equal tree.
*/

////////////////////////////////////////////////////////////////////////////////

// DDS is a parsed dataset description.
type DDS struct {
	Name      string
	Variables []*dap.Variable
}

// ParseError is returned for malformed DDS text. Line and Column locate the
// offending token.
type ParseError struct {
	Line   int
	Column int
	Token  string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("DDS parse error at %d:%d near %q: %s", e.Line, e.Column, e.Token, e.Msg)
	}
	return fmt.Sprintf("DDS parse error at %d:%d: %s", e.Line, e.Column, e.Msg)
}

// Detail locates the error for client responses.
func (e *ParseError) Detail() string {
	if e.Token != "" {
		return fmt.Sprintf("line %d, column %d, near %q", e.Line, e.Column, e.Token)
	}
	return fmt.Sprintf("line %d, column %d", e.Line, e.Column)
}

func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

func errorAt(pos lexer.Position, token string, err error) *ParseError {
	return &ParseError{Line: pos.Line, Column: pos.Column, Token: token, Msg: err.Error()}
}

func wrapParseError(err error) error {
	var perr participle.Error
	if !errors.As(err, &perr) {
		return err
	}
	pos := perr.Position()
	out := &ParseError{Line: pos.Line, Column: pos.Column, Msg: perr.Message()}
	var uerr *participle.UnexpectedTokenError
	if errors.As(err, &uerr) {
		out.Token = uerr.Unexpected.Value
	}
	return out
}

// Parse reads a DDS from r.
func Parse(r io.Reader) (*DDS, error) {
	ast, err := parser.Parse("", r)
	if err != nil {
		return nil, wrapParseError(err)
	}
	return build(ast)
}

// ParseString parses a DDS from s.
func ParseString(s string) (*DDS, error) {
	ast, err := parser.ParseString("", s)
	if err != nil {
		return nil, wrapParseError(err)
	}
	return build(ast)
}

func build(ast *ddsFile) (*DDS, error) {
	out := &DDS{Name: dap.UnescapeName(ast.Name)}
	seen := map[string]bool{}
	for _, decl := range ast.Declarations {
		v, err := decl.build()
		if err != nil {
			return nil, err
		}
		if v.Name() != "" && seen[v.Name()] {
			return nil, errorAt(decl.pos(), v.Name(), dap.DuplicateNameError{Parent: out.Name, Name: v.Name()})
		}
		seen[v.Name()] = true
		out.Variables = append(out.Variables, v)
	}
	return out, nil
}

func (d *declaration) pos() lexer.Position {
	switch {
	case d.Constructor != nil:
		return d.Constructor.Pos
	case d.Grid != nil:
		return d.Grid.Pos
	default:
		return d.Base.Pos
	}
}

func (d *declaration) build() (*dap.Variable, error) {
	switch {
	case d.Constructor != nil:
		return d.Constructor.build()
	case d.Grid != nil:
		return d.Grid.build()
	default:
		return d.Base.build()
	}
}

func (c *constructorDecl) build() (*dap.Variable, error) {
	tag, err := dap.ParseTypeTag(c.Keyword)
	if err != nil {
		return nil, errorAt(c.Pos, c.Keyword, err)
	}
	name := dap.UnescapeName(c.Name)
	v, err := dap.New(tag, name)
	if err != nil {
		return nil, errorAt(c.Pos, c.Name, err)
	}
	for _, decl := range c.Declarations {
		child, err := decl.build()
		if err != nil {
			return nil, err
		}
		if err := v.AddChild(child); err != nil {
			return nil, errorAt(decl.pos(), child.Name(), err)
		}
	}
	if len(c.Dimensions) == 0 {
		return v, nil
	}
	dims, err := buildDims(c.Dimensions)
	if err != nil {
		return nil, err
	}
	arr, err := dap.NewArray(name, v, dims...)
	if err != nil {
		return nil, errorAt(c.Pos, c.Name, err)
	}
	return arr, nil
}

// buildDims checks the running element count at each dimension, so that a
// size which overflows it is reported where it appears.
func buildDims(dimensions []*dimension) ([]dap.Dim, error) {
	dims := make([]dap.Dim, len(dimensions))
	for i, d := range dimensions {
		name := dap.UnescapeName(d.Name)
		if err := dap.ValidateName(name); err != nil {
			return nil, errorAt(d.Pos, d.Name, err)
		}
		dims[i] = dap.Dim{Size: d.Size, Name: name}
		if _, err := dap.NumElements(dims[:i+1]...); err != nil {
			return nil, errorAt(d.Pos, fmt.Sprint(d.Size), err)
		}
	}
	return dims, nil
}

func (g *gridDecl) build() (*dap.Variable, error) {
	array, err := g.Array.buildArray()
	if err != nil {
		return nil, err
	}
	maps := make([]*dap.Variable, 0, len(g.Maps))
	for _, m := range g.Maps {
		mv, err := m.buildArray()
		if err != nil {
			return nil, err
		}
		maps = append(maps, mv)
	}
	v, err := dap.NewGrid(dap.UnescapeName(g.Name), array, maps...)
	if err != nil {
		return nil, errorAt(g.Pos, g.Name, err)
	}
	return v, nil
}

func (b *baseDecl) buildArray() (*dap.Variable, error) {
	if len(b.Dimensions) == 0 {
		return nil, errorAt(b.Pos, b.Name, fmt.Errorf("grid member %s must be an array", dap.UnescapeName(b.Name)))
	}
	return b.build()
}

func (b *baseDecl) build() (*dap.Variable, error) {
	tag, err := dap.ParseTypeTag(b.Type)
	if err != nil {
		return nil, errorAt(b.Pos, b.Type, err)
	}
	if !tag.IsScalar() {
		return nil, errorAt(b.Pos, b.Type, fmt.Errorf("%s is not a base type", tag))
	}
	name := dap.UnescapeName(b.Name)
	if len(b.Dimensions) == 0 {
		v, err := dap.NewScalar(tag, name)
		if err != nil {
			return nil, errorAt(b.Pos, b.Name, err)
		}
		return v, nil
	}
	template, err := dap.NewScalar(tag, "")
	if err != nil {
		return nil, errorAt(b.Pos, b.Type, err)
	}
	dims, err := buildDims(b.Dimensions)
	if err != nil {
		return nil, err
	}
	v, err := dap.NewArray(name, template, dims...)
	if err != nil {
		return nil, errorAt(b.Pos, b.Name, err)
	}
	return v, nil
}

// Variable returns the top-level variable with the given name.
func (d *DDS) Variable(name string) (*dap.Variable, error) {
	for _, v := range d.Variables {
		if v.Name() == name {
			return v, nil
		}
	}
	return nil, dap.NotFoundError{Name: name}
}

// String returns the DDS text.
func (d *DDS) String() string {
	sb := &strings.Builder{}
	_ = Format(sb, d)
	return sb.String()
}
