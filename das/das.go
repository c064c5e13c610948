package das

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
Package das parses and formats the Dataset Attribute Structure. A Table holds
an ordered list of top-level containers, usually one per variable plus a
global container. Containers hold typed attributes and may nest further
containers for members of structures.

Missing attributes are expected: Lookup returns NotFoundError, which callers
are meant to match with errors.Is and fall back to a default.
*/

////////////////////////////////////////////////////////////////////////////////

// ParseError is returned for malformed DAS text.
type ParseError struct {
	Line   int
	Column int
	Token  string
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("DAS parse error at %d:%d near %q: %s", e.Line, e.Column, e.Token, e.Msg)
	}
	return fmt.Sprintf("DAS parse error at %d:%d: %s", e.Line, e.Column, e.Msg)
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

// ErrNoValues is returned when adding an attribute without values.
var ErrNoValues = errors.New("attributes require at least one value")

// NotFoundError is returned when an attribute or container path does not
// resolve.
type NotFoundError struct {
	Path string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("attribute %s not found", e.Path)
}

func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
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

// Parse reads a DAS from r.
func Parse(r io.Reader) (*Table, error) {
	ast, err := parser.Parse("", r)
	if err != nil {
		return nil, wrapParseError(err)
	}
	return build(ast)
}

// ParseString parses a DAS from s.
func ParseString(s string) (*Table, error) {
	ast, err := parser.ParseString("", s)
	if err != nil {
		return nil, wrapParseError(err)
	}
	return build(ast)
}

func build(ast *dasFile) (*Table, error) {
	t := NewTable()
	for _, entry := range ast.Entries {
		c, err := t.AddContainer(dap.UnescapeName(entry.Name))
		if err != nil {
			return nil, errorAt(entry.Pos, entry.Name, err)
		}
		if err := entry.fill(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (e *attrEntry) fill(c *Container) error {
	for _, item := range e.Items {
		if item.Entry != nil {
			child, err := c.AddContainer(dap.UnescapeName(item.Entry.Name))
			if err != nil {
				return errorAt(item.Entry.Pos, item.Entry.Name, err)
			}
			if err := item.Entry.fill(child); err != nil {
				return err
			}
			continue
		}
		decl := item.Decl
		tag, err := dap.ParseTypeTag(decl.Type)
		if err != nil {
			return errorAt(decl.Pos, decl.Type, err)
		}
		if !tag.IsScalar() {
			return errorAt(decl.Pos, decl.Type, fmt.Errorf("%s is not an attribute type", tag))
		}
		values := make([]any, 0, len(decl.Values))
		for _, v := range decl.Values {
			value, err := v.parse(tag)
			if err != nil {
				return errorAt(v.Pos, v.text(), err)
			}
			values = append(values, value)
		}
		if _, err := c.AddAttribute(dap.UnescapeName(decl.Name), tag, values...); err != nil {
			return errorAt(decl.Pos, decl.Name, err)
		}
	}
	return nil
}

func (v *attrValue) text() string {
	if v.Quoted != nil {
		return *v.Quoted
	}
	return *v.Bare
}

func (v *attrValue) parse(tag dap.TypeTag) (any, error) {
	if v.Quoted != nil {
		return dap.ParseValue(tag, unescape(*v.Quoted))
	}
	return dap.ParseValue(tag, *v.Bare)
}

// unescape strips the quotes from a string token and resolves \" and \\.
// Other backslash sequences are kept verbatim.
func unescape(s string) string {
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	sb := &strings.Builder{}
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
			sb.WriteByte(s[i+1])
			i++
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
