package das

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

/*
This file contains a participle grammar for the Dataset Attribute Structure.
An attribute declaration and a nested container both begin with a word, so the
parser uses two tokens of lookahead to tell them apart. Values are captured as
raw text and checked against the declared type when the table is built.

Words are lexed ahead of the special float values, so NaN and Inf read as
words and remain usable as names. Names use the same %XX escapes as the DDS.
*/

////////////////////////////////////////////////////////////////////////////////

// nolint:gochecknoglobals
var (
	Lexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `#[^\n]*`},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
		{Name: "Number", Pattern: `[-+]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][-+]?[0-9]+)?`},
		{Name: "Word", Pattern: `[a-zA-Z_%][a-zA-Z0-9_%\-+.]*`},
		{Name: "Special", Pattern: `[-+](?:NaN|Inf|nan|inf)\b`},
		{Name: "Punct", Pattern: `[{};,]`},
	})

	parser = participle.MustBuild[dasFile](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace", "Comment"),
		participle.CaseInsensitive("Word"),
		participle.UseLookahead(2),
	)
)

type dasFile struct {
	Entries []*attrEntry `parser:"'Attributes' '{' @@* '}'"`
}

type attrEntry struct {
	Pos   lexer.Position
	Name  string      `parser:"@Word '{'"`
	Items []*attrItem `parser:"@@* '}'"`
}

type attrItem struct {
	Entry *attrEntry `parser:"  @@"`
	Decl  *attrDecl  `parser:"| @@"`
}

type attrDecl struct {
	Pos    lexer.Position
	Type   string       `parser:"@Word"`
	Name   string       `parser:"@Word"`
	Values []*attrValue `parser:"@@ ( ',' @@ )* ';'"`
}

type attrValue struct {
	Pos    lexer.Position
	Quoted *string `parser:"  @String"`
	Bare   *string `parser:"| @( Number | Special | Word )"`
}
