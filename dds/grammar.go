package dds

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

/*
This file contains a participle grammar for the Dataset Descriptor Structure.
Keywords are matched case-insensitively. Type keywords for base declarations
are captured as words and resolved when the tree is built, so that unknown
types are reported at the offending token rather than as a generic syntax
error.

Names are words. Bytes a word cannot hold are written as %XX escapes, which
are resolved when the tree is built. Variable names may be omitted.
*/

////////////////////////////////////////////////////////////////////////////////

// nolint:gochecknoglobals
var (
	Lexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `#[^\n]*`},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "Integer", Pattern: `-?[0-9]+`},
		{Name: "Word", Pattern: `[a-zA-Z_%][a-zA-Z0-9_%\-+]*`},
		{Name: "Punct", Pattern: `[{}\[\];=:.]`},
	})

	parser = participle.MustBuild[ddsFile](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace", "Comment"),
		participle.CaseInsensitive("Word"),
		participle.UseLookahead(1),
	)
)

type ddsFile struct {
	Pos          lexer.Position
	Declarations []*declaration `parser:"'Dataset' '{' @@* '}'"`
	Name         string         `parser:"( @Word ( @'.' @Word )* )? ';'"`
}

type declaration struct {
	Constructor *constructorDecl `parser:"  @@"`
	Grid        *gridDecl        `parser:"| @@"`
	Base        *baseDecl        `parser:"| @@"`
}

type constructorDecl struct {
	Pos          lexer.Position
	Keyword      string         `parser:"@( 'Structure' | 'Sequence' )"`
	Declarations []*declaration `parser:"'{' @@* '}'"`
	Name         string         `parser:"@Word?"`
	Dimensions   []*dimension   `parser:"@@* ';'"`
}

type gridDecl struct {
	Pos   lexer.Position
	Array *baseDecl   `parser:"'Grid' '{' 'Array' ':' @@"`
	Maps  []*baseDecl `parser:"'Maps' ':' @@* '}'"`
	Name  string      `parser:"@Word? ';'"`
}

type baseDecl struct {
	Pos        lexer.Position
	Type       string       `parser:"@Word"`
	Name       string       `parser:"@Word?"`
	Dimensions []*dimension `parser:"@@* ';'"`
}

type dimension struct {
	Pos  lexer.Position
	Name string `parser:"'[' ( @Word '=' )?"`
	Size int    `parser:"@Integer ']'"`
}
