// Package token provides source positions shared by the AST and diagnostics.
package token

import "fmt"

// Pos represents a position in a source file.
type Pos struct {
	Line   int
	Column int
	File   string
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// IsValid reports whether the position carries real location information.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

// Span represents a range in source code.
type Span struct {
	Start Pos
	End   Pos
}
