package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintStatements(t *testing.T) {
	stmts := []Stmt{
		&Let{Name: "x", Init: &IntLit{Value: 1}},
		&If{
			Cond: &Binary{Op: "<", Left: &Ident{Name: "x"}, Right: &IntLit{Value: 10}},
			Then: []Stmt{&Return{Value: &Ident{Name: "x"}}},
		},
	}
	got := Print(stmts)
	assert.Equal(t, "let x = 1\nif (x < 10)\n  return x\n", got)
}

func TestPrintImportForms(t *testing.T) {
	assert.Equal(t, "import * as m from \"./lib\"\n",
		Print([]Stmt{&Import{Path: "./lib", Namespace: "m"}}))
	assert.Equal(t, "import { f, g as h } from \"./lib\"\n",
		Print([]Stmt{&Import{Path: "./lib", Names: []ImportName{
			{Local: "f", Original: "f"},
			{Local: "h", Original: "g"},
		}}}))
}

func TestExprStringForms(t *testing.T) {
	assert.Equal(t, "(a ?? b)", ExprString(&NullCoalesce{Left: &Ident{Name: "a"}, Right: &Ident{Name: "b"}}))
	assert.Equal(t, "obj?.name", ExprString(&OptChain{Kind: OptProp, Recv: &Ident{Name: "obj"}, Name: "name"}))
	assert.Equal(t, "xs[0]", ExprString(&Index{Recv: &Ident{Name: "xs"}, Idx: &IntLit{Value: 0}}))
	assert.Equal(t, "x++", ExprString(&IncDec{Op: "++", Target: &Ident{Name: "x"}}))
	assert.Equal(t, "fn(a, b) {...}", ExprString(&FuncExpr{Params: []Param{{Name: "a"}, {Name: "b"}}}))
}

func TestCloneIsDeepForExpressions(t *testing.T) {
	orig := &Binary{Op: "+", Left: &Ident{Name: "a"}, Right: &Ident{Name: "b"}}
	cl := CloneExpr(orig).(*Binary)
	cl.Left.(*Ident).Name = "mutated"
	assert.Equal(t, "a", orig.Left.(*Ident).Name)
}

func TestCloneIsDeepForStatements(t *testing.T) {
	orig := &Try{
		Body:      []Stmt{&Throw{Value: &StringLit{Value: "boom"}}},
		HasCatch:  true,
		CatchName: "e",
		Catch:     []Stmt{&ExprStmt{X: &Ident{Name: "e"}}},
	}
	cl := CloneStmt(orig).(*Try)
	cl.Body[0].(*Throw).Value.(*StringLit).Value = "changed"
	assert.Equal(t, "boom", orig.Body[0].(*Throw).Value.(*StringLit).Value)
}

func TestInspectVisitsInSourceOrderAndPrunes(t *testing.T) {
	tree := &If{
		Cond: &Ident{Name: "c"},
		Then: []Stmt{&ExprStmt{X: &Call{Callee: &Ident{Name: "f"}, Args: []Expr{&Ident{Name: "x"}}}}},
		Else: []Stmt{&ExprStmt{X: &Ident{Name: "y"}}},
	}

	var names []string
	Inspect(tree, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			names = append(names, id.Name)
		}
		return true
	})
	assert.Equal(t, []string{"c", "f", "x", "y"}, names)

	// pruning: refuse to descend into calls
	names = nil
	Inspect(tree, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			names = append(names, id.Name)
		}
		_, isCall := n.(*Call)
		return !isCall
	})
	assert.Equal(t, []string{"c", "y"}, names)
}
