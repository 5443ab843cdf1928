package freevars

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hemlock-lang/hmlc/internal/ast"
)

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func fn(params []string, body ...ast.Stmt) *ast.FuncExpr {
	f := &ast.FuncExpr{Body: body}
	for _, p := range params {
		f.Params = append(f.Params, ast.Param{Name: p})
	}
	return f
}

func TestParamsAreNotFree(t *testing.T) {
	f := fn([]string{"x"},
		&ast.Return{Value: &ast.Binary{Op: "+", Left: ident("x"), Right: ident("y")}},
	)
	assert.Equal(t, []string{"y"}, Analyze(f))
}

func TestLetBindsAfterInitializer(t *testing.T) {
	// let x = x + 1 -- the x in the initializer is free
	f := fn(nil,
		&ast.Let{Name: "x", Init: &ast.Binary{Op: "+", Left: ident("x"), Right: &ast.IntLit{Value: 1}}},
		&ast.ExprStmt{X: ident("x")},
	)
	assert.Equal(t, []string{"x"}, Analyze(f))
}

func TestLetBindingShadowsLaterUses(t *testing.T) {
	f := fn(nil,
		&ast.Let{Name: "n", Init: &ast.IntLit{Value: 0}},
		&ast.ExprStmt{X: ident("n")},
	)
	assert.Empty(t, Analyze(f))
}

func TestForInBindsKeyValueBeforeBody(t *testing.T) {
	f := fn(nil,
		&ast.ForIn{Key: "k", Value: "v", Iter: ident("xs"), Body: []ast.Stmt{
			&ast.ExprStmt{X: &ast.Binary{Op: "+", Left: ident("k"), Right: ident("v")}},
		}},
	)
	assert.Equal(t, []string{"xs"}, Analyze(f))
}

func TestCatchParamScopedToCatchBlock(t *testing.T) {
	f := fn(nil,
		&ast.Try{
			Body:      []ast.Stmt{&ast.Throw{Value: &ast.StringLit{Value: "boom"}}},
			HasCatch:  true,
			CatchName: "e",
			Catch:     []ast.Stmt{&ast.ExprStmt{X: ident("e")}},
		},
		&ast.ExprStmt{X: ident("e")},
	)
	assert.Equal(t, []string{"e"}, Analyze(f), "e is free outside the catch block")
}

func TestNestedFunctionSeedsParams(t *testing.T) {
	inner := fn([]string{"a"},
		&ast.Return{Value: &ast.Binary{Op: "+", Left: ident("a"), Right: ident("b")}},
	)
	outer := fn(nil, &ast.ExprStmt{X: inner})
	assert.Equal(t, []string{"b"}, Analyze(outer))
}

func TestDedupedOrdered(t *testing.T) {
	f := fn(nil,
		&ast.ExprStmt{X: ident("b")},
		&ast.ExprStmt{X: ident("a")},
		&ast.ExprStmt{X: ident("b")},
	)
	assert.Equal(t, []string{"b", "a"}, Analyze(f))
}

func TestPlanSharedEnvUnionsDirectChildren(t *testing.T) {
	inc := fn(nil, &ast.ExprStmt{X: &ast.Assign{Name: "n", Value: &ast.Binary{
		Op: "+", Left: ident("n"), Right: &ast.IntLit{Value: 1},
	}}})
	get := fn(nil, &ast.Return{Value: ident("n")})
	other := fn(nil, &ast.Return{Value: ident("m")})

	body := []ast.Stmt{
		&ast.Let{Name: "a", Init: inc},
		&ast.Let{Name: "b", Init: get},
		&ast.Let{Name: "c", Init: other},
	}
	env := PlanSharedEnv("outer", body)
	assert.NotNil(t, env)
	assert.Equal(t, []string{"n", "m"}, env.Vars, "union across siblings, deduped")
	assert.Equal(t, 0, env.IndexOf("n"))
	assert.Equal(t, 1, env.IndexOf("m"))
	assert.Equal(t, -1, env.IndexOf("zz"))
}

func TestPlanSharedEnvNilWhenNoCaptures(t *testing.T) {
	leaf := fn([]string{"x"}, &ast.Return{Value: ident("x")})
	body := []ast.Stmt{&ast.Let{Name: "f", Init: leaf}}
	assert.Nil(t, PlanSharedEnv("outer", body))
}

func TestPlanDoesNotCrossNestedFunctionBodies(t *testing.T) {
	// grandchild captures g; the child itself captures nothing beyond what it
	// re-exposes as its own free set.
	grandchild := fn(nil, &ast.Return{Value: ident("g")})
	child := fn([]string{"g"}, &ast.Return{Value: grandchild})
	body := []ast.Stmt{&ast.Let{Name: "f", Init: child}}
	assert.Nil(t, PlanSharedEnv("outer", body),
		"g is bound by the child's own parameter; nothing escapes to the outer plan")
}
