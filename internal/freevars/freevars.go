// Package freevars computes captured variables for function expressions and
// plans the shared capture environment of an enclosing function.
package freevars

import (
	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/scope"
)

// analyzer walks a function body with a mutable local scope that records
// bindings as they come into view. An identifier is free if it is not on the
// local chain at the point of reference.
type analyzer struct {
	locals *scope.Stack
	seen   map[string]struct{}
	free   []string
}

// Analyze returns the deduped, ordered list of identifiers referenced inside
// fn's body that are not defined by its parameters or local bindings.
func Analyze(fn *ast.FuncExpr) []string {
	a := &analyzer{
		locals: scope.NewStack(),
		seen:   make(map[string]struct{}),
	}
	for _, p := range fn.Params {
		a.locals.Add(p.Name)
	}
	a.stmts(fn.Body)
	return a.free
}

func (a *analyzer) ref(name string) {
	if a.locals.IsDefined(name) {
		return
	}
	if _, ok := a.seen[name]; ok {
		return
	}
	a.seen[name] = struct{}{}
	a.free = append(a.free, name)
}

func (a *analyzer) stmts(list []ast.Stmt) {
	for _, s := range list {
		a.stmt(s)
	}
}

func (a *analyzer) stmt(s ast.Stmt) {
	switch x := s.(type) {
	case *ast.Let:
		// The binding comes into view after the initializer.
		a.expr(x.Init)
		a.locals.Add(x.Name)
	case *ast.Const:
		a.expr(x.Init)
		a.locals.Add(x.Name)
	case *ast.ExprStmt:
		a.expr(x.X)
	case *ast.If:
		a.expr(x.Cond)
		a.block(x.Then)
		a.block(x.Else)
	case *ast.While:
		a.expr(x.Cond)
		a.block(x.Body)
	case *ast.For:
		a.locals.Push()
		if x.Init != nil {
			a.stmt(x.Init)
		}
		if x.Cond != nil {
			a.expr(x.Cond)
		}
		if x.Post != nil {
			a.stmt(x.Post)
		}
		a.stmts(x.Body)
		a.locals.Pop()
	case *ast.ForIn:
		a.expr(x.Iter)
		a.locals.Push()
		if x.Key != "" {
			a.locals.Add(x.Key)
		}
		a.locals.Add(x.Value)
		a.stmts(x.Body)
		a.locals.Pop()
	case *ast.Block:
		a.block(x.Body)
	case *ast.Return:
		if x.Value != nil {
			a.expr(x.Value)
		}
	case *ast.Try:
		a.block(x.Body)
		if x.HasCatch {
			a.locals.Push()
			if x.CatchName != "" {
				a.locals.Add(x.CatchName)
			}
			a.stmts(x.Catch)
			a.locals.Pop()
		}
		if x.HasFin {
			a.block(x.Finally)
		}
	case *ast.Throw:
		a.expr(x.Value)
	case *ast.Switch:
		a.expr(x.Subject)
		for _, c := range x.Cases {
			a.expr(c.Value)
			a.block(c.Body)
		}
		if x.HasDef {
			a.block(x.Default)
		}
	case *ast.Defer:
		a.expr(x.X)
	case *ast.Enum:
		for _, v := range x.Variants {
			if v.Value != nil {
				a.expr(v.Value)
			}
		}
		a.locals.Add(x.Name)
	case *ast.DefineObject:
		for _, f := range x.Fields {
			if f.Default != nil {
				a.expr(f.Default)
			}
		}
	case *ast.FuncDecl:
		a.locals.Add(x.Name)
		a.expr(x.Fn)
	case *ast.Export:
		if x.Decl != nil {
			a.stmt(x.Decl)
		}
	case *ast.Break, *ast.Continue, *ast.Import, *ast.ImportFFI, *ast.ExternFn:
		// no identifiers in view
	}
}

func (a *analyzer) block(list []ast.Stmt) {
	if len(list) == 0 {
		return
	}
	a.locals.Push()
	a.stmts(list)
	a.locals.Pop()
}

func (a *analyzer) expr(e ast.Expr) {
	if e == nil {
		return
	}
	switch x := e.(type) {
	case *ast.Ident:
		a.ref(x.Name)
	case *ast.ArrayLit:
		for _, el := range x.Elems {
			a.expr(el)
		}
	case *ast.ObjectLit:
		for _, f := range x.Fields {
			a.expr(f.Value)
		}
	case *ast.Binary:
		a.expr(x.Left)
		a.expr(x.Right)
	case *ast.Unary:
		a.expr(x.Operand)
	case *ast.Ternary:
		a.expr(x.Cond)
		a.expr(x.Then)
		a.expr(x.Else)
	case *ast.Call:
		a.expr(x.Callee)
		for _, arg := range x.Args {
			a.expr(arg)
		}
	case *ast.MethodCall:
		a.expr(x.Recv)
		for _, arg := range x.Args {
			a.expr(arg)
		}
	case *ast.Index:
		a.expr(x.Recv)
		a.expr(x.Idx)
	case *ast.IndexAssign:
		a.expr(x.Recv)
		a.expr(x.Idx)
		a.expr(x.Value)
	case *ast.GetProp:
		a.expr(x.Recv)
	case *ast.SetProp:
		a.expr(x.Recv)
		a.expr(x.Value)
	case *ast.Assign:
		a.ref(x.Name)
		a.expr(x.Value)
	case *ast.FuncExpr:
		// Nested scope seeded with parameters; anything free in the inner
		// function that the outer scope does not define is free here too.
		for _, name := range Analyze(x) {
			a.ref(name)
		}
	case *ast.Interp:
		for _, p := range x.Parts {
			a.expr(p.Expr)
		}
	case *ast.Await:
		a.expr(x.Operand)
	case *ast.NullCoalesce:
		a.expr(x.Left)
		a.expr(x.Right)
	case *ast.OptChain:
		a.expr(x.Recv)
		a.expr(x.Idx)
		for _, arg := range x.Args {
			a.expr(arg)
		}
	case *ast.IncDec:
		a.expr(x.Target)
	}
}
