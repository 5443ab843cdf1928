package freevars

import (
	"github.com/hemlock-lang/hmlc/internal/ast"
)

// SharedEnv is the single capture environment owned by an enclosing function
// and shared by all of its direct-child closures. Without sharing, N sibling
// closures capturing the same K variables would need N boxed copies kept in
// sync; one shared environment gives O(K) slots and natural mutation sharing.
type SharedEnv struct {
	Name string   // C identifier of the environment variable
	Vars []string // ordered union of the children's free variables
}

// IndexOf returns the slot of name, or -1 when the variable is not in the
// shared environment and must resolve from the outer identifier directly.
func (e *SharedEnv) IndexOf(name string) int {
	for i, v := range e.Vars {
		if v == name {
			return i
		}
	}
	return -1
}

// PlanSharedEnv pre-scans a function body for direct-child function
// expressions and unions their free variables into one environment.
// Returns nil when no child closure captures anything.
func PlanSharedEnv(name string, body []ast.Stmt) *SharedEnv {
	env := &SharedEnv{Name: name}
	seen := make(map[string]struct{})
	add := func(vars []string) {
		for _, v := range vars {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			env.Vars = append(env.Vars, v)
		}
	}
	for _, s := range body {
		scanDirectChildren(s, add)
	}
	if len(env.Vars) == 0 {
		return nil
	}
	return env
}

// scanDirectChildren visits every function expression syntactically contained
// in s without crossing into nested function bodies (those plan their own
// environments when they are emitted).
func scanDirectChildren(s ast.Stmt, add func([]string)) {
	switch x := s.(type) {
	case *ast.Let:
		scanExpr(x.Init, add)
	case *ast.Const:
		scanExpr(x.Init, add)
	case *ast.ExprStmt:
		scanExpr(x.X, add)
	case *ast.If:
		scanExpr(x.Cond, add)
		for _, t := range x.Then {
			scanDirectChildren(t, add)
		}
		for _, t := range x.Else {
			scanDirectChildren(t, add)
		}
	case *ast.While:
		scanExpr(x.Cond, add)
		for _, t := range x.Body {
			scanDirectChildren(t, add)
		}
	case *ast.For:
		if x.Init != nil {
			scanDirectChildren(x.Init, add)
		}
		scanExpr(x.Cond, add)
		if x.Post != nil {
			scanDirectChildren(x.Post, add)
		}
		for _, t := range x.Body {
			scanDirectChildren(t, add)
		}
	case *ast.ForIn:
		scanExpr(x.Iter, add)
		for _, t := range x.Body {
			scanDirectChildren(t, add)
		}
	case *ast.Block:
		for _, t := range x.Body {
			scanDirectChildren(t, add)
		}
	case *ast.Return:
		scanExpr(x.Value, add)
	case *ast.Try:
		for _, t := range x.Body {
			scanDirectChildren(t, add)
		}
		for _, t := range x.Catch {
			scanDirectChildren(t, add)
		}
		for _, t := range x.Finally {
			scanDirectChildren(t, add)
		}
	case *ast.Throw:
		scanExpr(x.Value, add)
	case *ast.Switch:
		scanExpr(x.Subject, add)
		for _, c := range x.Cases {
			scanExpr(c.Value, add)
			for _, t := range c.Body {
				scanDirectChildren(t, add)
			}
		}
		for _, t := range x.Default {
			scanDirectChildren(t, add)
		}
	case *ast.Defer:
		scanExpr(x.X, add)
	case *ast.Export:
		if x.Decl != nil {
			scanDirectChildren(x.Decl, add)
		}
	case *ast.FuncDecl:
		add(Analyze(x.Fn))
	}
}

func scanExpr(e ast.Expr, add func([]string)) {
	if e == nil {
		return
	}
	switch x := e.(type) {
	case *ast.FuncExpr:
		add(Analyze(x))
	case *ast.ArrayLit:
		for _, el := range x.Elems {
			scanExpr(el, add)
		}
	case *ast.ObjectLit:
		for _, f := range x.Fields {
			scanExpr(f.Value, add)
		}
	case *ast.Binary:
		scanExpr(x.Left, add)
		scanExpr(x.Right, add)
	case *ast.Unary:
		scanExpr(x.Operand, add)
	case *ast.Ternary:
		scanExpr(x.Cond, add)
		scanExpr(x.Then, add)
		scanExpr(x.Else, add)
	case *ast.Call:
		scanExpr(x.Callee, add)
		for _, arg := range x.Args {
			scanExpr(arg, add)
		}
	case *ast.MethodCall:
		scanExpr(x.Recv, add)
		for _, arg := range x.Args {
			scanExpr(arg, add)
		}
	case *ast.Index:
		scanExpr(x.Recv, add)
		scanExpr(x.Idx, add)
	case *ast.IndexAssign:
		scanExpr(x.Recv, add)
		scanExpr(x.Idx, add)
		scanExpr(x.Value, add)
	case *ast.GetProp:
		scanExpr(x.Recv, add)
	case *ast.SetProp:
		scanExpr(x.Recv, add)
		scanExpr(x.Value, add)
	case *ast.Assign:
		scanExpr(x.Value, add)
	case *ast.Interp:
		for _, p := range x.Parts {
			scanExpr(p.Expr, add)
		}
	case *ast.Await:
		scanExpr(x.Operand, add)
	case *ast.NullCoalesce:
		scanExpr(x.Left, add)
		scanExpr(x.Right, add)
	case *ast.OptChain:
		scanExpr(x.Recv, add)
		scanExpr(x.Idx, add)
		for _, arg := range x.Args {
			scanExpr(arg, add)
		}
	case *ast.IncDec:
		scanExpr(x.Target, add)
	}
}
