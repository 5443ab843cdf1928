package codegen

import (
	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
)

// deferStmt registers a deferred expression. Outside loops the expression
// reference goes on the compile-time stack and is re-emitted at every exit
// path. Inside a loop the execution count is unknown statically, so the
// deferred call is pushed onto the runtime per-frame stack instead.
func (c *Context) deferStmt(w *cbuf.Writer, x *ast.Defer) {
	if c.loopDepth == 0 {
		c.defers = append(c.defers, x.X)
		return
	}
	c.usedRuntimeDefer = true
	if call, ok := x.X.(*ast.Call); ok {
		callee := c.Expr(w, call.Callee)
		args, argv := c.emitArgs(w, call.Args)
		w.Linef("hml_defer_push(%s, %s, %d);", callee, argv, len(call.Args))
		w.Linef("hml_release(%s);", callee)
		c.releaseArgs(w, args)
		return
	}
	if mc, ok := x.X.(*ast.MethodCall); ok {
		recv := c.Expr(w, mc.Recv)
		args, argv := c.emitArgs(w, mc.Args)
		w.Linef("hml_defer_push_method(%s, \"%s\", %s, %d);", recv, cEscape(mc.Method), argv, len(mc.Args))
		w.Linef("hml_release(%s);", recv)
		c.releaseArgs(w, args)
		return
	}
	// Arbitrary deferred expressions in loops wrap in a zero-argument
	// closure so the runtime stack can evaluate them at exit.
	fn := &ast.FuncExpr{Body: []ast.Stmt{&ast.ExprStmt{X: x.X, Pos: x.Pos}}, Pos: x.Pos}
	cv := c.closureValue(w, fn)
	w.Linef("hml_defer_push(%s, NULL, 0);", cv)
	w.Linef("hml_release(%s);", cv)
}

// emitDefers evaluates the compile-time defer stack in LIFO order, releasing
// each result. Called at every return path, at implicit fall-through, and
// before hml_throw.
func (c *Context) emitDefers(w *cbuf.Writer) {
	for i := len(c.defers) - 1; i >= 0; i-- {
		t := c.Expr(w, c.defers[i])
		w.Linef("hml_release(%s);", t)
	}
}
