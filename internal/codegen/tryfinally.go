package codegen

import (
	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
)

// tryStmt lowers try/catch/finally onto the runtime's setjmp exception
// frames. The frame is popped before the finally body so exceptions thrown
// inside finally propagate to the next outer handler; a return inside the try
// never bypasses the finally.
func (c *Context) tryStmt(w *cbuf.Writer, x *ast.Try) {
	excVar := c.newLabel("exc")

	var fr finallyFrame
	var pendVar, rethrowVar string
	if x.HasFin {
		fr = finallyFrame{
			Label:    c.newLabel("finally"),
			RetVar:   c.newLabel("fret"),
			HasVar:   c.newLabel("fhas"),
			ExcDepth: c.excDepth,
		}
		w.Linef("HmlValue %s = hml_val_null();", fr.RetVar)
		w.Linef("int %s = 0;", fr.HasVar)
		c.finallies = append(c.finallies, fr)
		if !x.HasCatch {
			pendVar = c.newLabel("pend")
			rethrowVar = c.newLabel("rethrow")
			w.Linef("HmlValue %s = hml_val_null();", pendVar)
			w.Linef("int %s = 0;", rethrowVar)
		}
	}

	w.Linef("HmlExceptionFrame %s;", excVar)
	w.Linef("hml_exception_push(&%s);", excVar)
	c.excDepth++
	w.Linef("if (setjmp(%s.buf) == 0) {", excVar)
	w.Indent()
	c.Scopes.Push()
	c.pushLocalFrame()
	c.stmts(w, x.Body)
	c.popLocalFrame(w)
	c.Scopes.Pop()
	w.Line("hml_exception_pop();")
	w.Dedent()
	w.Line("} else {")
	c.excDepth--
	w.Indent()
	w.Line("hml_exception_pop();")
	if x.HasCatch {
		c.emitCatch(w, x)
	} else if x.HasFin {
		w.Linef("%s = hml_exception_value();", pendVar)
		w.Linef("%s = 1;", rethrowVar)
	} else {
		w.Line("hml_rethrow();")
	}
	w.Dedent()
	w.Line("}")

	if !x.HasFin {
		return
	}

	// Pop the frame before emitting the finally body: returns inside the
	// finally itself chain to the enclosing handler, not back here.
	c.finallies = c.finallies[:len(c.finallies)-1]
	w.Linef("%s: ;", fr.Label)
	c.Scopes.Push()
	c.pushLocalFrame()
	c.stmts(w, x.Finally)
	c.popLocalFrame(w)
	c.Scopes.Pop()

	if !x.HasCatch {
		w.Linef("if (%s) { hml_throw(%s); }", rethrowVar, pendVar)
	}

	w.Linef("if (%s) {", fr.HasVar)
	w.Indent()
	if n := len(c.finallies); n > 0 {
		parent := c.finallies[n-1]
		w.Linef("%s = %s;", parent.RetVar, fr.RetVar)
		w.Linef("%s = 1;", parent.HasVar)
		for i := 0; i < c.excDepth-parent.ExcDepth; i++ {
			w.Line("hml_exception_pop();")
		}
		w.Linef("goto %s;", parent.Label)
	} else {
		c.emitReturn(w, fr.RetVar)
	}
	w.Dedent()
	w.Line("}")
}

// emitCatch binds the caught value and runs the catch body. A catch
// parameter that collides with a main-file name shadows it for the duration
// of the block.
func (c *Context) emitCatch(w *cbuf.Writer, x *ast.Try) {
	c.Scopes.Push()
	c.pushLocalFrame()
	name := x.CatchName
	shadowed := false
	wasLocal := false
	if name != "" {
		w.Linef("HmlValue %s = hml_exception_value();", name)
		wasLocal = c.Locals.Has(name)
		_, isMainFn := c.MainFuncs[name]
		if !wasLocal && (c.MainVars.Has(name) || isMainFn) {
			c.Shadow.Add(name)
			shadowed = true
		} else {
			c.Locals.Add(name)
		}
		c.trackLocal(name)
	} else {
		w.Line("hml_release(hml_exception_value());")
	}
	c.stmts(w, x.Catch)
	c.popLocalFrame(w)
	c.Scopes.Pop()
	if shadowed {
		c.Shadow.Remove(name)
	} else if name != "" && !wasLocal {
		c.Locals.Remove(name)
	}
}
