package codegen

import (
	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
	"github.com/hemlock-lang/hmlc/internal/diag"
	"github.com/hemlock-lang/hmlc/internal/loader"
)

// stmts emits a statement list in a non-top-level position.
func (c *Context) stmts(w *cbuf.Writer, list []ast.Stmt) {
	saved := c.atTopLevel
	c.atTopLevel = false
	for _, s := range list {
		c.Stmt(w, s)
	}
	c.atTopLevel = saved
}

// block emits a statement list in its own lexical and C scope.
func (c *Context) block(w *cbuf.Writer, list []ast.Stmt) {
	w.Line("{")
	w.Indent()
	c.Scopes.Push()
	c.pushLocalFrame()
	c.stmts(w, list)
	c.popLocalFrame(w)
	c.Scopes.Pop()
	w.Dedent()
	w.Line("}")
}

// Stmt lowers one statement.
func (c *Context) Stmt(w *cbuf.Writer, s ast.Stmt) {
	switch x := s.(type) {
	case *ast.Let:
		c.letStmt(w, x, false)
	case *ast.Const:
		c.letStmt(w, &ast.Let{Name: x.Name, Annot: x.Annot, Init: x.Init, Pos: x.Pos}, true)
	case *ast.ExprStmt:
		t := c.Expr(w, x.X)
		w.Linef("hml_release(%s);", t)
	case *ast.If:
		cond := c.Expr(w, x.Cond)
		b := c.newTmp() + "_b"
		w.Linef("int %s = hml_is_truthy(%s);", b, cond)
		w.Linef("hml_release(%s);", cond)
		w.Linef("if (%s) {", b)
		w.Indent()
		c.Scopes.Push()
		c.pushLocalFrame()
		c.stmts(w, x.Then)
		c.popLocalFrame(w)
		c.Scopes.Pop()
		w.Dedent()
		if len(x.Else) > 0 {
			w.Line("} else {")
			w.Indent()
			c.Scopes.Push()
			c.pushLocalFrame()
			c.stmts(w, x.Else)
			c.popLocalFrame(w)
			c.Scopes.Pop()
			w.Dedent()
		}
		w.Line("}")
	case *ast.While:
		c.whileStmt(w, x)
	case *ast.For:
		c.forStmt(w, x)
	case *ast.ForIn:
		c.forInStmt(w, x)
	case *ast.Block:
		c.block(w, x.Body)
	case *ast.Return:
		c.returnStmt(w, x)
	case *ast.Break:
		c.releaseLoopFrames(w)
		w.Line("break;")
	case *ast.Continue:
		c.releaseLoopFrames(w)
		if n := len(c.contLabels); n > 0 && c.contLabels[n-1] != "" {
			w.Linef("goto %s;", c.contLabels[n-1])
		} else {
			w.Line("continue;")
		}
	case *ast.Try:
		c.tryStmt(w, x)
	case *ast.Throw:
		v := c.Expr(w, x.Value)
		c.emitDefers(w)
		w.Linef("hml_throw(%s);", v)
	case *ast.Switch:
		c.switchStmt(w, x)
	case *ast.Defer:
		c.deferStmt(w, x)
	case *ast.DefineObject:
		c.defineObjectStmt(w, x)
	case *ast.Enum:
		c.enumStmt(w, x)
	case *ast.Import:
		c.importStmt(w, x)
	case *ast.Export:
		if x.Decl != nil {
			c.Stmt(w, x.Decl)
		}
		// export { list } is consumed during module analysis
	case *ast.FuncDecl:
		if c.atTopLevel {
			// Top-level function bodies are emitted by the pipeline pass.
			return
		}
		c.letStmt(w, &ast.Let{Name: x.Name, Init: x.Fn, Pos: x.Pos}, false)
	case *ast.ImportFFI:
		c.FFILibs = append(c.FFILibs, x.Library)
		w.Linef("_ffi_lib = hml_load_library(\"%s\");", cEscape(x.Library))
	case *ast.ExternFn:
		c.AddExtern(x)
	}
}

// letStmt handles let and const. At the top level of the main file or a
// module the binding assigns a pre-declared static; otherwise it declares a
// fresh local that owns one reference.
func (c *Context) letStmt(w *cbuf.Writer, x *ast.Let, isConst bool) {
	iv := c.Expr(w, x.Init)
	iv = c.applyAnnot(w, iv, x.Annot)

	if c.atTopLevel {
		target := MainMangleVar(x.Name)
		if c.Module != nil {
			target = c.Module.MangleValue(x.Name)
		}
		w.Linef("%s = %s;", target, iv)
		if isConst {
			c.Consts.Add(x.Name)
		}
		c.patchSelfRef(w, x.Name, target)
		return
	}

	w.Linef("HmlValue %s = %s;", x.Name, iv)
	c.Locals.Add(x.Name)
	c.Scopes.Add(x.Name)
	c.trackLocal(x.Name)
	if isConst {
		c.Consts.Add(x.Name)
	}
	if c.sharedEnv != nil && c.sharedEnvVar != "" {
		if idx := c.sharedEnv.IndexOf(x.Name); idx >= 0 {
			w.Linef("hml_env_set(%s, %d, %s);", c.sharedEnvVar, idx, x.Name)
		}
	}
	c.patchSelfRef(w, x.Name, x.Name)
}

// patchSelfRef back-patches the environment slot of a self-referential
// closure once its binding exists. Only the first eligible binding is
// targeted; the pending patch is cleared after one use.
func (c *Context) patchSelfRef(w *cbuf.Writer, srcName, cName string) {
	if c.pendingPatch == nil || c.pendingPatch.Name != srcName {
		return
	}
	w.Linef("hml_env_set(%s, %d, %s);", c.pendingPatch.EnvVar, c.pendingPatch.Slot, cName)
	c.pendingPatch = nil
}

// applyAnnot wraps an initializer temporary per the type annotation: direct
// assignment, range-checked conversion, or duck-typed validation.
func (c *Context) applyAnnot(w *cbuf.Writer, iv string, annot *ast.TypeAnnot) string {
	if annot == nil || annot.Kind == ast.TypeAny {
		return iv
	}
	switch annot.Kind {
	case ast.TypeArray:
		elem := "HML_TYPE_ANY"
		if annot.Elem != nil {
			elem = annot.Elem.CName()
		}
		w.Linef("hml_validate_typed_array(%s, %s);", iv, elem)
		return iv
	case ast.TypeObject:
		w.Linef("hml_validate_object_type(%s, \"%s\");", iv, cEscape(annot.Name))
		return iv
	default:
		conv := c.newTmp()
		w.Linef("HmlValue %s = hml_convert_to_type(%s, %s);", conv, iv, annot.CName())
		w.Linef("hml_release(%s);", iv)
		return conv
	}
}

func (c *Context) whileStmt(w *cbuf.Writer, x *ast.While) {
	w.Line("for (;;) {")
	w.Indent()
	cond := c.Expr(w, x.Cond)
	b := c.newTmp() + "_b"
	w.Linef("int %s = hml_is_truthy(%s);", b, cond)
	w.Linef("hml_release(%s);", cond)
	w.Linef("if (!%s) { break; }", b)
	c.enterLoop("")
	c.Scopes.Push()
	c.pushLocalFrame()
	c.stmts(w, x.Body)
	c.popLocalFrame(w)
	c.Scopes.Pop()
	c.exitLoop()
	w.Dedent()
	w.Line("}")
}

func (c *Context) forStmt(w *cbuf.Writer, x *ast.For) {
	w.Line("{")
	w.Indent()
	c.Scopes.Push()
	c.pushLocalFrame()
	if x.Init != nil {
		c.Stmt(w, x.Init)
	}
	contLabel := ""
	if x.Post != nil {
		contLabel = c.newLabel("cont")
	}
	w.Line("for (;;) {")
	w.Indent()
	if x.Cond != nil {
		cond := c.Expr(w, x.Cond)
		b := c.newTmp() + "_b"
		w.Linef("int %s = hml_is_truthy(%s);", b, cond)
		w.Linef("hml_release(%s);", cond)
		w.Linef("if (!%s) { break; }", b)
	}
	c.enterLoop(contLabel)
	c.Scopes.Push()
	c.pushLocalFrame()
	c.stmts(w, x.Body)
	c.popLocalFrame(w)
	c.Scopes.Pop()
	c.exitLoop()
	if x.Post != nil {
		w.Linef("%s: ;", contLabel)
		c.Stmt(w, x.Post)
	}
	w.Dedent()
	w.Line("}")
	c.popLocalFrame(w)
	c.Scopes.Pop()
	w.Dedent()
	w.Line("}")
}

// forInStmt discriminates the iterable kind at runtime: arrays and strings
// iterate by index, objects by key/value helpers.
func (c *Context) forInStmt(w *cbuf.Writer, x *ast.ForIn) {
	it := c.Expr(w, x.Iter)
	kindVar := it + "_k"
	w.Linef("int %s = hml_kind(%s);", kindVar, it)
	w.Linef("if (%s == HML_KIND_ARRAY || %s == HML_KIND_STRING) {", kindVar, kindVar)
	w.Indent()
	lenVar := it + "_len"
	iVar := it + "_i"
	w.Linef("long %s = hml_length_raw(%s);", lenVar, it)
	w.Linef("for (long %s = 0; %s < %s; %s++) {", iVar, iVar, lenVar, iVar)
	w.Indent()
	c.enterLoop("")
	c.Scopes.Push()
	c.pushLocalFrame()
	if x.Key != "" {
		w.Linef("HmlValue %s = hml_val_i64(%s);", x.Key, iVar)
		c.Locals.Add(x.Key)
		c.trackLocal(x.Key)
	}
	w.Linef("HmlValue %s = (%s == HML_KIND_ARRAY) ? hml_array_get_at(%s, %s) : hml_string_char_at_raw(%s, %s);",
		x.Value, kindVar, it, iVar, it, iVar)
	c.Locals.Add(x.Value)
	c.trackLocal(x.Value)
	c.stmts(w, x.Body)
	c.popLocalFrame(w)
	c.Scopes.Pop()
	c.exitLoop()
	w.Dedent()
	w.Line("}")
	w.Dedent()
	w.Line("} else {")
	w.Indent()
	keysVar := it + "_keys"
	w.Linef("HmlValue %s = hml_object_keys(%s);", keysVar, it)
	lenVar = it + "_klen"
	iVar = it + "_ki"
	w.Linef("long %s = hml_length_raw(%s);", lenVar, keysVar)
	w.Linef("for (long %s = 0; %s < %s; %s++) {", iVar, iVar, lenVar, iVar)
	w.Indent()
	c.enterLoop("")
	c.Scopes.Push()
	c.pushLocalFrame()
	valueKey := x.Key
	if valueKey == "" {
		// for (v in obj) binds the key name when iterating an object
		valueKey = x.Value
	}
	w.Linef("HmlValue %s = hml_array_get_at(%s, %s);", valueKey, keysVar, iVar)
	c.Locals.Add(valueKey)
	c.trackLocal(valueKey)
	if x.Key != "" {
		w.Linef("HmlValue %s = hml_object_get_val(%s, %s);", x.Value, it, x.Key)
		c.Locals.Add(x.Value)
		c.trackLocal(x.Value)
	}
	c.stmts(w, x.Body)
	c.popLocalFrame(w)
	c.Scopes.Pop()
	c.exitLoop()
	w.Dedent()
	w.Line("}")
	w.Linef("hml_release(%s);", keysVar)
	w.Dedent()
	w.Line("}")
	w.Linef("hml_release(%s);", it)
}

func (c *Context) enterLoop(contLabel string) {
	c.loopDepth++
	c.loopBases = append(c.loopBases, len(c.localVars))
	c.contLabels = append(c.contLabels, contLabel)
}

func (c *Context) exitLoop() {
	c.loopDepth--
	c.loopBases = c.loopBases[:len(c.loopBases)-1]
	c.contLabels = c.contLabels[:len(c.contLabels)-1]
}

// releaseLoopFrames releases the locals of frames opened since the innermost
// loop entry, without popping them (break/continue leave structurally).
func (c *Context) releaseLoopFrames(w *cbuf.Writer) {
	if len(c.loopBases) == 0 {
		return
	}
	base := c.loopBases[len(c.loopBases)-1]
	for fi := len(c.localVars) - 1; fi >= base; fi-- {
		frame := c.localVars[fi]
		for i := len(frame) - 1; i >= 0; i-- {
			w.Linef("hml_release(%s);", frame[i])
		}
	}
}

// returnStmt covers the three return shapes: try/finally active, defers
// pending, and the plain case. Every path pairs hml_call_exit with the
// hml_call_enter emitted at function entry.
func (c *Context) returnStmt(w *cbuf.Writer, x *ast.Return) {
	var rv string
	if x.Value != nil {
		rv = c.Expr(w, x.Value)
	} else {
		rv = c.nullTmp(w)
	}
	if n := len(c.finallies); n > 0 {
		fr := c.finallies[n-1]
		w.Linef("%s = %s;", fr.RetVar, rv)
		w.Linef("%s = 1;", fr.HasVar)
		for i := 0; i < c.excDepth-fr.ExcDepth; i++ {
			w.Line("hml_exception_pop();")
		}
		w.Linef("goto %s;", fr.Label)
		return
	}
	c.emitReturn(w, rv)
}

// emitReturn runs pending defers, releases live locals and leaves the
// function.
func (c *Context) emitReturn(w *cbuf.Writer, rv string) {
	c.emitDefers(w)
	if c.usedRuntimeDefer {
		w.Line("hml_defer_execute_all();")
	}
	c.releaseAllLocals(w)
	w.Line("hml_call_exit();")
	w.Linef("return %s;", rv)
}

// switchStmt lowers switch to an if/else-if chain over equality checks; all
// case values are evaluated up front and released after the chain.
func (c *Context) switchStmt(w *cbuf.Writer, x *ast.Switch) {
	subj := c.Expr(w, x.Subject)
	caseVals := make([]string, len(x.Cases))
	for i, cs := range x.Cases {
		caseVals[i] = c.Expr(w, cs.Value)
	}
	for i, cs := range x.Cases {
		kw := "if"
		if i > 0 {
			kw = "} else if"
		}
		w.Linef("%s (hml_equals(%s, %s)) {", kw, subj, caseVals[i])
		w.Indent()
		c.Scopes.Push()
		c.pushLocalFrame()
		c.stmts(w, cs.Body)
		c.popLocalFrame(w)
		c.Scopes.Pop()
		w.Dedent()
	}
	if x.HasDef {
		if len(x.Cases) > 0 {
			w.Line("} else {")
		} else {
			w.Line("{")
		}
		w.Indent()
		c.Scopes.Push()
		c.pushLocalFrame()
		c.stmts(w, x.Default)
		c.popLocalFrame(w)
		c.Scopes.Pop()
		w.Dedent()
	}
	if len(x.Cases) > 0 || x.HasDef {
		w.Line("}")
	}
	for _, cv := range caseVals {
		w.Linef("hml_release(%s);", cv)
	}
	w.Linef("hml_release(%s);", subj)
}

// enumStmt materializes an object whose fields are the variants; values are
// explicit or auto-incrementing from the preceding explicit value.
func (c *Context) enumStmt(w *cbuf.Writer, x *ast.Enum) {
	obj := c.newTmp()
	w.Linef("HmlValue %s = hml_val_object();", obj)
	next := int64(0)
	for _, v := range x.Variants {
		switch val := v.Value.(type) {
		case nil:
			w.Linef("{ HmlValue _ev = hml_val_i32(%d); hml_object_set(%s, \"%s\", _ev); hml_release(_ev); }", next, obj, cEscape(v.Name))
			next++
		case *ast.IntLit:
			w.Linef("{ HmlValue _ev = hml_val_i32(%d); hml_object_set(%s, \"%s\", _ev); hml_release(_ev); }", val.Value, obj, cEscape(v.Name))
			next = val.Value + 1
		default:
			ev := c.Expr(w, v.Value)
			w.Linef("hml_object_set(%s, \"%s\", %s);", obj, cEscape(v.Name), ev)
			w.Linef("hml_release(%s);", ev)
		}
	}
	if c.atTopLevel {
		target := MainMangleVar(x.Name)
		if c.Module != nil {
			target = c.Module.MangleValue(x.Name)
		}
		w.Linef("%s = %s;", target, obj)
		return
	}
	w.Linef("HmlValue %s = %s;", x.Name, obj)
	c.Locals.Add(x.Name)
	c.Scopes.Add(x.Name)
	c.trackLocal(x.Name)
}

// defineObjectStmt registers a runtime object type with per-field metadata
// consumed later by hml_validate_object_type.
func (c *Context) defineObjectStmt(w *cbuf.Writer, x *ast.DefineObject) {
	w.Linef("hml_register_type(\"%s\", %d);", cEscape(x.Name), len(x.Fields))
	for _, f := range x.Fields {
		kind := "HML_TYPE_ANY"
		if f.Annot != nil {
			kind = f.Annot.CName()
		}
		opt := 0
		if f.Optional {
			opt = 1
		}
		if f.Default != nil {
			dv := c.Expr(w, f.Default)
			w.Linef("hml_type_add_field(\"%s\", \"%s\", %s, %d, %s);", cEscape(x.Name), cEscape(f.Name), kind, opt, dv)
			w.Linef("hml_release(%s);", dv)
		} else {
			w.Linef("hml_type_add_field(\"%s\", \"%s\", %s, %d, hml_val_null());", cEscape(x.Name), cEscape(f.Name), kind, opt)
		}
	}
}

// importStmt materializes namespace imports as an object of the module's
// exports. Named imports bind at resolution time and emit nothing.
func (c *Context) importStmt(w *cbuf.Writer, x *ast.Import) {
	if x.Namespace == "" {
		return
	}
	mod := c.namespaceModule(x.Namespace)
	if mod == nil {
		c.tolerant(w, diag.CGN012, x.Pos, "namespace import %q did not resolve", x.Namespace)
		return
	}
	target := MainMangleVar(x.Namespace)
	if c.Module != nil {
		target = c.Module.MangleValue(x.Namespace)
	}
	w.Linef("%s = hml_val_object();", target)
	for _, exp := range mod.Exports {
		if exp.IsFunction {
			w.Linef("{ HmlValue _nsv = hml_val_function(%s, %d); hml_object_set(%s, \"%s\", _nsv); hml_release(_nsv); }",
				exp.Mangled, exp.NumParams, target, cEscape(exp.Name))
		} else {
			w.Linef("{ HmlValue _nsv = hml_retain(%s); hml_object_set(%s, \"%s\", _nsv); hml_release(_nsv); }",
				exp.Mangled, target, cEscape(exp.Name))
		}
	}
}

// namespaceModule resolves a namespace import name for the current unit.
func (c *Context) namespaceModule(name string) *loader.Module {
	if c.Module != nil {
		return c.Module.Namespaces[name]
	}
	return c.MainNamespaces[name]
}

// AddExtern records an extern fn declaration for the FFI wrapper pass,
// deduplicating by name.
func (c *Context) AddExtern(x *ast.ExternFn) {
	for _, e := range c.Externs {
		if e.Name == x.Name {
			return
		}
	}
	c.Externs = append(c.Externs, x)
}
