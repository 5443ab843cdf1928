package codegen

import (
	"fmt"
	"strings"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
	"github.com/hemlock-lang/hmlc/internal/diag"
)

// binaryOps maps surface operators to runtime helpers. Operand temporaries
// are released immediately after feeding the helper.
var binaryOps = map[string]string{
	"+":  "hml_add",
	"-":  "hml_sub",
	"*":  "hml_mul",
	"/":  "hml_div",
	"%":  "hml_mod",
	"==": "hml_eq",
	"!=": "hml_neq",
	"<":  "hml_lt",
	"<=": "hml_lte",
	">":  "hml_gt",
	">=": "hml_gte",
	"&&": "hml_and",
	"||": "hml_or",
	"&":  "hml_bit_and",
	"|":  "hml_bit_or",
	"^":  "hml_bit_xor",
	"<<": "hml_shl",
	">>": "hml_shr",
}

var unaryOps = map[string]string{
	"-": "hml_neg",
	"!": "hml_not",
	"~": "hml_bit_not",
}

// Expr emits e into w and returns the name of a fresh temporary holding one
// owned reference to the result. The caller releases it after use.
func (c *Context) Expr(w *cbuf.Writer, e ast.Expr) string {
	switch x := e.(type) {
	case *ast.IntLit:
		t := c.newTmp()
		if x.Value >= -2147483648 && x.Value <= 2147483647 {
			w.Linef("HmlValue %s = hml_val_i32(%d);", t, x.Value)
		} else {
			w.Linef("HmlValue %s = hml_val_i64(%dLL);", t, x.Value)
		}
		return t
	case *ast.FloatLit:
		t := c.newTmp()
		w.Linef("HmlValue %s = hml_val_f64(%s);", t, formatFloat(x.Value))
		return t
	case *ast.BoolLit:
		t := c.newTmp()
		v := 0
		if x.Value {
			v = 1
		}
		w.Linef("HmlValue %s = hml_val_bool(%d);", t, v)
		return t
	case *ast.StringLit:
		t := c.newTmp()
		w.Linef("HmlValue %s = hml_val_string(\"%s\");", t, cEscape(x.Value))
		return t
	case *ast.RuneLit:
		t := c.newTmp()
		w.Linef("HmlValue %s = hml_val_rune(%d);", t, x.Value)
		return t
	case *ast.NullLit:
		return c.nullTmp(w)
	case *ast.Ident:
		return c.identValue(w, x)
	case *ast.ArrayLit:
		return c.arrayLit(w, x)
	case *ast.ObjectLit:
		return c.objectLit(w, x)
	case *ast.Binary:
		return c.binary(w, x)
	case *ast.Unary:
		return c.unary(w, x)
	case *ast.Ternary:
		return c.ternary(w, x)
	case *ast.Call:
		return c.call(w, x)
	case *ast.MethodCall:
		return c.methodCall(w, x)
	case *ast.Index:
		return c.index(w, x)
	case *ast.IndexAssign:
		return c.indexAssign(w, x)
	case *ast.GetProp:
		return c.getProp(w, x)
	case *ast.SetProp:
		return c.setProp(w, x)
	case *ast.Assign:
		return c.assign(w, x)
	case *ast.FuncExpr:
		return c.closureValue(w, x)
	case *ast.Interp:
		return c.interp(w, x)
	case *ast.Await:
		op := c.Expr(w, x.Operand)
		t := c.newTmp()
		w.Linef("HmlValue %s = hml_task_join(%s);", t, op)
		w.Linef("hml_release(%s);", op)
		return t
	case *ast.NullCoalesce:
		return c.nullCoalesce(w, x)
	case *ast.OptChain:
		return c.optChain(w, x)
	case *ast.IncDec:
		return c.incDec(w, x)
	}
	t := c.newTmp()
	w.Linef("HmlValue %s = hml_val_null(); /* unsupported expression */", t)
	return t
}

func formatFloat(v float64) string {
	s := fmt.Sprintf("%g", v)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// identValue resolves an identifier per the priority ladder: shadow, local,
// capture, main-file, current module, imports, well-known builtins.
func (c *Context) identValue(w *cbuf.Writer, x *ast.Ident) string {
	name := x.Name
	t := c.newTmp()

	if c.Shadow.Has(name) || c.Locals.Has(name) {
		w.Linef("HmlValue %s = hml_retain(%s);", t, name)
		return t
	}
	if c.captures != nil {
		if slot, ok := c.captures[name]; ok {
			w.Linef("HmlValue %s = hml_retain(hml_env_get(env, %d));", t, slot.Slot)
			return t
		}
	}
	if c.Module == nil {
		if arity, ok := c.MainFuncs[name]; ok {
			w.Linef("HmlValue %s = hml_val_function(%s, %d);", t, MainMangleFunc(name), arity)
			return t
		}
		if c.MainVars.Has(name) {
			w.Linef("HmlValue %s = hml_retain(%s);", t, MainMangleVar(name))
			return t
		}
	} else {
		names := c.namesOf(c.Module)
		if arity, ok := names.funcs[name]; ok {
			w.Linef("HmlValue %s = hml_val_function(%s, %d);", t, c.Module.MangleFunc(name), arity)
			return t
		}
		if names.vars.Has(name) {
			w.Linef("HmlValue %s = hml_retain(%s);", t, c.Module.MangleValue(name))
			return t
		}
	}
	if b := c.findImport(name); b != nil {
		if b.Mangled == "" {
			c.tolerant(w, diag.MOD004, x.Pos, "import %q has no exported binding", name)
			w.Linef("HmlValue %s = hml_val_null();", t)
			return t
		}
		if b.IsFunction {
			w.Linef("HmlValue %s = hml_val_function(%s, %d);", t, b.Mangled, b.NumParams)
			return t
		}
		w.Linef("HmlValue %s = hml_retain(%s);", t, b.Mangled)
		return t
	}
	if arity, ok := c.externArity(name); ok {
		w.Linef("HmlValue %s = hml_val_function(hml_fn_%s, %d);", t, name, arity)
		return t
	}
	if expr, ok := wellKnownIdent(name); ok {
		w.Linef("HmlValue %s = %s;", t, expr)
		return t
	}
	c.tolerant(w, diag.CGN012, x.Pos, "unresolved identifier %q", name)
	w.Linef("HmlValue %s = hml_val_null();", t)
	return t
}

func (c *Context) externArity(name string) (int, bool) {
	for _, ex := range c.Externs {
		if ex.Name == name {
			return len(ex.Params), true
		}
	}
	return 0, false
}

func (c *Context) arrayLit(w *cbuf.Writer, x *ast.ArrayLit) string {
	t := c.newTmp()
	w.Linef("HmlValue %s = hml_val_array(%d);", t, len(x.Elems))
	for _, el := range x.Elems {
		ev := c.Expr(w, el)
		w.Linef("hml_array_push(%s, %s);", t, ev)
		w.Linef("hml_release(%s);", ev)
	}
	return t
}

func (c *Context) objectLit(w *cbuf.Writer, x *ast.ObjectLit) string {
	t := c.newTmp()
	w.Linef("HmlValue %s = hml_val_object();", t)
	for _, f := range x.Fields {
		fv := c.Expr(w, f.Value)
		w.Linef("hml_object_set(%s, \"%s\", %s);", t, cEscape(f.Key), fv)
		w.Linef("hml_release(%s);", fv)
	}
	return t
}

func (c *Context) binary(w *cbuf.Writer, x *ast.Binary) string {
	helper, ok := binaryOps[x.Op]
	if !ok {
		t := c.newTmp()
		c.tolerant(w, diag.CGN012, x.Pos, "unsupported binary operator %q", x.Op)
		w.Linef("HmlValue %s = hml_val_null();", t)
		return t
	}
	l := c.Expr(w, x.Left)
	r := c.Expr(w, x.Right)
	t := c.newTmp()
	w.Linef("HmlValue %s = %s(%s, %s);", t, helper, l, r)
	w.Linef("hml_release(%s);", l)
	w.Linef("hml_release(%s);", r)
	return t
}

func (c *Context) unary(w *cbuf.Writer, x *ast.Unary) string {
	helper, ok := unaryOps[x.Op]
	if !ok {
		t := c.newTmp()
		c.tolerant(w, diag.CGN012, x.Pos, "unsupported unary operator %q", x.Op)
		w.Linef("HmlValue %s = hml_val_null();", t)
		return t
	}
	v := c.Expr(w, x.Operand)
	t := c.newTmp()
	w.Linef("HmlValue %s = %s(%s);", t, helper, v)
	w.Linef("hml_release(%s);", v)
	return t
}

// ternary materializes both branches lazily inside an if/else around a
// pre-declared result temporary.
func (c *Context) ternary(w *cbuf.Writer, x *ast.Ternary) string {
	t := c.newTmp()
	w.Linef("HmlValue %s = hml_val_null();", t)
	cond := c.Expr(w, x.Cond)
	w.Linef("if (hml_is_truthy(%s)) {", cond)
	w.Indent()
	tv := c.Expr(w, x.Then)
	w.Linef("%s = %s;", t, tv)
	w.Dedent()
	w.Line("} else {")
	w.Indent()
	ev := c.Expr(w, x.Else)
	w.Linef("%s = %s;", t, ev)
	w.Dedent()
	w.Line("}")
	w.Linef("hml_release(%s);", cond)
	return t
}

// call emits a function call, trying the three dispatch paths in order:
// builtin table, direct call to a known user function, then the dynamic
// call_function helper.
func (c *Context) call(w *cbuf.Writer, x *ast.Call) string {
	if id, ok := x.Callee.(*ast.Ident); ok && !c.nameIsValue(id.Name) {
		if emit, ok := lookupBuiltin(id.Name, len(x.Args)); ok {
			return emit(c, w, x)
		}
		if cfunc, ok := c.directCallTarget(id.Name); ok {
			return c.directCall(w, cfunc, x.Args)
		}
	}
	callee := c.Expr(w, x.Callee)
	args, argv := c.emitArgs(w, x.Args)
	t := c.newTmp()
	w.Linef("HmlValue %s = hml_call_function(%s, %s, %d);", t, callee, argv, len(x.Args))
	w.Linef("hml_release(%s);", callee)
	c.releaseArgs(w, args)
	return t
}

// nameIsValue reports whether name is bound to a runtime value (local,
// shadow, capture) and therefore shadows builtins and direct call targets.
func (c *Context) nameIsValue(name string) bool {
	if c.Shadow.Has(name) || c.Locals.Has(name) {
		return true
	}
	if c.captures != nil {
		if _, ok := c.captures[name]; ok {
			return true
		}
	}
	return false
}

// directCallTarget resolves an identifier to the mangled C function it names,
// if any: extern wrappers, current-module functions, import bindings, then
// main-file functions.
func (c *Context) directCallTarget(name string) (string, bool) {
	if _, ok := c.externArity(name); ok {
		return "hml_fn_" + name, true
	}
	if c.Module != nil {
		if _, ok := c.namesOf(c.Module).funcs[name]; ok {
			return c.Module.MangleFunc(name), true
		}
	}
	if b := c.findImport(name); b != nil && b.IsFunction && b.Mangled != "" {
		return b.Mangled, true
	}
	if c.Module == nil {
		if _, ok := c.MainFuncs[name]; ok {
			return MainMangleFunc(name), true
		}
	}
	return "", false
}

// emitArgs evaluates the argument list and packs it into a C array. Returns
// the argument temporaries and the array variable name ("NULL" when empty).
func (c *Context) emitArgs(w *cbuf.Writer, list []ast.Expr) ([]string, string) {
	args := make([]string, 0, len(list))
	for _, a := range list {
		args = append(args, c.Expr(w, a))
	}
	if len(args) == 0 {
		return args, "NULL"
	}
	argv := c.newTmp() + "_args"
	w.Linef("HmlValue %s[] = { %s };", argv, strings.Join(args, ", "))
	return args, argv
}

func (c *Context) releaseArgs(w *cbuf.Writer, args []string) {
	for _, a := range args {
		w.Linef("hml_release(%s);", a)
	}
}

// directCall emits a call to a mangled user function using the uniform
// calling convention: the closure-env parameter is NULL for non-closures.
func (c *Context) directCall(w *cbuf.Writer, cfunc string, list []ast.Expr) string {
	args, argv := c.emitArgs(w, list)
	t := c.newTmp()
	w.Linef("HmlValue %s = %s(NULL, %s, %d);", t, cfunc, argv, len(list))
	c.releaseArgs(w, args)
	return t
}

// index branches on the receiver kind at runtime: arrays and buffers index by
// element, strings by character; anything else goes through the generic
// helper.
func (c *Context) index(w *cbuf.Writer, x *ast.Index) string {
	recv := c.Expr(w, x.Recv)
	idx := c.Expr(w, x.Idx)
	t := c.newTmp()
	w.Linef("HmlValue %s;", t)
	w.Linef("switch (hml_kind(%s)) {", recv)
	w.Linef("case HML_KIND_ARRAY: %s = hml_array_get(%s, %s); break;", t, recv, idx)
	w.Linef("case HML_KIND_STRING: %s = hml_string_char_at(%s, %s); break;", t, recv, idx)
	w.Linef("case HML_KIND_BUFFER: %s = hml_buffer_get(%s, %s); break;", t, recv, idx)
	w.Linef("default: %s = hml_index_get(%s, %s); break;", t, recv, idx)
	w.Line("}")
	w.Linef("hml_release(%s);", recv)
	w.Linef("hml_release(%s);", idx)
	return t
}

func (c *Context) indexAssign(w *cbuf.Writer, x *ast.IndexAssign) string {
	recv := c.Expr(w, x.Recv)
	idx := c.Expr(w, x.Idx)
	val := c.Expr(w, x.Value)
	w.Linef("switch (hml_kind(%s)) {", recv)
	w.Linef("case HML_KIND_ARRAY: hml_array_set(%s, %s, %s); break;", recv, idx, val)
	w.Linef("case HML_KIND_BUFFER: hml_buffer_set(%s, %s, %s); break;", recv, idx, val)
	w.Linef("default: hml_index_set(%s, %s, %s); break;", recv, idx, val)
	w.Line("}")
	w.Linef("hml_release(%s);", recv)
	w.Linef("hml_release(%s);", idx)
	return val
}

// getProp specializes .length for arrays, strings and buffers with a runtime
// kind check, falling back to the object-field helper.
func (c *Context) getProp(w *cbuf.Writer, x *ast.GetProp) string {
	recv := c.Expr(w, x.Recv)
	t := c.newTmp()
	if x.Name == "length" {
		w.Linef("HmlValue %s;", t)
		w.Linef("switch (hml_kind(%s)) {", recv)
		w.Linef("case HML_KIND_ARRAY: case HML_KIND_STRING: case HML_KIND_BUFFER: %s = hml_length(%s); break;", t, recv)
		w.Linef("default: %s = hml_object_get(%s, \"length\"); break;", t, recv)
		w.Line("}")
	} else {
		w.Linef("HmlValue %s = hml_object_get(%s, \"%s\");", t, recv, cEscape(x.Name))
	}
	w.Linef("hml_release(%s);", recv)
	return t
}

// setProp releases the receiver after the store and yields the new value as
// the expression result.
func (c *Context) setProp(w *cbuf.Writer, x *ast.SetProp) string {
	recv := c.Expr(w, x.Recv)
	val := c.Expr(w, x.Value)
	w.Linef("hml_object_set(%s, \"%s\", %s);", recv, cEscape(x.Name), val)
	w.Linef("hml_release(%s);", recv)
	return val
}

// assign stores a new value into a named binding, releasing the prior value.
// The expression result is the new value retained once. Assignment to a const
// name is a compile-time error.
func (c *Context) assign(w *cbuf.Writer, x *ast.Assign) string {
	if c.Consts.Has(x.Name) {
		c.fatalf(diag.CGN001, x.Pos, "cannot assign to const %q", x.Name)
		return c.nullTmp(w)
	}
	val := c.Expr(w, x.Value)
	c.storeIdent(w, x, val)
	return val
}

// storeIdent writes val through the binding x names, following the same
// ladder as identValue.
func (c *Context) storeIdent(w *cbuf.Writer, x *ast.Assign, val string) {
	name := x.Name
	if c.Shadow.Has(name) || c.Locals.Has(name) {
		w.Linef("hml_release(%s);", name)
		w.Linef("%s = hml_retain(%s);", name, val)
		// A variable in the shared environment writes through its slot so
		// sibling closures observe the update.
		if c.sharedEnv != nil && c.sharedEnvVar != "" {
			if idx := c.sharedEnv.IndexOf(name); idx >= 0 {
				w.Linef("hml_env_set(%s, %d, %s);", c.sharedEnvVar, idx, val)
			}
		}
		return
	}
	if c.captures != nil {
		if slot, ok := c.captures[name]; ok {
			w.Linef("hml_env_set(env, %d, %s);", slot.Slot, val)
			return
		}
	}
	if c.Module == nil {
		if c.MainVars.Has(name) {
			w.Linef("hml_release(%s);", MainMangleVar(name))
			w.Linef("%s = hml_retain(%s);", MainMangleVar(name), val)
			return
		}
	} else if c.namesOf(c.Module).vars.Has(name) {
		w.Linef("hml_release(%s);", c.Module.MangleValue(name))
		w.Linef("%s = hml_retain(%s);", c.Module.MangleValue(name), val)
		return
	}
	c.tolerant(w, diag.CGN012, x.Pos, "assignment to unresolved identifier %q", name)
}

// nullCoalesce evaluates the left side, keeps it when non-null, otherwise
// releases it and evaluates the right side.
func (c *Context) nullCoalesce(w *cbuf.Writer, x *ast.NullCoalesce) string {
	l := c.Expr(w, x.Left)
	t := c.newTmp()
	w.Linef("HmlValue %s;", t)
	w.Linef("if (hml_kind(%s) != HML_KIND_NULL) {", l)
	w.Indent()
	w.Linef("%s = %s;", t, l)
	w.Dedent()
	w.Line("} else {")
	w.Indent()
	w.Linef("hml_release(%s);", l)
	r := c.Expr(w, x.Right)
	w.Linef("%s = %s;", t, r)
	w.Dedent()
	w.Line("}")
	return t
}

// optChain short-circuits to null when the receiver is null. The call form is
// lowered to a null result with a tolerant diagnostic.
func (c *Context) optChain(w *cbuf.Writer, x *ast.OptChain) string {
	if x.Kind == ast.OptCall {
		c.tolerant(w, diag.CGN010, x.Pos, "optional-chain call form is not supported")
		return c.nullTmp(w)
	}
	recv := c.Expr(w, x.Recv)
	t := c.newTmp()
	w.Linef("HmlValue %s = hml_val_null();", t)
	w.Linef("if (hml_kind(%s) != HML_KIND_NULL) {", recv)
	w.Indent()
	switch x.Kind {
	case ast.OptProp:
		if x.Name == "length" {
			w.Linef("switch (hml_kind(%s)) {", recv)
			w.Linef("case HML_KIND_ARRAY: case HML_KIND_STRING: case HML_KIND_BUFFER: %s = hml_length(%s); break;", t, recv)
			w.Linef("default: %s = hml_object_get(%s, \"length\"); break;", t, recv)
			w.Line("}")
		} else {
			w.Linef("%s = hml_object_get(%s, \"%s\");", t, recv, cEscape(x.Name))
		}
	case ast.OptIndex:
		idx := c.Expr(w, x.Idx)
		w.Linef("switch (hml_kind(%s)) {", recv)
		w.Linef("case HML_KIND_ARRAY: %s = hml_array_get(%s, %s); break;", t, recv, idx)
		w.Linef("case HML_KIND_STRING: %s = hml_string_char_at(%s, %s); break;", t, recv, idx)
		w.Linef("case HML_KIND_BUFFER: %s = hml_buffer_get(%s, %s); break;", t, recv, idx)
		w.Linef("default: %s = hml_index_get(%s, %s); break;", t, recv, idx)
		w.Line("}")
		w.Linef("hml_release(%s);", idx)
	}
	w.Dedent()
	w.Line("}")
	w.Linef("hml_release(%s);", recv)
	return t
}

// incDec supports identifiers only; prefix yields the new value, postfix the
// old. Complex l-values degrade to a null result with a diagnostic.
func (c *Context) incDec(w *cbuf.Writer, x *ast.IncDec) string {
	id, ok := x.Target.(*ast.Ident)
	if !ok {
		c.tolerant(w, diag.CGN011, x.Pos, "%s on a non-identifier l-value", x.Op)
		return c.nullTmp(w)
	}
	if c.Consts.Has(id.Name) {
		c.fatalf(diag.CGN001, x.Pos, "cannot assign to const %q", id.Name)
		return c.nullTmp(w)
	}
	old := c.identValue(w, id)
	one := c.newTmp()
	w.Linef("HmlValue %s = hml_val_i32(1);", one)
	nv := c.newTmp()
	helper := "hml_add"
	if x.Op == "--" {
		helper = "hml_sub"
	}
	w.Linef("HmlValue %s = %s(%s, %s);", nv, helper, old, one)
	w.Linef("hml_release(%s);", one)
	c.storeIdent(w, &ast.Assign{Name: id.Name, Pos: x.Pos}, nv)
	if x.Prefix {
		w.Linef("hml_release(%s);", old)
		return nv
	}
	w.Linef("hml_release(%s);", nv)
	return old
}

// interp folds the interleaved literal and expression parts through the
// runtime concatenation helper, releasing intermediates promptly.
func (c *Context) interp(w *cbuf.Writer, x *ast.Interp) string {
	acc := c.newTmp()
	w.Linef("HmlValue %s = hml_val_string(\"\");", acc)
	for _, p := range x.Parts {
		var part string
		if p.Expr != nil {
			part = c.Expr(w, p.Expr)
		} else {
			part = c.newTmp()
			w.Linef("HmlValue %s = hml_val_string(\"%s\");", part, cEscape(p.Lit))
		}
		next := c.newTmp()
		w.Linef("HmlValue %s = hml_string_concat(%s, %s);", next, acc, part)
		w.Linef("hml_release(%s);", acc)
		w.Linef("hml_release(%s);", part)
		acc = next
	}
	return acc
}
