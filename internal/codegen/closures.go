package codegen

import (
	"fmt"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
	"github.com/hemlock-lang/hmlc/internal/freevars"
	"github.com/hemlock-lang/hmlc/internal/scope"
)

// funcState is the per-function emitter state saved and restored around
// nested function emission.
type funcState struct {
	locals           map[string]struct{}
	consts           map[string]struct{}
	defers           []ast.Expr
	usedRuntimeDefer bool
	loopDepth        int
	loopBases        []int
	contLabels       []string
	finallies        []finallyFrame
	excDepth         int
	sharedEnv        *freevars.SharedEnv
	sharedEnvVar     string
	captures         map[string]captureSlot
	localVars        [][]string
	tmpN             int
	atTopLevel       bool
}

func (c *Context) saveFuncState() funcState {
	return funcState{
		locals:           c.Locals,
		consts:           c.Consts,
		defers:           c.defers,
		usedRuntimeDefer: c.usedRuntimeDefer,
		loopDepth:        c.loopDepth,
		loopBases:        c.loopBases,
		contLabels:       c.contLabels,
		finallies:        c.finallies,
		excDepth:         c.excDepth,
		sharedEnv:        c.sharedEnv,
		sharedEnvVar:     c.sharedEnvVar,
		captures:         c.captures,
		localVars:        c.localVars,
		tmpN:             c.tmpN,
		atTopLevel:       c.atTopLevel,
	}
}

func (c *Context) restoreFuncState(s funcState) {
	c.Locals = s.locals
	c.Consts = s.consts
	c.defers = s.defers
	c.usedRuntimeDefer = s.usedRuntimeDefer
	c.loopDepth = s.loopDepth
	c.loopBases = s.loopBases
	c.contLabels = s.contLabels
	c.finallies = s.finallies
	c.excDepth = s.excDepth
	c.sharedEnv = s.sharedEnv
	c.sharedEnvVar = s.sharedEnvVar
	c.captures = s.captures
	c.localVars = s.localVars
	c.tmpN = s.tmpN
	c.atTopLevel = s.atTopLevel
}

// Signature returns the uniform C signature for a user-defined callable.
// Every callable takes the closure environment first so a single function
// pointer type can dispatch all of them.
func Signature(cname string) string {
	return fmt.Sprintf("HmlValue %s(HmlClosureEnv *env, HmlValue *args, int argc)", cname)
}

// EmitFunction emits a complete function body for fn under the C name cname.
// cl is non-nil when the function is a closure with captured variables.
func (c *Context) EmitFunction(w *cbuf.Writer, cname string, fn *ast.FuncExpr, cl *ClosureInfo, static bool) {
	saved := c.saveFuncState()
	c.Locals = scope.NewNames() // function bodies see no caller locals
	c.Consts = c.Consts.Snapshot()
	c.defers = nil
	c.usedRuntimeDefer = false
	c.loopDepth = 0
	c.loopBases = nil
	c.contLabels = nil
	c.finallies = nil
	c.excDepth = 0
	c.captures = nil
	c.localVars = nil
	c.tmpN = 0
	c.atTopLevel = false

	if cl != nil {
		c.captures = make(map[string]captureSlot, len(cl.Captured))
		for i, name := range cl.Captured {
			slot := i
			if cl.SharedIdx != nil && cl.SharedIdx[i] >= 0 {
				slot = cl.SharedIdx[i]
			}
			c.captures[name] = captureSlot{Slot: slot}
		}
	}

	prefix := ""
	if static {
		prefix = "static "
	}
	w.Linef("%s%s {", prefix, Signature(cname))
	w.Indent()
	w.Line("hml_call_enter();")

	c.pushLocalFrame()
	for i, p := range fn.Params {
		w.Linef("HmlValue %s = (argc > %d) ? hml_retain(args[%d]) : hml_val_null();", p.Name, i, i)
		c.Locals.Add(p.Name)
		c.trackLocal(p.Name)
	}

	// One shared capture environment per enclosing function: the pre-pass
	// unions the free variables of every direct-child closure.
	c.sharedEnv = nil
	c.sharedEnvVar = ""
	if plan := freevars.PlanSharedEnv(cname, fn.Body); plan != nil {
		vars := c.filterCapturable(fn, plan.Vars)
		if len(vars) > 0 {
			c.sharedEnv = &freevars.SharedEnv{Name: plan.Name, Vars: vars}
			c.envN++
			c.sharedEnvVar = fmt.Sprintf("_shenv%d", c.envN)
			w.Linef("HmlClosureEnv *%s = hml_env_new(%d);", c.sharedEnvVar, len(vars))
		}
	}

	c.stmts(w, fn.Body)

	// Implicit fall-through exit.
	c.emitDefers(w)
	if c.usedRuntimeDefer {
		w.Line("hml_defer_execute_all();")
	}
	c.releaseAllLocals(w)
	w.Line("hml_call_exit();")
	w.Line("return hml_val_null();")
	w.Dedent()
	w.Line("}")
	w.Line("")

	c.restoreFuncState(saved)
}

// filterCapturable keeps the names a child closure can capture from this
// function: parameters, body bindings and the function's own captures.
// Module-level and main-file symbols resolve directly to their static slots
// and are never captured.
func (c *Context) filterCapturable(fn *ast.FuncExpr, vars []string) []string {
	bound := bindingNames(fn)
	var out []string
	for _, v := range vars {
		if _, ok := bound[v]; ok {
			out = append(out, v)
			continue
		}
		if c.captures != nil {
			if _, ok := c.captures[v]; ok {
				out = append(out, v)
			}
		}
	}
	return out
}

// bindingNames collects every name fn binds: parameters plus let/const,
// named functions, for-in and catch bindings anywhere in the body.
func bindingNames(fn *ast.FuncExpr) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range fn.Params {
		out[p.Name] = struct{}{}
	}
	var walk func(list []ast.Stmt)
	walk = func(list []ast.Stmt) {
		for _, s := range list {
			switch x := s.(type) {
			case *ast.Let:
				out[x.Name] = struct{}{}
			case *ast.Const:
				out[x.Name] = struct{}{}
			case *ast.Enum:
				out[x.Name] = struct{}{}
			case *ast.FuncDecl:
				out[x.Name] = struct{}{}
			case *ast.If:
				walk(x.Then)
				walk(x.Else)
			case *ast.While:
				walk(x.Body)
			case *ast.For:
				if x.Init != nil {
					walk([]ast.Stmt{x.Init})
				}
				walk(x.Body)
			case *ast.ForIn:
				if x.Key != "" {
					out[x.Key] = struct{}{}
				}
				out[x.Value] = struct{}{}
				walk(x.Body)
			case *ast.Block:
				walk(x.Body)
			case *ast.Try:
				walk(x.Body)
				if x.CatchName != "" {
					out[x.CatchName] = struct{}{}
				}
				walk(x.Catch)
				walk(x.Finally)
			case *ast.Switch:
				for _, cs := range x.Cases {
					walk(cs.Body)
				}
				walk(x.Default)
			case *ast.Export:
				if x.Decl != nil {
					walk([]ast.Stmt{x.Decl})
				}
			}
		}
	}
	walk(fn.Body)
	return out
}

// closureValue lowers a function expression to a closure value. Free
// variables are filtered to what the enclosing emitter considers capturable;
// the environment comes from the shared plan when every capture has a slot
// there, else a fresh per-closure environment.
func (c *Context) closureValue(w *cbuf.Writer, fn *ast.FuncExpr) string {
	name := fmt.Sprintf("_closure%d", c.closureN)
	c.closureN++

	free := freevars.Analyze(fn)
	var captured []string
	var pending []string // referenced before any binding exists (self-reference)
	for _, v := range free {
		switch {
		case c.nameIsValue(v):
			captured = append(captured, v)
		case c.resolvesStatically(v):
			// module-level / main-file / import / builtin: resolves directly
		default:
			captured = append(captured, v)
			pending = append(pending, v)
		}
	}

	info := &ClosureInfo{
		FuncName:     name,
		Captured:     captured,
		Fn:           fn,
		SourceModule: c.Module,
	}
	c.Closures = append(c.Closures, info)
	c.Sections.Get(cbuf.SecClosureFwd).Linef("static %s;", Signature(name))

	t := c.newTmp()
	if len(captured) == 0 {
		w.Linef("HmlValue %s = hml_val_function(%s, %d);", t, name, len(fn.Params))
		return t
	}

	envVar := c.sharedEnvVar
	useShared := false
	if c.sharedEnv != nil {
		useShared = true
		idx := make([]int, len(captured))
		for i, v := range captured {
			idx[i] = c.sharedEnv.IndexOf(v)
			if idx[i] < 0 {
				useShared = false
				break
			}
		}
		if useShared {
			info.SharedIdx = idx
		}
	}
	if !useShared {
		envVar = c.newEnvVar()
		w.Linef("HmlClosureEnv *%s = hml_env_new(%d);", envVar, len(captured))
	}

	for i, v := range captured {
		slot := i
		if info.SharedIdx != nil {
			slot = info.SharedIdx[i]
		}
		if isPending(pending, v) {
			// Self-referential closure: the slot is back-patched right after
			// the first eligible binding is emitted.
			w.Linef("hml_env_set(%s, %d, hml_val_null());", envVar, slot)
			c.pendingPatch = &selfRefPatch{EnvVar: envVar, Slot: slot, Name: v}
			continue
		}
		val := c.identValue(w, &ast.Ident{Name: v, Pos: fn.Pos})
		w.Linef("hml_env_set(%s, %d, %s);", envVar, slot, val)
		w.Linef("hml_release(%s);", val)
	}

	w.Linef("HmlValue %s = hml_val_function_with_env(%s, %d, %s);", t, name, len(fn.Params), envVar)
	return t
}

func isPending(pending []string, name string) bool {
	for _, p := range pending {
		if p == name {
			return true
		}
	}
	return false
}

// resolvesStatically reports whether name resolves to a static slot
// (main-file symbol, current-module symbol, import binding, extern or
// well-known builtin) rather than a capturable local.
func (c *Context) resolvesStatically(name string) bool {
	if c.Module == nil {
		if _, ok := c.MainFuncs[name]; ok {
			return true
		}
		if c.MainVars.Has(name) {
			return true
		}
	} else {
		names := c.namesOf(c.Module)
		if _, ok := names.funcs[name]; ok {
			return true
		}
		if names.vars.Has(name) {
			return true
		}
	}
	if c.findImport(name) != nil {
		return true
	}
	if _, ok := c.externArity(name); ok {
		return true
	}
	if _, ok := wellKnownIdent(name); ok {
		return true
	}
	if _, ok := builtins()[name]; ok {
		return true
	}
	return false
}
