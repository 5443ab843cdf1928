package codegen

import (
	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
	"github.com/hemlock-lang/hmlc/internal/loader"
)

// unwrapExport returns the wrapped declaration of an export statement, or the
// statement itself.
func unwrapExport(s ast.Stmt) ast.Stmt {
	if exp, ok := s.(*ast.Export); ok && exp.Decl != nil {
		return exp.Decl
	}
	return s
}

// PrescanMain collects the main file's top-level names and loads its imports.
// Main-file symbols carry the _main_ prefix in the output so user names never
// collide with libc identifiers.
func (c *Context) PrescanMain(stmts []ast.Stmt, mainDir string) error {
	c.MainVars.Add("args")
	for _, s := range stmts {
		switch x := unwrapExport(s).(type) {
		case *ast.Let:
			c.MainVars.Add(x.Name)
		case *ast.Const:
			c.MainVars.Add(x.Name)
			c.Consts.Add(x.Name)
		case *ast.Enum:
			c.MainVars.Add(x.Name)
		case *ast.FuncDecl:
			c.MainFuncs[x.Name] = len(x.Fn.Params)
		case *ast.Import:
			dep, err := c.Loader.Load(x.Path, mainDir)
			if err != nil {
				return err
			}
			c.MainImports = append(c.MainImports, c.Loader.CollectBindings(dep, x)...)
			if x.Namespace != "" {
				c.MainNamespaces[x.Namespace] = dep
				c.MainVars.Add(x.Namespace)
			}
		case *ast.ExternFn:
			c.AddExtern(x)
		}
	}
	return nil
}

// EmitModule emits a module's globals, function bodies and guarded init
// function. The init assigns the module's top-level statements to the
// pre-declared statics at most once, after running its own imports' inits.
func (c *Context) EmitModule(m *loader.Module) {
	prev := c.Module
	c.Module = m
	defer func() { c.Module = prev }()

	globals := c.Sections.Get(cbuf.SecModuleGlobals)
	for _, s := range m.Stmts {
		switch x := unwrapExport(s).(type) {
		case *ast.Let:
			globals.Linef("static HmlValue %s;", m.MangleValue(x.Name))
		case *ast.Const:
			globals.Linef("static HmlValue %s;", m.MangleValue(x.Name))
		case *ast.Enum:
			globals.Linef("static HmlValue %s;", m.MangleValue(x.Name))
		case *ast.Import:
			if x.Namespace != "" {
				globals.Linef("static HmlValue %s;", m.MangleValue(x.Namespace))
			}
		}
	}

	fwd := c.Sections.Get(cbuf.SecModuleFuncFwd)
	impl := c.Sections.Get(cbuf.SecModuleImpl)
	for _, s := range m.Stmts {
		if fn, ok := unwrapExport(s).(*ast.FuncDecl); ok {
			fwd.Linef("%s;", Signature(m.MangleFunc(fn.Name)))
			c.EmitFunction(impl, m.MangleFunc(fn.Name), fn.Fn, nil, false)
		}
	}

	c.Sections.Get(cbuf.SecModuleInitFwd).Linef("void %s(void);", m.InitName())

	w := c.Sections.Get(cbuf.SecModuleInit)
	w.Linef("static int %sinit_done = 0;", m.Prefix)
	w.Linef("void %s(void) {", m.InitName())
	w.Indent()
	w.Linef("if (%sinit_done) { return; }", m.Prefix)
	w.Linef("%sinit_done = 1;", m.Prefix)
	for _, dep := range m.Deps {
		w.Linef("%s();", dep.InitName())
	}
	c.pushLocalFrame()
	c.EmitTopLevel(w, m.Stmts)
	c.popLocalFrame(w)
	w.Dedent()
	w.Line("}")
	w.Line("")
}

// EmitTopLevel emits top-level statements: let/const/enum assign statics,
// named functions are skipped (their bodies are emitted by the function
// passes), everything else lowers as usual.
func (c *Context) EmitTopLevel(w *cbuf.Writer, list []ast.Stmt) {
	for _, s := range list {
		c.atTopLevel = true
		c.Stmt(w, s)
		c.atTopLevel = false
	}
}

// EmitMainGlobals declares the main file's statics.
func (c *Context) EmitMainGlobals() {
	g := c.Sections.Get(cbuf.SecModuleGlobals)
	for _, name := range c.MainVars.Sorted() {
		g.Linef("static HmlValue %s;", MainMangleVar(name))
	}
	if len(c.MainVars) > 0 {
		g.Line("")
	}
}

// EmitMainFuncs emits the main file's named function bodies.
func (c *Context) EmitMainFuncs(stmts []ast.Stmt) {
	fwd := c.Sections.Get(cbuf.SecNamedFwd)
	impl := c.Sections.Get(cbuf.SecNamedImpl)
	for _, s := range stmts {
		if fn, ok := unwrapExport(s).(*ast.FuncDecl); ok {
			fwd.Linef("%s;", Signature(MainMangleFunc(fn.Name)))
			c.EmitFunction(impl, MainMangleFunc(fn.Name), fn.Fn, nil, false)
		}
	}
}

// EmitMain emits the program entry point: runtime init, args binding, module
// inits, then the main file's top-level statements.
func (c *Context) EmitMain(stmts []ast.Stmt, mods []*loader.Module) {
	w := c.Sections.Get(cbuf.SecMain)
	w.Line("int main(int argc, char **argv) {")
	w.Indent()
	w.Line("hml_runtime_init(argc, argv);")
	w.Linef("%s = hml_runtime_args();", MainMangleVar("args"))
	for _, m := range mods {
		w.Linef("%s();", m.InitName())
	}
	c.pushLocalFrame()
	c.EmitTopLevel(w, stmts)
	c.popLocalFrame(w)
	w.Line("hml_runtime_shutdown();")
	w.Line("return 0;")
	w.Dedent()
	w.Line("}")
}

// EmitClosures drains the closure list to a fixpoint: emitting a body may
// discover more closures, which are appended and picked up by the loop. Each
// body is emitted under its source module so name resolution uses the right
// mangling.
func (c *Context) EmitClosures() {
	w := c.Sections.Get(cbuf.SecClosureImpl)
	for i := 0; i < len(c.Closures); i++ {
		cl := c.Closures[i]
		prev := c.Module
		c.Module = cl.SourceModule
		c.EmitFunction(w, cl.FuncName, cl.Fn, cl, true)
		c.Module = prev
	}
}

// EmitHeader writes the runtime includes and the signal macros.
func (c *Context) EmitHeader() {
	h := c.Sections.Get(cbuf.SecHeader)
	h.Line("#include \"hemlock_runtime.h\"")
	h.Line("#include <setjmp.h>")
	h.Line("#include <signal.h>")
	h.Line("#include <math.h>")
	h.Line("#include <sys/socket.h>")
	h.Line("#include <netinet/in.h>")
	h.Line("#include <arpa/inet.h>")
	h.Line("")

	s := c.Sections.Get(cbuf.SecSignalMacros)
	for _, sig := range signalNames {
		s.Linef("#define %s_VAL %s", sig, sig)
	}
	s.Line("")
}
