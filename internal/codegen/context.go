// Package codegen lowers the AST to C. It owns the expression and statement
// emitters, the defer engine, try/finally lowering, closure analysis plumbing
// and the FFI wrapper emitter. All state lives on Context; nothing is global.
package codegen

import (
	"fmt"
	"strings"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
	"github.com/hemlock-lang/hmlc/internal/diag"
	"github.com/hemlock-lang/hmlc/internal/freevars"
	"github.com/hemlock-lang/hmlc/internal/loader"
	"github.com/hemlock-lang/hmlc/internal/scope"
	"github.com/hemlock-lang/hmlc/internal/token"
)

// ClosureInfo records one function expression discovered during emission.
// The list on Context is append-only across passes; the pipeline drains it in
// a fixpoint loop because emitting a closure body may discover more closures.
type ClosureInfo struct {
	FuncName     string   // emitted C function name
	Captured     []string // capturable free variables, in discovery order
	SharedIdx    []int    // slot per captured var in the shared env, nil when per-closure
	Fn           *ast.FuncExpr
	SourceModule *loader.Module // nil for main-file closures
}

// selfRefPatch is a pending environment back-patch for a self-referential
// closure (let f = fn() { ... f() ... }).
type selfRefPatch struct {
	EnvVar string
	Slot   int
	Name   string
}

// finallyFrame is one entry of the try/finally stack. ExcDepth is the number
// of exception frames active when the try was entered, so a return can pop
// exactly the frames opened since.
type finallyFrame struct {
	Label    string
	RetVar   string
	HasVar   string
	ExcDepth int
}

// captureSlot maps a captured name to its environment slot while a closure
// body is being emitted.
type captureSlot struct {
	Slot int
}

// moduleNames caches the top-level symbol tables of a module for resolution.
type moduleNames struct {
	funcs map[string]int // name -> arity
	vars  scope.Names
}

// Context is the code generator state threaded through every emission call.
type Context struct {
	Sections *cbuf.Sections
	Loader   *loader.Loader

	// Lexical tracking (spec priority: shadow > local > main-file).
	Scopes    *scope.Stack
	Locals    scope.Names
	Shadow    scope.Names
	Consts    scope.Names
	MainVars  scope.Names
	MainFuncs map[string]int // name -> arity

	MainImports    []*loader.ImportBinding
	MainNamespaces map[string]*loader.Module

	// Module is non-nil while emitting a module's code; it selects the
	// mangling prefix for top-level name resolution.
	Module *loader.Module

	// Externs collects every extern fn declaration seen anywhere in the
	// program; the pipeline emits one wrapper per entry.
	Externs []*ast.ExternFn
	// FFILibs collects import ffi libraries in source order.
	FFILibs []string

	// Diags holds every diagnostic raised during emission. Fatal entries
	// abort final assembly; tolerant entries also leave an // ERROR: comment
	// in the output.
	Diags []*diag.Report

	Closures []*ClosureInfo

	tmpN     int
	labelN   int
	closureN int
	envN     int

	loopDepth        int
	loopBases        []int    // localVars depth at each loop entry, for break/continue releases
	contLabels       []string // continue target per loop ("" = plain continue)
	defers           []ast.Expr
	usedRuntimeDefer bool

	finallies []finallyFrame
	excDepth  int

	sharedEnv    *freevars.SharedEnv
	sharedEnvVar string
	captures     map[string]captureSlot
	pendingPatch *selfRefPatch

	// localVars tracks the C variables declared per scope so they can be
	// released at scope exit and on every return path.
	localVars [][]string

	// atTopLevel marks emission of main-file or module top-level statements,
	// where let/const assign pre-declared statics instead of declaring locals.
	atTopLevel bool

	moduleNameCache map[*loader.Module]*moduleNames
	fatal           bool
}

// NewContext returns a fresh code generator writing into sections.
func NewContext(sections *cbuf.Sections, ld *loader.Loader) *Context {
	return &Context{
		Sections:        sections,
		Loader:          ld,
		Scopes:          scope.NewStack(),
		Locals:          scope.NewNames(),
		Shadow:          scope.NewNames(),
		Consts:          scope.NewNames(),
		MainVars:        scope.NewNames(),
		MainFuncs:       make(map[string]int),
		MainNamespaces:  make(map[string]*loader.Module),
		moduleNameCache: make(map[*loader.Module]*moduleNames),
	}
}

// HasFatal reports whether a fatal diagnostic was raised.
func (c *Context) HasFatal() bool { return c.fatal }

func (c *Context) fatalf(code string, pos token.Pos, format string, args ...any) {
	c.Diags = append(c.Diags, diag.New(code, diag.PhaseCodegen, pos, format, args...))
	c.fatal = true
}

// tolerant records a diagnostic and embeds it as a comment so emission can
// proceed and report more in one pass.
func (c *Context) tolerant(w *cbuf.Writer, code string, pos token.Pos, format string, args ...any) {
	r := diag.New(code, diag.PhaseCodegen, pos, format, args...)
	c.Diags = append(c.Diags, r)
	w.Linef("// ERROR: %s: %s", r.Code, r.Message)
}

func (c *Context) newTmp() string {
	c.tmpN++
	return fmt.Sprintf("_tmp%d", c.tmpN)
}

func (c *Context) newLabel(prefix string) string {
	c.labelN++
	return fmt.Sprintf("_%s%d", prefix, c.labelN)
}

func (c *Context) newEnvVar() string {
	c.envN++
	return fmt.Sprintf("_env%d", c.envN)
}

// nullTmp declares a fresh temporary holding null.
func (c *Context) nullTmp(w *cbuf.Writer) string {
	t := c.newTmp()
	w.Linef("HmlValue %s = hml_val_null();", t)
	return t
}

// trackLocal records a declared C variable for release at scope exit.
func (c *Context) trackLocal(cname string) {
	if len(c.localVars) == 0 {
		return
	}
	top := len(c.localVars) - 1
	c.localVars[top] = append(c.localVars[top], cname)
}

func (c *Context) pushLocalFrame() {
	c.localVars = append(c.localVars, nil)
}

// popLocalFrame releases the frame's variables in reverse declaration order.
func (c *Context) popLocalFrame(w *cbuf.Writer) {
	top := len(c.localVars) - 1
	frame := c.localVars[top]
	for i := len(frame) - 1; i >= 0; i-- {
		w.Linef("hml_release(%s);", frame[i])
	}
	c.localVars = c.localVars[:top]
}

// releaseAllLocals emits releases for every live local without popping
// frames; used on return paths.
func (c *Context) releaseAllLocals(w *cbuf.Writer) {
	for fi := len(c.localVars) - 1; fi >= 0; fi-- {
		frame := c.localVars[fi]
		for i := len(frame) - 1; i >= 0; i-- {
			w.Linef("hml_release(%s);", frame[i])
		}
	}
}

// MainMangleVar returns the emitted name of a main-file variable. The _main_
// prefix keeps user names like kill or exit away from libc.
func MainMangleVar(name string) string { return "_main_" + name }

// MainMangleFunc returns the emitted name of a main-file function.
func MainMangleFunc(name string) string { return "_main_fn_" + name }

// namesOf returns (building on demand) the top-level symbol tables of m.
func (c *Context) namesOf(m *loader.Module) *moduleNames {
	if n, ok := c.moduleNameCache[m]; ok {
		return n
	}
	n := &moduleNames{funcs: make(map[string]int), vars: scope.NewNames()}
	for _, s := range m.Stmts {
		decl := s
		if exp, ok := s.(*ast.Export); ok {
			if exp.Decl == nil {
				continue
			}
			decl = exp.Decl
		}
		switch d := decl.(type) {
		case *ast.Let:
			n.vars.Add(d.Name)
		case *ast.Const:
			n.vars.Add(d.Name)
		case *ast.Enum:
			n.vars.Add(d.Name)
		case *ast.FuncDecl:
			n.funcs[d.Name] = len(d.Fn.Params)
		case *ast.Import:
			if d.Namespace != "" {
				n.vars.Add(d.Namespace)
			}
		}
	}
	c.moduleNameCache[m] = n
	return n
}

// imports returns the import bindings active for the current emission unit.
func (c *Context) imports() []*loader.ImportBinding {
	if c.Module != nil {
		return c.Module.Imports
	}
	return c.MainImports
}

func (c *Context) findImport(name string) *loader.ImportBinding {
	for _, b := range c.imports() {
		if b.LocalName == name {
			return b
		}
	}
	return nil
}

// cEscape escapes a string for inclusion in a C string literal.
func cEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
