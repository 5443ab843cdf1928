package codegen

import (
	"sync"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
)

// builtinEmit lowers one builtin call and returns the result temporary.
type builtinEmit func(c *Context, w *cbuf.Writer, x *ast.Call) string

type builtinEntry struct {
	arity int // -1 means any
	emit  builtinEmit
}

// simple1 builds an emitter for a unary builtin mapping to one helper.
func simple1(helper string) builtinEmit {
	return func(c *Context, w *cbuf.Writer, x *ast.Call) string {
		v := c.Expr(w, x.Args[0])
		t := c.newTmp()
		w.Linef("HmlValue %s = %s(%s);", t, helper, v)
		w.Linef("hml_release(%s);", v)
		return t
	}
}

// simple2 builds an emitter for a binary builtin mapping to one helper.
func simple2(helper string) builtinEmit {
	return func(c *Context, w *cbuf.Writer, x *ast.Call) string {
		a := c.Expr(w, x.Args[0])
		b := c.Expr(w, x.Args[1])
		t := c.newTmp()
		w.Linef("HmlValue %s = %s(%s, %s);", t, helper, a, b)
		w.Linef("hml_release(%s);", a)
		w.Linef("hml_release(%s);", b)
		return t
	}
}

// simple0 builds an emitter for a nullary builtin.
func simple0(helper string) builtinEmit {
	return func(c *Context, w *cbuf.Writer, x *ast.Call) string {
		t := c.newTmp()
		w.Linef("HmlValue %s = %s();", t, helper)
		return t
	}
}

// voidArg builds an emitter for a unary builtin whose helper returns nothing;
// the call expression yields null.
func voidArg(helper string) builtinEmit {
	return func(c *Context, w *cbuf.Writer, x *ast.Call) string {
		v := c.Expr(w, x.Args[0])
		w.Linef("%s(%s);", helper, v)
		w.Linef("hml_release(%s);", v)
		return c.nullTmp(w)
	}
}

// builtinsOnce/builtinsCache lazily build the static (name, arity) table of
// direct-dispatch builtins. This is deferred (rather than a package-level
// var literal) because the emitters close over Context.Expr, which
// transitively references this table, and a direct var initializer would
// form an initialization cycle.
var builtinsOnce sync.Once
var builtinsCache map[string][]builtinEntry

func builtins() map[string][]builtinEntry {
	builtinsOnce.Do(func() {
		builtinsCache = buildBuiltins()
	})
	return builtinsCache
}

// buildBuiltins is the static (name, arity) table of direct-dispatch builtins.
func buildBuiltins() map[string][]builtinEntry {
	return map[string][]builtinEntry{
		// I/O
		"print": {{1, voidArg("hml_print")}},
		"println": {{1, voidArg("hml_println")}, {0, func(c *Context, w *cbuf.Writer, x *ast.Call) string {
			w.Line("hml_print_newline();")
			return c.nullTmp(w)
		}}},
		"readline": {{0, simple0("hml_readline")}},

		// introspection and control
		"typeof": {{1, simple1("hml_typeof")}},
		"len":    {{1, simple1("hml_length")}},
		"panic": {{1, func(c *Context, w *cbuf.Writer, x *ast.Call) string {
			v := c.Expr(w, x.Args[0])
			w.Linef("hml_panic(%s);", v)
			return c.nullTmp(w)
		}}},
		"exit": {{1, voidArg("hml_exit")}},

		// process
		"exec": {{1, simple1("hml_exec")}},
		"args": {{0, simple0("hml_runtime_args")}},

		// memory primitives
		"alloc": {{1, simple1("hml_buffer_alloc")}},
		"free":  {{1, voidArg("hml_buffer_free")}},
		"memcpy": {{3, func(c *Context, w *cbuf.Writer, x *ast.Call) string {
			dst := c.Expr(w, x.Args[0])
			src := c.Expr(w, x.Args[1])
			n := c.Expr(w, x.Args[2])
			w.Linef("hml_memcpy(%s, %s, %s);", dst, src, n)
			w.Linef("hml_release(%s);", dst)
			w.Linef("hml_release(%s);", src)
			w.Linef("hml_release(%s);", n)
			return c.nullTmp(w)
		}}},

		// async primitives: one OS thread per spawned task; channels are the
		// only synchronization primitive the core emits.
		"spawn":   {{1, simple1("hml_task_spawn")}},
		"join":    {{1, simple1("hml_task_join")}},
		"detach":  {{1, voidArg("hml_task_detach")}},
		"channel": {{1, simple1("hml_channel_new")}, {0, simple0("hml_channel_new_unbuffered")}},

		// time
		"now":   {{0, simple0("hml_time_now")}},
		"sleep": {{1, voidArg("hml_sleep")}},

		// environment
		"getenv": {{1, simple1("hml_getenv")}},
		"setenv": {{2, simple2("hml_setenv")}},

		// signals
		"signal": {{2, simple2("hml_signal_register")}},
		"kill":   {{2, simple2("hml_kill")}},

		// math
		"abs":    {{1, simple1("hml_math_abs")}},
		"min":    {{2, simple2("hml_math_min")}},
		"max":    {{2, simple2("hml_math_max")}},
		"floor":  {{1, simple1("hml_math_floor")}},
		"ceil":   {{1, simple1("hml_math_ceil")}},
		"round":  {{1, simple1("hml_math_round")}},
		"sqrt":   {{1, simple1("hml_math_sqrt")}},
		"pow":    {{2, simple2("hml_math_pow")}},
		"sin":    {{1, simple1("hml_math_sin")}},
		"cos":    {{1, simple1("hml_math_cos")}},
		"tan":    {{1, simple1("hml_math_tan")}},
		"log":    {{1, simple1("hml_math_log")}},
		"random": {{0, simple0("hml_math_random")}},

		// files
		"open":       {{2, simple2("hml_file_open")}},
		"read_file":  {{1, simple1("hml_file_read_all")}},
		"write_file": {{2, simple2("hml_file_write_all")}},
	}
}

// lookupBuiltin finds the emitter for a builtin name at the given arity.
func lookupBuiltin(name string, nargs int) (builtinEmit, bool) {
	entries, ok := builtins()[name]
	if !ok {
		return nil, false
	}
	for _, e := range entries {
		if e.arity == nargs || e.arity == -1 {
			return e.emit, true
		}
	}
	return nil, false
}
