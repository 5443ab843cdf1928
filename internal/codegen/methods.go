package codegen

import (
	"sort"
	"strings"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
)

// methodEmit lowers one method call given the receiver and argument temps.
type methodEmit func(c *Context, w *cbuf.Writer, recv string, args []string) string

type methodEntry struct {
	arity int
	emit  methodEmit
}

// kindDispatch builds an emitter that branches on the receiver's runtime
// kind. Source methods like slice or close exist on multiple unrelated kinds;
// the ladder picks the kind-specific helper.
func kindDispatch(byKind map[string]string, fallback string) methodEmit {
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	// deterministic ladder order
	sort.Strings(kinds)
	return func(c *Context, w *cbuf.Writer, recv string, args []string) string {
		t := c.newTmp()
		w.Linef("HmlValue %s;", t)
		w.Linef("switch (hml_kind(%s)) {", recv)
		for _, k := range kinds {
			w.Linef("case %s: %s = %s(%s); break;", k, t, byKind[k], joinArgs(recv, args))
		}
		if fallback != "" {
			w.Linef("default: %s = %s(%s); break;", t, fallback, joinArgs(recv, args))
		} else {
			w.Linef("default: %s = hml_val_null(); break;", t)
		}
		w.Line("}")
		return t
	}
}

// mono builds an emitter for a method with one helper regardless of kind.
func mono(helper string) methodEmit {
	return func(c *Context, w *cbuf.Writer, recv string, args []string) string {
		t := c.newTmp()
		w.Linef("HmlValue %s = %s(%s);", t, helper, joinArgs(recv, args))
		return t
	}
}

func joinArgs(recv string, args []string) string {
	if len(args) == 0 {
		return recv
	}
	return recv + ", " + strings.Join(args, ", ")
}

// methods is the static (method, arity) table. Unknown methods fall through
// to the dynamic hml_call_method helper.
var methods = map[string][]methodEntry{
	"slice": {{2, kindDispatch(map[string]string{
		"HML_KIND_STRING": "hml_string_slice",
		"HML_KIND_ARRAY":  "hml_array_slice",
	}, "hml_call_method_slice")}},
	"find": {{1, kindDispatch(map[string]string{
		"HML_KIND_STRING": "hml_string_find",
		"HML_KIND_ARRAY":  "hml_array_find",
	}, "")}},
	"contains": {{1, kindDispatch(map[string]string{
		"HML_KIND_STRING": "hml_string_contains",
		"HML_KIND_ARRAY":  "hml_array_contains",
	}, "")}},
	"close": {{0, kindDispatch(map[string]string{
		"HML_KIND_FILE":    "hml_file_close",
		"HML_KIND_CHANNEL": "hml_channel_close",
	}, "")}},
	"length": {{0, kindDispatch(map[string]string{
		"HML_KIND_STRING": "hml_length",
		"HML_KIND_ARRAY":  "hml_length",
		"HML_KIND_BUFFER": "hml_length",
	}, "")}},

	// arrays
	"push": {{1, mono("hml_array_push_ret")}},
	"pop":  {{0, mono("hml_array_pop")}},
	"join": {{1, mono("hml_array_join")}},

	// strings
	"split":       {{1, mono("hml_string_split")}},
	"trim":        {{0, mono("hml_string_trim")}},
	"upper":       {{0, mono("hml_string_upper")}},
	"lower":       {{0, mono("hml_string_lower")}},
	"starts_with": {{1, mono("hml_string_starts_with")}},
	"ends_with":   {{1, mono("hml_string_ends_with")}},
	"replace":     {{2, mono("hml_string_replace")}},

	// objects
	"keys":   {{0, mono("hml_object_keys")}},
	"values": {{0, mono("hml_object_values")}},
	"has":    {{1, mono("hml_object_has")}},
	"remove": {{1, mono("hml_object_remove")}},

	// channels
	"send": {{1, mono("hml_channel_send")}},
	"recv": {{0, mono("hml_channel_recv")}},

	// files
	"read":  {{1, mono("hml_file_read")}},
	"write": {{1, mono("hml_file_write")}},
	"seek":  {{1, mono("hml_file_seek")}},
}

// methodCall dispatches recv.method(args): the static table first, then the
// reflective call_method helper.
func (c *Context) methodCall(w *cbuf.Writer, x *ast.MethodCall) string {
	recv := c.Expr(w, x.Recv)
	args := make([]string, 0, len(x.Args))
	for _, a := range x.Args {
		args = append(args, c.Expr(w, a))
	}

	var t string
	if emit, ok := lookupMethod(x.Method, len(x.Args)); ok {
		t = emit(c, w, recv, args)
	} else {
		argv := "NULL"
		if len(args) > 0 {
			argv = c.newTmp() + "_args"
			w.Linef("HmlValue %s[] = { %s };", argv, strings.Join(args, ", "))
		}
		t = c.newTmp()
		w.Linef("HmlValue %s = hml_call_method(%s, \"%s\", %s, %d);", t, recv, cEscape(x.Method), argv, len(args))
	}

	w.Linef("hml_release(%s);", recv)
	for _, a := range args {
		w.Linef("hml_release(%s);", a)
	}
	return t
}

func lookupMethod(name string, nargs int) (methodEmit, bool) {
	entries, ok := methods[name]
	if !ok {
		return nil, false
	}
	for _, e := range entries {
		if e.arity == nargs {
			return e.emit, true
		}
	}
	return nil, false
}
