package codegen

import (
	"strings"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
	"github.com/hemlock-lang/hmlc/internal/diag"
)

// ffiType maps a type annotation to the FFI marshalling enum.
func (c *Context) ffiType(ex *ast.ExternFn, t *ast.TypeAnnot) string {
	if t == nil {
		return "HML_FFI_VOID"
	}
	switch t.Kind {
	case ast.TypeBool:
		return "HML_FFI_BOOL"
	case ast.TypeI8:
		return "HML_FFI_I8"
	case ast.TypeI16:
		return "HML_FFI_I16"
	case ast.TypeI32:
		return "HML_FFI_I32"
	case ast.TypeI64:
		return "HML_FFI_I64"
	case ast.TypeU8:
		return "HML_FFI_U8"
	case ast.TypeU16:
		return "HML_FFI_U16"
	case ast.TypeU32:
		return "HML_FFI_U32"
	case ast.TypeU64:
		return "HML_FFI_U64"
	case ast.TypeF32:
		return "HML_FFI_F32"
	case ast.TypeF64:
		return "HML_FFI_F64"
	case ast.TypeString:
		return "HML_FFI_STRING"
	case ast.TypeAny:
		return "HML_FFI_PTR"
	default:
		c.Diags = append(c.Diags, diag.New(diag.FFI001, diag.PhaseFFI, ex.Pos,
			"extern fn %s: type annotation cannot be marshalled", ex.Name))
		return "HML_FFI_PTR"
	}
}

// EmitFFIGlobals declares the library handle and one cached symbol pointer
// per extern fn.
func (c *Context) EmitFFIGlobals() {
	if len(c.FFILibs) == 0 && len(c.Externs) == 0 {
		return
	}
	w := c.Sections.Get(cbuf.SecFFIGlobals)
	w.Line("static HmlValue _ffi_lib;")
	for _, ex := range c.Externs {
		w.Linef("static void *_ffi_ptr_%s = NULL;", ex.Name)
	}
	w.Line("")
}

// EmitExternWrappers emits the forward declarations and implementations of
// every extern fn wrapper. Each wrapper resolves its symbol lazily, builds
// the [ret, params...] types array and forwards to the runtime ffi_call.
func (c *Context) EmitExternWrappers() {
	fwd := c.Sections.Get(cbuf.SecExternFwd)
	impl := c.Sections.Get(cbuf.SecExternImpl)
	for _, ex := range c.Externs {
		cname := "hml_fn_" + ex.Name
		fwd.Linef("%s;", Signature(cname))

		types := make([]string, 0, len(ex.Params)+1)
		types = append(types, c.ffiType(ex, ex.Ret))
		for _, p := range ex.Params {
			types = append(types, c.ffiType(ex, p.Annot))
		}

		impl.Linef("%s {", Signature(cname))
		impl.Indent()
		impl.Linef("if (_ffi_ptr_%s == NULL) {", ex.Name)
		impl.Indent()
		impl.Linef("_ffi_ptr_%s = hml_ffi_resolve(_ffi_lib, \"%s\");", ex.Name, cEscape(ex.Name))
		impl.Dedent()
		impl.Line("}")
		impl.Linef("static const int _types[] = { %s };", strings.Join(types, ", "))
		impl.Linef("return hml_ffi_call(_ffi_ptr_%s, _types, %d, args, argc);", ex.Name, len(ex.Params))
		impl.Dedent()
		impl.Line("}")
		impl.Line("")
	}
}
