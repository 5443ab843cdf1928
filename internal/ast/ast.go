// Package ast defines the abstract syntax tree the code generator consumes.
//
// The tree is produced by the parser collaborator and treated as read-only by
// every downstream phase. Nodes own their children; Clone is structural.
package ast

import (
	"github.com/hemlock-lang/hmlc/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	Position() token.Pos
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// TypeKind enumerates the type-annotation kinds the surface language knows.
type TypeKind int

const (
	TypeAny TypeKind = iota
	TypeBool
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeF32
	TypeF64
	TypeRune
	TypeString
	TypeArray  // Elem holds the element annotation
	TypeObject // Name holds the registered object type name
)

// TypeAnnot is a type annotation tree attached to let/const declarations and
// extern fn signatures.
type TypeAnnot struct {
	Kind TypeKind
	Elem *TypeAnnot // for TypeArray
	Name string     // for TypeObject
}

// CName returns the runtime type-enum constant for an annotation kind.
func (t *TypeAnnot) CName() string {
	switch t.Kind {
	case TypeBool:
		return "HML_TYPE_BOOL"
	case TypeI8:
		return "HML_TYPE_I8"
	case TypeI16:
		return "HML_TYPE_I16"
	case TypeI32:
		return "HML_TYPE_I32"
	case TypeI64:
		return "HML_TYPE_I64"
	case TypeU8:
		return "HML_TYPE_U8"
	case TypeU16:
		return "HML_TYPE_U16"
	case TypeU32:
		return "HML_TYPE_U32"
	case TypeU64:
		return "HML_TYPE_U64"
	case TypeF32:
		return "HML_TYPE_F32"
	case TypeF64:
		return "HML_TYPE_F64"
	case TypeRune:
		return "HML_TYPE_RUNE"
	case TypeString:
		return "HML_TYPE_STRING"
	case TypeArray:
		return "HML_TYPE_ARRAY"
	case TypeObject:
		return "HML_TYPE_OBJECT"
	default:
		return "HML_TYPE_ANY"
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// IntLit is an integer literal. Values fitting in 32 bits lower to i32,
// everything else to i64.
type IntLit struct {
	Value int64
	Pos   token.Pos
}

// FloatLit is a floating-point literal (always f64 at the surface).
type FloatLit struct {
	Value float64
	Pos   token.Pos
}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
	Pos   token.Pos
}

// StringLit is a plain (non-interpolated) string literal.
type StringLit struct {
	Value string
	Pos   token.Pos
}

// RuneLit is a character literal.
type RuneLit struct {
	Value rune
	Pos   token.Pos
}

// NullLit is the null literal.
type NullLit struct {
	Pos token.Pos
}

// Ident is a bare identifier reference.
type Ident struct {
	Name string
	Pos  token.Pos
}

// ArrayLit is [e1, e2, ...].
type ArrayLit struct {
	Elems []Expr
	Pos   token.Pos
}

// ObjectField is a single key: value pair of an object literal.
type ObjectField struct {
	Key   string
	Value Expr
}

// ObjectLit is { k1: v1, ... }.
type ObjectLit struct {
	Fields []ObjectField
	Pos    token.Pos
}

// Binary is a binary operator application. Op is the surface operator token
// ("+", "==", "&&", "<<", ...).
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
	Pos   token.Pos
}

// Unary is a prefix operator application ("-", "!", "~").
type Unary struct {
	Op      string
	Operand Expr
	Pos     token.Pos
}

// Ternary is cond ? then : else.
type Ternary struct {
	Cond Expr
	Then Expr
	Else Expr
	Pos  token.Pos
}

// Call is callee(args...). Method calls parse into MethodCall instead.
type Call struct {
	Callee Expr
	Args   []Expr
	Pos    token.Pos
}

// MethodCall is recv.name(args...).
type MethodCall struct {
	Recv   Expr
	Method string
	Args   []Expr
	Pos    token.Pos
}

// Index is recv[idx].
type Index struct {
	Recv Expr
	Idx  Expr
	Pos  token.Pos
}

// IndexAssign is recv[idx] = value.
type IndexAssign struct {
	Recv  Expr
	Idx   Expr
	Value Expr
	Pos   token.Pos
}

// GetProp is recv.name.
type GetProp struct {
	Recv Expr
	Name string
	Pos  token.Pos
}

// SetProp is recv.name = value.
type SetProp struct {
	Recv  Expr
	Name  string
	Value Expr
	Pos   token.Pos
}

// Assign is name = value.
type Assign struct {
	Name  string
	Value Expr
	Pos   token.Pos
}

// Param is a single function parameter with an optional annotation.
type Param struct {
	Name  string
	Annot *TypeAnnot
}

// FuncExpr is fn(params) { body }. Named function declarations wrap one.
type FuncExpr struct {
	Params []Param
	Body   []Stmt
	Pos    token.Pos
}

// InterpPart is one segment of an interpolated string: either a literal
// chunk (Expr nil) or an embedded expression (Lit unused).
type InterpPart struct {
	Lit  string
	Expr Expr
}

// Interp is an interpolated string literal "a {x} b".
type Interp struct {
	Parts []InterpPart
	Pos   token.Pos
}

// Await joins the task produced by the operand.
type Await struct {
	Operand Expr
	Pos     token.Pos
}

// NullCoalesce is a ?? b.
type NullCoalesce struct {
	Left  Expr
	Right Expr
	Pos   token.Pos
}

// OptChainKind discriminates the three optional-chain forms.
type OptChainKind int

const (
	OptProp  OptChainKind = iota // obj?.name
	OptIndex                     // obj?.[idx]
	OptCall                      // f?.(args)
)

// OptChain is an optional-chain expression; Name, Idx and Args are populated
// according to Kind.
type OptChain struct {
	Kind OptChainKind
	Recv Expr
	Name string
	Idx  Expr
	Args []Expr
	Pos  token.Pos
}

// IncDec is ++x, --x, x++ or x--. Target is usually an Ident; other l-values
// are unsupported by the emitter.
type IncDec struct {
	Op     string // "++" or "--"
	Prefix bool
	Target Expr
	Pos    token.Pos
}

func (e *IntLit) Position() token.Pos       { return e.Pos }
func (e *FloatLit) Position() token.Pos     { return e.Pos }
func (e *BoolLit) Position() token.Pos      { return e.Pos }
func (e *StringLit) Position() token.Pos    { return e.Pos }
func (e *RuneLit) Position() token.Pos      { return e.Pos }
func (e *NullLit) Position() token.Pos      { return e.Pos }
func (e *Ident) Position() token.Pos        { return e.Pos }
func (e *ArrayLit) Position() token.Pos     { return e.Pos }
func (e *ObjectLit) Position() token.Pos    { return e.Pos }
func (e *Binary) Position() token.Pos       { return e.Pos }
func (e *Unary) Position() token.Pos        { return e.Pos }
func (e *Ternary) Position() token.Pos      { return e.Pos }
func (e *Call) Position() token.Pos         { return e.Pos }
func (e *MethodCall) Position() token.Pos   { return e.Pos }
func (e *Index) Position() token.Pos        { return e.Pos }
func (e *IndexAssign) Position() token.Pos  { return e.Pos }
func (e *GetProp) Position() token.Pos      { return e.Pos }
func (e *SetProp) Position() token.Pos      { return e.Pos }
func (e *Assign) Position() token.Pos       { return e.Pos }
func (e *FuncExpr) Position() token.Pos     { return e.Pos }
func (e *Interp) Position() token.Pos       { return e.Pos }
func (e *Await) Position() token.Pos        { return e.Pos }
func (e *NullCoalesce) Position() token.Pos { return e.Pos }
func (e *OptChain) Position() token.Pos     { return e.Pos }
func (e *IncDec) Position() token.Pos       { return e.Pos }

func (*IntLit) exprNode()       {}
func (*FloatLit) exprNode()     {}
func (*BoolLit) exprNode()      {}
func (*StringLit) exprNode()    {}
func (*RuneLit) exprNode()      {}
func (*NullLit) exprNode()      {}
func (*Ident) exprNode()        {}
func (*ArrayLit) exprNode()     {}
func (*ObjectLit) exprNode()    {}
func (*Binary) exprNode()       {}
func (*Unary) exprNode()        {}
func (*Ternary) exprNode()      {}
func (*Call) exprNode()         {}
func (*MethodCall) exprNode()   {}
func (*Index) exprNode()        {}
func (*IndexAssign) exprNode()  {}
func (*GetProp) exprNode()      {}
func (*SetProp) exprNode()      {}
func (*Assign) exprNode()       {}
func (*FuncExpr) exprNode()     {}
func (*Interp) exprNode()       {}
func (*Await) exprNode()        {}
func (*NullCoalesce) exprNode() {}
func (*OptChain) exprNode()     {}
func (*IncDec) exprNode()       {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Let is let name[: annot] = init.
type Let struct {
	Name  string
	Annot *TypeAnnot
	Init  Expr
	Pos   token.Pos
}

// Const is const name[: annot] = init. Reassignment is a compile-time error.
type Const struct {
	Name  string
	Annot *TypeAnnot
	Init  Expr
	Pos   token.Pos
}

// ExprStmt is an expression evaluated for its side effect.
type ExprStmt struct {
	X   Expr
	Pos token.Pos
}

// If is if cond { Then } else { Else }. Else may be empty.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
	Pos  token.Pos
}

// While is while cond { body }.
type While struct {
	Cond Expr
	Body []Stmt
	Pos  token.Pos
}

// For is the C-style for Init; Cond; Post { body }. Any clause may be nil.
type For struct {
	Init Stmt
	Cond Expr
	Post Stmt
	Body []Stmt
	Pos  token.Pos
}

// ForIn iterates arrays/strings by index and objects by key.
// for (v in xs) binds Value only; for (k, v in xs) binds both.
type ForIn struct {
	Key   string // "" when absent
	Value string
	Iter  Expr
	Body  []Stmt
	Pos   token.Pos
}

// Block is a braced statement list opening a new scope.
type Block struct {
	Body []Stmt
	Pos  token.Pos
}

// Return is return [value].
type Return struct {
	Value Expr // nil for bare return
	Pos   token.Pos
}

// Break exits the innermost loop.
type Break struct {
	Pos token.Pos
}

// Continue restarts the innermost loop.
type Continue struct {
	Pos token.Pos
}

// Try is try { Body } catch (CatchName) { Catch } finally { Finally }.
// Catch and Finally are optional; at least one is present.
type Try struct {
	Body      []Stmt
	CatchName string // "" when the catch clause discards the value
	Catch     []Stmt
	HasCatch  bool
	Finally   []Stmt
	HasFin    bool
	Pos       token.Pos
}

// Throw is throw value.
type Throw struct {
	Value Expr
	Pos   token.Pos
}

// SwitchCase is one case of a switch statement. There is no fallthrough.
type SwitchCase struct {
	Value Expr
	Body  []Stmt
}

// Switch lowers to an if/else-if chain over equality checks.
type Switch struct {
	Subject Expr
	Cases   []SwitchCase
	Default []Stmt
	HasDef  bool
	Pos     token.Pos
}

// Defer schedules X to run at function exit, LIFO.
type Defer struct {
	X   Expr
	Pos token.Pos
}

// ObjectFieldDef is one field of a define-object declaration.
type ObjectFieldDef struct {
	Name     string
	Annot    *TypeAnnot
	Optional bool
	Default  Expr // nil when absent
}

// DefineObject registers a named object shape with the runtime validator.
type DefineObject struct {
	Name   string
	Fields []ObjectFieldDef
	Pos    token.Pos
}

// EnumVariant is one variant of an enum; Value is nil for auto-increment.
type EnumVariant struct {
	Name  string
	Value Expr
}

// Enum materializes an object whose fields are the variants.
type Enum struct {
	Name     string
	Variants []EnumVariant
	Pos      token.Pos
}

// ImportName binds one named import: import { Original as Local } from ...
type ImportName struct {
	Local    string
	Original string
}

// Import is an import declaration. Named and namespace imports populate
// Names or Namespace respectively; both empty means a bare side-effect import.
type Import struct {
	Path      string
	Names     []ImportName
	Namespace string // import * as Namespace
	Pos       token.Pos
}

// Export wraps an exported declaration, or re-exports a name list.
type Export struct {
	Decl  Stmt     // export let / export const / export fn (nil for lists)
	Names []string // export { a, b }
	Pos   token.Pos
}

// FuncDecl is a named top-level function definition fn name(params) { body }.
type FuncDecl struct {
	Name string
	Fn   *FuncExpr
	Pos  token.Pos
}

// ImportFFI is import ffi "libname".
type ImportFFI struct {
	Library string
	Pos     token.Pos
}

// ExternFn declares a foreign function resolved from the loaded FFI library.
type ExternFn struct {
	Name   string
	Params []Param
	Ret    *TypeAnnot
	Pos    token.Pos
}

func (s *Let) Position() token.Pos          { return s.Pos }
func (s *Const) Position() token.Pos        { return s.Pos }
func (s *ExprStmt) Position() token.Pos     { return s.Pos }
func (s *If) Position() token.Pos           { return s.Pos }
func (s *While) Position() token.Pos        { return s.Pos }
func (s *For) Position() token.Pos          { return s.Pos }
func (s *ForIn) Position() token.Pos        { return s.Pos }
func (s *Block) Position() token.Pos        { return s.Pos }
func (s *Return) Position() token.Pos       { return s.Pos }
func (s *Break) Position() token.Pos        { return s.Pos }
func (s *Continue) Position() token.Pos     { return s.Pos }
func (s *Try) Position() token.Pos          { return s.Pos }
func (s *Throw) Position() token.Pos        { return s.Pos }
func (s *Switch) Position() token.Pos       { return s.Pos }
func (s *Defer) Position() token.Pos        { return s.Pos }
func (s *DefineObject) Position() token.Pos { return s.Pos }
func (s *Enum) Position() token.Pos         { return s.Pos }
func (s *Import) Position() token.Pos       { return s.Pos }
func (s *Export) Position() token.Pos       { return s.Pos }
func (s *FuncDecl) Position() token.Pos     { return s.Pos }
func (s *ImportFFI) Position() token.Pos    { return s.Pos }
func (s *ExternFn) Position() token.Pos     { return s.Pos }

func (*Let) stmtNode()          {}
func (*Const) stmtNode()        {}
func (*ExprStmt) stmtNode()     {}
func (*If) stmtNode()           {}
func (*While) stmtNode()        {}
func (*For) stmtNode()          {}
func (*ForIn) stmtNode()        {}
func (*Block) stmtNode()        {}
func (*Return) stmtNode()       {}
func (*Break) stmtNode()        {}
func (*Continue) stmtNode()     {}
func (*Try) stmtNode()          {}
func (*Throw) stmtNode()        {}
func (*Switch) stmtNode()       {}
func (*Defer) stmtNode()        {}
func (*DefineObject) stmtNode() {}
func (*Enum) stmtNode()         {}
func (*Import) stmtNode()       {}
func (*Export) stmtNode()       {}
func (*FuncDecl) stmtNode()     {}
func (*ImportFFI) stmtNode()    {}
func (*ExternFn) stmtNode()     {}
