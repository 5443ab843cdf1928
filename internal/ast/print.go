package ast

import (
	"fmt"
	"strings"
)

// Print renders a compact, stable textual form of a statement list. It is
// used by diagnostics and tests; it is not a pretty-printer of the surface
// syntax.
func Print(stmts []Stmt) string {
	var b strings.Builder
	for _, s := range stmts {
		printStmt(&b, s, 0)
	}
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

func printStmt(b *strings.Builder, s Stmt, depth int) {
	indent(b, depth)
	switch x := s.(type) {
	case *Let:
		fmt.Fprintf(b, "let %s = %s\n", x.Name, ExprString(x.Init))
	case *Const:
		fmt.Fprintf(b, "const %s = %s\n", x.Name, ExprString(x.Init))
	case *ExprStmt:
		fmt.Fprintf(b, "expr %s\n", ExprString(x.X))
	case *If:
		fmt.Fprintf(b, "if %s\n", ExprString(x.Cond))
		printStmts(b, x.Then, depth+1)
		if len(x.Else) > 0 {
			indent(b, depth)
			b.WriteString("else\n")
			printStmts(b, x.Else, depth+1)
		}
	case *While:
		fmt.Fprintf(b, "while %s\n", ExprString(x.Cond))
		printStmts(b, x.Body, depth+1)
	case *For:
		b.WriteString("for\n")
		printStmts(b, x.Body, depth+1)
	case *ForIn:
		if x.Key != "" {
			fmt.Fprintf(b, "for-in %s, %s in %s\n", x.Key, x.Value, ExprString(x.Iter))
		} else {
			fmt.Fprintf(b, "for-in %s in %s\n", x.Value, ExprString(x.Iter))
		}
		printStmts(b, x.Body, depth+1)
	case *Block:
		b.WriteString("block\n")
		printStmts(b, x.Body, depth+1)
	case *Return:
		if x.Value != nil {
			fmt.Fprintf(b, "return %s\n", ExprString(x.Value))
		} else {
			b.WriteString("return\n")
		}
	case *Break:
		b.WriteString("break\n")
	case *Continue:
		b.WriteString("continue\n")
	case *Try:
		b.WriteString("try\n")
		printStmts(b, x.Body, depth+1)
		if x.HasCatch {
			indent(b, depth)
			fmt.Fprintf(b, "catch %s\n", x.CatchName)
			printStmts(b, x.Catch, depth+1)
		}
		if x.HasFin {
			indent(b, depth)
			b.WriteString("finally\n")
			printStmts(b, x.Finally, depth+1)
		}
	case *Throw:
		fmt.Fprintf(b, "throw %s\n", ExprString(x.Value))
	case *Switch:
		fmt.Fprintf(b, "switch %s\n", ExprString(x.Subject))
		for _, cs := range x.Cases {
			indent(b, depth+1)
			fmt.Fprintf(b, "case %s\n", ExprString(cs.Value))
			printStmts(b, cs.Body, depth+2)
		}
		if x.HasDef {
			indent(b, depth+1)
			b.WriteString("default\n")
			printStmts(b, x.Default, depth+2)
		}
	case *Defer:
		fmt.Fprintf(b, "defer %s\n", ExprString(x.X))
	case *DefineObject:
		fmt.Fprintf(b, "define-object %s (%d fields)\n", x.Name, len(x.Fields))
	case *Enum:
		fmt.Fprintf(b, "enum %s (%d variants)\n", x.Name, len(x.Variants))
	case *Import:
		switch {
		case x.Namespace != "":
			fmt.Fprintf(b, "import * as %s from %q\n", x.Namespace, x.Path)
		case len(x.Names) > 0:
			names := make([]string, len(x.Names))
			for i, n := range x.Names {
				if n.Local != n.Original {
					names[i] = n.Original + " as " + n.Local
				} else {
					names[i] = n.Local
				}
			}
			fmt.Fprintf(b, "import { %s } from %q\n", strings.Join(names, ", "), x.Path)
		default:
			fmt.Fprintf(b, "import %q\n", x.Path)
		}
	case *Export:
		if x.Decl != nil {
			b.WriteString("export ")
			// re-indent the wrapped declaration inline
			var inner strings.Builder
			printStmt(&inner, x.Decl, 0)
			b.WriteString(inner.String())
		} else {
			fmt.Fprintf(b, "export { %s }\n", strings.Join(x.Names, ", "))
		}
	case *FuncDecl:
		fmt.Fprintf(b, "fn %s(%s)\n", x.Name, paramNames(x.Fn.Params))
		printStmts(b, x.Fn.Body, depth+1)
	case *ImportFFI:
		fmt.Fprintf(b, "import ffi %q\n", x.Library)
	case *ExternFn:
		fmt.Fprintf(b, "extern fn %s/%d\n", x.Name, len(x.Params))
	default:
		b.WriteString("<unknown stmt>\n")
	}
}

func printStmts(b *strings.Builder, list []Stmt, depth int) {
	for _, s := range list {
		printStmt(b, s, depth)
	}
}

func paramNames(params []Param) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

// ExprString renders one expression on one line.
func ExprString(e Expr) string {
	switch x := e.(type) {
	case nil:
		return "<nil>"
	case *IntLit:
		return fmt.Sprintf("%d", x.Value)
	case *FloatLit:
		return fmt.Sprintf("%g", x.Value)
	case *BoolLit:
		return fmt.Sprintf("%t", x.Value)
	case *StringLit:
		return fmt.Sprintf("%q", x.Value)
	case *RuneLit:
		return fmt.Sprintf("%q", x.Value)
	case *NullLit:
		return "null"
	case *Ident:
		return x.Name
	case *ArrayLit:
		parts := make([]string, len(x.Elems))
		for i, el := range x.Elems {
			parts[i] = ExprString(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *ObjectLit:
		parts := make([]string, len(x.Fields))
		for i, f := range x.Fields {
			parts[i] = f.Key + ": " + ExprString(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Binary:
		return "(" + ExprString(x.Left) + " " + x.Op + " " + ExprString(x.Right) + ")"
	case *Unary:
		return x.Op + ExprString(x.Operand)
	case *Ternary:
		return "(" + ExprString(x.Cond) + " ? " + ExprString(x.Then) + " : " + ExprString(x.Else) + ")"
	case *Call:
		return ExprString(x.Callee) + "(" + exprList(x.Args) + ")"
	case *MethodCall:
		return ExprString(x.Recv) + "." + x.Method + "(" + exprList(x.Args) + ")"
	case *Index:
		return ExprString(x.Recv) + "[" + ExprString(x.Idx) + "]"
	case *IndexAssign:
		return ExprString(x.Recv) + "[" + ExprString(x.Idx) + "] = " + ExprString(x.Value)
	case *GetProp:
		return ExprString(x.Recv) + "." + x.Name
	case *SetProp:
		return ExprString(x.Recv) + "." + x.Name + " = " + ExprString(x.Value)
	case *Assign:
		return x.Name + " = " + ExprString(x.Value)
	case *FuncExpr:
		return "fn(" + paramNames(x.Params) + ") {...}"
	case *Interp:
		var b strings.Builder
		b.WriteString(`interp"`)
		for _, p := range x.Parts {
			if p.Expr != nil {
				b.WriteString("{" + ExprString(p.Expr) + "}")
			} else {
				b.WriteString(p.Lit)
			}
		}
		b.WriteString(`"`)
		return b.String()
	case *Await:
		return "await " + ExprString(x.Operand)
	case *NullCoalesce:
		return "(" + ExprString(x.Left) + " ?? " + ExprString(x.Right) + ")"
	case *OptChain:
		switch x.Kind {
		case OptProp:
			return ExprString(x.Recv) + "?." + x.Name
		case OptIndex:
			return ExprString(x.Recv) + "?.[" + ExprString(x.Idx) + "]"
		default:
			return ExprString(x.Recv) + "?.(" + exprList(x.Args) + ")"
		}
	case *IncDec:
		if x.Prefix {
			return x.Op + ExprString(x.Target)
		}
		return ExprString(x.Target) + x.Op
	}
	return "<unknown expr>"
}

func exprList(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}
