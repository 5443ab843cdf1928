package pipeline

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/diag"
	"github.com/hemlock-lang/hmlc/internal/parser/parsertest"
)

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func intLit(v int64) *ast.IntLit { return &ast.IntLit{Value: v} }

func strLit(s string) *ast.StringLit { return &ast.StringLit{Value: s} }

func fnExpr(params []string, body ...ast.Stmt) *ast.FuncExpr {
	f := &ast.FuncExpr{Body: body}
	for _, p := range params {
		f.Params = append(f.Params, ast.Param{Name: p})
	}
	return f
}

func call(callee string, args ...ast.Expr) *ast.Call {
	return &ast.Call{Callee: ident(callee), Args: args}
}

// fixtures registers every AST fixture the yaml manifest references.
func fixtures() *parsertest.Registry {
	reg := parsertest.NewRegistry()

	reg.Add("hello", []ast.Stmt{
		&ast.Let{Name: "name", Init: strLit("world")},
		&ast.ExprStmt{X: call("print", &ast.Interp{Parts: []ast.InterpPart{
			{Lit: "hello, "},
			{Expr: ident("name")},
			{Lit: "!"},
		}})},
	})

	inc := fnExpr(nil, &ast.ExprStmt{X: &ast.Assign{Name: "n", Value: &ast.Binary{
		Op: "+", Left: ident("n"), Right: intLit(1),
	}}})
	get := fnExpr(nil, &ast.Return{Value: ident("n")})
	reg.Add("counter", []ast.Stmt{
		&ast.FuncDecl{Name: "make_counter", Fn: fnExpr(nil,
			&ast.Let{Name: "n", Init: intLit(0)},
			&ast.Let{Name: "inc", Init: inc},
			&ast.Let{Name: "get", Init: get},
			&ast.Return{Value: &ast.ArrayLit{Elems: []ast.Expr{ident("inc"), ident("get")}}},
		)},
		&ast.ExprStmt{X: call("make_counter")},
	})

	reg.Add("lib", []ast.Stmt{
		&ast.Export{Decl: &ast.Let{Name: "greeting", Init: strLit("hi")}},
		&ast.FuncDecl{Name: "double", Fn: fnExpr([]string{"x"},
			&ast.Return{Value: &ast.Binary{Op: "+", Left: ident("x"), Right: ident("x")}},
		)},
	})
	reg.Add("app", []ast.Stmt{
		&ast.Import{Path: "./lib", Names: []ast.ImportName{
			{Local: "double", Original: "double"},
			{Local: "greeting", Original: "greeting"},
		}},
		&ast.Let{Name: "r", Init: call("double", intLit(2))},
		&ast.ExprStmt{X: call("print", ident("greeting"))},
	})

	reg.Add("tasks", []ast.Stmt{
		&ast.FuncDecl{Name: "work", Fn: fnExpr(nil, &ast.Return{Value: intLit(7)})},
		&ast.Let{Name: "t", Init: call("spawn", ident("work"))},
		&ast.Let{Name: "r", Init: call("join", ident("t"))},
	})

	reg.Add("deferthrow", []ast.Stmt{
		&ast.FuncDecl{Name: "risky", Fn: fnExpr([]string{"f"},
			&ast.Defer{X: call("f", strLit("first"))},
			&ast.Defer{X: call("f", strLit("second"))},
			&ast.Throw{Value: strLit("boom")},
		)},
		&ast.Try{
			Body:      []ast.Stmt{&ast.ExprStmt{X: call("risky", call("args"))}},
			HasCatch:  true,
			CatchName: "e",
			Catch:     []ast.Stmt{&ast.ExprStmt{X: call("print", ident("e"))}},
		},
	})

	reg.Add("finret", []ast.Stmt{
		&ast.FuncDecl{Name: "one", Fn: fnExpr(nil,
			&ast.Try{
				Body:    []ast.Stmt{&ast.Return{Value: intLit(1)}},
				HasFin:  true,
				Finally: []ast.Stmt{&ast.ExprStmt{X: call("print", strLit("f"))}},
			},
		)},
		&ast.ExprStmt{X: call("print", call("one"))},
	})

	reg.Add("forin", []ast.Stmt{
		&ast.Let{Name: "obj", Init: &ast.ObjectLit{Fields: []ast.ObjectField{
			{Key: "a", Value: intLit(1)},
		}}},
		&ast.ForIn{Key: "k", Value: "v", Iter: ident("obj"), Body: []ast.Stmt{
			&ast.ExprStmt{X: call("print", ident("k"))},
		}},
	})

	reg.Add("ffiprog", []ast.Stmt{
		&ast.ImportFFI{Library: "libm.so.6"},
		&ast.ExternFn{
			Name:   "cos",
			Params: []ast.Param{{Name: "x", Annot: &ast.TypeAnnot{Kind: ast.TypeF64}}},
			Ret:    &ast.TypeAnnot{Kind: ast.TypeF64},
		},
		&ast.Let{Name: "y", Init: call("cos", &ast.FloatLit{Value: 2})},
	})

	return reg
}

type caseSpec struct {
	Name         string            `yaml:"name"`
	Main         string            `yaml:"main"`
	Files        map[string]string `yaml:"files"`
	WantContains []string          `yaml:"want_contains"`
	WantOrder    []string          `yaml:"want_order"`
}

type caseFile struct {
	Cases []caseSpec `yaml:"cases"`
}

// compile runs the pipeline for a registered main fixture, materializing any
// module fixtures next to it.
func compile(t *testing.T, reg *parsertest.Registry, mainKey string, files map[string]string) (string, *Result, error) {
	t.Helper()
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.hml")
	require.NoError(t, os.WriteFile(mainPath, []byte("#ast "+mainKey+"\n"), 0o644))
	for name, key := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#ast "+key+"\n"), 0o644))
	}

	var out strings.Builder
	res, err := Run(Config{Parse: reg.Func()}, Source{Path: mainPath}, &out)
	return out.String(), res, err
}

func TestManifestCases(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "cases.yaml"))
	require.NoError(t, err)
	var manifest caseFile
	require.NoError(t, yaml.Unmarshal(data, &manifest))
	require.NotEmpty(t, manifest.Cases)

	reg := fixtures()
	for _, tc := range manifest.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			out, _, err := compile(t, reg, tc.Main, tc.Files)
			require.NoError(t, err)
			for _, frag := range tc.WantContains {
				assert.Contains(t, out, frag)
			}
			last := -1
			for _, frag := range tc.WantOrder {
				idx := strings.Index(out, frag)
				require.GreaterOrEqual(t, idx, 0, "fragment %q missing", frag)
				assert.Greater(t, idx, last, "fragment %q out of order", frag)
				last = idx
			}
		})
	}
}

func TestCycleProducesNoOutput(t *testing.T) {
	reg := parsertest.NewRegistry()
	reg.Add("maincycle", []ast.Stmt{
		&ast.Import{Path: "./a", Names: []ast.ImportName{{Local: "f", Original: "f"}}},
	})
	reg.Add("cyc_a", []ast.Stmt{
		&ast.Import{Path: "./b", Names: []ast.ImportName{{Local: "g", Original: "g"}}},
		&ast.FuncDecl{Name: "f", Fn: fnExpr(nil)},
	})
	reg.Add("cyc_b", []ast.Stmt{
		&ast.Import{Path: "./a", Names: []ast.ImportName{{Local: "f", Original: "f"}}},
		&ast.FuncDecl{Name: "g", Fn: fnExpr(nil)},
	})

	out, _, err := compile(t, reg, "maincycle", map[string]string{
		"a.hml": "cyc_a",
		"b.hml": "cyc_b",
	})
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, diag.MOD002, rep.Code)
	assert.Empty(t, out, "no partial C output that would link")
}

func TestConstReassignmentAbortsAssembly(t *testing.T) {
	reg := parsertest.NewRegistry()
	reg.Add("constprog", []ast.Stmt{
		&ast.Const{Name: "limit", Init: intLit(10)},
		&ast.ExprStmt{X: &ast.Assign{Name: "limit", Value: intLit(11)}},
	})

	out, res, err := compile(t, reg, "constprog", nil)
	require.Error(t, err)
	assert.Empty(t, out)
	var found bool
	for _, r := range res.Diags {
		if r.Code == diag.CGN001 {
			found = true
		}
	}
	assert.True(t, found)
}

func TestModuleInitRunsOnce(t *testing.T) {
	reg := fixtures()
	out, _, err := compile(t, reg, "app", map[string]string{"lib.hml": "lib"})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "_mod0_init_done = 1;"),
		"the init body marks itself done exactly once")
	assert.Contains(t, out, "if (_mod0_init_done) { return; }")

	initCall := strings.Index(out, "_mod0_init();")
	mainBody := strings.Index(out, "int main(int argc, char **argv)")
	require.GreaterOrEqual(t, initCall, 0)
	require.GreaterOrEqual(t, mainBody, 0)
	assert.Greater(t, initCall, mainBody, "main calls the import's init before its own statements")
}

// Every user-defined callable carries the closure-env first parameter so one
// function pointer type dispatches all of them.
func TestUniformABIAcrossAllCallables(t *testing.T) {
	reg := fixtures()
	out, _, err := compile(t, reg, "counter", nil)
	require.NoError(t, err)

	defRe := regexp.MustCompile(`(?m)^(?:static )?HmlValue (\w+)\(([^)]*)\) \{$`)
	matches := defRe.FindAllStringSubmatch(out, -1)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Equal(t, "HmlClosureEnv *env, HmlValue *args, int argc", m[2],
			"callable %s must use the uniform signature", m[1])
	}
}

func TestMainFileNamesAvoidLibcCollisions(t *testing.T) {
	reg := parsertest.NewRegistry()
	reg.Add("libcnames", []ast.Stmt{
		&ast.Let{Name: "exit", Init: intLit(1)},
		&ast.FuncDecl{Name: "fork", Fn: fnExpr(nil, &ast.Return{Value: ident("exit")})},
	})

	out, _, err := compile(t, reg, "libcnames", nil)
	require.NoError(t, err)

	assert.Contains(t, out, "static HmlValue _main_exit;")
	assert.Contains(t, out, "HmlValue _main_fn_fork(")
	assert.NotContains(t, out, "static HmlValue exit;")
	assert.NotRegexp(t, `(?m)^HmlValue fork\(`, out)
}

func TestDeterministicOutput(t *testing.T) {
	reg := fixtures()
	a, _, err := compile(t, reg, "counter", nil)
	require.NoError(t, err)
	b, _, err := compile(t, reg, "counter", nil)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical inputs produce byte-identical C")
}

func TestPhaseTimingsCollected(t *testing.T) {
	reg := fixtures()
	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.hml")
	require.NoError(t, os.WriteFile(mainPath, []byte("#ast hello\n"), 0o644))

	var out strings.Builder
	res, err := Run(Config{Parse: reg.Func(), Timings: true}, Source{Path: mainPath}, &out)
	require.NoError(t, err)
	for _, phase := range []string{"parse", "prescan", "modules", "functions", "main", "closures", "assemble"} {
		_, ok := res.PhaseTimings[phase]
		assert.True(t, ok, "phase %s timed", phase)
	}
}
