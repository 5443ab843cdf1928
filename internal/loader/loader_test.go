package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/diag"
	"github.com/hemlock-lang/hmlc/internal/parser/parsertest"
)

// writeTree extracts a txtar archive into a fresh temp dir.
func writeTree(t *testing.T, archive string) string {
	t.Helper()
	dir := t.TempDir()
	ar := txtar.Parse([]byte(archive))
	for _, f := range ar.Files {
		path := filepath.Join(dir, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	}
	return dir
}

func funcDecl(name string, nParams int) *ast.FuncDecl {
	fn := &ast.FuncExpr{}
	for i := 0; i < nParams; i++ {
		fn.Params = append(fn.Params, ast.Param{Name: "p"})
	}
	return &ast.FuncDecl{Name: name, Fn: fn}
}

func TestLoadCollectsExports(t *testing.T) {
	dir := writeTree(t, `
-- util.hml --
#ast util
`)
	reg := parsertest.NewRegistry()
	reg.Add("util", []ast.Stmt{
		&ast.Export{Decl: &ast.Let{Name: "version", Init: &ast.IntLit{Value: 1}}},
		funcDecl("helper", 2),
		funcDecl("_private", 0),
	})

	ld := New(reg.Func())
	m, err := ld.Load("./util", dir)
	require.NoError(t, err)
	assert.Equal(t, Loaded, m.State)
	assert.Equal(t, "_mod0_", m.Prefix)

	want := []*ExportedSymbol{
		{Name: "version", Mangled: "_mod0_version"},
		{Name: "helper", Mangled: "_mod0_fn_helper", IsFunction: true, NumParams: 2},
		{Name: "_private", Mangled: "_mod0_fn__private", IsFunction: true},
	}
	if diff := cmp.Diff(want, m.Exports); diff != "" {
		t.Errorf("exports mismatch (-want +got):\n%s", diff)
	}
}

func TestCacheDedupesSpellings(t *testing.T) {
	dir := writeTree(t, `
-- lib.hml --
#ast lib
`)
	reg := parsertest.NewRegistry()
	reg.Add("lib", nil)

	ld := New(reg.Func())
	a, err := ld.Load("./lib", dir)
	require.NoError(t, err)
	b, err := ld.Load("lib", dir)
	require.NoError(t, err)
	c, err := ld.Load(filepath.Join(dir, "lib.hml"), "")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Same(t, a, c)
	assert.Len(t, ld.Modules(), 1)
}

func TestCircularDependencyFails(t *testing.T) {
	dir := writeTree(t, `
-- a.hml --
#ast a
-- b.hml --
#ast b
`)
	reg := parsertest.NewRegistry()
	reg.Add("a", []ast.Stmt{&ast.Import{Path: "./b", Names: []ast.ImportName{{Local: "g", Original: "g"}}}})
	reg.Add("b", []ast.Stmt{&ast.Import{Path: "./a", Names: []ast.ImportName{{Local: "f", Original: "f"}}}})

	ld := New(reg.Func())
	_, err := ld.Load("./a", dir)
	require.Error(t, err)
	rep, ok := diag.AsReport(err)
	require.True(t, ok, "error carries a structured report")
	assert.Equal(t, diag.MOD002, rep.Code)
}

func TestUnknownExportIsTolerant(t *testing.T) {
	dir := writeTree(t, `
-- main_dep.hml --
#ast dep
-- app.hml --
#ast app
`)
	reg := parsertest.NewRegistry()
	reg.Add("dep", []ast.Stmt{funcDecl("real", 1)})
	reg.Add("app", []ast.Stmt{&ast.Import{
		Path:  "./main_dep",
		Names: []ast.ImportName{{Local: "missing", Original: "missing"}, {Local: "real", Original: "real"}},
	}})

	ld := New(reg.Func())
	m, err := ld.Load("./app", dir)
	require.NoError(t, err, "unknown export does not abort compilation")

	require.Len(t, m.Imports, 2)
	assert.Equal(t, "", m.Imports[0].Mangled, "unresolved binding stays unmangled")
	assert.Equal(t, "_mod1_fn_real", m.Imports[1].Mangled)
	require.Len(t, ld.Diags, 1)
	assert.Equal(t, diag.MOD004, ld.Diags[0].Code)
}

func TestManglingDisjointAcrossModules(t *testing.T) {
	dir := writeTree(t, `
-- one.hml --
#ast one
-- two.hml --
#ast two
`)
	reg := parsertest.NewRegistry()
	reg.Add("one", []ast.Stmt{funcDecl("f", 0)})
	reg.Add("two", []ast.Stmt{funcDecl("f", 0)})

	ld := New(reg.Func())
	a, err := ld.Load("./one", dir)
	require.NoError(t, err)
	b, err := ld.Load("./two", dir)
	require.NoError(t, err)

	assert.NotEqual(t, a.Exports[0].Mangled, b.Exports[0].Mangled,
		"same name in two modules mangles differently")
}

func TestResolveRules(t *testing.T) {
	dir := writeTree(t, `
-- sub/mod.hml --
#ast m
-- stdlib/io.hml --
#ast m
`)
	reg := parsertest.NewRegistry()
	reg.Add("m", nil)

	ld := New(reg.Func())
	ld.SetStdlibRoot(filepath.Join(dir, "stdlib"))

	abs, err := ld.Resolve("./sub/mod", dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
	assert.Equal(t, "mod.hml", filepath.Base(abs), "suffix appended")

	std, err := ld.Resolve("@stdlib/io", "")
	require.NoError(t, err)
	assert.Equal(t, "io.hml", filepath.Base(std))
	assert.Contains(t, std, "stdlib")

	verbatim, err := ld.Resolve(filepath.Join(dir, "sub", "mod.hml"), "ignored")
	require.NoError(t, err)
	assert.Equal(t, abs, verbatim, "absolute paths resolve verbatim to the same key")
}

func TestStdlibDiscoveryProbesInOrder(t *testing.T) {
	exeDir := t.TempDir()
	cwd := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(cwd, "stdlib"), 0o755))

	root, err := DiscoverStdlibRoot(exeDir, cwd)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "stdlib"), root)

	// an exe-adjacent stdlib wins over the cwd one
	require.NoError(t, os.MkdirAll(filepath.Join(exeDir, "stdlib"), 0o755))
	root, err = DiscoverStdlibRoot(exeDir, cwd)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exeDir, "stdlib"), root)
}

func TestDiamondImportLoadsOnce(t *testing.T) {
	dir := writeTree(t, `
-- top.hml --
#ast top
-- left.hml --
#ast left
-- right.hml --
#ast right
-- base.hml --
#ast base
`)
	reg := parsertest.NewRegistry()
	reg.Add("top", []ast.Stmt{
		&ast.Import{Path: "./left", Names: []ast.ImportName{{Local: "l", Original: "l"}}},
		&ast.Import{Path: "./right", Names: []ast.ImportName{{Local: "r", Original: "r"}}},
	})
	reg.Add("left", []ast.Stmt{
		&ast.Import{Path: "./base", Names: []ast.ImportName{{Local: "b", Original: "b"}}},
		funcDecl("l", 0),
	})
	reg.Add("right", []ast.Stmt{
		&ast.Import{Path: "./base", Names: []ast.ImportName{{Local: "b", Original: "b"}}},
		funcDecl("r", 0),
	})
	reg.Add("base", []ast.Stmt{funcDecl("b", 0)})

	ld := New(reg.Func())
	_, err := ld.Load("./top", dir)
	require.NoError(t, err)
	assert.Len(t, ld.Modules(), 4, "base is cached, not reloaded")
}
