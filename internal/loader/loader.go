// Package loader resolves, parses and caches imported modules, collects their
// exports and import bindings, detects dependency cycles, and assigns the
// unique symbol prefixes used for mangling in the emitted C.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/diag"
	"github.com/hemlock-lang/hmlc/internal/parser"
	"github.com/hemlock-lang/hmlc/internal/token"
)

// State is the lifecycle of a cached module.
type State int

const (
	Unloaded State = iota
	Loading        // inserted, imports still compiling; a hit here is a cycle
	Loaded         // exports collected
)

// ExportedSymbol is one name a module makes visible to importers.
type ExportedSymbol struct {
	Name       string
	Mangled    string // module prefix + name, globally unique
	IsFunction bool
	NumParams  int
}

// ImportBinding binds a local name to a symbol of another module.
// An unresolved import (tolerant MOD004) has Mangled == "".
type ImportBinding struct {
	LocalName    string
	OriginalName string
	ModulePrefix string
	Mangled      string
	IsFunction   bool
	NumParams    int
}

// Module is a compiled module in the cache.
type Module struct {
	AbsPath    string
	Prefix     string // "_modN_"
	State      State
	Stmts      []ast.Stmt
	Exports    []*ExportedSymbol
	Imports    []*ImportBinding
	Namespaces map[string]*Module // namespace import local name -> module
	Deps       []*Module          // directly imported modules, in source order
	Next       *Module
}

// MangleValue returns the emitted C name of a module-level value.
func (m *Module) MangleValue(name string) string {
	return m.Prefix + name
}

// MangleFunc returns the emitted C name of a module-level function.
func (m *Module) MangleFunc(name string) string {
	return m.Prefix + "fn_" + name
}

// InitName returns the name of the module's init function.
func (m *Module) InitName() string {
	return m.Prefix + "init"
}

// FindExport looks up an exported symbol by source name.
func (m *Module) FindExport(name string) *ExportedSymbol {
	for _, e := range m.Exports {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Loader owns the process-wide module cache. It is passed explicitly into
// every entry point that needs it; there are no ambient globals.
type Loader struct {
	cache      map[string]*Module // key: canonical absolute path
	head, tail *Module            // discovery order
	nextID     int
	stdlibRoot string
	parse      parser.ParseFunc

	// Diags accumulates tolerant diagnostics (unknown exports).
	Diags []*diag.Report
}

// New returns a loader backed by the given parser collaborator.
func New(parse parser.ParseFunc) *Loader {
	return &Loader{
		cache: make(map[string]*Module),
		parse: parse,
	}
}

// SetStdlibRoot overrides the discovered stdlib root.
func (l *Loader) SetStdlibRoot(root string) {
	l.stdlibRoot = root
}

// Modules returns every cached module in discovery order.
func (l *Loader) Modules() []*Module {
	var out []*Module
	for m := l.head; m != nil; m = m.Next {
		out = append(out, m)
	}
	return out
}

// DiscoverStdlibRoot probes the well-known stdlib locations in order:
// <exe>/stdlib, <exe>/../stdlib, <cwd>/stdlib, then the system path.
func DiscoverStdlibRoot(exeDir, cwd string) (string, error) {
	candidates := []string{
		filepath.Join(exeDir, "stdlib"),
		filepath.Join(exeDir, "..", "stdlib"),
		filepath.Join(cwd, "stdlib"),
		"/usr/local/lib/hemlock/stdlib",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return filepath.Clean(c), nil
		}
	}
	return "", diag.Errorf(diag.RES003, diag.PhaseResolve, token.Pos{},
		"stdlib root not found (probed %s)", strings.Join(candidates, ", "))
}

// Resolve maps an import path to the canonical absolute file path that keys
// the module cache.
func (l *Loader) Resolve(importPath, importerDir string) (string, error) {
	if importPath == "" {
		return "", diag.Errorf(diag.RES001, diag.PhaseResolve, token.Pos{}, "empty import path")
	}

	var path string
	switch {
	case strings.HasPrefix(importPath, "@stdlib/"):
		if l.stdlibRoot == "" {
			return "", diag.Errorf(diag.RES003, diag.PhaseResolve, token.Pos{},
				"import %q requires a stdlib root", importPath)
		}
		path = filepath.Join(l.stdlibRoot, strings.TrimPrefix(importPath, "@stdlib/"))
	case filepath.IsAbs(importPath):
		path = importPath
	default:
		path = filepath.Join(importerDir, importPath)
	}

	if !strings.HasSuffix(path, ".hml") {
		path += ".hml"
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", diag.Errorf(diag.RES001, diag.PhaseResolve, token.Pos{},
			"cannot resolve import %q: %v", importPath, err)
	}
	// Symlink-resolved absolute path is the cache key; a module reached
	// through two different spellings must dedupe to one entry.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

// Load compiles the module at importPath (resolved against importerDir) and
// every module it transitively imports. A cache hit in Loading state is a
// circular dependency.
func (l *Loader) Load(importPath, importerDir string) (*Module, error) {
	abs, err := l.Resolve(importPath, importerDir)
	if err != nil {
		return nil, err
	}

	if m, ok := l.cache[abs]; ok {
		if m.State == Loading {
			return nil, diag.Errorf(diag.MOD002, diag.PhaseLoader, token.Pos{},
				"circular dependency on module %s", abs)
		}
		return m, nil
	}

	m := &Module{
		AbsPath:    abs,
		Prefix:     fmt.Sprintf("_mod%d_", l.nextID),
		State:      Loading,
		Namespaces: make(map[string]*Module),
	}
	l.nextID++
	l.cache[abs] = m
	if l.tail == nil {
		l.head, l.tail = m, m
	} else {
		l.tail.Next = m
		l.tail = m
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, diag.Errorf(diag.RES002, diag.PhaseResolve, token.Pos{},
			"module file %s: %v", abs, err)
	}
	stmts, err := l.parse(abs, src)
	if err != nil {
		return nil, diag.Errorf(diag.MOD001, diag.PhaseLoader, token.Pos{},
			"parse failure in %s: %v", abs, err)
	}
	m.Stmts = stmts

	if err := l.loadImports(m); err != nil {
		return nil, err
	}
	l.collectExports(m)
	m.State = Loaded
	return m, nil
}

// loadImports recursively compiles every import of m and collects its
// bindings. The importer's directory anchors relative resolution.
func (l *Loader) loadImports(m *Module) error {
	dir := filepath.Dir(m.AbsPath)
	for _, s := range m.Stmts {
		imp, ok := s.(*ast.Import)
		if !ok {
			continue
		}
		dep, err := l.Load(imp.Path, dir)
		if err != nil {
			if rep, ok := diag.AsReport(err); ok && rep.Code == diag.MOD002 {
				return err
			}
			return diag.Errorf(diag.MOD003, diag.PhaseLoader, imp.Position(),
				"module %s failed to load: %v", imp.Path, err)
		}
		m.Imports = append(m.Imports, l.CollectBindings(dep, imp)...)
		if imp.Namespace != "" {
			m.Namespaces[imp.Namespace] = dep
		}
		seen := false
		for _, d := range m.Deps {
			if d == dep {
				seen = true
				break
			}
		}
		if !seen {
			m.Deps = append(m.Deps, dep)
		}
	}
	return nil
}

// CollectBindings resolves the named imports of imp against dep's exports.
// Unknown exports are tolerant: a diagnostic is recorded and the binding is
// left unmangled so the emitter can substitute a null value.
func (l *Loader) CollectBindings(dep *Module, imp *ast.Import) []*ImportBinding {
	var out []*ImportBinding
	for _, name := range imp.Names {
		b := &ImportBinding{
			LocalName:    name.Local,
			OriginalName: name.Original,
			ModulePrefix: dep.Prefix,
		}
		if exp := dep.FindExport(name.Original); exp != nil {
			b.Mangled = exp.Mangled
			b.IsFunction = exp.IsFunction
			b.NumParams = exp.NumParams
		} else {
			l.Diags = append(l.Diags, diag.New(diag.MOD004, diag.PhaseLoader, imp.Position(),
				"module %s does not export %q", dep.AbsPath, name.Original))
		}
		out = append(out, b)
	}
	return out
}

// collectExports runs the two export passes: explicit export declarations
// first, then every top-level function definition not already exported.
func (l *Loader) collectExports(m *Module) {
	add := func(name string, isFn bool, nParams int) {
		if m.FindExport(name) != nil {
			return
		}
		mangled := m.MangleValue(name)
		if isFn {
			mangled = m.MangleFunc(name)
		}
		m.Exports = append(m.Exports, &ExportedSymbol{
			Name:       name,
			Mangled:    mangled,
			IsFunction: isFn,
			NumParams:  nParams,
		})
	}

	for _, s := range m.Stmts {
		exp, ok := s.(*ast.Export)
		if !ok {
			continue
		}
		switch d := exp.Decl.(type) {
		case *ast.Let:
			add(d.Name, false, 0)
		case *ast.Const:
			add(d.Name, false, 0)
		case *ast.FuncDecl:
			add(d.Name, true, len(d.Fn.Params))
		case nil:
			// export { a, b } re-exports names declared elsewhere at the top
			// level; resolved against the module's own declarations below.
			for _, name := range exp.Names {
				if decl := findTopLevel(m.Stmts, name); decl != nil {
					add(name, decl.isFn, decl.nParams)
				}
			}
		}
	}

	for _, s := range m.Stmts {
		if fn, ok := s.(*ast.FuncDecl); ok {
			add(fn.Name, true, len(fn.Fn.Params))
		}
	}
}

type topDecl struct {
	isFn    bool
	nParams int
}

func findTopLevel(stmts []ast.Stmt, name string) *topDecl {
	for _, s := range stmts {
		switch d := s.(type) {
		case *ast.Let:
			if d.Name == name {
				return &topDecl{}
			}
		case *ast.Const:
			if d.Name == name {
				return &topDecl{}
			}
		case *ast.FuncDecl:
			if d.Name == name {
				return &topDecl{isFn: true, nParams: len(d.Fn.Params)}
			}
		}
	}
	return nil
}
