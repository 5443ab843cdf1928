// Package pipeline orchestrates the multi-pass program emission: main-file
// pre-scan, module compilation, function and closure emission, and final
// assembly of the C translation unit.
package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/cbuf"
	"github.com/hemlock-lang/hmlc/internal/codegen"
	"github.com/hemlock-lang/hmlc/internal/diag"
	"github.com/hemlock-lang/hmlc/internal/loader"
	"github.com/hemlock-lang/hmlc/internal/parser"
	"github.com/hemlock-lang/hmlc/internal/token"
)

// Config contains pipeline configuration options.
type Config struct {
	Parse      parser.ParseFunc
	StdlibRoot string // "" = auto-discover
	Timings    bool   // collect per-phase timings
}

// Source is the compilation entry point. Code is used when non-empty;
// otherwise the file at Path is read.
type Source struct {
	Path string
	Code string
}

// Result contains pipeline output.
type Result struct {
	Modules      []*loader.Module
	Diags        []*diag.Report
	PhaseTimings map[string]int64 // milliseconds
}

// Run compiles the program rooted at src and writes one C translation unit
// to out. Nothing is written when compilation fails: a program with a module
// cycle or a fatal diagnostic produces no partial output.
func Run(cfg Config, src Source, out io.Writer) (*Result, error) {
	res := &Result{PhaseTimings: make(map[string]int64)}
	timed := func(phase string, fn func() error) error {
		start := time.Now()
		err := fn()
		if cfg.Timings {
			res.PhaseTimings[phase] = time.Since(start).Milliseconds()
		}
		return err
	}

	code := []byte(src.Code)
	if src.Code == "" {
		var err error
		code, err = os.ReadFile(src.Path)
		if err != nil {
			return res, diag.Errorf(diag.RES002, diag.PhaseResolve, token.Pos{},
				"main file %s: %v", src.Path, err)
		}
	}

	var stmts []ast.Stmt
	if err := timed("parse", func() error {
		var err error
		stmts, err = cfg.Parse(src.Path, code)
		if err != nil {
			return diag.Errorf(diag.MOD001, diag.PhaseLoader, token.Pos{},
				"parse failure in %s: %v", src.Path, err)
		}
		return nil
	}); err != nil {
		return res, err
	}

	ld := loader.New(cfg.Parse)
	if cfg.StdlibRoot != "" {
		ld.SetStdlibRoot(cfg.StdlibRoot)
	} else if root, err := discoverStdlib(); err == nil {
		ld.SetStdlibRoot(root)
	}

	sections := cbuf.NewSections()
	ctx := codegen.NewContext(sections, ld)

	mainDir := filepath.Dir(src.Path)
	if err := timed("prescan", func() error {
		return ctx.PrescanMain(stmts, mainDir)
	}); err != nil {
		return res, err
	}
	res.Modules = ld.Modules()

	_ = timed("modules", func() error {
		for _, m := range ld.Modules() {
			ctx.EmitModule(m)
		}
		return nil
	})
	_ = timed("functions", func() error {
		ctx.EmitMainGlobals()
		ctx.EmitMainFuncs(stmts)
		return nil
	})
	_ = timed("main", func() error {
		ctx.EmitMain(stmts, ld.Modules())
		return nil
	})
	_ = timed("closures", func() error {
		ctx.EmitClosures()
		return nil
	})
	_ = timed("assemble", func() error {
		ctx.EmitHeader()
		ctx.EmitFFIGlobals()
		ctx.EmitExternWrappers()
		return nil
	})

	res.Diags = append(res.Diags, ld.Diags...)
	res.Diags = append(res.Diags, ctx.Diags...)

	if ctx.HasFatal() {
		return res, diag.WrapReport(firstFatal(ctx.Diags))
	}

	if err := sections.FlushTo(out); err != nil {
		return res, err
	}
	return res, nil
}

func firstFatal(reports []*diag.Report) *diag.Report {
	for _, r := range reports {
		switch r.Code {
		case diag.CGN001:
			return r
		}
	}
	if len(reports) > 0 {
		return reports[0]
	}
	return diag.New(diag.CGN001, diag.PhaseCodegen, token.Pos{}, "compilation failed")
}

func discoverStdlib() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		exe = ""
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return loader.DiscoverStdlibRoot(filepath.Dir(exe), cwd)
}
