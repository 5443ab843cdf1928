package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/hemlock-lang/hmlc/internal/diag"
	"github.com/hemlock-lang/hmlc/internal/parser"
	"github.com/hemlock-lang/hmlc/internal/pipeline"
)

var (
	// Version info - set by ldflags during build
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	red  = color.New(color.FgRed).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		outFlag     = flag.String("o", "", "Output file (default: stdout)")
		stdlibFlag  = flag.String("stdlib", "", "Override the stdlib root")
		jsonFlag    = flag.Bool("json-errors", false, "Emit diagnostics as JSON")
		timingsFlag = flag.Bool("timings", false, "Print per-phase timings")
	)
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}

	if flag.NArg() < 2 || flag.Arg(0) != "build" {
		printHelp()
		os.Exit(2)
	}

	parse := parser.Registered()
	if parse == nil {
		fmt.Fprintf(os.Stderr, "%s: no parser linked into this build\n", red("Error"))
		os.Exit(1)
	}

	out := os.Stdout
	if *outFlag != "" {
		f, err := os.Create(*outFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	cfg := pipeline.Config{
		Parse:      parse,
		StdlibRoot: *stdlibFlag,
		Timings:    *timingsFlag,
	}
	res, err := pipeline.Run(cfg, pipeline.Source{Path: flag.Arg(1)}, out)

	for _, r := range res.Diags {
		emitDiag(r, *jsonFlag)
	}
	if err != nil {
		if r, ok := diag.AsReport(err); ok {
			emitDiag(r, *jsonFlag)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("Error"), err)
		}
		os.Exit(1)
	}

	if *timingsFlag {
		for phase, ms := range res.PhaseTimings {
			fmt.Fprintf(os.Stderr, "%s: %dms\n", phase, ms)
		}
	}
}

func emitDiag(r *diag.Report, asJSON bool) {
	if asJSON {
		if s, err := r.ToJSON(true); err == nil {
			fmt.Fprintln(os.Stderr, s)
		}
		return
	}
	diag.Render(os.Stderr, r)
}

func printVersion() {
	fmt.Printf("hmlc %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if BuildTime != "unknown" {
		fmt.Printf("Built:  %s\n", BuildTime)
	}
}

func printHelp() {
	fmt.Println(bold("hmlc - Hemlock to C compiler"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  hmlc [-o out.c] [-stdlib path] build <file.hml>")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
