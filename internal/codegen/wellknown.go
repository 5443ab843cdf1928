package codegen

// signalNames are the POSIX signals exposed as integer macros in the emitted
// translation unit.
var signalNames = []string{
	"SIGHUP", "SIGINT", "SIGQUIT", "SIGILL", "SIGABRT", "SIGFPE",
	"SIGKILL", "SIGSEGV", "SIGPIPE", "SIGALRM", "SIGTERM",
	"SIGUSR1", "SIGUSR2", "SIGCHLD", "SIGCONT", "SIGSTOP",
}

// wellKnown maps fixed identifiers to C expressions yielding an owned value:
// signal numbers, math constants and math function handles.
var wellKnown = map[string]string{
	"PI":       "hml_val_f64(M_PI)",
	"E":        "hml_val_f64(M_E)",
	"INFINITY": "hml_val_f64(INFINITY)",
	"NAN":      "hml_val_f64(NAN)",

	"sqrt_fn":  "hml_builtin_ref(\"sqrt\")",
	"floor_fn": "hml_builtin_ref(\"floor\")",
	"ceil_fn":  "hml_builtin_ref(\"ceil\")",
	"abs_fn":   "hml_builtin_ref(\"abs\")",
	"pow_fn":   "hml_builtin_ref(\"pow\")",
	"sin_fn":   "hml_builtin_ref(\"sin\")",
	"cos_fn":   "hml_builtin_ref(\"cos\")",
}

func init() {
	for _, sig := range signalNames {
		wellKnown[sig] = "hml_val_i32(" + sig + "_VAL)"
	}
}

// wellKnownIdent resolves a fixed well-known name to its C expression.
func wellKnownIdent(name string) (string, bool) {
	expr, ok := wellKnown[name]
	return expr, ok
}
