package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
)

var (
	codeColor = color.New(color.FgRed, color.Bold).SprintFunc()
	posColor  = color.New(color.FgCyan).SprintFunc()
	bold      = color.New(color.Bold).SprintFunc()
)

// Render writes a human-readable rendering of the report to w.
func Render(w io.Writer, r *Report) {
	if r.Pos != nil {
		fmt.Fprintf(w, "%s %s [%s] %s\n", codeColor("error"), posColor(r.Pos.String()), r.Code, bold(r.Message))
	} else {
		fmt.Fprintf(w, "%s [%s] %s\n", codeColor("error"), r.Code, bold(r.Message))
	}
	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, r.Data[k])
	}
}

// RenderAll renders a slice of reports.
func RenderAll(w io.Writer, reports []*Report) {
	for _, r := range reports {
		Render(w, r)
	}
}
