// Package parsertest provides a registry-backed ParseFunc for tests. The
// real parser is an external collaborator; fixtures on disk carry a one-line
// "#ast <key>" body that resolves to a statement list registered by the test.
package parsertest

import (
	"fmt"
	"strings"

	"github.com/hemlock-lang/hmlc/internal/ast"
	"github.com/hemlock-lang/hmlc/internal/parser"
)

// Registry maps fixture keys to prebuilt statement lists.
type Registry struct {
	asts map[string][]ast.Stmt
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{asts: make(map[string][]ast.Stmt)}
}

// Add registers the statements for a fixture key.
func (r *Registry) Add(key string, stmts []ast.Stmt) {
	r.asts[key] = stmts
}

// Func returns a ParseFunc that resolves "#ast <key>" file bodies against
// the registry. Anything else is a parse failure.
func (r *Registry) Func() parser.ParseFunc {
	return func(path string, src []byte) ([]ast.Stmt, error) {
		line := strings.TrimSpace(strings.SplitN(string(src), "\n", 2)[0])
		key, ok := strings.CutPrefix(line, "#ast ")
		if !ok {
			return nil, fmt.Errorf("%s: fixture body must start with #ast", path)
		}
		stmts, ok := r.asts[strings.TrimSpace(key)]
		if !ok {
			return nil, fmt.Errorf("%s: no registered AST for key %q", path, key)
		}
		return stmts, nil
	}
}
