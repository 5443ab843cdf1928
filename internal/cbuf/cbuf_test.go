package cbuf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterIndentation(t *testing.T) {
	w := NewWriter()
	w.Line("int main(void) {")
	w.Indent()
	w.Line("return 0;")
	w.Dedent()
	w.Line("}")

	assert.Equal(t, "int main(void) {\n    return 0;\n}\n", w.String())
}

func TestWriterDedentClampsAtZero(t *testing.T) {
	w := NewWriter()
	w.Dedent()
	w.Line("x")
	assert.Equal(t, "x\n", w.String())
}

func TestSectionsFlushOrder(t *testing.T) {
	s := NewSections()
	s.Get(SecMain).Line("main")
	s.Get(SecHeader).Line("header")
	s.Get(SecClosureImpl).Line("closure impl")
	s.Get(SecClosureFwd).Line("closure fwd")

	var sb strings.Builder
	assert.NoError(t, s.FlushTo(&sb))
	out := sb.String()

	order := []string{"header", "closure fwd", "closure impl", "main"}
	last := -1
	for _, frag := range order {
		idx := strings.Index(out, frag)
		assert.Greater(t, idx, last, "section %q out of order", frag)
		last = idx
	}
}

func TestEmptySectionsAreSkipped(t *testing.T) {
	s := NewSections()
	s.Get(SecMain).Line("only")
	var sb strings.Builder
	assert.NoError(t, s.FlushTo(&sb))
	assert.Equal(t, "only\n", sb.String())
}
