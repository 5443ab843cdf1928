package diag

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemlock-lang/hmlc/internal/token"
)

func TestReportSurvivesWrapping(t *testing.T) {
	rep := New(MOD002, PhaseLoader, token.Pos{Line: 3, Column: 1, File: "a.hml"},
		"circular dependency on module %s", "b.hml")
	err := fmt.Errorf("loading failed: %w", WrapReport(rep))

	got, ok := AsReport(err)
	require.True(t, ok, "AsReport unwraps through %%w chains")
	assert.Equal(t, MOD002, got.Code)
	assert.Equal(t, PhaseLoader, got.Phase)
	assert.Equal(t, "a.hml:3:1", got.Pos.String())
}

func TestAsReportOnPlainError(t *testing.T) {
	_, ok := AsReport(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestReportErrorMessage(t *testing.T) {
	err := Errorf(CGN001, PhaseCodegen, token.Pos{Line: 2, Column: 5, File: "m.hml"},
		"cannot assign to const %q", "x")
	assert.Equal(t, `m.hml:2:5: CGN001: cannot assign to const "x"`, err.Error())
}

func TestToJSONDeterministic(t *testing.T) {
	rep := New(RES001, PhaseResolve, token.Pos{}, "bad path").
		With("path", "./x").
		With("importer", "main.hml")

	a, err := rep.ToJSON(true)
	require.NoError(t, err)
	b, err := rep.ToJSON(true)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(a), &decoded))
	assert.Equal(t, Schema, decoded["schema"])
	assert.Nil(t, decoded["pos"], "zero position is omitted")
}
