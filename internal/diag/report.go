package diag

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hemlock-lang/hmlc/internal/token"
)

// Schema identifies the report wire format.
const Schema = "hemlock.error/v1"

// Report is the canonical structured error type for the compiler.
// All error builders return *Report, which can be wrapped as ReportError.
type Report struct {
	Schema  string         `json:"schema"`
	Code    string         `json:"code"`
	Phase   string         `json:"phase"`
	Message string         `json:"message"`
	Pos     *token.Pos     `json:"pos,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// New builds a report for the given code and phase.
func New(code, phase string, pos token.Pos, format string, args ...any) *Report {
	r := &Report{
		Schema:  Schema,
		Code:    code,
		Phase:   phase,
		Message: fmt.Sprintf(format, args...),
	}
	if pos.IsValid() {
		p := pos
		r.Pos = &p
	}
	return r
}

// With attaches a structured data key to the report and returns it.
func (r *Report) With(key string, value any) *Report {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
	return r
}

// ReportError wraps a Report as an error.
// This allows structured reports to survive errors.As() unwrapping.
type ReportError struct {
	Rep *Report
}

func (e *ReportError) Error() string {
	if e.Rep == nil {
		return "unknown error"
	}
	if e.Rep.Pos != nil {
		return fmt.Sprintf("%s: %s: %s", e.Rep.Pos, e.Rep.Code, e.Rep.Message)
	}
	return e.Rep.Code + ": " + e.Rep.Message
}

// AsReport attempts to extract a Report from an error chain.
func AsReport(err error) (*Report, bool) {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Rep, true
	}
	return nil, false
}

// WrapReport wraps a Report as a ReportError.
func WrapReport(r *Report) error {
	if r == nil {
		return nil
	}
	return &ReportError{Rep: r}
}

// Errorf is shorthand for WrapReport(New(...)).
func Errorf(code, phase string, pos token.Pos, format string, args ...any) error {
	return WrapReport(New(code, phase, pos, format, args...))
}

// ToJSON converts a Report to JSON (deterministic: fields in declaration
// order, Data keys sorted).
func (r *Report) ToJSON(compact bool) (string, error) {
	var data []byte
	var err error
	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
