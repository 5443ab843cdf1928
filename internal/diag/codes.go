// Package diag provides centralized error code definitions for the Hemlock
// compiler. All error codes follow a consistent per-phase taxonomy for
// structured reporting.
package diag

// Error code constants organized by phase.
const (
	// ============================================================================
	// Path Resolution Errors (RES###)
	// ============================================================================

	// RES001 indicates an import path could not be resolved
	RES001 = "RES001"

	// RES002 indicates the resolved module file does not exist
	RES002 = "RES002"

	// RES003 indicates the stdlib root could not be discovered
	RES003 = "RES003"

	// ============================================================================
	// Module Loading Errors (MOD###)
	// ============================================================================

	// MOD001 indicates the parser collaborator reported errors
	MOD001 = "MOD001"

	// MOD002 indicates a circular module dependency was detected
	MOD002 = "MOD002"

	// MOD003 indicates a dependent module failed to compile
	MOD003 = "MOD003"

	// MOD004 indicates import of a name the module does not export (tolerant)
	MOD004 = "MOD004"

	// ============================================================================
	// Code Generation Errors (CGN###)
	// ============================================================================

	// CGN001 indicates assignment to a const binding
	CGN001 = "CGN001"

	// CGN010 indicates the optional-chain call form, which lowers to null (tolerant)
	CGN010 = "CGN010"

	// CGN011 indicates ++/-- on a non-identifier l-value (tolerant)
	CGN011 = "CGN011"

	// CGN012 indicates an identifier that resolves nowhere (tolerant)
	CGN012 = "CGN012"

	// ============================================================================
	// FFI Errors (FFI###)
	// ============================================================================

	// FFI001 indicates a type annotation the FFI marshaller cannot represent
	FFI001 = "FFI001"
)

// Phase names used in reports.
const (
	PhaseResolve = "resolve"
	PhaseLoader  = "loader"
	PhaseCodegen = "codegen"
	PhaseFFI     = "ffi"
)
