// Package emoji provides symbol constants for CLI output.
// These symbols create a consistent visual language across all command-line commands.
package emoji

// Symbol constants for CLI output.
const (
	// Success marks a completed run, a finished supplier or configured credentials.
	Success = "✓"

	// Error marks a failed run or supplier.
	Error = "✗"

	// Warning marks a run that finished with data-quality findings.
	Warning = "!"

	// Optional marks a disabled supplier or missing optional credentials.
	Optional = "-"

	// Unsupported marks a supplier whose driver is not registered.
	Unsupported = "×"

	// Unknown marks a state that is neither done nor failed.
	Unknown = "?"

	// Info marks informational lines such as the saved log path.
	Info = "i"
)
