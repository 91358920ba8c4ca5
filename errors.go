package arvos

import "errors"

var (
	// ErrRunawayInput is returned when a line needs more substitutions, or
	// a value more escaping, than any real template could. It indicates
	// corrupted input.
	ErrRunawayInput = errors.New("runaway template input")

	// ErrUnterminatedBlock is returned when an IFDEF, IFNDEF or FOR block
	// is still open at the end of the file or loop body it started in.
	ErrUnterminatedBlock = errors.New("unterminated block")

	// ErrMismatchedBlock is returned when an ENDIF names a different tag
	// than the innermost open IFDEF or IFNDEF.
	ErrMismatchedBlock = errors.New("mismatched block end")

	// ErrUnexpectedDirective is returned for an ENDFOR with no open FOR.
	ErrUnexpectedDirective = errors.New("unexpected directive")

	// ErrIncludeDepth is returned when INCLUDE directives nest deeper than
	// the Renderer allows, which usually means a template includes itself.
	ErrIncludeDepth = errors.New("maximum include depth exceeded")

	// ErrLineTooLong is returned when a template line is longer than the
	// Renderer's maximum line length.
	ErrLineTooLong = errors.New("template line too long")
)
