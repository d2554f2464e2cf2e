package archive

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotArchive means the document root is not a village (or period, for
	// period files).
	ErrNotArchive = errors.New("not a bbsArchive document")
	// ErrMalformed wraps XML syntax errors and structurally broken archives.
	ErrMalformed = errors.New("malformed archive")
	// ErrDetachedStub is returned when a linked period stub is parsed without
	// a package directory to resolve it against.
	ErrDetachedStub = errors.New("period stub outside a package")
)

// readErr classifies decoder errors. Syntax problems become ErrMalformed;
// anything else is an I/O failure and is wrapped as is.
func readErr(err error) error {
	var syntax *xml.SyntaxError
	switch {
	case errors.As(err, &syntax):
		return fmt.Errorf("%w: line %d: %s", ErrMalformed, syntax.Line, syntax.Msg)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: unexpected end of document", ErrMalformed)
	default:
		return fmt.Errorf("read archive: %w", err)
	}
}
