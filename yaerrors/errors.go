package yaerrors

import "errors"

// ErrTeapot is the cause given to an Error built from a nil error, so that
// Unwrap and Error never dereference nil.
var ErrTeapot = errors.New("nil error was wrapped")
