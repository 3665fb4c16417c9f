package source

import "fmt"

// MissingInputError reports a log file that does not exist or cannot be read.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("cannot read log file %s: %v", e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }
