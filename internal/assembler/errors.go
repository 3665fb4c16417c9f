package assembler

import "fmt"

// ParseError reports a matched metric whose captured number is not a float.
type ParseError struct {
	Line    int    // 1-based line number in the source
	Pattern string // name of the pattern that matched
	Text    string // captured text that failed to parse
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: cannot parse %q: %v", e.Line, e.Pattern, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
