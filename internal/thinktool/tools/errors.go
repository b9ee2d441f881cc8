package tools

import "fmt"

// InvalidInputError reports tool arguments that failed schema validation.
// The connection survives; no session state is touched.
type InvalidInputError struct {
	Tool string
	Err  error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for tool %q: %v", e.Tool, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }
