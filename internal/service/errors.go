package service

import "fmt"

// InvalidLimitError reports a limit the caller must fix. Limits <= 0
// are rejected rather than defaulted; silently substituting a default
// could mask a caller bug.
type InvalidLimitError struct {
	Value int
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("invalid limit: must be positive, got %d", e.Value)
}

// UnknownToolError reports a tool name outside the closed dispatch set.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool function: %s", e.Name)
}
