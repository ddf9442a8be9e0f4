package diagram

import (
	"fmt"
	"strings"
)

// Navigation failure reasons.
const (
	ReasonNoMatchedNodes       = "no_matched_nodes"
	ReasonMultipleMatchedNodes = "multiple_matched_nodes"
)

// ContractError reports input the builder cannot process, such as a schema
// node that was never hashed, or unbalanced builder calls.
type ContractError struct {
	Reason  string
	Origins []string
}

func (e *ContractError) Error() string {
	if len(e.Origins) == 0 {
		return "diagram contract violation: " + e.Reason
	}
	return fmt.Sprintf("diagram contract violation: %s (at %s)", e.Reason, strings.Join(e.Origins, ", "))
}

// NavigationError is returned when a scope does not select exactly one root class.
type NavigationError struct {
	Reason     string
	Scope      string
	Candidates []string
}

func (e *NavigationError) Error() string {
	switch e.Reason {
	case ReasonMultipleMatchedNodes:
		return fmt.Sprintf("scope %q matches %d root classes", e.Scope, len(e.Candidates))
	default:
		return fmt.Sprintf("scope %q matches no root class", e.Scope)
	}
}
