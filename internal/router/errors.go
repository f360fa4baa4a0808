package router

import "fmt"

// ErrNoModel is returned when no registered model satisfies the
// required capabilities.
type ErrNoModel struct {
	Requirements []Capability
}

func (e *ErrNoModel) Error() string {
	return fmt.Sprintf("router: no model satisfies requirements %v", e.Requirements)
}
