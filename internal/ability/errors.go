package ability

import "fmt"

// ErrNameCollision is returned when two source names sanitize to the
// same function identifier.
type ErrNameCollision struct {
	ID     string
	First  string
	Second string
}

func (e *ErrNameCollision) Error() string {
	return fmt.Sprintf("ability: %q and %q both sanitize to %q", e.First, e.Second, e.ID)
}

// ErrUnavailable is returned when a call targets a function identifier
// that resolves to no registered ability. This is a capability
// mismatch, not a transient failure; the model must pick another
// function rather than retry the same call.
type ErrUnavailable struct {
	Name string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("function %s is not available", e.Name)
}

// ErrPermissionDenied is returned when an ability's permission callback
// rejects a call. Its message doubles as the function-response payload
// shown to the model.
type ErrPermissionDenied struct {
	Name string
}

func (e *ErrPermissionDenied) Error() string {
	return fmt.Sprintf("Permission denied: you are not allowed to use %s.", e.Name)
}
