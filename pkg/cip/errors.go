package cip

import "fmt"

// ContractError reports a plugin returning a result code outside the
// documented set for a callback family. It is an internal error: the plugin
// is broken, and the operation in progress must be abandoned.
type ContractError struct {
	Handler  string
	Callback string
	Result   Result
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("constraint handler %q returned invalid result %q from %s callback", e.Handler, e.Result, e.Callback)
}

// DuplicateHandler is returned when a second handler registers under a name
// already taken.
type DuplicateHandler string

func (e DuplicateHandler) Error() string {
	return fmt.Sprintf("duplicate constraint handler %q", string(e))
}
