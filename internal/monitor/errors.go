package monitor

import "fmt"

// ConfigurationError reports a working spec that is missing or cannot be
// loaded. At start it is non-fatal when the spec is missing: the monitor
// runs with empty budgets and progress.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// LifecycleError rejects an operation that is not allowed in the current
// state. The state is left unchanged.
type LifecycleError struct {
	Op    string
	State State
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("cannot %s monitor while %s", e.Op, e.State)
}
