package budget

import "errors"

var (
	// ErrBudgetExceeded reports a request refused because it would push usage
	// past the limit. The wrapped allocator was not called.
	ErrBudgetExceeded = errors.New("memory budget exceeded")

	// ErrDelegateFailure reports that the wrapped allocator itself failed.
	ErrDelegateFailure = errors.New("delegate allocator failed")

	// ErrConfigure reports that the limit could not be installed on a host.
	// It means sandboxing is not in place, not that an allocation was denied.
	ErrConfigure = errors.New("could not install memory limit")
)
