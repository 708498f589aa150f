package utils

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrExecSequential executes functions in order and accumulates every failure.
// Execution never stops early so that all resources get their turn.
func ErrExecSequential(functions ...func() error) error {
	var multErr *multierror.Error
	for _, one := range functions {
		if err := one(); err != nil {
			multErr = multierror.Append(multErr, err)
		}
	}

	return multErr.ErrorOrNil()
}

// ErrExecFormat formats the error returned from a function according to the provided format string.
func ErrExecFormat(format string, function func() error) func() error {
	return func() error {
		if err := function(); err != nil {
			return fmt.Errorf(format, err)
		}
		return nil
	}
}
