// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
	"github.com/Thermoquad/bootsend/pkg/transmit"
)

// Process exit codes
const (
	exitOK         = 0
	exitFailure    = 1
	exitConnection = 2
)

// exitError carries the process exit code for a command failure
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitCodeFor classifies a transfer error
func exitCodeFor(err error) int {
	var cfgErr *transmit.ConfigurationError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &cfgErr), errors.Is(err, bootframe.ErrImageTooLarge):
		return exitConnection
	default:
		return exitFailure
	}
}

// ExitCode returns the process exit code for an error returned by Execute
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitCodeFor(err)
}
