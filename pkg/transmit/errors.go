// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transmit

import (
	"fmt"
)

// ConfigurationError indicates the transport could not be opened with the
// given settings: bad path or baud rate, missing device, permission denied,
// port busy.
type ConfigurationError struct {
	Field   string
	Message string
	Value   interface{}
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Value != nil {
		msg = fmt.Sprintf("%s (got %v)", msg, e.Value)
	}
	if e.Err != nil {
		if msg == "" {
			return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
		}
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, msg, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TransportError indicates a write, drain or close failed during a transfer.
// Bytes already sent are not rolled back; the whole transfer must be
// restarted.
type TransportError struct {
	Stage   Stage
	Written uint64 // bytes written in this stage before the failure
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s after %d bytes: %v", e.Stage, e.Written, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
