// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transmit

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// Port is the write side of a transport session
type Port interface {
	Write(p []byte) (int, error)
	// Drain blocks until written bytes have left the local buffers
	Drain() error
	Close() error
}

// Opener opens a transport session for cfg
type Opener func(cfg Config) (Port, error)

// serialPort adapts a go.bug.st/serial port to Port
type serialPort struct {
	port serial.Port
}

func (s *serialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialPort) Drain() error {
	return s.port.Drain()
}

func (s *serialPort) Close() error {
	return s.port.Close()
}

// OpenSerial opens cfg.PortName as an 8N1 serial port at cfg.BaudRate with
// cfg.ReadTimeout applied.
func OpenSerial(cfg Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.PortName, mode)
	if err != nil {
		return nil, classifyOpenError(cfg, err)
	}

	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, &ConfigurationError{Field: "read timeout", Value: cfg.ReadTimeout, Err: err}
		}
	}

	return &serialPort{port: port}, nil
}

// portErrorCoder is satisfied by *serial.PortError
type portErrorCoder interface {
	error
	Code() serial.PortErrorCode
}

// classifyOpenError maps serial open failures to the offending setting
func classifyOpenError(cfg Config, err error) error {
	var portErr portErrorCoder
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.InvalidSpeed:
			return &ConfigurationError{Field: "baud", Value: cfg.BaudRate, Err: err}
		case serial.PortNotFound:
			return &ConfigurationError{Field: "port", Message: "device not found", Value: cfg.PortName, Err: err}
		case serial.PermissionDenied:
			return &ConfigurationError{Field: "port", Message: "permission denied", Value: cfg.PortName, Err: err}
		case serial.PortBusy:
			return &ConfigurationError{Field: "port", Message: "port busy", Value: cfg.PortName, Err: err}
		}
	}
	return &ConfigurationError{Field: "port", Message: fmt.Sprintf("failed to open %s", cfg.PortName), Err: err}
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}
