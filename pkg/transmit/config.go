// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transmit

import (
	"time"

	"github.com/rs/zerolog"
)

// Transport defaults matching the UART bootloader
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = time.Second
	DefaultSettleDelay = time.Second
	DefaultChunkSize   = 64
)

// Config holds the session configuration for a transfer.
type Config struct {
	// PortName is the serial device path (e.g. /dev/ttyUSB0)
	PortName string

	// BaudRate is the line speed
	BaudRate int

	// ReadTimeout bounds reads on the session. Transfers never read, but the
	// port is opened with it so the session matches what the bootloader side
	// tooling expects.
	ReadTimeout time.Duration

	// SettleDelay is the pause between header and payload. The receiver sends
	// no acknowledgement, so this is a blind wait.
	SettleDelay time.Duration

	// ChunkSize is the largest single Write issued for the payload. The
	// payload is still one logical write; chunking only paces progress
	// reporting.
	ChunkSize int
}

// DefaultConfig returns the configuration used by the bootloader tooling
// for the given serial device.
func DefaultConfig(portName string) Config {
	return Config{
		PortName:    portName,
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
		SettleDelay: DefaultSettleDelay,
		ChunkSize:   DefaultChunkSize,
	}
}

// Validate checks the parts of the configuration that can be verified
// without touching the device.
func (c Config) Validate() error {
	if c.PortName == "" {
		return &ConfigurationError{Field: "port", Message: "serial port must be specified"}
	}
	if c.BaudRate <= 0 {
		return &ConfigurationError{Field: "baud", Message: "baud rate must be positive", Value: c.BaudRate}
	}
	if c.ReadTimeout < 0 {
		return &ConfigurationError{Field: "read timeout", Message: "must not be negative", Value: c.ReadTimeout}
	}
	if c.SettleDelay < 0 {
		return &ConfigurationError{Field: "settle delay", Message: "must not be negative", Value: c.SettleDelay}
	}
	if c.ChunkSize < 0 {
		return &ConfigurationError{Field: "chunk size", Message: "must not be negative", Value: c.ChunkSize}
	}
	return nil
}

// options holds the collaborators a Transmitter uses. Tests replace these.
type options struct {
	opener   Opener
	sleep    func(time.Duration)
	logger   zerolog.Logger
	progress ProgressCallback
}

func defaultOptions() options {
	return options{
		opener: OpenSerial,
		sleep:  time.Sleep,
		logger: zerolog.Nop(),
	}
}

// Option is a functional option for configuring the Transmitter.
type Option func(*options)

// WithOpener sets the function used to open the transport.
// Defaults to OpenSerial.
func WithOpener(opener Opener) Option {
	return func(o *options) {
		if opener != nil {
			o.opener = opener
		}
	}
}

// WithSleep replaces the function used for the settle delay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *options) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithLogger sets the logger used for per-stage debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProgress sets a callback that receives stage changes and payload
// progress.
//
// Example:
//
//	tx := transmit.New(cfg, transmit.WithProgress(func(p transmit.Progress) {
//	    fmt.Printf("%s %.1f%%\n", p.Stage, p.Percentage())
//	}))
func WithProgress(callback ProgressCallback) Option {
	return func(o *options) {
		o.progress = callback
	}
}
