// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transmit sends a kernel image to the UART bootloader.
//
// A transfer opens the port, writes and drains the 12-byte header, waits for
// the settle delay, writes and drains the image, then closes the port. The
// receiver never answers, so a successful Send only means the bytes left the
// host.
package transmit

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
)

// Transmitter performs transfers for a fixed Config. It keeps no state
// between transfers and may be reused sequentially, but not concurrently.
type Transmitter struct {
	config Config
	opts   options
}

// Result summarizes a completed transfer
type Result struct {
	Header          bootframe.Header
	HeaderDuration  time.Duration // header write + drain
	PayloadDuration time.Duration // payload write + drain
	Elapsed         time.Duration // acquire through release
	BytesWritten    uint64        // header and payload bytes
}

// Throughput returns payload bytes per second, excluding the settle delay
func (r *Result) Throughput() float64 {
	if r.PayloadDuration <= 0 {
		return 0
	}
	return float64(r.Header.Size) / r.PayloadDuration.Seconds()
}

// New creates a Transmitter for cfg.
//
// Example:
//
//	tx := transmit.New(transmit.DefaultConfig("/dev/ttyUSB0"),
//	    transmit.WithLogger(log.Logger),
//	)
//	result, err := tx.Send(image)
func New(cfg Config, opts ...Option) *Transmitter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Transmitter{config: cfg, opts: o}
}

// Config returns the transfer configuration
func (t *Transmitter) Config() Config {
	return t.config
}

// Send performs the complete transfer sequence:
//  1. Open the transport
//  2. Write and drain the header
//  3. Wait for the settle delay
//  4. Write and drain the payload
//  5. Close the transport
//
// The port is closed on every path once opened. Nothing is retried; on error
// the caller must restart from step 1. Errors are *ConfigurationError for
// step 1, *TransportError for steps 2-5, and bootframe.ErrImageTooLarge when
// the image cannot be framed.
func (t *Transmitter) Send(image []byte) (result *Result, err error) {
	if err := bootframe.CheckImageSize(len(image)); err != nil {
		return nil, err
	}
	if err := t.config.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	total := uint64(len(image))
	log := t.opts.logger.With().
		Str("port", t.config.PortName).
		Int("baud", t.config.BaudRate).
		Logger()

	// Acquire
	t.report(StageAcquire, 0, total, start)
	port, err := t.opts.opener(t.config)
	if err != nil {
		log.Debug().Err(err).Msg("open failed")
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &ConfigurationError{Field: "port", Message: fmt.Sprintf("failed to open %s", t.config.PortName), Err: err}
	}
	log.Debug().Dur("read_timeout", t.config.ReadTimeout).Msg("port opened")

	// Release
	var payloadWritten uint64
	defer func() {
		t.report(StageRelease, payloadWritten, total, start)
		closeErr := port.Close()
		if closeErr != nil {
			log.Debug().Err(closeErr).Msg("close failed")
			if err == nil {
				result = nil
				err = &TransportError{Stage: StageRelease, Err: closeErr}
			}
			return
		}
		log.Debug().Msg("port closed")
		if err == nil {
			result.Elapsed = time.Since(start)
			t.report(StageComplete, total, total, start)
		}
	}()

	// Header
	header := bootframe.Build(image)
	result = &Result{Header: header}
	log.Debug().
		Str("header", bootframe.FormatHeaderBytes(header)).
		Uint32("size", header.Size).
		Uint32("checksum", header.Checksum).
		Msg("sending header")

	t.report(StageHeader, 0, total, start)
	stageStart := time.Now()
	n, err := writeAll(port, header.Bytes(), 0, nil)
	result.BytesWritten += n
	if err != nil {
		return nil, &TransportError{Stage: StageHeader, Written: n, Err: err}
	}
	if err := port.Drain(); err != nil {
		return nil, &TransportError{Stage: StageHeader, Written: n, Err: fmt.Errorf("drain: %w", err)}
	}
	result.HeaderDuration = time.Since(stageStart)

	// Settle
	t.report(StageSettle, 0, total, start)
	log.Debug().Dur("delay", t.config.SettleDelay).Msg("settling")
	t.opts.sleep(t.config.SettleDelay)

	// Payload
	t.report(StagePayload, 0, total, start)
	log.Debug().Uint64("bytes", total).Int("chunk", t.config.ChunkSize).Msg("sending payload")
	stageStart = time.Now()
	n, err = writeAll(port, image, t.config.ChunkSize, func(written uint64) {
		t.report(StagePayload, written, total, start)
	})
	result.BytesWritten += n
	payloadWritten = n
	if err != nil {
		return nil, &TransportError{Stage: StagePayload, Written: n, Err: err}
	}
	if err := port.Drain(); err != nil {
		return nil, &TransportError{Stage: StagePayload, Written: n, Err: fmt.Errorf("drain: %w", err)}
	}
	result.PayloadDuration = time.Since(stageStart)

	log.Debug().
		Dur("payload", result.PayloadDuration).
		Float64("bytes_per_sec", result.Throughput()).
		Msg("payload sent")

	return result, nil
}

// writeAll writes data in chunks of at most chunkSize bytes (0 means one
// Write), continuing after short writes. onChunk is called with the running
// total after each successful Write.
func writeAll(port Port, data []byte, chunkSize int, onChunk func(uint64)) (uint64, error) {
	var written uint64
	for len(data) > 0 {
		chunk := data
		if chunkSize > 0 && len(chunk) > chunkSize {
			chunk = chunk[:chunkSize]
		}
		n, err := port.Write(chunk)
		if n < 0 || n > len(chunk) {
			return written, fmt.Errorf("invalid write count %d for %d bytes", n, len(chunk))
		}
		written += uint64(n)
		data = data[n:]
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, fmt.Errorf("write made no progress")
		}
		if onChunk != nil {
			onChunk(written)
		}
	}
	return written, nil
}

func (t *Transmitter) report(stage Stage, written, total uint64, start time.Time) {
	if t.opts.progress == nil {
		return
	}
	t.opts.progress(Progress{
		Stage:        stage,
		BytesWritten: written,
		TotalBytes:   total,
		ElapsedTime:  time.Since(start),
	})
}
