// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootframe

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record describes a finished (or failed) transfer. It is stored as CBOR so
// other Thermoquad tools can ingest upload history.
type Record struct {
	Header    Header    `cbor:"0,keyasint"`
	Port      string    `cbor:"1,keyasint"`
	BaudRate  int       `cbor:"2,keyasint"`
	Started   time.Time `cbor:"3,keyasint"`
	Duration  int64     `cbor:"4,keyasint"` // nanoseconds
	Written   uint64    `cbor:"5,keyasint"`
	Error     string    `cbor:"6,keyasint,omitempty"`
	ImagePath string    `cbor:"7,keyasint,omitempty"`
}

// Succeeded returns true if the transfer completed without error
func (r *Record) Succeeded() bool {
	return r.Error == ""
}

// Elapsed returns the recorded transfer duration
func (r *Record) Elapsed() time.Duration {
	return time.Duration(r.Duration)
}

var recordEncMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("bootframe: cbor enc mode: %v", err))
	}
	return em
}()

// EncodeRecord encodes a transfer record as deterministic CBOR
func EncodeRecord(r *Record) ([]byte, error) {
	data, err := recordEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord decodes a CBOR transfer record
func DecodeRecord(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR record")
	}
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &r, nil
}

// FormatRecord formats a transfer record into a human-readable string
func FormatRecord(r *Record) string {
	status := "OK"
	if !r.Succeeded() {
		status = "FAILED: " + r.Error
	}
	result := fmt.Sprintf("[%s] %s @ %d baud\n", r.Started.Format(time.RFC3339), r.Port, r.BaudRate)
	if r.ImagePath != "" {
		result += fmt.Sprintf("  Image: %s\n", r.ImagePath)
	}
	result += fmt.Sprintf("  %s\n", FormatHeader(r.Header))
	result += fmt.Sprintf("  Written: %d bytes in %s\n", r.Written, r.Elapsed().Round(time.Millisecond))
	result += fmt.Sprintf("  Status: %s\n", status)
	return result
}
