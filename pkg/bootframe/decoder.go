// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootframe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Decoder errors, wrapped with details of the offending bytes
var (
	ErrInvalidMagic     = errors.New("invalid magic")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Frame is a header and payload received by the Decoder
type Frame struct {
	Header    Header
	Payload   []byte
	Timestamp time.Time
}

// Decoder reassembles frames from a byte stream the same way the UART
// bootloader does: magic byte by byte, then size, checksum and payload.
type Decoder struct {
	state    int
	index    int
	raw      [HeaderSize]byte
	header   Header
	payload  []byte
	maxSize  uint32
	onMagic  func()
	onHeader func(Header)
}

// NewDecoder creates a decoder that accepts images of any representable size
func NewDecoder() *Decoder {
	return NewDecoderWithLimit(MaxImageSize)
}

// NewDecoderWithLimit creates a decoder that rejects headers announcing more
// than maxSize payload bytes. Useful when listening to a noisy line.
func NewDecoderWithLimit(maxSize uint32) *Decoder {
	return &Decoder{
		state:   stateMagic,
		maxSize: maxSize,
	}
}

// OnMagic registers a callback invoked as soon as the four magic bytes match.
func (d *Decoder) OnMagic(fn func()) {
	d.onMagic = fn
}

// OnHeader registers a callback invoked once a header has been validated,
// before any payload byte is received.
func (d *Decoder) OnHeader(fn func(Header)) {
	d.onHeader = fn
}

// Reset returns the decoder to waiting for magic
func (d *Decoder) Reset() {
	d.state = stateMagic
	d.index = 0
	d.header = Header{}
	d.payload = nil
}

// Pending returns the header of the frame in progress and how many payload
// bytes have arrived. ok is false while no header has been validated.
func (d *Decoder) Pending() (h Header, received int, ok bool) {
	if d.state != statePayload {
		return Header{}, 0, false
	}
	return d.header, len(d.payload), true
}

// Decode feeds data through DecodeByte and returns the completed frames.
// Decoding continues past errors; the first error is returned.
func (d *Decoder) Decode(data []byte) ([]*Frame, error) {
	var frames []*Frame
	var firstErr error
	for _, b := range data {
		frame, err := d.DecodeByte(b)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, firstErr
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, or nil if the frame is incomplete.
//
// Every byte that does not continue the magic is reported with
// ErrInvalidMagic, as the bootloader does. A rejected 'B' starts a new
// header. Oversized headers and checksum mismatches are also errors; the
// decoder resets itself in each case.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateMagic:
		expected := magicBytes[d.index]
		if b != expected {
			got := d.index
			d.Reset()
			if b == magicBytes[0] {
				d.raw[0] = b
				d.index = 1
			}
			return nil, fmt.Errorf("%w byte %d: expected 0x%02X, got 0x%02X", ErrInvalidMagic, got, expected, b)
		}
		d.raw[d.index] = b
		d.index++
		if d.index == sizeOffset {
			d.state = stateSize
			if d.onMagic != nil {
				d.onMagic()
			}
		}
		return nil, nil

	case stateSize:
		d.raw[d.index] = b
		d.index++
		if d.index == checksumOffset {
			size := binary.LittleEndian.Uint32(d.raw[sizeOffset:])
			if size > d.maxSize {
				d.Reset()
				return nil, fmt.Errorf("image size %d exceeds limit %d", size, d.maxSize)
			}
			d.state = stateChecksum
		}
		return nil, nil

	case stateChecksum:
		d.raw[d.index] = b
		d.index++
		if d.index < HeaderSize {
			return nil, nil
		}
		header, err := ParseHeader(d.raw[:])
		if err != nil {
			d.Reset()
			return nil, err
		}
		d.header = header
		d.payload = make([]byte, 0, min(header.Size, initialPayloadCap))
		d.state = statePayload
		if d.onHeader != nil {
			d.onHeader(header)
		}
		if header.Size == 0 {
			return d.finish()
		}
		return nil, nil

	case statePayload:
		d.payload = append(d.payload, b)
		if uint64(len(d.payload)) >= uint64(d.header.Size) {
			return d.finish()
		}
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

func (d *Decoder) finish() (*Frame, error) {
	header := d.header
	payload := d.payload
	d.Reset()

	if !header.Matches(payload) {
		return nil, fmt.Errorf("%w: expected 0x%08X, got 0x%08X", ErrChecksumMismatch, header.Checksum, Checksum(payload))
	}

	return &Frame{
		Header:    header,
		Payload:   payload,
		Timestamp: time.Now(),
	}, nil
}
