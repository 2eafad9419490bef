// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootframe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrImageTooLarge is returned when an image cannot be described by the
// 32-bit size field.
var ErrImageTooLarge = errors.New("image too large for 32-bit size field")

// Header is the fixed preamble sent ahead of the image
type Header struct {
	Magic    uint32
	Size     uint32
	Checksum uint32
}

// Build computes the header describing image.
//
// The image length must not exceed MaxImageSize; use BuildChecked when the
// length is not already known to fit.
func Build(image []byte) Header {
	return Header{
		Magic:    Magic,
		Size:     uint32(len(image)),
		Checksum: Checksum(image),
	}
}

// BuildChecked is Build with the image size precondition enforced.
func BuildChecked(image []byte) (Header, error) {
	if err := CheckImageSize(len(image)); err != nil {
		return Header{}, err
	}
	return Build(image), nil
}

// CheckImageSize reports ErrImageTooLarge if n bytes cannot be framed.
func CheckImageSize(n int) error {
	if n < 0 || uint64(n) > MaxImageSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, n, uint64(MaxImageSize))
	}
	return nil
}

// Valid returns true if the header carries the expected magic value
func (h Header) Valid() bool {
	return h.Magic == Magic
}

// Matches returns true if the header describes image exactly.
func (h Header) Matches(image []byte) bool {
	return h.Valid() && uint64(h.Size) == uint64(len(image)) && h.Checksum == Checksum(image)
}

// AppendBinary appends the 12-byte wire encoding of h to b.
func (h Header) AppendBinary(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint32(b, h.Magic)
	b = binary.LittleEndian.AppendUint32(b, h.Size)
	b = binary.LittleEndian.AppendUint32(b, h.Checksum)
	return b, nil
}

// MarshalBinary returns the 12-byte wire encoding of h.
func (h Header) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, HeaderSize))
}

// Bytes returns the 12-byte wire encoding of h.
func (h Header) Bytes() []byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[magicOffset:], h.Magic)
	binary.LittleEndian.PutUint32(buf[sizeOffset:], h.Size)
	binary.LittleEndian.PutUint32(buf[checksumOffset:], h.Checksum)
	return buf[:]
}

// UnmarshalBinary decodes a 12-byte header. The magic value is not checked.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("invalid header length: %d (expected %d)", len(data), HeaderSize)
	}
	h.Magic = binary.LittleEndian.Uint32(data[magicOffset:])
	h.Size = binary.LittleEndian.Uint32(data[sizeOffset:])
	h.Checksum = binary.LittleEndian.Uint32(data[checksumOffset:])
	return nil
}

// ParseHeader decodes a header from the first HeaderSize bytes of data and
// rejects anything without the expected magic value.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: %d bytes (need %d)", len(data), HeaderSize)
	}
	var h Header
	if err := h.UnmarshalBinary(data[:HeaderSize]); err != nil {
		return Header{}, err
	}
	if !h.Valid() {
		return Header{}, fmt.Errorf("invalid magic: expected 0x%08X, got 0x%08X", uint32(Magic), h.Magic)
	}
	return h, nil
}
