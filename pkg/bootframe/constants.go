// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bootframe implements the framing used to hand a kernel image to the
// UART bootloader.
//
// A transfer is a 12-byte header followed, after a settle delay, by the raw
// image bytes:
//
//	offset 0  magic     uint32 LE  0x544F4F42 ("BOOT")
//	offset 4  size      uint32 LE  image length in bytes
//	offset 8  checksum  uint32 LE  sum of image bytes mod 2^32
//
// The checksum is a plain modulo sum, not a CRC. The bootloader firmware
// computes the same sum, so changing it breaks compatibility.
package bootframe

// Magic identifies a valid header. The bytes on the wire spell "BOOT".
const Magic = 0x544F4F42

// magicBytes is Magic as it appears on the wire
var magicBytes = [4]byte{'B', 'O', 'O', 'T'}

// Header layout
const (
	HeaderSize     = 12
	magicOffset    = 0
	sizeOffset     = 4
	checksumOffset = 8
)

// MaxImageSize is the largest image the 32-bit size field can describe.
const MaxImageSize = 1<<32 - 1

// initialPayloadCap bounds the buffer reserved from an unverified size field.
// Larger payloads grow the buffer as bytes arrive.
const initialPayloadCap = 64 << 10

// Decoder states
const (
	stateMagic = iota
	stateSize
	stateChecksum
	statePayload
)
