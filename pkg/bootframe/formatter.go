// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootframe

import (
	"fmt"
	"strings"
)

// FormatHeader formats a header into a one-line summary
func FormatHeader(h Header) string {
	return fmt.Sprintf("Kernel size: 0x%X checksum: 0x%X", h.Size, h.Checksum)
}

// FormatHeaderBytes formats the wire encoding of a header as spaced hex
func FormatHeaderBytes(h Header) string {
	return FormatHex(h.Bytes())
}

// FormatHex formats bytes as upper-case hex separated by spaces
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// FormatFrame formats a received frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	return fmt.Sprintf("[%s] IMAGE size=%d (0x%X) checksum=0x%08X\n  Header: %s\n",
		timestamp, f.Header.Size, f.Header.Size, f.Header.Checksum, FormatHeaderBytes(f.Header))
}

// FormatSize formats a byte count with a binary unit
func FormatSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
