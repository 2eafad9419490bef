// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
)

var (
	monitorMaxSize uint32
	monitorOutput  string
	monitorCount   int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Receive images the way the bootloader does",
	Long: `Listen on a connection and decode transfers the way the UART bootloader
does: match the "BOOT" magic, read size and checksum, collect the image and
verify the checksum. Progress is reported with the bootloader's own console
messages.

Unlike the bootloader, a rejected 'B' byte is taken as the start of a new
header, and headers announcing more than --max-size bytes are dropped.

Useful for checking a sender against a second serial adapter or a loopback
cable without flashing a board.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Uint32Var(&monitorMaxSize, "max-size", 64<<20, "Reject headers announcing more bytes than this")
	monitorCmd.Flags().StringVarP(&monitorOutput, "output", "o", "", "Write each verified image to this file")
	monitorCmd.Flags().IntVar(&monitorCount, "count", 0, "Exit after this many verified images (0 = run forever)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return &exitError{code: exitConnection, err: err}
	}
	defer conn.Close()

	fmt.Printf("Bootsend - Bootloader Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	return monitorStream(conn, os.Stdout, monitorMaxSize, monitorCount, monitorOutput)
}

// monitorStream decodes frames from r until count images have been verified
// or the stream ends.
func monitorStream(r io.Reader, out io.Writer, maxSize uint32, count int, output string) error {
	decoder := bootframe.NewDecoderWithLimit(maxSize)
	decoder.OnMagic(func() {
		fmt.Fprintf(out, "Valid kernel image.\n")
	})
	decoder.OnHeader(func(h bootframe.Header) {
		fmt.Fprintf(out, "Kernel size: 0x%X\n", h.Size)
		fmt.Fprintf(out, "Checksum: 0x%X\n", h.Checksum)
	})

	received := 0
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			frame, decodeErr := decoder.DecodeByte(buf[i])
			if decodeErr != nil {
				reportDecodeError(out, decodeErr)
				continue
			}
			if frame == nil {
				continue
			}

			fmt.Fprintf(out, "Kernel loaded.\nChecksum passed.\n")
			fmt.Fprint(out, bootframe.FormatFrame(frame))
			if output != "" {
				if err := os.WriteFile(output, frame.Payload, 0o644); err != nil {
					return fmt.Errorf("failed to write image: %w", err)
				}
				log.Info().Str("file", output).Int("bytes", len(frame.Payload)).Msg("image saved")
			}

			received++
			if count > 0 && received >= count {
				return nil
			}
		}

		if err != nil {
			// A closed connection ends the session normally
			if errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed) {
				log.Info().Msg("connection closed")
				if h, got, ok := decoder.Pending(); ok {
					return &exitError{code: exitFailure, err: fmt.Errorf("connection closed mid-image: %d of %d bytes", got, h.Size)}
				}
				return nil
			}
			log.Warn().Err(err).Msg("read error")
			return &exitError{code: exitConnection, err: err}
		}
	}
}

// reportDecodeError prints a decoder error the way the bootloader reports it
func reportDecodeError(out io.Writer, err error) {
	switch {
	case errors.Is(err, bootframe.ErrInvalidMagic):
		fmt.Fprintf(out, "Invalid kernel image.\n")
		log.Debug().Err(err).Msg("rejected byte")
	case errors.Is(err, bootframe.ErrChecksumMismatch):
		fmt.Fprintf(out, "Kernel loaded.\nChecksum failed.\n")
		log.Debug().Err(err).Msg("checksum failed")
	default:
		fmt.Fprintf(out, "[ERROR] %v\n", err)
	}
}
