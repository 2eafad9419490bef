// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
	"github.com/Thermoquad/bootsend/pkg/transmit"
)

var (
	sendSettle time.Duration
	sendChunk  int
	sendTUI    bool
	sendRecord string
)

var sendCmd = &cobra.Command{
	Use:   "send <image>",
	Short: "Send a kernel image to the UART bootloader",
	Long: `Send a kernel image to the UART bootloader.

The transfer writes the 12-byte header, waits for the settle delay so the
bootloader can parse it, then writes the raw image. The bootloader does not
acknowledge anything: a successful send means the bytes left this machine,
not that the device accepted them. Use the device console to confirm
"Checksum passed".

On failure nothing is retried. Reset the device and send again.

Examples:
  bootsend send build/kernel8.img --port /dev/ttyUSB0
  bootsend send build/kernel8.img --url ws://slate.local/uart --tui

Exit codes:
  0 - Image sent
  1 - Transfer failed
  2 - Connection or configuration error`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendSettle, "settle", transmit.DefaultSettleDelay, "Delay between header and payload")
	sendCmd.Flags().IntVar(&sendChunk, "chunk", transmit.DefaultChunkSize, "Payload write size in bytes")
	sendCmd.Flags().BoolVar(&sendTUI, "tui", false, "Show an interactive progress display")
	sendCmd.Flags().StringVar(&sendRecord, "record", "", "Write a CBOR transfer record to this file")
}

func runSend(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	image, header, err := loadImage(imagePath)
	if err != nil {
		return err
	}

	if portName == "" && wsURL == "" {
		return &exitError{code: exitConnection, err: fmt.Errorf("either --port or --url must be specified")}
	}

	cfg := transferConfig()
	cfg.SettleDelay = sendSettle
	cfg.ChunkSize = sendChunk

	started := time.Now()

	var result *transmit.Result
	if sendTUI {
		result, err = runSendTUI(cfg, imagePath, image, header)
	} else {
		result, err = runSendConsole(cfg, image, header)
	}

	if sendRecord != "" {
		if recErr := writeRecord(sendRecord, imagePath, cfg, header, started, result, err); recErr != nil {
			log.Error().Err(recErr).Str("file", sendRecord).Msg("failed to write transfer record")
		}
	}

	if err != nil {
		return &exitError{code: exitCodeFor(err), err: err}
	}
	return nil
}

// loadImage reads the image file and builds the header it will be sent with
func loadImage(path string) ([]byte, bootframe.Header, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, bootframe.Header{}, &exitError{code: exitConnection, err: fmt.Errorf("failed to read image: %w", err)}
	}
	header, err := bootframe.BuildChecked(image)
	if err != nil {
		return nil, bootframe.Header{}, &exitError{code: exitConnection, err: err}
	}
	return image, header, nil
}

// runSendConsole transfers image with line-based progress. header is only
// displayed; the transmitter frames the image itself.
func runSendConsole(cfg transmit.Config, image []byte, header bootframe.Header) (*transmit.Result, error) {
	fmt.Printf("Bootsend - Kernel Upload\n")
	fmt.Printf("Connection: %s\n", connectionInfo())
	fmt.Printf("%s\n", bootframe.FormatHeader(header))
	fmt.Printf("Header: %s\n\n", bootframe.FormatHeaderBytes(header))

	printer := newProgressPrinter(os.Stdout, cfg.SettleDelay)
	tx := transmit.New(cfg,
		transmit.WithOpener(transferOpener()),
		transmit.WithLogger(log.Logger),
		transmit.WithProgress(printer.update),
	)

	result, err := tx.Send(image)
	printer.finish()
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return nil, err
	}

	fmt.Printf("Kernel sent\n")
	fmt.Printf("  Bytes: %d (%s)\n", result.BytesWritten, bootframe.FormatSize(result.BytesWritten))
	fmt.Printf("  Payload: %s (%.0f B/s)\n", result.PayloadDuration.Round(time.Millisecond), result.Throughput())
	fmt.Printf("  Total: %s\n", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// writeRecord stores the outcome of a transfer as CBOR
func writeRecord(path, imagePath string, cfg transmit.Config, header bootframe.Header, started time.Time, result *transmit.Result, sendErr error) error {
	record := &bootframe.Record{
		Header:    header,
		Port:      cfg.PortName,
		BaudRate:  cfg.BaudRate,
		Started:   started,
		Duration:  int64(time.Since(started)),
		ImagePath: imagePath,
	}
	if result != nil {
		record.Written = result.BytesWritten
		record.Duration = int64(result.Elapsed)
	}
	if sendErr != nil {
		record.Error = sendErr.Error()
		var transportErr *transmit.TransportError
		if errors.As(sendErr, &transportErr) {
			switch transportErr.Stage {
			case transmit.StageHeader:
				record.Written = transportErr.Written
			case transmit.StagePayload:
				record.Written = bootframe.HeaderSize + transportErr.Written
			default:
				record.Written = bootframe.HeaderSize + uint64(header.Size)
			}
		}
	}

	data, err := bootframe.EncodeRecord(record)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
