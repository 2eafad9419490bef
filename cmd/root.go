// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/bootsend/pkg/transmit"
)

var (
	// Serial connection flags
	portName    string
	baudRate    int
	readTimeout time.Duration

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Logging flags
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "bootsend",
	Short: "UART bootloader kernel uploader",
	Long: `Bootsend - A CLI tool for sending kernel images to the UART bootloader.

The image is framed with a 12-byte header (magic "BOOT", size, checksum),
followed by a one second settle delay and the raw image bytes. The bootloader
validates the header and checksum before jumping to the kernel.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the BOOTSEND_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", transmit.DefaultBaudRate, "Baud rate (serial only)")
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "read-timeout", transmit.DefaultReadTimeout, "Serial read timeout")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// setupLogging configures the global zerolog logger for console output
func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
		log.Debug().Msg("debug logging enabled")
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
