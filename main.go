// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Bootsend - UART bootloader kernel uploader
//
// A CLI tool for sending kernel images to a bare-metal board running the
// UART bootloader, and for checking what the bootloader would receive.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/bootsend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cmd.ExitCode(err))
	}
}
