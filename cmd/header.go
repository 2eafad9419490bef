// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
)

var headerCmd = &cobra.Command{
	Use:   "header <image>",
	Short: "Print the header that would be sent for an image",
	Long: `Compute the 12-byte header for an image without opening a connection.

Prints the image size, checksum and the exact header bytes sent ahead of the
image. Compare against the values the bootloader prints on its console.`,
	Args: cobra.ExactArgs(1),
	RunE: runHeader,
}

func init() {
	rootCmd.AddCommand(headerCmd)
}

func runHeader(cmd *cobra.Command, args []string) error {
	_, header, err := loadImage(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", bootframe.FormatHeader(header))
	fmt.Fprintf(out, "Header: %s\n", bootframe.FormatHeaderBytes(header))
	fmt.Fprintf(out, "  Magic:    0x%08X\n", header.Magic)
	fmt.Fprintf(out, "  Size:     %d (%s)\n", header.Size, bootframe.FormatSize(uint64(header.Size)))
	fmt.Fprintf(out, "  Checksum: 0x%08X\n", header.Checksum)
	return nil
}
