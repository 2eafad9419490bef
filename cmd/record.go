// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
)

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Display a transfer record written by send --record",
	Long: `Decode and display a CBOR transfer record.

Exit codes:
  0 - Record shows a successful transfer
  1 - Record shows a failed transfer
  2 - Record could not be read`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return &exitError{code: exitConnection, err: fmt.Errorf("failed to read record: %w", err)}
	}

	record, err := bootframe.DecodeRecord(data)
	if err != nil {
		return &exitError{code: exitConnection, err: err}
	}

	fmt.Fprint(cmd.OutOrStdout(), bootframe.FormatRecord(record))
	if !record.Succeeded() {
		return &exitError{code: exitFailure, err: fmt.Errorf("recorded transfer failed")}
	}
	return nil
}
