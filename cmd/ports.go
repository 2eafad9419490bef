// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/bootsend/pkg/transmit"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := transmit.ListPorts()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ports) == 0 {
		fmt.Fprintln(out, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}
