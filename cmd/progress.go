// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
	"github.com/Thermoquad/bootsend/pkg/transmit"
)

// progressPrinter renders transfer progress as plain console lines
type progressPrinter struct {
	out        io.Writer
	settle     time.Duration
	stage      transmit.Stage
	started    bool
	lastDecile int
	inPayload  bool
}

func newProgressPrinter(out io.Writer, settle time.Duration) *progressPrinter {
	return &progressPrinter{out: out, settle: settle, lastDecile: -1}
}

func (p *progressPrinter) update(pr transmit.Progress) {
	if !p.started || pr.Stage != p.stage {
		p.started = true
		p.stage = pr.Stage
		p.stageChanged(pr)
	}

	if pr.Stage != transmit.StagePayload || pr.TotalBytes == 0 {
		return
	}

	// One line per 10% keeps logs readable over slow links
	decile := int(pr.Percentage()) / 10
	if decile != p.lastDecile {
		p.lastDecile = decile
		fmt.Fprintf(p.out, "  %3.0f%%  %s / %s\n", pr.Percentage(),
			bootframe.FormatSize(pr.BytesWritten), bootframe.FormatSize(pr.TotalBytes))
	}
}

func (p *progressPrinter) stageChanged(pr transmit.Progress) {
	switch pr.Stage {
	case transmit.StageAcquire:
		fmt.Fprintf(p.out, "Opening connection...\n")
	case transmit.StageHeader:
		fmt.Fprintf(p.out, "Sending header...\n")
	case transmit.StageSettle:
		fmt.Fprintf(p.out, "Waiting %s for bootloader...\n", p.settle)
	case transmit.StagePayload:
		p.inPayload = true
		fmt.Fprintf(p.out, "Sending kernel (%d bytes)...\n", pr.TotalBytes)
	}
}

func (p *progressPrinter) finish() {
	if p.inPayload {
		fmt.Fprintln(p.out)
	}
}
