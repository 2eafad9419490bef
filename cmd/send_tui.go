// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
	"github.com/Thermoquad/bootsend/pkg/transmit"
)

// Event log entry
type sendLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model for a single transfer
type sendModel struct {
	connInfo      string
	imagePath     string
	header        bootframe.Header
	settle        time.Duration
	stage         transmit.Stage
	written       uint64
	total         uint64
	elapsed       time.Duration
	result        *transmit.Result
	err           error
	done          bool
	quitting      bool
	eventLog      []sendLogEntry
	maxLogEntries int
	progress      progress.Model
	spinner       spinner.Model
	width         int
}

// Messages
type transferProgressMsg transmit.Progress
type transferDoneMsg struct {
	result *transmit.Result
	err    error
}

func newSendModel(connInfo, imagePath string, header bootframe.Header, settle time.Duration) sendModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	return sendModel{
		connInfo:      connInfo,
		imagePath:     imagePath,
		header:        header,
		settle:        settle,
		total:         uint64(header.Size),
		maxLogEntries: 8,
		progress:      progress.New(progress.WithDefaultGradient()),
		spinner:       s,
		width:         80,
	}
}

func (m sendModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m sendModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.done {
				m.quitting = true
				return m, tea.Quit
			}
			m.addLogEntry("Transfer in progress, cannot interrupt", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 8
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case transferProgressMsg:
		if msg.Stage != m.stage || m.eventLog == nil {
			m.stage = msg.Stage
			m.logStage()
		}
		m.written = msg.BytesWritten
		m.total = msg.TotalBytes
		m.elapsed = msg.ElapsedTime

	case transferDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		if msg.err != nil {
			m.addLogEntry(msg.err.Error(), true)
		} else {
			m.written = m.total
			m.addLogEntry("Kernel sent", false)
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m *sendModel) logStage() {
	switch m.stage {
	case transmit.StageAcquire:
		m.addLogEntry("Opening connection", false)
	case transmit.StageHeader:
		m.addLogEntry("Header: "+bootframe.FormatHeaderBytes(m.header), false)
	case transmit.StageSettle:
		m.addLogEntry(fmt.Sprintf("Waiting %s for bootloader", m.settle), false)
	case transmit.StagePayload:
		m.addLogEntry(fmt.Sprintf("Sending %d bytes", m.total), false)
	case transmit.StageRelease:
		m.addLogEntry("Closing connection", false)
	}
}

func (m *sendModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, sendLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m sendModel) percent() float64 {
	if m.total == 0 {
		if m.done && m.err == nil {
			return 1
		}
		return 0
	}
	return float64(m.written) / float64(m.total)
}

func (m sendModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("BOOTSEND - KERNEL UPLOAD"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s", m.connInfo, m.imagePath)))
	s.WriteString("\n\n")

	info := strings.Builder{}
	info.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Size:"), valueStyle.Render(fmt.Sprintf("%d (0x%X)", m.header.Size, m.header.Size)),
		labelStyle.Render("Checksum:"), valueStyle.Render(fmt.Sprintf("0x%08X", m.header.Checksum)),
	))
	info.WriteString(fmt.Sprintf("%s %s",
		labelStyle.Render("Header:"), valueStyle.Render(bootframe.FormatHeaderBytes(m.header)),
	))
	s.WriteString(boxStyle.Render(info.String()))
	s.WriteString("\n\n")

	// Stage and progress
	switch {
	case m.done && m.err != nil:
		s.WriteString(errorStyle.Render("✗ Transfer failed"))
	case m.done:
		s.WriteString(valueStyle.Render("✓ Kernel sent"))
	default:
		s.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), labelStyle.Render(strings.ToUpper(m.stage.String()))))
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("  %s / %s  %s",
		bootframe.FormatSize(m.written), bootframe.FormatSize(m.total), m.elapsed.Round(time.Millisecond))))
	s.WriteString("\n")
	s.WriteString(m.progress.ViewAs(m.percent()))
	s.WriteString("\n\n")

	// Event log
	logContent := strings.Builder{}
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i, entry := range m.eventLog {
		if i > 0 {
			logContent.WriteString("\n")
		}
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s", timestamp, "ℹ "+entry.message))
		}
	}
	s.WriteString(boxStyle.Render(logContent.String()))
	s.WriteString("\n")

	if m.result != nil {
		s.WriteString(headerStyle.Render(fmt.Sprintf("Payload %s at %.0f B/s, total %s",
			m.result.PayloadDuration.Round(time.Millisecond), m.result.Throughput(), m.result.Elapsed.Round(time.Millisecond))))
		s.WriteString("\n")
	}

	return s.String()
}

// runSendTUI runs the transfer behind a progress display. The transfer
// cannot be interrupted; quitting is only possible once it has finished.
func runSendTUI(cfg transmit.Config, imagePath string, image []byte, header bootframe.Header) (*transmit.Result, error) {
	// Prompt before the TUI takes over the terminal
	if wsURL != "" {
		if _, err := resolvePassword(); err != nil {
			return nil, &transmit.ConfigurationError{Field: "url", Value: wsURL, Err: err}
		}
	}

	p := tea.NewProgram(newSendModel(connectionInfo(), imagePath, header, cfg.SettleDelay))

	tx := transmit.New(cfg,
		transmit.WithOpener(transferOpener()),
		transmit.WithLogger(zerolog.Nop()),
		transmit.WithProgress(func(pr transmit.Progress) {
			p.Send(transferProgressMsg(pr))
		}),
	)

	done := make(chan transferDoneMsg, 1)
	go func() {
		result, err := tx.Send(image)
		msg := transferDoneMsg{result: result, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		// The display failed; the transfer still runs to completion
		outcome := <-done
		if outcome.err != nil {
			return nil, outcome.err
		}
		return outcome.result, fmt.Errorf("TUI error: %w", err)
	}

	outcome := <-done
	return outcome.result, outcome.err
}
