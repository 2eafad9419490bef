// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/bootsend/pkg/bootframe"
	"github.com/Thermoquad/bootsend/pkg/transmit"
)

func wireBytes(image []byte) []byte {
	return append(bootframe.Build(image).Bytes(), image...)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, exitOK},
		{"configuration", &transmit.ConfigurationError{Field: "port", Message: "device not found"}, exitConnection},
		{"wrapped configuration", fmt.Errorf("send: %w", &transmit.ConfigurationError{Field: "baud"}), exitConnection},
		{"too large", fmt.Errorf("%w: 5000000000 bytes", bootframe.ErrImageTooLarge), exitConnection},
		{"transport", &transmit.TransportError{Stage: transmit.StagePayload, Err: io.ErrClosedPipe}, exitFailure},
		{"explicit", &exitError{code: exitConnection, err: errors.New("boom")}, exitConnection},
		{"plain", errors.New("unknown flag"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCode(tt.err))
		})
	}
}

func TestProgressPrinter(t *testing.T) {
	var out bytes.Buffer
	printer := newProgressPrinter(&out, time.Second)

	printer.update(transmit.Progress{Stage: transmit.StageAcquire, TotalBytes: 100})
	printer.update(transmit.Progress{Stage: transmit.StageHeader, TotalBytes: 100})
	printer.update(transmit.Progress{Stage: transmit.StageSettle, TotalBytes: 100})
	for written := uint64(0); written <= 100; written += 5 {
		printer.update(transmit.Progress{Stage: transmit.StagePayload, BytesWritten: written, TotalBytes: 100})
	}
	printer.finish()

	text := out.String()
	assert.Contains(t, text, "Opening connection...")
	assert.Contains(t, text, "Sending header...")
	assert.Contains(t, text, "Waiting 1s for bootloader...")
	assert.Contains(t, text, "Sending kernel (100 bytes)...")
	assert.Contains(t, text, "100%")

	// One progress line per decile from 0% to 100%
	assert.Equal(t, 11, strings.Count(text, "%  "))
}

func TestMonitorStream(t *testing.T) {
	image := []byte("kernel8.img")
	stream := append([]byte{0x00, 0x00}, wireBytes(image)...)
	output := filepath.Join(t.TempDir(), "received.img")

	var out bytes.Buffer
	err := monitorStream(bytes.NewReader(stream), &out, 1<<20, 1, output)
	require.NoError(t, err)

	text := out.String()
	assert.True(t, strings.HasPrefix(text,
		"Invalid kernel image.\nInvalid kernel image.\n"+
			"Valid kernel image.\nKernel size: 0xB\nChecksum: 0x"+fmt.Sprintf("%X", bootframe.Checksum(image))+"\n"+
			"Kernel loaded.\nChecksum passed.\n"), "got:\n%s", text)

	saved, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, image, saved)
}

func TestMonitorStream_ChecksumFailure(t *testing.T) {
	stream := wireBytes([]byte{0x01, 0x02, 0x03})
	stream[len(stream)-1] = 0x04

	var out bytes.Buffer
	err := monitorStream(bytes.NewReader(stream), &out, 1<<20, 0, "")
	require.NoError(t, err, "EOF after a complete frame ends the session")
	assert.Contains(t, out.String(), "Kernel loaded.\nChecksum failed.\n")
	assert.NotContains(t, out.String(), "Checksum passed.")
}

func TestMonitorStream_MessagesFollowTheBootloader(t *testing.T) {
	// Magic alone announces a valid image before size and checksum arrive
	r, w := io.Pipe()
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- monitorStream(r, out, 1<<20, 0, "") }()

	_, err := w.Write([]byte("BOOT"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return out.String() == "Valid kernel image.\n"
	}, time.Second, 5*time.Millisecond)

	// Size and checksum of an empty image complete the frame
	_, err = w.Write(bootframe.Build(nil).Bytes()[4:])
	require.NoError(t, err)
	w.Close()
	require.NoError(t, <-done)
	assert.True(t, strings.HasPrefix(out.String(),
		"Valid kernel image.\nKernel size: 0x0\nChecksum: 0x0\nKernel loaded.\nChecksum passed.\n"), "got:\n%s", out.String())
}

func TestMonitorStream_SizeLimit(t *testing.T) {
	var out bytes.Buffer
	err := monitorStream(bytes.NewReader(wireBytes(make([]byte, 64))), &out, 16, 0, "")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[ERROR] image size 64 exceeds limit 16")
	assert.NotContains(t, out.String(), "Kernel loaded.")
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMonitorStream_TruncatedImage(t *testing.T) {
	stream := wireBytes(make([]byte, 32))[:bootframe.HeaderSize+10]

	var out bytes.Buffer
	err := monitorStream(bytes.NewReader(stream), &out, 1<<20, 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10 of 32 bytes")
	assert.Equal(t, exitFailure, ExitCode(err))
}

func TestMonitorStream_ReadError(t *testing.T) {
	r := io.MultiReader(bytes.NewReader([]byte{0x00}), &failingReader{err: errors.New("device reports an error")})

	err := monitorStream(r, io.Discard, 1<<20, 0, "")
	require.Error(t, err)
	assert.Equal(t, exitConnection, ExitCode(err))
}

type failingReader struct {
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	return 0, f.err
}

func TestWriteRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfer.cbor")
	cfg := transmit.DefaultConfig("/dev/ttyUSB0")
	image := make([]byte, 100)
	header := bootframe.Build(image)
	sendErr := &transmit.TransportError{Stage: transmit.StagePayload, Written: 40, Err: io.ErrClosedPipe}

	require.NoError(t, writeRecord(path, "kernel8.img", cfg, header, time.Now(), nil, sendErr))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	record, err := bootframe.DecodeRecord(data)
	require.NoError(t, err)

	assert.Equal(t, header, record.Header)
	assert.Equal(t, "/dev/ttyUSB0", record.Port)
	assert.Equal(t, uint64(bootframe.HeaderSize+40), record.Written)
	assert.False(t, record.Succeeded())
	assert.Contains(t, record.Error, "payload")
}

func TestWriteRecord_Success(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transfer.cbor")
	header := bootframe.Build([]byte{0x01})
	result := &transmit.Result{Header: header, BytesWritten: 13, Elapsed: 1200 * time.Millisecond}

	require.NoError(t, writeRecord(path, "k.img", transmit.DefaultConfig("/dev/ttyACM0"), header, time.Now(), result, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	record, err := bootframe.DecodeRecord(data)
	require.NoError(t, err)
	assert.True(t, record.Succeeded())
	assert.Equal(t, uint64(13), record.Written)
	assert.Equal(t, 1200*time.Millisecond, record.Elapsed())
}

func TestHeaderCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel8.img")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"header", path})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "Kernel size: 0x3 checksum: 0x6")
	assert.Contains(t, out.String(), "Header: 42 4F 4F 54 03 00 00 00 06 00 00 00")
}

func TestLoadImage_BuildsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel8.img")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o644))

	image, header, err := loadImage(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, image)
	assert.Equal(t, bootframe.Build(image), header)
}

func TestLoadImage_Missing(t *testing.T) {
	_, _, err := loadImage(filepath.Join(t.TempDir(), "missing.img"))
	require.Error(t, err)
	assert.Equal(t, exitConnection, ExitCode(err))
}

func TestSendModel_Lifecycle(t *testing.T) {
	header := bootframe.Build(make([]byte, 200))
	var m tea.Model = newSendModel("Serial: /dev/ttyUSB0 @ 115200 baud", "kernel8.img", header, time.Second)

	m, _ = m.Update(transferProgressMsg{Stage: transmit.StageAcquire, TotalBytes: 200})
	m, _ = m.Update(transferProgressMsg{Stage: transmit.StageHeader, TotalBytes: 200})
	m, _ = m.Update(transferProgressMsg{Stage: transmit.StagePayload, BytesWritten: 100, TotalBytes: 200})

	sm := m.(sendModel)
	assert.Equal(t, transmit.StagePayload, sm.stage)
	assert.InDelta(t, 0.5, sm.percent(), 0.0001)
	assert.Contains(t, sm.View(), "PAYLOAD")

	// Quitting is refused mid-transfer
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, cmd)
	assert.False(t, m.(sendModel).quitting)

	result := &transmit.Result{Header: header, BytesWritten: 212, PayloadDuration: time.Second, Elapsed: 2 * time.Second}
	m, cmd = m.Update(transferDoneMsg{result: result})
	require.NotNil(t, cmd)
	sm = m.(sendModel)
	assert.True(t, sm.done)
	assert.Equal(t, float64(1), sm.percent())
	assert.Contains(t, sm.View(), "Kernel sent")
}

func TestSendModel_Failure(t *testing.T) {
	header := bootframe.Build(nil)
	var m tea.Model = newSendModel("Serial: /dev/ttyUSB0 @ 115200 baud", "empty.img", header, time.Second)

	m, _ = m.Update(transferDoneMsg{err: &transmit.ConfigurationError{Field: "port", Message: "device not found"}})
	sm := m.(sendModel)
	assert.True(t, sm.done)
	assert.Equal(t, float64(0), sm.percent())
	assert.Contains(t, sm.View(), "Transfer failed")
	assert.Contains(t, sm.View(), "device not found")
}
