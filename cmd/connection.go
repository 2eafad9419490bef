// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/bootsend/pkg/transmit"
)

// Connection provides a common interface for reading/writing bytes from serial or WebSocket
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
	Drain() error
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Drain() error {
	return s.port.Drain()
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection bridges the byte stream over binary WebSocket messages
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}

		// The bridge forwards UART bytes as binary messages only
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

// Write sends p as one binary message. WriteMessage returns once the frame
// has been handed to the socket.
func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		w.closed = true
		return 0, err
	}
	return len(p), nil
}

// Drain is a no-op: every Write is already flushed to the socket
func (w *WebSocketConnection) Drain() error {
	if w.closed {
		return ErrConnectionClosed
	}
	return nil
}

func (w *WebSocketConnection) Close() error {
	w.closed = true
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection for reading and writing
func OpenSerialConnection(portName string, baudRate int, timeout time.Duration) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
		}
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("BOOTSEND_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// wsPassword caches the password so it is only prompted for once
var wsPassword *string

// resolvePassword prompts for the WebSocket password if --username is set
// and no password has been read yet
func resolvePassword() (string, error) {
	if wsUsername == "" {
		return "", nil
	}
	if wsPassword != nil {
		return *wsPassword, nil
	}
	pw, err := GetPassword()
	if err != nil {
		return "", err
	}
	wsPassword = &pw
	return pw, nil
}

// openWebSocketFromFlags dials --url, prompting for a password when
// --username is set
func openWebSocketFromFlags() (Connection, error) {
	password, err := resolvePassword()
	if err != nil {
		return nil, err
	}
	return OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
}

// OpenConnection opens either a serial or WebSocket connection based on flags
func OpenConnection() (Connection, string, error) {
	if wsURL != "" {
		conn, err := openWebSocketFromFlags()
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		conn, err := OpenSerialConnection(portName, baudRate, readTimeout)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// transferConfig builds the transmitter configuration from connection flags.
// In WebSocket mode the URL stands in for the port name.
func transferConfig() transmit.Config {
	name := portName
	if wsURL != "" {
		name = wsURL
	}
	cfg := transmit.DefaultConfig(name)
	cfg.BaudRate = baudRate
	cfg.ReadTimeout = readTimeout
	return cfg
}

// transferOpener returns the opener for the selected connection mode
func transferOpener() transmit.Opener {
	if wsURL == "" {
		return transmit.OpenSerial
	}
	return func(cfg transmit.Config) (transmit.Port, error) {
		conn, err := openWebSocketFromFlags()
		if err != nil {
			return nil, &transmit.ConfigurationError{Field: "url", Value: cfg.PortName, Err: err}
		}
		return conn, nil
	}
}

// connectionInfo describes the selected connection mode for display
func connectionInfo() string {
	if wsURL != "" {
		return fmt.Sprintf("WebSocket: %s", wsURL)
	}
	return fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate)
}
