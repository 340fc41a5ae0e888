package channel

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSOptions configures the setup-mode WebSocket transport.
type WSOptions struct {
	// Host is the hub address (IP or hostname)
	Host string

	// Port is the setup-mode HTTP port. Default: 80
	Port int

	// Path is the debug endpoint path. Default: "/debug/fs"
	Path string

	// Timeout bounds connection establishment and each request.
	// Default: 30 seconds
	Timeout time.Duration
}

func (o WSOptions) withDefaults() WSOptions {
	if o.Port == 0 {
		o.Port = 80
	}
	if o.Path == "" {
		o.Path = "/debug/fs"
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// wsRequest is the JSON envelope sent to the hub's debug endpoint.
type wsRequest struct {
	// Op is the operation: "read", "write" or "exec"
	Op string `json:"op"`
	// Path is the file path for read/write operations
	Path string `json:"path,omitempty"`
	// Data is the file content for write operations (base64 over the wire)
	Data []byte `json:"data,omitempty"`
	// Command is the shell command for exec operations
	Command string `json:"command,omitempty"`
}

// wsResponse is the hub's reply envelope.
type wsResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Data     []byte `json:"data,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// WSChannel is the setup-mode debug endpoint channel. Hubs with
// dropbear disabled still expose /debug/fs while in setup mode.
type WSChannel struct {
	conn    *websocket.Conn
	addr    string
	timeout time.Duration
	logger  *zap.Logger
}

// DialWS connects to the hub's setup-mode debug endpoint.
func DialWS(ctx context.Context, opts WSOptions, logger *zap.Logger) (*WSChannel, error) {
	opts = opts.withDefaults()
	addr := net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))
	url := fmt.Sprintf("ws://%s%s", addr, opts.Path)

	dialer := websocket.Dialer{HandshakeTimeout: opts.Timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Transport: "ws", Err: err}
	}

	logger.Info("connected to hub",
		zap.String("addr", addr),
		zap.String("transport", "ws"),
	)

	return &WSChannel{
		conn:    conn,
		addr:    addr,
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

// Pull reads the file at remotePath through the debug endpoint.
func (c *WSChannel) Pull(ctx context.Context, remotePath string) ([]byte, error) {
	resp, err := c.roundTrip(ctx, &wsRequest{Op: "read", Path: remotePath})
	if err != nil {
		return nil, &PullError{Path: remotePath, Err: err}
	}
	if !resp.OK {
		return nil, &PullError{Path: remotePath, Err: fmt.Errorf("hub refused read: %s", resp.Error)}
	}

	c.logger.Debug("pulled remote file",
		zap.String("path", remotePath),
		zap.Int("bytes", len(resp.Data)),
	)
	return resp.Data, nil
}

// Push writes data to remotePath through the debug endpoint.
func (c *WSChannel) Push(ctx context.Context, data []byte, remotePath string) error {
	resp, err := c.roundTrip(ctx, &wsRequest{Op: "write", Path: remotePath, Data: data})
	if err != nil {
		return &PushError{Path: remotePath, Err: err}
	}
	if !resp.OK {
		return &PushError{Path: remotePath, Err: fmt.Errorf("hub refused write: %s", resp.Error)}
	}

	c.logger.Debug("pushed remote file",
		zap.String("path", remotePath),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Exec runs command through the debug endpoint.
func (c *WSChannel) Exec(ctx context.Context, command string) (*ExecResult, error) {
	resp, err := c.roundTrip(ctx, &wsRequest{Op: "exec", Command: command})
	if err != nil {
		return nil, &ExecError{Command: command, Err: err}
	}
	if !resp.OK {
		return nil, &ExecError{Command: command, Err: fmt.Errorf("hub refused exec: %s", resp.Error)}
	}

	c.logger.Debug("executed remote command",
		zap.String("command", command),
		zap.Int("exit_code", resp.ExitCode),
	)
	return &ExecResult{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
	}, nil
}

// Close sends a close frame and drops the connection.
func (c *WSChannel) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// roundTrip performs one request/response exchange. The debug endpoint
// is strictly request/response, so no multiplexing is needed.
func (c *WSChannel) roundTrip(ctx context.Context, req *wsRequest) (*wsResponse, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	var resp wsResponse
	if err := c.conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &resp, nil
}
