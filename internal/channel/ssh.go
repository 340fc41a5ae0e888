package channel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// SSHOptions configures the SSH transport.
type SSHOptions struct {
	// Host is the hub address (IP or hostname)
	Host string

	// Port is the dropbear port. Default: 22
	Port int

	// User is the login user. Default: "root"
	User string

	// Password authenticates with a password when non-empty
	Password string

	// KeyFile authenticates with a private key file when non-empty.
	// When both Password and KeyFile are set, the key is tried first.
	KeyFile string

	// Timeout bounds connection establishment and each remote
	// operation. Default: 30 seconds
	Timeout time.Duration
}

// withDefaults fills unset options with defaults.
func (o SSHOptions) withDefaults() SSHOptions {
	if o.Port == 0 {
		o.Port = 22
	}
	if o.User == "" {
		o.User = "root"
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// SSHChannel is the dropbear-backed remote file channel.
type SSHChannel struct {
	client  *ssh.Client
	addr    string
	timeout time.Duration
	logger  *zap.Logger
}

// DialSSH opens an authenticated SSH session to the hub.
func DialSSH(opts SSHOptions, logger *zap.Logger) (*SSHChannel, error) {
	opts = opts.withDefaults()
	addr := net.JoinHostPort(opts.Host, fmt.Sprintf("%d", opts.Port))

	var auth []ssh.AuthMethod
	if opts.KeyFile != "" {
		key, err := os.ReadFile(opts.KeyFile)
		if err != nil {
			return nil, &ConnectError{Addr: addr, Transport: "ssh",
				Err: fmt.Errorf("failed to read key file: %w", err)}
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, &ConnectError{Addr: addr, Transport: "ssh",
				Err: fmt.Errorf("failed to parse key file %s: %w", opts.KeyFile, err)}
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		auth = append(auth, ssh.Password(opts.Password))
	}
	if len(auth) == 0 {
		return nil, &ConnectError{Addr: addr, Transport: "ssh",
			Err: errors.New("no authentication method configured")}
	}

	config := &ssh.ClientConfig{
		User: opts.User,
		Auth: auth,
		// Hubs regenerate their host key on factory reset, so pinning
		// would strand exactly the devices this tool exists to revive.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         opts.Timeout,
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Transport: "ssh", Err: err}
	}

	logger.Info("connected to hub",
		zap.String("addr", addr),
		zap.String("transport", "ssh"),
		zap.String("user", opts.User),
	)

	return &SSHChannel{
		client:  client,
		addr:    addr,
		timeout: opts.Timeout,
		logger:  logger,
	}, nil
}

// Pull reads remotePath by streaming it through cat.
func (c *SSHChannel) Pull(ctx context.Context, remotePath string) ([]byte, error) {
	command := "cat " + shellQuote(remotePath)

	result, err := c.run(ctx, command, nil)
	if err != nil {
		return nil, &PullError{Path: remotePath, Err: err}
	}
	if !result.Ok() {
		return nil, &PullError{
			Path:   remotePath,
			Stderr: result.Stderr,
			Err:    fmt.Errorf("remote cat exited %d", result.ExitCode),
		}
	}

	c.logger.Debug("pulled remote file",
		zap.String("path", remotePath),
		zap.Int("bytes", len(result.Stdout)),
	)
	return []byte(result.Stdout), nil
}

// Push writes data to remotePath by streaming it into cat.
func (c *SSHChannel) Push(ctx context.Context, data []byte, remotePath string) error {
	command := "cat > " + shellQuote(remotePath)

	result, err := c.run(ctx, command, bytes.NewReader(data))
	if err != nil {
		return &PushError{Path: remotePath, Err: err}
	}
	if !result.Ok() {
		return &PushError{
			Path:   remotePath,
			Stderr: result.Stderr,
			Err:    fmt.Errorf("remote write exited %d", result.ExitCode),
		}
	}

	c.logger.Debug("pushed remote file",
		zap.String("path", remotePath),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Exec runs command on the hub's shell.
func (c *SSHChannel) Exec(ctx context.Context, command string) (*ExecResult, error) {
	result, err := c.run(ctx, command, nil)
	if err != nil {
		return nil, &ExecError{Command: command, Err: err}
	}

	c.logger.Debug("executed remote command",
		zap.String("command", command),
		zap.Int("exit_code", result.ExitCode),
	)
	return result, nil
}

// Close closes the SSH connection.
func (c *SSHChannel) Close() error {
	return c.client.Close()
}

// run executes one command in a fresh session, capturing both output
// streams. The ssh package has no context support, so the session is
// torn down when ctx or the per-operation timeout expires.
func (c *SSHChannel) run(ctx context.Context, command string, stdin *bytes.Reader) (*ExecResult, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	if err := session.Start(command); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", command, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-opCtx.Done():
		_ = session.Close()
		return nil, opCtx.Err()
	case err = <-done:
	}

	result := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return nil, err
	}
	return result, nil
}
