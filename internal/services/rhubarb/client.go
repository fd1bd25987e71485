package rhubarb

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"mouthsync/internal/services"
)

// Option configures the client.
type Option func(*Client)

// WithLauncher injects a custom launcher (primarily for tests).
func WithLauncher(launcher Launcher) Option {
	return func(c *Client) {
		if launcher != nil {
			c.launcher = launcher
		}
	}
}

// WithVersionTimeout bounds the --version probe.
func WithVersionTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.versionTimeout = timeout
		}
	}
}

// Client wraps Rhubarb CLI interactions.
type Client struct {
	binary         string
	launcher       Launcher
	versionTimeout time.Duration
}

// New constructs a Rhubarb client for the executable at binary.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "rhubarb", "new client", "executable path required", nil)
	}
	client := &Client{
		binary:         binary,
		launcher:       ExecLauncher{},
		versionTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured executable path.
func (c *Client) Binary() string {
	return c.binary
}

// Start launches the analyzer for opts and returns the running process
// along with the arguments it was started with.
func (c *Client) Start(ctx context.Context, opts Options) (Process, []string, error) {
	args, err := BuildArgs(opts)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "rhubarb", "build args", "", err)
	}
	proc, err := c.launcher.Launch(ctx, c.binary, args)
	if err != nil {
		return nil, args, services.Wrap(services.ErrExternalTool, "rhubarb", "launch", c.binary, err)
	}
	return proc, args, nil
}

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// Version runs the executable with --version and returns the version number,
// or the raw first line when no number is present.
func (c *Client) Version(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.binary, "--version").CombinedOutput() //nolint:gosec
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "rhubarb", "version", "", err)
		}
		return "", services.Wrap(services.ErrExternalTool, "rhubarb", "version", "", err)
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if match := versionPattern.FindString(line); match != "" {
		return match, nil
	}
	if line == "" {
		return "", services.Wrap(services.ErrExternalTool, "rhubarb", "version", "empty version output", nil)
	}
	return line, nil
}
