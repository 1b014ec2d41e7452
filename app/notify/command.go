package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const defaultCommandTimeout = 30 * time.Second

// Command invokes an external helper process for each notification. The
// notification is written to the helper's standard input as one JSON object
// and the delivery is judged by the exit status.
type Command struct {
	command string
	args    []string
	timeout time.Duration
}

func NewCommand(command string, args []string, timeout time.Duration) *Command {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Command{
		command: command,
		args:    args,
		timeout: timeout,
	}
}

func (c *Command) Name() string {
	return "command"
}

func (c *Command) Deliver(ctx context.Context, n Notification) error {
	input, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.command, c.args...)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return fmt.Errorf("command %s failed: %w: %s", c.command, err, msg)
		}
		return fmt.Errorf("command %s failed: %w", c.command, err)
	}

	slog.Debug("Command delivered", "command", c.command, "link", n.Link)
	return nil
}
