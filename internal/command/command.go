// Package command runs host commands on behalf of caddyd. Output is always
// captured; a non-quiet run also forwards it to the configured writers.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	gocmd "github.com/go-cmd/cmd"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ExitError reports a command that ran and exited with a non-zero status.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Code, e.Stderr)
	}
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
}

// Executor runs commands through go-cmd.
type Executor struct {
	Stdout io.Writer
	Stderr io.Writer
	logger *zap.Logger
}

// New returns an Executor forwarding non-quiet output to the process's own
// stdout and stderr.
func New(logger *zap.Logger) *Executor {
	return &Executor{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		logger: logger.Named("command"),
	}
}

// Run executes name with args and waits for it to finish. When quiet is
// false the captured stdout and stderr lines are written to e.Stdout and
// e.Stderr. Cancelling ctx stops the process; a ctx that is already done
// keeps the command from starting at all.
func (e *Executor) Run(ctx context.Context, quiet bool, name string, args ...string) error {
	line := strings.Join(append([]string{name}, args...), " ")
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", line, err)
	}
	e.logger.Debug("running command", zap.String("cmd", line), zap.Bool("quiet", quiet))

	c := gocmd.NewCmdOptions(gocmd.Options{Buffered: true}, name, args...)
	statusCh := c.Start()

	var status gocmd.Status
	select {
	case status = <-statusCh:
	case <-ctx.Done():
		stop(c, statusCh)
		return fmt.Errorf("%s: %w", line, ctx.Err())
	}

	if !quiet {
		writeLines(e.Stdout, status.Stdout)
		writeLines(e.Stderr, status.Stderr)
	}

	if status.Error != nil {
		return fmt.Errorf("%s: %w", line, status.Error)
	}
	if status.Exit != 0 {
		err := &ExitError{
			Command: line,
			Code:    status.Exit,
			Stderr:  strings.TrimSpace(strings.Join(status.Stderr, "\n")),
		}
		e.logger.Debug("command failed", zap.String("cmd", line), zap.Int("exit", status.Exit))
		return err
	}
	return nil
}

// stop terminates c and waits for its final status. Start runs the process
// asynchronously, so Stop can race it and report ErrNotStarted. Stop latches
// on its first call, so a process that starts after that is signalled here
// directly, by process group as go-cmd does.
func stop(c *gocmd.Cmd, statusCh <-chan gocmd.Status) {
	if err := c.Stop(); !errors.Is(err, gocmd.ErrNotStarted) {
		<-statusCh
		return
	}
	for {
		select {
		case <-statusCh:
			return
		case <-time.After(stopRetryInterval):
		}
		if pid := c.Status().PID; pid > 0 {
			_ = unix.Kill(-pid, unix.SIGTERM)
			<-statusCh
			return
		}
	}
}

const stopRetryInterval = 5 * time.Millisecond

func writeLines(w io.Writer, lines []string) {
	if w == nil {
		return
	}
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}
