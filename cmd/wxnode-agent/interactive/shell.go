// Package interactive provides the line-editing front end of wxnode-agent.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Executor runs one command line and returns its exit status.
type Executor interface {
	Execute(ctx context.Context, line string) int
}

// Shell reads command lines from the terminal.
type Shell struct {
	rl *readline.Instance
}

// New creates a shell with the given prompt.
func New(prompt string) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryLimit:    200,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output and inbound publications so they do not
// interfere with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run reads lines and hands them to exec until EOF or ctx is done.
// Ctrl-C only clears the current line.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc, exec Executor) {
	defer s.rl.Close()

	fmt.Fprintln(s.rl.Stdout(), "Type 'help' for commands.")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		exec.Execute(ctx, line)
	}
}
