// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt reads operator answers, one line per question.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
)

var (
	// ErrClosed is returned once the input is exhausted (EOF, Ctrl-D).
	ErrClosed = errors.New("prompt: input closed")

	// ErrInterrupted is returned when the operator hits Ctrl-C at a prompt
	// or the context is canceled while waiting for an answer.
	ErrInterrupted = errors.New("prompt: interrupted")
)

// Input shows a question and returns the operator's answer, without the
// trailing newline. Prompt returns as soon as ctx is done.
type Input interface {
	Prompt(ctx context.Context, label string) (string, error)
}

type answer struct {
	line string
	err  error
}

// Console reads from a terminal with line editing, or from a plain stream
// (pipe, file) line by line.
type Console struct {
	rl     *readline.Instance
	reader *bufio.Reader
	out    io.Writer

	// pending is a read abandoned by a canceled Prompt, picked up by the
	// next one. Stdin reads cannot be interrupted.
	pending chan answer
}

// NewConsole returns a console over stdin/stdout. Line editing is only
// enabled when stdin is a terminal.
func NewConsole() (*Console, error) {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		rl, err := readline.NewEx(&readline.Config{
			InterruptPrompt:        "^C",
			EOFPrompt:              "",
			DisableAutoSaveHistory: true,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing readline: %w", err)
		}

		return &Console{rl: rl, out: os.Stdout}, nil
	}

	return NewReaderConsole(os.Stdin, os.Stdout), nil
}

// NewReaderConsole reads answers from in and writes questions to out.
func NewReaderConsole(in io.Reader, out io.Writer) *Console {
	return &Console{reader: bufio.NewReader(in), out: out}
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
}

// readlineError maps readline's end of input errors.
func readlineError(err error) error {
	if errors.Is(err, readline.ErrInterrupt) {
		return fmt.Errorf("%w: %w", ErrInterrupted, err)
	}

	return fmt.Errorf("%w: %w", ErrClosed, err)
}

func (c *Console) readLine() (string, error) {
	if c.rl != nil {
		line, err := c.rl.Readline()
		if err != nil {
			return "", readlineError(err)
		}

		return line, nil
	}

	line, err := c.reader.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// Prompt implements Input.
func (c *Console) Prompt(ctx context.Context, label string) (string, error) {
	if ctx.Err() != nil {
		return "", interrupted(ctx)
	}

	if c.rl != nil {
		c.rl.SetPrompt(label)
	} else if _, err := fmt.Fprint(c.out, label); err != nil {
		return "", err
	}

	if c.pending == nil {
		ch := make(chan answer, 1)
		go func() {
			line, err := c.readLine()
			ch <- answer{line: line, err: err}
		}()

		c.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", interrupted(ctx)
	case a := <-c.pending:
		c.pending = nil

		return a.line, a.err
	}
}

// Close releases the terminal.
func (c *Console) Close() error {
	if c.rl != nil {
		return c.rl.Close()
	}

	return nil
}

// Scripted replays a fixed list of answers. It records every label it was
// asked with, and returns ErrClosed once the answers run out.
type Scripted struct {
	Answers []string
	Labels  []string
}

// NewScripted returns a Scripted input with the given answers.
func NewScripted(answers ...string) *Scripted {
	return &Scripted{Answers: answers}
}

// Prompt implements Input.
func (s *Scripted) Prompt(ctx context.Context, label string) (string, error) {
	s.Labels = append(s.Labels, label)

	if ctx.Err() != nil {
		return "", interrupted(ctx)
	}

	if len(s.Answers) == 0 {
		return "", fmt.Errorf("%w: %w", ErrClosed, io.EOF)
	}

	next := s.Answers[0]
	s.Answers = s.Answers[1:]

	return next, nil
}
