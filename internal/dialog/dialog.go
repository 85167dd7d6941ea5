// Package dialog asks the operator for input through desktop dialogs.
package dialog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrCancelled is returned when the operator closes or cancels a prompt.
var ErrCancelled = errors.New("dialog cancelled")

// Host is the set of prompts the interactive front end needs.
type Host interface {
	Info(ctx context.Context, title, text string) error
	Warning(ctx context.Context, title, text string) error
	Error(ctx context.Context, title, text string) error

	// Question returns true for yes and false for no. Only a dialog failure
	// is an error.
	Question(ctx context.Context, title, text string) (bool, error)

	SelectFile(ctx context.Context, title string, filters ...Filter) (string, error)
	SelectDirectory(ctx context.Context, title string) (string, error)
	SaveFile(ctx context.Context, title, defaultPath string) (string, error)

	// List shows rows and returns the first column of the chosen row.
	List(ctx context.Context, title, text string, columns []string, rows [][]string) (string, error)
	Entry(ctx context.Context, title, text, defaultValue string) (string, error)

	// Progress opens a progress window fed by the returned writer. Closing the
	// writer closes the window.
	Progress(ctx context.Context, title, text string) (io.WriteCloser, error)
}

// Filter restricts a file picker, e.g. Filter{"PDF files", []string{"*.pdf"}}.
type Filter struct {
	Name     string
	Patterns []string
}

func (f Filter) arg() string {
	return fmt.Sprintf("--file-filter=%s | %s", f.Name, strings.Join(f.Patterns, " "))
}

// Zenity implements Host by running the zenity binary.
type Zenity struct {
	binary string
}

func NewZenity() *Zenity { return &Zenity{binary: "zenity"} }

// Available reports whether zenity is on PATH.
func (z *Zenity) Available() bool {
	_, err := exec.LookPath(z.binary)
	return err == nil
}

func (z *Zenity) Info(ctx context.Context, title, text string) error {
	_, err := z.run(ctx, "--info", "--title="+title, "--text="+text, "--no-wrap")
	return ignoreCancel(err)
}

func (z *Zenity) Warning(ctx context.Context, title, text string) error {
	_, err := z.run(ctx, "--warning", "--title="+title, "--text="+text, "--no-wrap")
	return ignoreCancel(err)
}

func (z *Zenity) Error(ctx context.Context, title, text string) error {
	_, err := z.run(ctx, "--error", "--title="+title, "--text="+text, "--no-wrap")
	return ignoreCancel(err)
}

func (z *Zenity) Question(ctx context.Context, title, text string) (bool, error) {
	_, err := z.run(ctx, "--question", "--title="+title, "--text="+text)
	if errors.Is(err, ErrCancelled) {
		return false, nil
	}
	return err == nil, err
}

func (z *Zenity) SelectFile(ctx context.Context, title string, filters ...Filter) (string, error) {
	args := []string{"--file-selection", "--title=" + title}
	for _, f := range filters {
		args = append(args, f.arg())
	}
	return z.run(ctx, args...)
}

func (z *Zenity) SelectDirectory(ctx context.Context, title string) (string, error) {
	return z.run(ctx, "--file-selection", "--directory", "--title="+title)
}

func (z *Zenity) SaveFile(ctx context.Context, title, defaultPath string) (string, error) {
	args := []string{"--file-selection", "--save", "--confirm-overwrite", "--title=" + title}
	if defaultPath != "" {
		args = append(args, "--filename="+defaultPath)
	}
	return z.run(ctx, args...)
}

func (z *Zenity) List(ctx context.Context, title, text string, columns []string, rows [][]string) (string, error) {
	args := []string{"--list", "--title=" + title, "--text=" + text, "--print-column=1"}
	for _, c := range columns {
		args = append(args, "--column="+c)
	}
	for _, row := range rows {
		args = append(args, row...)
	}
	return z.run(ctx, args...)
}

func (z *Zenity) Entry(ctx context.Context, title, text, defaultValue string) (string, error) {
	return z.run(ctx, "--entry", "--title="+title, "--text="+text, "--entry-text="+defaultValue)
}

func (z *Zenity) Progress(ctx context.Context, title, text string) (io.WriteCloser, error) {
	cmd := exec.CommandContext(ctx, z.binary, "--progress", "--title="+title, "--text="+text,
		"--percentage=0", "--auto-close")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("zenity progress pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start zenity progress: %w", err)
	}
	return &progressWindow{stdin: stdin, cmd: cmd}, nil
}

type progressWindow struct {
	stdin  io.WriteCloser
	cmd    *exec.Cmd
	closed bool
}

func (p *progressWindow) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close ends the stream and waits for the window. A window the operator
// dismissed early is not an error.
func (p *progressWindow) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	_ = p.stdin.Close()
	return ignoreCancel(classify(p.cmd.Wait(), nil))
}

// run executes zenity and returns its trimmed stdout. Exit status 1 means
// the operator cancelled; 5 is a timeout and treated the same.
func (z *Zenity) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, z.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := classify(cmd.Run(), &stderr); err != nil {
		return "", err
	}
	return strings.TrimRight(stdout.String(), "\r\n"), nil
}

func classify(err error, stderr *bytes.Buffer) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case 1, 5:
			return ErrCancelled
		}
	}
	if stderr != nil && stderr.Len() > 0 {
		return fmt.Errorf("zenity: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return fmt.Errorf("zenity: %w", err)
}

func ignoreCancel(err error) error {
	if errors.Is(err, ErrCancelled) {
		return nil
	}
	return err
}
