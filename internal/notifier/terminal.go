package notifier

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Terminal permission modes.
const (
	TerminalModeGranted = "granted"
	TerminalModeDenied  = "denied"
	TerminalModePrompt  = "prompt"
)

// TerminalFacility shows notifications on an interactive terminal. It is
// only available when the output is a TTY. Input is read by one goroutine
// for the life of the facility, so a prompt that outlives its context still
// gets its answer on the next request.
type TerminalFacility struct {
	mu         sync.Mutex
	permission Permission
	prompted   bool

	lines     chan string
	startRead sync.Once

	in         io.Reader
	out        io.Writer
	isTerminal func() bool
	now        func() time.Time
}

// NewTerminalFacility creates a facility on stdin/stdout. mode is one of
// granted, denied or prompt; anything else is treated as prompt.
func NewTerminalFacility(mode string) *TerminalFacility {
	return newTerminalFacility(mode, os.Stdin, os.Stdout, func() bool {
		return term.IsTerminal(int(os.Stdout.Fd()))
	})
}

func newTerminalFacility(mode string, in io.Reader, out io.Writer, isTerminal func() bool) *TerminalFacility {
	perm := PermissionDefault
	switch strings.ToLower(mode) {
	case TerminalModeGranted:
		perm = PermissionGranted
	case TerminalModeDenied:
		perm = PermissionDenied
	}
	return &TerminalFacility{
		permission: perm,
		lines:      make(chan string, 1),
		in:         in,
		out:        out,
		isTerminal: isTerminal,
		now:        time.Now,
	}
}

// Available reports whether stdout is a terminal.
func (f *TerminalFacility) Available() bool {
	return f.isTerminal()
}

// Permission returns the current permission state.
func (f *TerminalFacility) Permission() Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

// RequestPermission asks once on the terminal and remembers the answer. If
// ctx ends first the question stays open: later calls wait for the same
// answer without prompting again.
func (f *TerminalFacility) RequestPermission(ctx context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.permission != PermissionDefault {
		return f.permission, nil
	}

	f.startRead.Do(func() { go f.readLines() })
	if !f.prompted {
		fmt.Fprint(f.out, "Show alert notifications in this terminal? [y/N]: ")
		f.prompted = true
	}

	select {
	case line, ok := <-f.lines:
		if ok && (line == "y" || line == "yes") {
			f.permission = PermissionGranted
		} else {
			f.permission = PermissionDenied
		}
	case <-ctx.Done():
		return PermissionDefault, ctx.Err()
	}

	return f.permission, nil
}

// readLines feeds trimmed, lower-cased input lines to f.lines and closes it
// at end of input.
func (f *TerminalFacility) readLines() {
	defer close(f.lines)
	r := bufio.NewReader(f.in)
	for {
		line, err := r.ReadString('\n')
		if err == nil || line != "" {
			f.lines <- strings.TrimSpace(strings.ToLower(line))
		}
		if err != nil {
			return
		}
	}
}

// Show writes the notification with a bell.
func (f *TerminalFacility) Show(title, body string) error {
	_, err := fmt.Fprintf(f.out, "\a[%s] %s\n  %s\n", f.now().Format("15:04:05"), title, body)
	return err
}
