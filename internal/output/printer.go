// Package output is the upload output view: every user facing line goes
// through a Printer so goroutines never interleave on the terminal, and the
// last lines stay available for the history of a session.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// DefaultLimit is the number of lines a Printer keeps.
const DefaultLimit = 500

type Printer struct {
	mu        sync.Mutex
	out       io.Writer
	suspended bool
	limit     int
	lines     []string
	partial   strings.Builder
}

// Default is the shared printer of the application.
var Default = New(os.Stdout, DefaultLimit)

// New returns a printer writing to out and keeping the last limit lines.
func New(out io.Writer, limit int) *Printer {
	return &Printer{out: out, limit: limit}
}

func (p *Printer) Print(a ...interface{}) {
	p.write(fmt.Sprint(a...))
}

func (p *Printer) Printf(format string, a ...interface{}) {
	p.write(fmt.Sprintf(format, a...))
}

func (p *Printer) Println(a ...interface{}) {
	p.write(fmt.Sprintln(a...))
}

// PrintBlock prints a multi-line block atomically. If clearLine is true the
// current line is cleared first.
func (p *Printer) PrintBlock(block string, clearLine bool) {
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if clearLine && !p.suspended {
		fmt.Fprint(p.out, "\r\x1b[K")
	}
	p.writeLocked(block)
}

// ClearLine clears the current line and returns the cursor to the beginning.
func (p *Printer) ClearLine() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspended {
		return
	}
	fmt.Fprint(p.out, "\r\x1b[K")
}

func (p *Printer) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeLocked(s)
}

// writeLocked records s in the history even while suspended, so lines
// printed behind an interactive prompt are not lost.
func (p *Printer) writeLocked(s string) {
	p.record(s)
	if p.suspended {
		return
	}
	fmt.Fprint(p.out, s)
}

func (p *Printer) record(s string) {
	if p.limit <= 0 {
		return
	}
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			p.partial.WriteString(s)
			return
		}
		p.partial.WriteString(s[:i])
		p.lines = append(p.lines, p.partial.String())
		p.partial.Reset()
		s = s[i+1:]
		if len(p.lines) > p.limit {
			p.lines = p.lines[len(p.lines)-p.limit:]
		}
	}
}

// Lines returns the kept lines, oldest first.
func (p *Printer) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// Clear empties the history.
func (p *Printer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = nil
	p.partial.Reset()
}

// Suspend silences the terminal until Resume is called. Useful while an
// interactive prompt owns the terminal.
func (p *Printer) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = true
}

func (p *Printer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = false
}

func (p *Printer) IsSuspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}
