// Package progress renders per-file download progress.
package progress

import (
	"fmt"
	"io"
	"os"

	bubbleprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

const barWidth = 40

// Sink consumes byte counts for one file at a time.
// Start is called once per file with the expected size (0 when unknown),
// Add after every chunk written, and Finish when the file is closed.
type Sink interface {
	Start(name string, total int64)
	Add(n int)
	Finish()
}

var labelStyle = lipgloss.NewStyle().Bold(true)

// Bar redraws a single progress line in place.
type Bar struct {
	out     io.Writer
	model   bubbleprogress.Model
	name    string
	total   int64
	current int64
}

// NewBar returns a Bar drawing to w.
func NewBar(w io.Writer) *Bar {
	return &Bar{
		out:   w,
		model: bubbleprogress.New(bubbleprogress.WithDefaultGradient(), bubbleprogress.WithWidth(barWidth)),
	}
}

func (b *Bar) Start(name string, total int64) {
	b.name = name
	b.total = total
	b.current = 0
	b.draw()
}

func (b *Bar) Add(n int) {
	b.current += int64(n)
	b.draw()
}

// Finish draws the final state and ends the line.
func (b *Bar) Finish() {
	b.draw()
	fmt.Fprintln(b.out)
}

// Current returns the number of bytes counted for the file in flight.
func (b *Bar) Current() int64 {
	return b.current
}

func (b *Bar) draw() {
	// Clear the line, then return the cursor to column 0.
	fmt.Fprint(b.out, "\x1b[2K\r", b.line())
}

func (b *Bar) line() string {
	label := labelStyle.Render(b.name)
	done := humanize.Bytes(uint64(b.current))
	if b.total <= 0 {
		return fmt.Sprintf("%s %s", label, done)
	}
	percent := float64(b.current) / float64(b.total)
	if percent > 1 {
		percent = 1
	}
	return fmt.Sprintf("%s %s %s/%s", label, b.model.ViewAs(percent), done, humanize.Bytes(uint64(b.total)))
}

// Plain prints one summary line per file. It is used when the output is not
// a terminal and in-place redraws would only add noise.
type Plain struct {
	out     io.Writer
	name    string
	total   int64
	current int64
}

// NewPlain returns a Plain sink writing to w.
func NewPlain(w io.Writer) *Plain {
	return &Plain{out: w}
}

func (p *Plain) Start(name string, total int64) {
	p.name = name
	p.total = total
	p.current = 0
}

func (p *Plain) Add(n int) {
	p.current += int64(n)
}

func (p *Plain) Finish() {
	if p.total > 0 {
		fmt.Fprintf(p.out, "%s %s/%s\n", p.name, humanize.Bytes(uint64(p.current)), humanize.Bytes(uint64(p.total)))
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", p.name, humanize.Bytes(uint64(p.current)))
}

type discard struct{}

func (discard) Start(string, int64) {}
func (discard) Add(int)             {}
func (discard) Finish()             {}

// Discard ignores all progress.
var Discard Sink = discard{}

// Auto picks a Bar for terminals and a Plain sink otherwise.
func Auto(f *os.File) Sink {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return NewBar(f)
	}
	return NewPlain(f)
}
