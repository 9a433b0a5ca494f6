package logger

import (
	"io"
	"os"

	"github.com/fatih/color" // Import the fatih/color package for colored console output
)

// Logger is the reporting surface handed to every component of the pull.
// Each method behaves like fmt.Printf; callers supply their own trailing newline.
type Logger interface {
	Info(format string, a ...any)
	Warn(format string, a ...any)
	Error(format string, a ...any)
	Debug(format string, a ...any)
}

// Console is a Logger that prints colorized messages to a writer.
// Green is used for info, bright magenta for warnings, red for errors
// and cyan for debug output.
type Console struct {
	info  func(w io.Writer, format string, a ...any)
	warn  func(w io.Writer, format string, a ...any)
	err   func(w io.Writer, format string, a ...any)
	debug func(w io.Writer, format string, a ...any)
	out   io.Writer
}

// New builds a Console writing to w. A nil writer means os.Stdout.
// When enableDebug is false, Debug is a no-op.
func New(w io.Writer, enableDebug bool) *Console {
	if w == nil {
		w = os.Stdout
	}
	c := &Console{
		info:  color.New(color.FgGreen).FprintfFunc(),
		warn:  color.New(color.FgHiMagenta).FprintfFunc(),
		err:   color.New(color.FgRed).FprintfFunc(),
		debug: func(io.Writer, string, ...any) {},
		out:   w,
	}
	if enableDebug {
		c.debug = color.New(color.FgCyan).FprintfFunc()
	}
	return c
}

// Info logs informational messages.
func (c *Console) Info(format string, a ...any) { c.info(c.out, format, a...) }

// Warn logs warnings.
func (c *Console) Warn(format string, a ...any) { c.warn(c.out, format, a...) }

// Error logs errors.
func (c *Console) Error(format string, a ...any) { c.err(c.out, format, a...) }

// Debug logs debug messages if debug output was enabled in New.
func (c *Console) Debug(format string, a ...any) { c.debug(c.out, format, a...) }

type discard struct{}

func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
func (discard) Debug(string, ...any) {}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}
