package internal

import (
	"fmt"
	"io"
)

// Writer is where commands print results meant for the user, as opposed to
// log output.
type Writer interface {
	// Println writes a message with a newline to the output stream.
	Println(v ...any)

	// Printf writes a formatted message to the output stream.
	Printf(format string, v ...any)

	// Warningf writes a formatted warning message to the error stream.
	Warningf(format string, v ...any)
}

// StandardWriter implements Writer on a pair of streams.
type StandardWriter struct {
	out io.Writer
	err io.Writer
}

// NewWriter creates a Writer printing results to out and warnings to err.
func NewWriter(out, err io.Writer) *StandardWriter {
	return &StandardWriter{
		out: out,
		err: err,
	}
}

func (w *StandardWriter) Println(v ...any) {
	fmt.Fprintln(w.out, v...)
}

func (w *StandardWriter) Printf(format string, v ...any) {
	fmt.Fprintf(w.out, format, v...)
}

// Warningf writes a formatted warning message to the error stream with a "Warning: " prefix.
func (w *StandardWriter) Warningf(format string, v ...any) {
	fmt.Fprintf(w.err, "Warning: "+format+"\n", v...)
}
