// Package logger implements the built-in plugin which writes diagnostic messages to a destination.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/oclgrind/oclgrind/api"
)

// DefaultMaxErrors is the count of error and warning messages printed before further ones are suppressed.
const DefaultMaxErrors = 1000

type flusher interface {
	Flush() error
}

// Logger implements api.Plugin by writing each message, surrounded by newlines, to a writer.
//
// Error and warning messages count against a limit. Once reached, a single notice is written and further errors and
// warnings are dropped. Other messages are always written.
type Logger struct {
	api.PluginBase

	w      io.Writer
	closer io.Closer

	maxErrors int
	numErrors int
}

// New returns a Logger writing to w. A maxErrors below one disables the limit.
func New(w io.Writer, maxErrors int) *Logger {
	return &Logger{w: w, maxErrors: maxErrors}
}

// Open returns a Logger writing to a new file at path. Close releases the file.
func Open(path string, maxErrors int) (*Logger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	l := New(f, maxErrors)
	l.closer = f
	return l, nil
}

// NumErrors returns the count of error and warning messages observed, including suppressed ones.
func (l *Logger) NumErrors() int {
	return l.numErrors
}

// Log implements api.Plugin Log
func (l *Logger) Log(messageType api.MessageType, message string) {
	if messageType == api.MessageTypeError || messageType == api.MessageTypeWarning {
		l.numErrors++
		if l.maxErrors > 0 && l.numErrors > l.maxErrors {
			if l.numErrors == l.maxErrors+1 {
				fmt.Fprintf(l.w, "\nOclgrind: %d errors generated - suppressing further errors\n", l.maxErrors) //nolint
				l.flush()
			}
			return
		}
	}

	io.WriteString(l.w, "\n")    //nolint
	io.WriteString(l.w, message) //nolint
	io.WriteString(l.w, "\n")    //nolint
	l.flush()
}

func (l *Logger) flush() {
	if f, ok := l.w.(flusher); ok {
		f.Flush() //nolint
	}
}

// Close implements io.Closer, closing the file opened by Open.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
