package git

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// progressLinePattern matches git sideband progress such as
// "Counting objects:  45% (9/20)" or "Receiving objects: 100% (20/20), 1.2 KiB | 1.2 MiB/s, done."
var progressLinePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z ]*?):\s+(\d{1,3})%`)

// Progress is one parsed progress report of a remote operation
type Progress struct {
	// Percentage is the completion of the current stage (0-100)
	Percentage int

	// Stage is the label git reports, e.g. "Counting objects"
	Stage string

	// Details is the full progress line as reported by the remote
	Details string
}

// ParseProgress parses a single sideband progress line.
// Lines without a percentage (e.g. "Enumerating objects: 20, done.") are returned with
// the stage set and ok true, but Percentage -1. Blank lines return ok false.
func ParseProgress(line string) (Progress, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "remote:")
	line = strings.TrimSpace(line)
	if line == "" {
		return Progress{}, false
	}

	if match := progressLinePattern.FindStringSubmatch(line); match != nil {
		percentage, err := strconv.Atoi(match[2])
		if err == nil {
			return Progress{
				Percentage: min(percentage, 100),
				Stage:      strings.TrimSpace(match[1]),
				Details:    line,
			}, true
		}
	}

	stage := ""
	if idx := strings.Index(line, ":"); idx > 0 {
		stage = strings.TrimSpace(line[:idx])
	}
	return Progress{Percentage: -1, Stage: stage, Details: line}, true
}

// ProgressWriter is an io.Writer that splits sideband output into lines and
// reports each parsed line to a callback. git redraws progress with carriage
// returns, so both '\r' and '\n' terminate a line.
type ProgressWriter struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	callback func(Progress)
}

// NewProgressWriter creates a ProgressWriter reporting to callback
func NewProgressWriter(callback func(Progress)) *ProgressWriter {
	return &ProgressWriter{callback: callback}
}

func (w *ProgressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		idx := bytes.IndexAny(data, "\r\n")
		if idx < 0 {
			break
		}
		line := string(data[:idx])
		w.buf.Next(idx + 1)
		w.emit(line)
	}
	return len(p), nil
}

// Flush reports any buffered partial line
func (w *ProgressWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return
	}
	line := w.buf.String()
	w.buf.Reset()
	w.emit(line)
}

func (w *ProgressWriter) emit(line string) {
	if w.callback == nil {
		return
	}
	if progress, ok := ParseProgress(line); ok {
		w.callback(progress)
	}
}
