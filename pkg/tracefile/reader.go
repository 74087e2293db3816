package tracefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineSize bounds a single trace line; ns-3 lines with full header dumps
// can be a few kilobytes long.
const maxLineSize = 1 << 20

// LineHandler is called for every line of a trace, with its 1-based line number.
type LineHandler func(lineNo int, line string) error

// Reader reads lines from an ASCII trace file.
type Reader struct {
	path string
	file *os.File
}

// NewReader opens the trace file at filePath.
func NewReader(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file '%s': %w", filePath, err)
	}
	return &Reader{path: filePath, file: f}, nil
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadLines feeds every line of the file to fn, in file order. It stops at the
// first error returned by fn.
func (r *Reader) ReadLines(fn LineHandler) error {
	if err := ScanLines(r.file, fn); err != nil {
		return fmt.Errorf("reading '%s': %w", r.path, err)
	}
	return nil
}

// ScanLines feeds every line of rd to fn, in order.
func ScanLines(rd io.Reader, fn LineHandler) error {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := fn(lineNo, scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// CountLines returns the number of lines in the file at filePath.
func CountLines(filePath string) (int, error) {
	r, err := NewReader(filePath)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n := 0
	err = r.ReadLines(func(int, string) error {
		n++
		return nil
	})
	return n, err
}

// ReadManifest returns the trace file paths listed in a manifest, one per line.
// Blank lines and lines starting with '#' are ignored.
func ReadManifest(filePath string) ([]string, error) {
	r, err := NewReader(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var paths []string
	err = r.ReadLines(func(_ int, line string) error {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			return nil
		}
		paths = append(paths, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
