// Package tsv reads the tab-separated tables exchanged with peak picking and
// alignment tools. The first non-comment line is the header; columns are
// addressed by header name, case-insensitively.
package tsv

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Reader streams rows of a headed tab-separated file.
type Reader struct {
	scanner *bufio.Scanner
	lineNum int
	header  []string
	columns map[string]int
	fields  []string
	err     error
}

// NewReader reads the header line and checks that every required column is
// present.
func NewReader(r io.Reader, required ...string) (*Reader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	t := &Reader{scanner: scanner, columns: make(map[string]int)}

	for t.scanner.Scan() {
		t.lineNum++
		line := strings.TrimRight(t.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t.header = strings.Split(line, "\t")
		for i, name := range t.header {
			t.header[i] = strings.TrimSpace(name)
			t.columns[strings.ToLower(t.header[i])] = i
		}
		break
	}
	if err := t.scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	if t.header == nil {
		return nil, fmt.Errorf("missing header line")
	}
	for _, name := range required {
		if !t.Has(name) {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return t, nil
}

// Header returns the column names in file order.
func (t *Reader) Header() []string {
	return t.header
}

// Has reports whether the header names the column.
func (t *Reader) Has(name string) bool {
	_, ok := t.columns[strings.ToLower(name)]
	return ok
}

// Index returns the position of a column, or -1.
func (t *Reader) Index(name string) int {
	if i, ok := t.columns[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

// Next advances to the next data row. Blank and '#' lines are skipped.
func (t *Reader) Next() bool {
	t.fields = nil
	for t.scanner.Scan() {
		t.lineNum++
		line := strings.TrimRight(t.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t.fields = strings.Split(line, "\t")
		return true
	}
	t.err = t.scanner.Err()
	return false
}

// Err returns the scanner error, if any.
func (t *Reader) Err() error {
	return t.err
}

// Line returns the current line number.
func (t *Reader) Line() int {
	return t.lineNum
}

// Fields returns the raw fields of the current row.
func (t *Reader) Fields() []string {
	return t.fields
}

// String returns the trimmed value of a column; missing columns and short
// rows yield "".
func (t *Reader) String(name string) string {
	i := t.Index(name)
	if i < 0 || i >= len(t.fields) {
		return ""
	}
	return strings.TrimSpace(t.fields[i])
}

// Float parses a column. Empty values yield ok == false without error.
func (t *Reader) Float(name string) (v float64, ok bool, err error) {
	s := t.String(name)
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("line %d: invalid %s value '%s': %w", t.lineNum, name, s, err)
	}
	return v, true, nil
}

// Int parses an integer column. Empty values yield 0.
func (t *Reader) Int(name string) (int, error) {
	s := t.String(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid %s value '%s': %w", t.lineNum, name, s, err)
	}
	return v, nil
}
