// SPDX-License-Identifier: MPL-2.0

package settings

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// scopeHeaderPrefix starts the line Write emits whenever the scope changes.
const scopeHeaderPrefix = "################## scope: "

// ErrFormat is the sentinel error wrapped by FormatError.
var ErrFormat = errors.New("malformed settings file")

// lineRe matches one key="value" line. Keys never contain spaces or '='.
var lineRe = regexp.MustCompile(`^([^ =]+)="(.*)"$`)

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n")
)

type (
	// Pair is one key="value" line of a settings file.
	Pair struct {
		Key   string
		Value string
	}

	// FormatError reports a settings file line that is neither blank, a comment,
	// nor a key="value" assignment.
	FormatError struct {
		Path string
		Line int
		Text string
	}
)

// Error implements the error interface for FormatError.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s:%d: invalid setting %q", e.Path, e.Line, e.Text)
}

// Unwrap returns ErrFormat for errors.Is() compatibility.
func (e *FormatError) Unwrap() error { return ErrFormat }

// Escape encodes backslashes and newlines the way the engine prints them in
// its log.
func Escape(value string) string {
	return escaper.Replace(value)
}

// Unescape reverses Escape in a single left-to-right pass. Escapes other than
// \\ and \n are kept as is.
func Unescape(value string) string {
	return unescaper.Replace(value)
}

// ParseLine parses a single key="value" line. The value is unescaped.
func ParseLine(line string) (Pair, bool) {
	m := lineRe.FindStringSubmatch(strings.TrimRight(line, " \t\r\n"))
	if m == nil {
		return Pair{}, false
	}
	return Pair{Key: m[1], Value: Unescape(m[2])}, true
}

// Read parses a settings stream. Lines starting with '#' and blank lines are
// skipped; pairs are returned in file order, repeated keys included. name is
// used in error messages.
func Read(r io.Reader, name string) ([]Pair, error) {
	var out []Pair
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		p, ok := ParseLine(line)
		if !ok {
			return nil, &FormatError{Path: name, Line: lineNo, Text: line}
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}

// ReadFile parses the settings file at path.
func ReadFile(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open settings file: %w", err)
	}
	defer f.Close()
	return Read(f, path)
}

// LoadFile reads the settings file at path into a Map; later lines win.
func LoadFile(path string) (*Map, error) {
	pairs, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := NewMap()
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return m, nil
}

// Write renders cleaned entries, emitting a scope header line whenever the scope
// changes. Entries not marked ok are written as comments.
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	var last *Scope
	for _, e := range entries {
		if last == nil || *last != e.Scope {
			fmt.Fprintf(bw, "%s%s\n", scopeHeaderPrefix, e.Scope)
			s := e.Scope
			last = &s
		}
		if e.Action != ActionOK {
			fmt.Fprintf(bw, "#%s: ", e.Action)
		}
		writePair(bw, e.Key, e.Value)
	}
	return bw.Flush()
}

// WritePairs renders pairs as a settings file.
func WritePairs(w io.Writer, pairs []Pair) error {
	bw := bufio.NewWriter(w)
	for _, p := range pairs {
		writePair(bw, p.Key, p.Value)
	}
	return bw.Flush()
}

func writePair(w *bufio.Writer, key, value string) {
	fmt.Fprintf(w, "%s=\"%s\"\n", key, Escape(value))
}
