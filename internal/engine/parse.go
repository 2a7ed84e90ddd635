// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/plater3d/plater/internal/settings"
)

// LogMarker precedes the settings the engine echoes into its log.
const LogMarker = logLevel + FlagSetting

const logLevel = "[WARNING]  "

var (
	// ErrParse is the sentinel error wrapped by ParseError.
	ErrParse = errors.New("command line parse error")
	// ErrNoLogSettings is returned when a log holds no settings block.
	ErrNoLogSettings = errors.New("no settings found in log")

	settingRe = regexp.MustCompile(`^([^ =]+)="([^"]*)"`)
)

// ParseError reports a command line the grammar does not accept. Token is the
// offending token index after quote joining, or -1 when not applicable.
type ParseError struct {
	Token  int
	Text   string
	Reason string
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	if e.Token < 0 {
		return "parse command line: " + e.Reason
	}
	return fmt.Sprintf("parse command line: token %d %q: %s", e.Token, e.Text, e.Reason)
}

// Unwrap returns ErrParse for errors.Is() compatibility.
func (e *ParseError) Unwrap() error { return ErrParse }

// SplitCommandLine splits text on single spaces, rejoining tokens that belong
// to one double-quoted string. Newlines count as spaces.
func SplitCommandLine(text string) ([]string, error) {
	raw := strings.Split(strings.ReplaceAll(text, "\n", " "), " ")
	out := make([]string, 0, len(raw))
	inString := false
	for _, tok := range raw {
		if inString {
			out[len(out)-1] += " " + tok
		} else {
			out = append(out, tok)
		}
		if strings.Count(tok, `"`)%2 == 1 {
			inString = !inString
		}
	}
	if inString {
		return nil, &ParseError{Token: len(out) - 1, Text: out[len(out)-1], Reason: "unterminated string"}
	}
	return out, nil
}

// ParseCommandLine extracts the scoped settings from an engine command line.
// A leading "slice" or "<binary> slice" is skipped.
//
// Scopes: settings start in (general, 0); -g opens the next group and --next
// re-selects the last opened one (group 0 before any -g); -l opens the next
// object; -eN selects extruder N. -v, -p and -m* are ignored; -o and -j
// consume their argument.
func ParseCommandLine(text string) ([]settings.Triple, error) {
	tokens, err := SplitCommandLine(text)
	if err != nil {
		return nil, err
	}

	i := 0
	switch {
	case len(tokens) > 0 && tokens[0] == SliceCommand:
		i = 1
	case len(tokens) > 1 && tokens[1] == SliceCommand:
		i = 2
	}

	var (
		out     []settings.Triple
		scope   = settings.General
		groupID int
		objID   int
	)
	next := func(flag string) (string, error) {
		if i+1 >= len(tokens) {
			return "", &ParseError{Token: i, Text: flag, Reason: "missing argument"}
		}
		i++
		return tokens[i], nil
	}

	for ; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok == "":
		case tok == FlagGroup:
			scope = settings.Scope{Kind: settings.ScopeGroup, Index: groupID}
			groupID++
		case tok == FlagNextGroup:
			scope = settings.Scope{Kind: settings.ScopeGroup, Index: max(groupID-1, 0)}
		case tok == FlagLoad:
			if _, err := next(tok); err != nil {
				return nil, err
			}
			scope = settings.Scope{Kind: settings.ScopeObject, Index: objID}
			objID++
		case strings.HasPrefix(tok, FlagExtruder):
			n, err := strconv.Atoi(tok[len(FlagExtruder):])
			if err != nil || n < 0 {
				return nil, &ParseError{Token: i, Text: tok, Reason: "invalid extruder number"}
			}
			scope = settings.Scope{Kind: settings.ScopeExtruder, Index: n}
		case tok == FlagVerbose, tok == FlagProgress, strings.HasPrefix(tok, "-m"):
		case tok == FlagOutput, tok == FlagDefinition:
			if _, err := next(tok); err != nil {
				return nil, err
			}
		case tok == FlagSetting:
			arg, err := next(tok)
			if err != nil {
				return nil, err
			}
			m := settingRe.FindStringSubmatch(arg)
			if m == nil {
				return nil, &ParseError{Token: i, Text: arg, Reason: `setting is not key="value"`}
			}
			out = append(out, settings.Triple{Scope: scope, Key: m[1], Value: settings.Unescape(m[2])})
		default:
			return nil, &ParseError{Token: i, Text: tok, Reason: "unsupported option"}
		}
	}
	return out, nil
}

// ScanLogSettings returns every settings block echoed into an engine log, in
// order. A block starts at the line containing LogMarker; when a setting
// spans several log lines the continuation lines, stripped of any log prefix,
// are joined with an escaped newline until one ends with a closing quote.
func ScanLogSettings(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var blocks []string
	for sc.Scan() {
		line := sc.Text()
		pos := strings.Index(line, LogMarker)
		if pos < 0 {
			continue
		}
		first := strings.TrimSpace(line[pos+len(LogMarker)-len(FlagSetting):])
		var sb strings.Builder
		sb.WriteString(first)
		open := !strings.HasSuffix(first, `"`)
		for open && sc.Scan() {
			cont := strings.TrimSpace(sc.Text())
			if strings.Contains(cont, "Slicing took") {
				return nil, &ParseError{Token: -1, Reason: "settings block runs into the end of the slice"}
			}
			if i := strings.Index(cont, logLevel); i >= 0 {
				cont = cont[i+len(logLevel):]
			}
			sb.WriteString(`\n` + cont)
			open = !strings.HasSuffix(cont, `"`)
		}
		blocks = append(blocks, sb.String())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return blocks, nil
}

// ExtractLogSettings returns the last settings block of an engine log.
func ExtractLogSettings(r io.Reader) (string, error) {
	blocks, err := ScanLogSettings(r)
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return "", ErrNoLogSettings
	}
	return blocks[len(blocks)-1], nil
}
