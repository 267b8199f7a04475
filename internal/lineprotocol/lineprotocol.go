// Package lineprotocol is a minimal, dependency-free lexer for InfluxDB-style
// line protocol: "measurement,tag=val,tag=val field=val,field=val timestamp".
//
// spec.md §1 names the real line-protocol lexer an external collaborator
// ("consumed as a pure function producing typed, validated rows") and no
// line-protocol parsing library exists anywhere in the retrieved corpus
// (see DESIGN.md) — so this package plays that role directly, kept
// deliberately small: it does no catalog-aware validation at all, that is
// WriteValidator's job one layer up.
package lineprotocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Precision selects the unit bare-integer timestamps in line protocol are
// interpreted in. The default timestamp (ingestTime) is always nanoseconds.
type Precision int

const (
	Nanosecond Precision = iota
	Microsecond
	Millisecond
	Second
)

func (p Precision) multiplier() int64 {
	switch p {
	case Microsecond:
		return 1_000
	case Millisecond:
		return 1_000_000
	case Second:
		return 1_000_000_000
	default:
		return 1
	}
}

// FieldKind distinguishes the typed value a field parsed to.
type FieldKind int

const (
	FieldInt FieldKind = iota
	FieldUint
	FieldFloat
	FieldString
	FieldBool
)

type FieldValue struct {
	Kind   FieldKind
	Int    int64
	Uint   uint64
	Float  float64
	String string
	Bool   bool
}

// Line is one fully parsed line-protocol line, with all tags/fields in
// encounter order (order matters for deterministic column-creation order
// when the validator allocates new ColumnIds).
type Line struct {
	Measurement string
	Tags        []KV
	Fields      []FieldKV
	Timestamp   int64 // nanoseconds since epoch, resolved using Precision + ingestTime default
}

type KV struct {
	Key, Value string
}

type FieldKV struct {
	Key   string
	Value FieldValue
}

// ParseError describes a single malformed line, keyed by its 0-based index
// among the input's non-blank, non-comment lines so accept_partial callers
// can report exactly which lines were rejected.
type ParseError struct {
	LineIndex int
	Line      string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.LineIndex, e.Reason, e.Line)
}

// Parse splits text into lines and parses each independently. ingestTime is
// the default timestamp (in nanoseconds) applied to lines that omit one.
// Parse never stops at the first error: it always returns one Line or one
// *ParseError per non-blank, non-comment input line, in input order, so callers can
// implement both accept_partial=true and =false policies themselves.
func Parse(text string, ingestTime int64, precision Precision) ([]Line, []*ParseError) {
	var lines []Line
	var errs []*ParseError

	idx := 0
	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		line, err := parseLine(trimmed, ingestTime, precision)
		if err != nil {
			errs = append(errs, &ParseError{LineIndex: idx, Line: trimmed, Reason: err.Error()})
		} else {
			lines = append(lines, line)
		}
		idx++
	}
	return lines, errs
}

func parseLine(s string, ingestTime int64, precision Precision) (Line, error) {
	// Split on unescaped spaces into at most 3 fields: measurement+tags,
	// fields, optional timestamp.
	parts := splitUnescaped(s, ' ', 3)
	if len(parts) < 2 {
		return Line{}, fmt.Errorf("expected \"measurement[,tags] fields [timestamp]\"")
	}

	measurementAndTags := splitUnescaped(parts[0], ',', -1)
	if len(measurementAndTags) == 0 || measurementAndTags[0] == "" {
		return Line{}, fmt.Errorf("missing measurement name")
	}
	line := Line{Measurement: unescape(measurementAndTags[0])}

	for _, tagPart := range measurementAndTags[1:] {
		k, v, err := splitKV(tagPart)
		if err != nil {
			return Line{}, fmt.Errorf("bad tag %q: %w", tagPart, err)
		}
		line.Tags = append(line.Tags, KV{Key: unescape(k), Value: unescape(v)})
	}

	fieldParts := splitUnescaped(parts[1], ',', -1)
	if len(fieldParts) == 0 {
		return Line{}, fmt.Errorf("missing fields")
	}
	for _, fieldPart := range fieldParts {
		k, v, err := splitKV(fieldPart)
		if err != nil {
			return Line{}, fmt.Errorf("bad field %q: %w", fieldPart, err)
		}
		fv, err := parseFieldValue(v)
		if err != nil {
			return Line{}, fmt.Errorf("bad field value %q: %w", v, err)
		}
		line.Fields = append(line.Fields, FieldKV{Key: unescape(k), Value: fv})
	}

	if len(parts) == 3 && parts[2] != "" {
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Line{}, fmt.Errorf("bad timestamp %q: %w", parts[2], err)
		}
		line.Timestamp = ts * precision.multiplier()
	} else {
		line.Timestamp = ingestTime
	}

	return line, nil
}

func splitKV(s string) (string, string, error) {
	parts := splitUnescaped(s, '=', 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("expected key=value")
	}
	return parts[0], parts[1], nil
}

// splitUnescaped splits s on sep, treating a backslash-escaped sep, or a sep
// inside a double-quoted string, as a literal character rather than a
// delimiter. Backslashes are kept in the pieces (unescape removes them), so
// a piece can be split again. limit mirrors strings.SplitN (<=0 means no
// limit).
func splitUnescaped(s string, sep byte, limit int) []string {
	var out []string
	var cur strings.Builder
	escaped := false
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			cur.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			cur.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			inQuote = !inQuote
		}
		if c == sep && !inQuote && (limit <= 0 || len(out) < limit-1) {
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	out = append(out, cur.String())
	return out
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	return strings.NewReplacer(`\,`, `,`, `\=`, `=`, `\ `, ` `, `\"`, `"`).Replace(s)
}

func parseFieldValue(raw string) (FieldValue, error) {
	switch {
	case raw == "t" || raw == "T" || raw == "true" || raw == "True" || raw == "TRUE":
		return FieldValue{Kind: FieldBool, Bool: true}, nil
	case raw == "f" || raw == "F" || raw == "false" || raw == "False" || raw == "FALSE":
		return FieldValue{Kind: FieldBool, Bool: false}, nil
	case strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2:
		return FieldValue{Kind: FieldString, String: unescape(raw[1 : len(raw)-1])}, nil
	case strings.HasSuffix(raw, "i"):
		n, err := strconv.ParseInt(raw[:len(raw)-1], 10, 64)
		if err != nil {
			return FieldValue{}, err
		}
		return FieldValue{Kind: FieldInt, Int: n}, nil
	case strings.HasSuffix(raw, "u"):
		n, err := strconv.ParseUint(raw[:len(raw)-1], 10, 64)
		if err != nil {
			return FieldValue{}, err
		}
		return FieldValue{Kind: FieldUint, Uint: n}, nil
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return FieldValue{}, err
		}
		return FieldValue{Kind: FieldFloat, Float: f}, nil
	}
}
