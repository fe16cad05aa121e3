package core

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrFileTooLarge is returned when an input file exceeds the configured limit.
var ErrFileTooLarge = errors.New("file too large")

// Parse turns delimited text into one RawRecord per non-blank data line.
//
// The first non-blank line is the header. Values pair positionally with the
// normalized header names; missing values become "" and surplus values are
// dropped. Text with no non-blank lines yields an empty slice. A leading
// byte order mark is ignored.
func Parse(text string) []RawRecord {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	start := 0
	for start < len(lines) && isBlank(lines[start]) {
		start++
	}
	if start == len(lines) {
		return []RawRecord{}
	}

	header := SplitLine(lines[start])
	for i, h := range header {
		header[i] = NormalizeFieldName(h)
	}

	records := make([]RawRecord, 0, len(lines)-start-1)
	for _, line := range lines[start+1:] {
		if isBlank(line) {
			continue
		}
		values := SplitLine(line)
		rec := make(RawRecord, len(header))
		for i, name := range header {
			if i < len(values) {
				rec[name] = values[i]
			} else {
				rec[name] = ""
			}
		}
		records = append(records, rec)
	}

	return records
}

// SplitLine splits one line on commas that are outside double quotes.
// Each value is trimmed, loses one leading and one trailing quote, and is
// trimmed again. Doubled quotes inside a value are left as they are.
func SplitLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ',' && !inQuotes:
			fields = append(fields, cleanValue(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, cleanValue(current.String()))

	return fields
}

// NormalizeFieldName lower-cases name and replaces every character outside
// [a-z0-9_] with an underscore.
func NormalizeFieldName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
}

// ParseReader reads a whole file through the streaming sanitizers and parses it.
// Files larger than maxSize bytes (when maxSize > 0) fail with ErrFileTooLarge.
func ParseReader(r io.Reader, size, maxSize int64) ([]RawRecord, error) {
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, maxSize)
	}

	src := r
	if maxSize > 0 {
		src = io.LimitReader(r, maxSize+1)
	}

	data, err := io.ReadAll(WrapForStreaming(src, size))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxSize)
	}

	return Parse(string(data)), nil
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.TrimSpace(s)
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
