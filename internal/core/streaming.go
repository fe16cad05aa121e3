package core

// streaming.go holds the reader chain every input file passes through before
// parsing:
//
//   - BOMSkippingReader drops a leading UTF-8 byte order mark
//   - StreamingUTF8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - StreamingCountingReader counts bytes for progress reporting
//
// WrapForStreaming applies all three in that order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader removes the UTF-8 BOM written by spreadsheet exports.
type BOMSkippingReader struct {
	reader  *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, err := r.reader.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = r.reader.Discard(len(utf8BOM))
		}
	}
	return r.reader.Read(p)
}

const (
	// sanitizeChunk is how much the sanitizer reads from its source at a time.
	sanitizeChunk = 4096

	// maxEmptyReads matches bufio: a source that keeps returning (0, nil)
	// fails with io.ErrNoProgress.
	maxEmptyReads = 100
)

// StreamingUTF8Sanitizer rewrites invalid UTF-8 on the fly so a badly
// encoded export never aborts a run. Sanitized bytes are staged in buf and
// handed out across as many Read calls as the caller's buffer needs.
// Multi-byte sequences split across two source reads are carried over in
// pending.
type StreamingUTF8Sanitizer struct {
	reader  io.Reader
	buf     []byte
	out     []byte // sanitized, not yet returned
	pending []byte
	err     error
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{
		reader:  r,
		buf:     make([]byte, sanitizeChunk),
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for empty := 0; len(s.out) == 0; empty++ {
		if s.err != nil {
			return 0, s.err
		}
		if empty == maxEmptyReads {
			return 0, io.ErrNoProgress
		}
		s.fill()
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads the next chunk from the source into buf, prefixed by any
// carried-over partial rune, and stages the sanitized result in out.
// out must be empty.
func (s *StreamingUTF8Sanitizer) fill() {
	carried := copy(s.buf, s.pending)
	s.pending = s.pending[:0]

	n, err := s.reader.Read(s.buf[carried:])
	n += carried
	if err != nil {
		s.err = err
	}

	s.out = s.buf[:s.sanitize(s.buf[:n], err != nil)]
}

// sanitize rewrites data in place and returns the number of bytes to emit.
// Unless the source is finished, a trailing incomplete rune is held back in
// pending.
func (s *StreamingUTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	end := len(data)
	if !atEOF {
		if tail := incompleteTail(data); tail > 0 {
			s.pending = append(s.pending, data[end-tail:]...)
			end -= tail
		}
	}

	if utf8.Valid(data[:end]) {
		return end
	}

	write := 0
	for read := 0; read < end; {
		r, size := utf8.DecodeRune(data[read:end])
		if r == utf8.RuneError && size == 1 {
			// '?' keeps the output no longer than the input
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

// incompleteTail returns how many trailing bytes start a rune that needs
// more input to complete.
func incompleteTail(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(b) {
			if want := runeLen(b); want > i {
				return i
			}
			return 0
		}
	}
	return 0
}

// runeLen returns the sequence length announced by a UTF-8 lead byte.
func runeLen(b byte) int {
	switch {
	case b < 0xC0:
		return 1
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// StreamingCountingReader counts the bytes passing through it.
type StreamingCountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 when unknown
}

// NewStreamingCountingReader creates a counting reader with optional total size.
func NewStreamingCountingReader(r io.Reader, total int64) *StreamingCountingReader {
	return &StreamingCountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *StreamingCountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100), or 0 when
// the total is unknown.
func (r *StreamingCountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	pct := int(r.BytesRead * 100 / r.Total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// WrapForStreaming strips the BOM, then sanitizes UTF-8, then counts bytes.
func WrapForStreaming(r io.Reader, totalSize int64) *StreamingCountingReader {
	return NewStreamingCountingReader(
		NewStreamingUTF8Sanitizer(NewBOMSkippingReader(r)),
		totalSize,
	)
}
