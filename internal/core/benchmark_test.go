package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
)

// generateQuestionCSV builds an export with n data rows.
func generateQuestionCSV(n int) string {
	var b strings.Builder
	b.WriteString("ID,Exam Part,Question Text,Options,Section,Explanation,Tags\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "q-%d,Part %d,\"Which of the following, if any, applies to case %d?\",A|B|C|D,Ethics,See reading %d,core\n",
			i, i%2+1, i, i)
	}
	return b.String()
}

// ============================================================================
// Parsing Benchmarks
// ============================================================================

// BenchmarkSplitLine benchmarks splitting one line with a quoted field.
func BenchmarkSplitLine(b *testing.B) {
	line := `q-1,Part 1,"Which of the following, if any, applies?",A|B|C|D,Ethics,,core`

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		SplitLine(line)
	}
}

// BenchmarkNormalizeFieldName benchmarks header normalization.
func BenchmarkNormalizeFieldName(b *testing.B) {
	headers := []string{"ID", "Exam Part", "Question Text", "  Options ", "Section-Name"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, h := range headers {
			NormalizeFieldName(h)
		}
	}
}

// BenchmarkParse benchmarks parsing a typical export.
func BenchmarkParse(b *testing.B) {
	data := generateQuestionCSV(100)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Parse(data)
	}
}

// BenchmarkParse_Large benchmarks parsing a larger export.
func BenchmarkParse_Large(b *testing.B) {
	data := generateQuestionCSV(5000)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Parse(data)
	}
}

// BenchmarkParseReader benchmarks parsing through the streaming reader chain.
func BenchmarkParseReader(b *testing.B) {
	data := []byte(generateQuestionCSV(1000))

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseReader(bytes.NewReader(data), int64(len(data)), 0); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Streaming Benchmarks
// ============================================================================

// BenchmarkWrapForStreaming benchmarks the BOM, UTF-8 and counting readers.
func BenchmarkWrapForStreaming(b *testing.B) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, bytes.Repeat([]byte("Valid UTF-8 line with numbers 12345\n"), 3000)...)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := WrapForStreaming(bytes.NewReader(data), int64(len(data)))
		io.Copy(io.Discard, r)
	}
}

// ============================================================================
// Mapping Benchmarks
// ============================================================================

// BenchmarkMapAll_RandomIDs benchmarks mapping with synthesized random ids.
func BenchmarkMapAll_RandomIDs(b *testing.B) {
	raws := Parse(generateQuestionCSV(500))
	for _, r := range raws {
		r["id"] = ""
	}
	m := NewMapper(DefaultPolicy(), IDRandom)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		m.MapAll(raws, 0)
	}
}

// BenchmarkContentID benchmarks the content hash id.
func BenchmarkContentID(b *testing.B) {
	rec := OutputRecord{Category: "Part 1", Topic: "Ethics", BodyPrimary: "Which applies?", BodySecondary: "A|B|C|D"}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ContentID(rec)
	}
}

// ============================================================================
// Write Benchmarks
// ============================================================================

// BenchmarkBatchWriter benchmarks batching against an in-memory store.
func BenchmarkBatchWriter(b *testing.B) {
	recs := makeRecords(1000)
	store := newFakeStore()
	w := NewBatchWriter(store, DefaultBatchSize)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.calls = nil
		w.Write(ctx, "bench.csv", recs)
	}
}

// ============================================================================
// Error Mapping Benchmarks
// ============================================================================

// BenchmarkMapError benchmarks the pattern table for a late and an unknown match.
func BenchmarkMapError(b *testing.B) {
	errs := []error{
		fmt.Errorf("bulk item q-1: status 400: mapper_parsing_exception"),
		fmt.Errorf("something nobody anticipated"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, err := range errs {
			MapError(err)
		}
	}
}
