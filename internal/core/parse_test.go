package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{name: "plain", line: "a,b,c", want: []string{"a", "b", "c"}},
		{name: "quoted comma", line: `a,"b,c",d`, want: []string{"a", "b,c", "d"}},
		{name: "trims values", line: "  a ,\tb  ", want: []string{"a", "b"}},
		{name: "empty fields", line: "a,,c,", want: []string{"a", "", "c", ""}},
		{name: "single value", line: "only", want: []string{"only"}},
		{name: "doubled quotes kept", line: `"say ""hi""",x`, want: []string{`say ""hi""`, "x"}},
		{name: "quote stripped after trim", line: ` "padded" ,z`, want: []string{"padded", "z"}},
		{name: "padding inside quotes trimmed", line: `a," b ",c`, want: []string{"a", "b", "c"}},
		{name: "quoted blank is empty", line: `"  ",x`, want: []string{"", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLine(tt.line)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitLine(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestNormalizeFieldName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Question", "question"},
		{"Question Text", "question_text"},
		{"Exam-Part", "exam_part"},
		{"  ID ", "id"},
		{"tags_2", "tags_2"},
		{"Réponse", "r_ponse"},
	}

	for _, tt := range tests {
		if got := NormalizeFieldName(tt.in); got != tt.want {
			t.Errorf("NormalizeFieldName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []RawRecord
	}{
		{
			name: "one record per data line",
			text: "id,question\n1,first\n2,second\n",
			want: []RawRecord{
				{"id": "1", "question": "first"},
				{"id": "2", "question": "second"},
			},
		},
		{
			name: "blank lines skipped",
			text: "\n\n  \nid,question\n\n1,first\n   \n2,second\n\n",
			want: []RawRecord{
				{"id": "1", "question": "first"},
				{"id": "2", "question": "second"},
			},
		},
		{
			name: "crlf and lone cr",
			text: "id,question\r\n1,first\r2,second\r\n",
			want: []RawRecord{
				{"id": "1", "question": "first"},
				{"id": "2", "question": "second"},
			},
		},
		{
			name: "bom stripped from header",
			text: "\uFEFFId,Question\n1,first",
			want: []RawRecord{{"id": "1", "question": "first"}},
		},
		{
			name: "bom before leading blank lines",
			text: "\uFEFF\n\nid,question\n1,q",
			want: []RawRecord{{"id": "1", "question": "q"}},
		},
		{
			name: "bom alone",
			text: "\uFEFF",
			want: []RawRecord{},
		},
		{
			name: "missing values are empty",
			text: "id,question,topic\n1,first",
			want: []RawRecord{{"id": "1", "question": "first", "topic": ""}},
		},
		{
			name: "surplus values ignored",
			text: "id,question\n1,first,extra,more",
			want: []RawRecord{{"id": "1", "question": "first"}},
		},
		{
			name: "headers normalized",
			text: "Exam Part,Question Text\nPart 1,What?",
			want: []RawRecord{{"exam_part": "Part 1", "question_text": "What?"}},
		},
		{
			name: "quoted value with comma",
			text: "id,options\n7,\"A) yes, B) no\"",
			want: []RawRecord{{"id": "7", "options": "A) yes, B) no"}},
		},
		{
			name: "header only",
			text: "id,question\n",
			want: []RawRecord{},
		},
		{
			name: "empty text",
			text: "",
			want: []RawRecord{},
		},
		{
			name: "only blank lines",
			text: "\n \r\n\t\n",
			want: []RawRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_RecordCountMatchesDataLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,question\n")
	for i := 0; i < 250; i++ {
		b.WriteString("x,y\n")
		if i%7 == 0 {
			b.WriteString("\n")
		}
	}

	if got := len(Parse(b.String())); got != 250 {
		t.Errorf("len(Parse) = %d, want 250", got)
	}
}

func TestParseReader(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,question\n1,caf\x80\n")...)

	got, err := ParseReader(strings.NewReader(string(input)), int64(len(input)), 0)
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}

	want := []RawRecord{{"id": "1", "question": "caf?"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseReader mismatch (-want +got):\n%s", diff)
	}
}

func TestParseReader_TooLarge(t *testing.T) {
	body := "id,question\n1,first\n"

	tests := []struct {
		name string
		size int64
	}{
		{name: "declared size", size: int64(len(body))},
		{name: "unknown size", size: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReader(strings.NewReader(body), tt.size, 5)
			if !errors.Is(err, ErrFileTooLarge) {
				t.Errorf("error = %v, want ErrFileTooLarge", err)
			}
		})
	}
}
