package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fixedMapper(strategy IDStrategy) *Mapper {
	m := NewMapper(DefaultPolicy(), strategy)
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }
	m.suffix = func() string { return "abc123xyz" }
	return m
}

func TestMapper_Map(t *testing.T) {
	m := fixedMapper(IDRandom)

	tests := []struct {
		name      string
		raw       RawRecord
		fileIndex int
		want      OutputRecord
	}{
		{
			name: "all primary columns",
			raw: RawRecord{
				"id": "q-1", "category": "Part 1 Ethics", "topic": "Ethics",
				"question": "Q?", "options": "A|B", "explanation": "Because", "tags": "t1,t2",
			},
			want: OutputRecord{
				ID: "q-1", Category: "Part 1", Topic: "Ethics", BodyPrimary: "Q?",
				BodySecondary: "A|B", Notes: "Because", Tags: "t1,t2",
				StatusFlag: "Medium", Active: true,
			},
		},
		{
			name: "alias columns",
			raw: RawRecord{
				"exam_part": "Part 2", "section": "Derivatives",
				"question_text": "Q2?", "rationale": "R",
			},
			fileIndex: 3,
			want: OutputRecord{
				ID: "q_3_1700000000000_abc123xyz", Category: "Part 2", Topic: "Derivatives",
				BodyPrimary: "Q2?", Notes: "R", StatusFlag: "Medium", Active: true,
			},
		},
		{
			name: "first non-empty alias wins",
			raw: RawRecord{
				"category": "", "exam_part": "2",
				"question": "", "question_text": "fallback",
				"topic": "", "section": "S",
			},
			fileIndex: 1,
			want: OutputRecord{
				ID: "q_1_1700000000000_abc123xyz", Category: "Part 2", Topic: "S",
				BodyPrimary: "fallback", StatusFlag: "Medium", Active: true,
			},
		},
		{
			name: "defaults",
			raw:  RawRecord{"unrelated": "x"},
			want: OutputRecord{
				ID: "q_0_1700000000000_abc123xyz", Category: "Additional", Topic: "General",
				StatusFlag: "Medium", Active: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Map(tt.raw, tt.fileIndex)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Map mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Part 1 Ethics", "Part 1"},
		{"Part 2", "Part 2"},
		{"1", "Part 1"},
		{"Section 12", "Part 1"},
		{"Level II", "Additional"},
		{"", "Additional"},
		{"Bonus", "Additional"},
	}

	for _, tt := range tests {
		if got := categorize(tt.in); got != tt.want {
			t.Errorf("categorize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapper_ExplicitIDIsDeterministic(t *testing.T) {
	raw := RawRecord{"id": "fixed", "question": "Q?", "category": "Part 1"}

	first := NewMapper(DefaultPolicy(), IDRandom).Map(raw, 0)
	second := NewMapper(DefaultPolicy(), IDRandom).Map(raw, 0)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("mapping the same record twice differs (-first +second):\n%s", diff)
	}
}

func TestMapper_RandomIDsDiffer(t *testing.T) {
	raw := RawRecord{"question": "Q?"}
	m := NewMapper(DefaultPolicy(), IDRandom)

	a := m.Map(raw, 0).ID
	b := m.Map(raw, 0).ID

	if a == b {
		t.Errorf("synthesized ids should differ, both %q", a)
	}
	if !strings.HasPrefix(a, "q_0_") {
		t.Errorf("id %q should start with q_0_", a)
	}
}

func TestMapper_ContentIDIsStable(t *testing.T) {
	raw := RawRecord{"question": "Q?", "options": "A|B", "category": "Part 1"}

	a := NewMapper(DefaultPolicy(), IDContent).Map(raw, 0).ID
	b := NewMapper(DefaultPolicy(), IDContent).Map(raw, 5).ID
	c := NewMapper(DefaultPolicy(), IDContent).Map(RawRecord{"question": "Other?"}, 0).ID

	if a != b {
		t.Errorf("content ids differ for the same content: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("content ids collide for different content: %q", a)
	}
	if len(a) != len("q_")+40 {
		t.Errorf("content id %q should be q_ plus 40 hex chars", a)
	}
}

func TestMapper_MapAllFiltersBodiless(t *testing.T) {
	raws := []RawRecord{
		{"id": "1", "question": "only primary"},
		{"id": "2", "options": "only secondary"},
		{"id": "3", "question": "both", "options": "x"},
		{"id": "4", "topic": "no body"},
	}

	got := NewMapper(DefaultPolicy(), IDRandom).MapAll(raws, 0)

	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, ids); diff != "" {
		t.Errorf("kept ids mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPolicy(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		got, err := LoadPolicy("")
		if err != nil {
			t.Fatalf("LoadPolicy() error = %v", err)
		}
		if diff := cmp.Diff(DefaultPolicy(), got); diff != "" {
			t.Errorf("policy mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("overlay keeps unset keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mapping.yaml")
		content := "body_primary: [Prompt, Question Text]\ndefault_topic: Uncategorized\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := LoadPolicy(path)
		if err != nil {
			t.Fatalf("LoadPolicy() error = %v", err)
		}

		want := DefaultPolicy()
		want.BodyPrimary = []string{"prompt", "question_text"}
		want.DefaultTopic = "Uncategorized"
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("policy mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mapping.yaml")
		if err := os.WriteFile(path, []byte("answer: [a]\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadPolicy(path); err == nil {
			t.Error("LoadPolicy() expected error for unknown key")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("LoadPolicy() expected error for missing file")
		}
	})
}

func TestMapper_CustomPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.BodyPrimary = []string{"prompt"}
	policy.DefaultTopic = "Misc"

	got := NewMapper(policy, IDRandom).Map(RawRecord{"id": "p", "prompt": "P?", "question": "ignored"}, 0)

	if got.BodyPrimary != "P?" {
		t.Errorf("BodyPrimary = %q, want %q", got.BodyPrimary, "P?")
	}
	if got.Topic != "Misc" {
		t.Errorf("Topic = %q, want %q", got.Topic, "Misc")
	}
}
