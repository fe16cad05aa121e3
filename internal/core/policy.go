package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy lists, for every output field, the source columns consulted in
// order. The first non-empty column wins.
type Policy struct {
	Category      []string `yaml:"category"`
	ID            []string `yaml:"id"`
	BodyPrimary   []string `yaml:"body_primary"`
	BodySecondary []string `yaml:"body_secondary"`
	Topic         []string `yaml:"topic"`
	Notes         []string `yaml:"notes"`
	Tags          []string `yaml:"tags"`

	DefaultTopic string `yaml:"default_topic"`
	StatusFlag   string `yaml:"status_flag"`
}

// DefaultPolicy returns the column aliases of the question bank exports.
func DefaultPolicy() Policy {
	return Policy{
		Category:      []string{"category", "exam_part"},
		ID:            []string{"id"},
		BodyPrimary:   []string{"question", "question_text"},
		BodySecondary: []string{"options"},
		Topic:         []string{"topic", "section"},
		Notes:         []string{"explanation", "rationale"},
		Tags:          []string{"tags"},
		DefaultTopic:  "General",
		StatusFlag:    "Medium",
	}
}

// LoadPolicy reads a YAML mapping file and overlays it on DefaultPolicy.
// Keys absent from the file keep their defaults. An empty path returns
// the defaults unchanged.
//
// Example file:
//
//	body_primary: [question, prompt]
//	default_topic: Uncategorized
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read mapping file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&policy); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("parse mapping file %s: %w", path, err)
	}

	policy.normalize()
	return policy, nil
}

// normalize puts alias names in the same form as parsed header names.
func (p *Policy) normalize() {
	for _, list := range []*[]string{
		&p.Category, &p.ID, &p.BodyPrimary, &p.BodySecondary,
		&p.Topic, &p.Notes, &p.Tags,
	} {
		out := (*list)[:0]
		for _, name := range *list {
			if n := NormalizeFieldName(name); n != "" {
				out = append(out, n)
			}
		}
		*list = out
	}
}
