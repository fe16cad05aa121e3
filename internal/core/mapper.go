package core

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDStrategy selects how ids are synthesized for records without one.
type IDStrategy string

const (
	// IDRandom builds q_<fileIndex>_<unixMillis>_<random>. Ids differ
	// between runs, so re-importing a file without ids duplicates it.
	IDRandom IDStrategy = "random"

	// IDContent hashes the record content, so re-runs upsert in place.
	IDContent IDStrategy = "content"
)

const (
	categoryPart1      = "Part 1"
	categoryPart2      = "Part 2"
	categoryAdditional = "Additional"
)

// Mapper converts RawRecords into OutputRecords following a Policy.
type Mapper struct {
	policy   Policy
	strategy IDStrategy
	now      func() time.Time
	suffix   func() string
}

// NewMapper creates a mapper. An unknown strategy falls back to IDRandom.
func NewMapper(policy Policy, strategy IDStrategy) *Mapper {
	if strategy != IDContent {
		strategy = IDRandom
	}
	return &Mapper{
		policy:   policy,
		strategy: strategy,
		now:      time.Now,
		suffix:   randomSuffix,
	}
}

// Map builds the output record for raw. It never fails: every field has a
// default. fileIndex is the 0-based position of the source file in the run.
func (m *Mapper) Map(raw RawRecord, fileIndex int) OutputRecord {
	rec := OutputRecord{
		Category:      categorize(firstValue(raw, m.policy.Category)),
		BodyPrimary:   firstValue(raw, m.policy.BodyPrimary),
		BodySecondary: firstValue(raw, m.policy.BodySecondary),
		Topic:         firstValue(raw, m.policy.Topic),
		Notes:         firstValue(raw, m.policy.Notes),
		Tags:          firstValue(raw, m.policy.Tags),
		StatusFlag:    m.policy.StatusFlag,
		Active:        true,
	}
	if rec.Topic == "" {
		rec.Topic = m.policy.DefaultTopic
	}

	rec.ID = firstValue(raw, m.policy.ID)
	if rec.ID == "" {
		rec.ID = m.synthesizeID(rec, fileIndex)
	}

	return rec
}

// MapAll maps every record and keeps those with body content.
func (m *Mapper) MapAll(raws []RawRecord, fileIndex int) []OutputRecord {
	out := make([]OutputRecord, 0, len(raws))
	for _, raw := range raws {
		if rec := m.Map(raw, fileIndex); rec.HasBody() {
			out = append(out, rec)
		}
	}
	return out
}

func (m *Mapper) synthesizeID(rec OutputRecord, fileIndex int) string {
	if m.strategy == IDContent {
		return ContentID(rec)
	}
	return fmt.Sprintf("q_%d_%d_%s", fileIndex, m.now().UnixMilli(), m.suffix())
}

// ContentID hashes the fields that identify a question.
func ContentID(rec OutputRecord) string {
	s := sha1.Sum([]byte(strings.Join([]string{
		rec.Category, rec.Topic, rec.BodyPrimary, rec.BodySecondary,
	}, "|")))
	return "q_" + hex.EncodeToString(s[:])
}

// categorize maps a free-text exam part onto the three known categories.
// The "1" test runs first, so "Section 12" is Part 1.
func categorize(v string) string {
	switch {
	case strings.Contains(v, "1"):
		return categoryPart1
	case strings.Contains(v, "2"):
		return categoryPart2
	default:
		return categoryAdditional
	}
}

func firstValue(raw RawRecord, names []string) string {
	for _, name := range names {
		if v := raw[name]; v != "" {
			return v
		}
	}
	return ""
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
