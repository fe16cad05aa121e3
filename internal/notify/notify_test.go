package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/qbank/internal/config"
	"github.com/JonMunkholm/qbank/internal/core"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func sampleResult() *core.RunResult {
	count := int64(42)
	return &core.RunResult{
		RunID:  "run-1",
		Source: "gs://exports/questions/",
		Files: []core.FileResult{
			{Name: "a.csv", Written: 40},
			{Name: "b.csv", Failure: &core.Failure{Kind: core.FailureRead, Code: "IMP003"}},
		},
		Imported:      40,
		FailedBatches: 1,
		StoreCount:    &count,
		StartedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:      1500 * time.Millisecond,
	}
}

func TestKafka_RunCompleted(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{w: w}

	require.NoError(t, k.RunCompleted(context.Background(), sampleResult()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "run-1", string(msg.Key))
	require.Equal(t, []kafka.Header{{Key: "event", Value: []byte("run_completed")}}, msg.Headers)

	var got RunCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	require.Equal(t, 2, got.Files)
	require.Equal(t, 1, got.FailedFiles)
	require.Equal(t, 40, got.Imported)
	require.Equal(t, 1, got.FailedBatches)
	require.EqualValues(t, 42, *got.StoreCount)
	require.EqualValues(t, 1500, got.DurationMS)

	require.NoError(t, k.Close())
	require.True(t, w.closed)
}

func TestKafka_WriteError(t *testing.T) {
	k := &Kafka{w: &fakeWriter{err: errors.New("dial tcp: connection refused")}}

	err := k.RunCompleted(context.Background(), sampleResult())
	require.ErrorContains(t, err, "publish run event")
	require.Equal(t, "DB003", core.MapError(err).Code)
}

func TestNew(t *testing.T) {
	require.IsType(t, Nop{}, New(config.NotifyConfig{}))

	n := New(config.NotifyConfig{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "qbank.imports"})
	require.IsType(t, &Kafka{}, n)
	require.NoError(t, n.Close())
}
