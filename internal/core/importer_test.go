package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// csvWithRows builds a file with n valid data rows and the given extra lines.
func csvWithRows(n int, extra ...string) string {
	var b strings.Builder
	b.WriteString("id,category,question,options,topic\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "id-%d,Part 1,Question %d?,A|B,Ethics\n", i, i)
	}
	for _, line := range extra {
		b.WriteString(line + "\n")
	}
	return b.String()
}

func newTestImporter(src Source, store Store, opts ...ImporterOption) *Importer {
	return NewImporter(src, store,
		NewMapper(DefaultPolicy(), IDRandom),
		NewBatchWriter(store, DefaultBatchSize),
		opts...,
	)
}

func TestImporter_TwoFilesOneEmpty(t *testing.T) {
	store := newFakeStore()
	src := &memSource{files: map[string]string{
		"a.csv": csvWithRows(8, "id-x,Part 2,,,", "id-y,Part 2,,,"),
		"b.csv": "",
	}}

	res, err := newTestImporter(src, store).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	require.Equal(t, "a.csv", res.Files[0].Name)
	require.Equal(t, 10, res.Files[0].Rows)
	require.Equal(t, 8, res.Files[0].Valid)
	require.Equal(t, 8, res.Files[0].Written)
	require.Equal(t, "b.csv", res.Files[1].Name)
	require.Zero(t, res.Files[1].Rows)
	require.Nil(t, res.Files[1].Failure)

	require.Equal(t, 8, res.Imported)
	require.NotNil(t, res.StoreCount)
	require.EqualValues(t, 8, *res.StoreCount)
	require.NotEmpty(t, res.RunID)
	require.Equal(t, "mem://questions", res.Source)
}

func TestImporter_SecondBatchFails(t *testing.T) {
	store := newFakeStore()
	store.failCalls[1] = true
	src := &memSource{files: map[string]string{"q.csv": csvWithRows(120)}}

	res, err := newTestImporter(src, store).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []int{50, 50, 20}, store.batchSizes())
	require.Equal(t, 70, res.Imported)
	require.Equal(t, 1, res.FailedBatches)
	require.Equal(t, 1, store.counted)
	require.EqualValues(t, 70, *res.StoreCount)
}

func TestImporter_SourceErrors(t *testing.T) {
	tests := []struct {
		name string
		src  *memSource
		want error
	}{
		{name: "missing source", src: &memSource{}, want: ErrSourceNotFound},
		{name: "no files", src: &memSource{files: map[string]string{}}, want: ErrNoFiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()

			res, err := newTestImporter(tt.src, store).Run(context.Background())

			require.ErrorIs(t, err, tt.want)
			require.Nil(t, res)
			require.Empty(t, store.calls)
			require.Zero(t, store.counted)
		})
	}
}

func TestImporter_ReadFailureDoesNotStopSiblings(t *testing.T) {
	store := newFakeStore()
	src := &memSource{
		files: map[string]string{
			"a.csv": csvWithRows(3),
			"b.csv": csvWithRows(3),
		},
		openErr: map[string]error{"a.csv": errors.New("permission denied")},
	}

	res, err := newTestImporter(src, store).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Files[0].Failure)
	require.Equal(t, FailureRead, res.Files[0].Failure.Kind)
	require.Equal(t, "IMP009", res.Files[0].Failure.Code)
	require.Equal(t, 3, res.Files[1].Written)
	require.Equal(t, 3, res.Imported)
}

func TestImporter_OversizedFileIsReadFailure(t *testing.T) {
	store := newFakeStore()
	src := &memSource{files: map[string]string{"big.csv": csvWithRows(50)}}

	res, err := newTestImporter(src, store, WithMaxFileSize(64)).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Files[0].Failure)
	require.Equal(t, "IMP003", res.Files[0].Failure.Code)
	require.ErrorIs(t, res.Files[0].Failure, ErrFileTooLarge)
}

func TestImporter_CountFailureIsRecorded(t *testing.T) {
	store := newFakeStore()
	store.countErr = errors.New("dial tcp 10.0.0.1:5432: connection refused")
	src := &memSource{files: map[string]string{"q.csv": csvWithRows(2)}}

	res, err := newTestImporter(src, store).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, res.Imported)
	require.Nil(t, res.StoreCount)
	require.NotNil(t, res.CountFailure)
	require.Equal(t, FailureCount, res.CountFailure.Kind)
	require.Equal(t, "DB003", res.CountFailure.Code)
}

func TestImporter_DryRun(t *testing.T) {
	store := newFakeStore()
	src := &memSource{files: map[string]string{"q.csv": csvWithRows(5, "id-z,,,,")}}

	res, err := newTestImporter(src, store, WithDryRun(true)).Run(context.Background())
	require.NoError(t, err)

	require.True(t, res.DryRun)
	require.Equal(t, 6, res.Files[0].Rows)
	require.Equal(t, 5, res.Files[0].Valid)
	require.Zero(t, res.Imported)
	require.Empty(t, store.calls)
	require.Zero(t, store.counted)
	require.Nil(t, res.StoreCount)
}

func TestImporter_Notifies(t *testing.T) {
	n := &recordingNotifier{err: errors.New("broker down")}
	src := &memSource{files: map[string]string{"q.csv": csvWithRows(1)}}

	res, err := newTestImporter(src, newFakeStore(), WithNotifier(n)).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, n.runs, 1)
	require.Same(t, res, n.runs[0])
}

func TestImporter_ImportFile(t *testing.T) {
	store := newFakeStore()
	im := newTestImporter(nil, store)

	fr := im.ImportFile(context.Background(), "upload.csv", 0, strings.NewReader(csvWithRows(4)), 0)

	require.Equal(t, "upload.csv", fr.Name)
	require.Equal(t, 4, fr.Rows)
	require.Equal(t, 4, fr.Written)
	require.Len(t, store.records, 4)
}
