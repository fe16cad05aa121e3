// Package source lists and opens the CSV files of an import, from a local
// directory or a Cloud Storage prefix.
package source

import (
	"context"
	"io"
	"strings"

	"github.com/JonMunkholm/qbank/internal/core"
)

// Source is a core.Source that holds resources until closed.
type Source interface {
	core.Source
	io.Closer
}

// Open returns a GCS source for gs://bucket/prefix locations and a local
// directory source otherwise.
func Open(ctx context.Context, location string) (Source, error) {
	if bucket, prefix, ok := parseGCS(location); ok {
		return OpenGCS(ctx, bucket, prefix)
	}
	return NewDir(location), nil
}

// isCSV matches the .csv extension case-insensitively.
func isCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}
