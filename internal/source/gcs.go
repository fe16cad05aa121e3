package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JonMunkholm/qbank/internal/core"
)

// GCS reads .csv objects under a bucket prefix. Objects in deeper
// "subdirectories" of the prefix are skipped.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// OpenGCS creates a storage client using Application Default Credentials.
func OpenGCS(ctx context.Context, bucket, prefix string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return newGCS(client, bucket, prefix), nil
}

func newGCS(client *storage.Client, bucket, prefix string) *GCS {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &GCS{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: prefix,
	}
}

// Location returns the gs:// URL of the prefix.
func (g *GCS) Location() string {
	return "gs://" + g.name + "/" + g.prefix
}

// List returns the .csv objects directly under the prefix, sorted by name.
// Names are relative to the prefix.
func (g *GCS) List(ctx context.Context) ([]core.SourceFile, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: g.prefix, Delimiter: "/"})

	var files []core.SourceFile
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrSourceNotFound, g.Location())
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", g.Location(), err)
		}

		// Delimiter listings also return synthetic prefix entries
		if attrs.Name == "" {
			continue
		}
		name := strings.TrimPrefix(attrs.Name, g.prefix)
		if !isCSV(name) {
			continue
		}
		files = append(files, core.SourceFile{Name: name, Size: attrs.Size})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open streams one object.
func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := g.bucket.Object(g.prefix + name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s%s: %w", g.Location(), name, err)
	}
	return r, nil
}

// Close closes the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// parseGCS splits gs://bucket/prefix.
func parseGCS(location string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(location, "gs://")
	if !found {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, prefix, true
}
