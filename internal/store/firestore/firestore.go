// Package firestore stores question records as documents of a Cloud
// Firestore collection, keyed by record id.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/store"
)

func init() {
	store.Register("firestore", func(ctx context.Context, opts store.Options) (core.Store, error) {
		return Open(ctx, opts.URL, opts.WriteKey, opts.Collection)
	})
}

// deleteChunk bounds the documents deleted per BulkWriter round in Reset.
const deleteChunk = 500

// Store writes records with a BulkWriter.
type Store struct {
	client     *firestore.Client
	collection *firestore.CollectionRef
}

// Open creates a client for projectID. credentialsFile is a service account
// key file; it is ignored when FIRESTORE_EMULATOR_HOST is set.
func Open(ctx context.Context, projectID, credentialsFile, collection string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection must be provided")
	}

	var opts []option.ClientOption
	if credentialsFile != "" && os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &Store{client: client, collection: client.Collection(collection)}, nil
}

// Upsert sets one document per record. Set replaces the whole document,
// so a repeated id overwrites the earlier record.
func (s *Store) Upsert(ctx context.Context, recs []core.OutputRecord) error {
	if len(recs) == 0 {
		return nil
	}

	refs := make([]*firestore.DocumentRef, len(recs))
	for i, r := range recs {
		// Doc returns nil for ids containing a slash
		if refs[i] = s.collection.Doc(r.ID); refs[i] == nil {
			return fmt.Errorf("invalid document id %q", r.ID)
		}
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(recs))
	for i, r := range recs {
		job, err := bw.Set(refs[i], r)
		if err != nil {
			bw.End()
			return fmt.Errorf("queue %s: %w", r.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, fmt.Errorf("set %s: %w", recs[i].ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d documents rejected: %w", len(errs), len(recs), errors.Join(errs...))
	}
	return nil
}

// Count runs a COUNT aggregation over the collection.
func (s *Store) Count(ctx context.Context) (int64, error) {
	res, err := s.collection.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count: unexpected result type %T", res["all"])
	}
	return v.GetIntegerValue(), nil
}

// Reset deletes every document in the collection, deleteChunk at a time.
func (s *Store) Reset(ctx context.Context) error {
	for {
		deleted, err := s.deleteChunk(ctx)
		if err != nil {
			return err
		}
		if deleted < deleteChunk {
			return nil
		}
	}
}

func (s *Store) deleteChunk(ctx context.Context) (int, error) {
	iter := s.collection.Select().Limit(deleteChunk).Documents(ctx)
	defer iter.Stop()

	bw := s.client.BulkWriter(ctx)
	defer bw.End()

	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("list documents: %w", err)
		}
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			return 0, fmt.Errorf("queue delete %s: %w", snap.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.Flush()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return 0, fmt.Errorf("delete: %w", err)
		}
	}
	return len(jobs), nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
