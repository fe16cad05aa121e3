// Package elastic stores question records as documents of an Elasticsearch
// index. The record id is the document id, so re-indexing is an upsert.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/JonMunkholm/qbank/internal/core"
	"github.com/JonMunkholm/qbank/internal/store"
)

func init() {
	store.Register("elasticsearch", func(ctx context.Context, opts store.Options) (core.Store, error) {
		return Open(ctx, opts.URL, opts.WriteKey, opts.Collection)
	})
}

// Store indexes records through the bulk API.
type Store struct {
	es    *elasticsearch.Client
	index string
}

// Open creates a client authenticated with apiKey and pings the cluster.
func Open(ctx context.Context, addr, apiKey, index string) (*Store, error) {
	if index == "" {
		return nil, fmt.Errorf("index name must be provided")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
		APIKey:    apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	s := &Store{es: es, index: index}
	if err := s.ping(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: status %d", res.StatusCode)
	}
	return nil
}

// Upsert indexes recs in one bulk request. The refresh waits until the
// documents are searchable so a following Count sees them.
func (s *Store) Upsert(ctx context.Context, recs []core.OutputRecord) error {
	if len(recs) == 0 {
		return nil
	}

	body, err := bulkBody(s.index, recs)
	if err != nil {
		return err
	}

	req := esapi.BulkRequest{
		Index:   s.index,
		Body:    bytes.NewReader(body),
		Refresh: "wait_for",
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("bulk: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("bulk", res)
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	return parsed.firstError()
}

// Count returns the number of documents in the index.
func (s *Store) Count(ctx context.Context) (int64, error) {
	res, err := s.es.Count(
		s.es.Count.WithContext(ctx),
		s.es.Count.WithIndex(s.index),
	)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, responseError("count", res)
	}

	var parsed struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return parsed.Count, nil
}

// Reset deletes every document of the index, keeping its mapping.
func (s *Store) Reset(ctx context.Context) error {
	res, err := s.es.DeleteByQuery(
		[]string{s.index},
		strings.NewReader(`{"query":{"match_all":{}}}`),
		s.es.DeleteByQuery.WithContext(ctx),
		s.es.DeleteByQuery.WithWaitForCompletion(true),
		s.es.DeleteByQuery.WithConflicts("proceed"),
		s.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("delete by query", res)
	}
	return nil
}

// Close is a no-op; the client holds no long-lived resources.
func (s *Store) Close() error {
	return nil
}

// bulkBody renders NDJSON index actions for recs.
func bulkBody(index string, recs []core.OutputRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, r := range recs {
		action := map[string]any{
			"index": map[string]any{"_index": index, "_id": r.ID},
		}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("encode record %s: %w", r.ID, err)
		}
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// firstError reports the first rejected item of a bulk response.
func (r bulkResponse) firstError() error {
	if !r.Errors {
		return nil
	}

	failed := 0
	var first error
	for _, item := range r.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			failed++
			if first == nil {
				first = fmt.Errorf("bulk item %s: status %d: %s: %s",
					result.ID, result.Status, result.Error.Type, result.Error.Reason)
			}
		}
	}
	if first == nil {
		return fmt.Errorf("bulk reported errors without item details")
	}
	return fmt.Errorf("%d of %d items rejected: %w", failed, len(r.Items), first)
}

func responseError(op string, res *esapi.Response) error {
	data, _ := io.ReadAll(res.Body)
	return fmt.Errorf("%s failed: status %d: %s", op, res.StatusCode, strings.TrimSpace(string(data)))
}
