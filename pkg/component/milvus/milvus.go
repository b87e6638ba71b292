// Package milvus stores chunk vectors in a Milvus collection. The
// collection keeps the chunk text next to the vector, so no sidecar is
// needed for this backend.
package milvus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/mycvconnect/mhire/pkg/chunker"
	milvusopts "github.com/mycvconnect/mhire/pkg/options/milvus"
)

// Field names of the chunk collection.
const (
	FieldChunkID  = "chunk_id"
	FieldDocID    = "document_id"
	FieldDocName  = "document_name"
	FieldSource   = "source"
	FieldSeq      = "seq"
	FieldStart    = "start"
	FieldEnd      = "end"
	FieldText     = "text"
	FieldVector   = "embedding"
	maxTextBytes  = 65535
	maxShortBytes = 1024
	insertBatch   = 512
)

var outputFields = []string{FieldDocID, FieldDocName, FieldSource, FieldSeq, FieldStart, FieldEnd, FieldText}

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New connects to Milvus. The options timeout bounds the handshake.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	return &Client{client: c, opts: opts}, nil
}

// Name returns the component name.
func (c *Client) Name() string { return "milvus" }

// Ping lists collections to check liveness.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	return err
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// Collection returns the configured chunk collection name.
func (c *Client) Collection() string { return c.opts.Collection }

// EnsureCollection creates the chunk collection with a COSINE HNSW index
// and loads it. recreate drops an existing collection first.
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int, recreate bool) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists && recreate {
		if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		exists = false
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithDescription("mhire knowledge base chunks").
			WithAutoID(false).
			WithField(entity.NewField().WithName(FieldChunkID).WithDataType(entity.FieldTypeVarChar).
				WithIsPrimaryKey(true).WithMaxLength(256)).
			WithField(entity.NewField().WithName(FieldDocID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(FieldDocName).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxShortBytes)).
			WithField(entity.NewField().WithName(FieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxShortBytes)).
			WithField(entity.NewField().WithName(FieldSeq).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(FieldStart).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(FieldEnd).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(FieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextBytes)).
			WithField(entity.NewField().WithName(FieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldVector, idx))
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := task.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// DropCollection drops name if it exists.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

// AliasTarget returns the collection alias points at, or "" when the
// alias does not exist.
func (c *Client) AliasTarget(ctx context.Context, alias string) (string, error) {
	a, err := c.client.DescribeAlias(ctx, milvusclient.NewDescribeAliasOption(alias))
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to describe alias %s: %w", alias, err)
	}
	return a.CollectionName, nil
}

// SwitchAlias points alias at collection, creating the alias when needed.
// A plain collection that still carries the alias name, left by releases
// that wrote to it directly, is dropped first since Milvus rejects an
// alias that shadows a collection.
func (c *Client) SwitchAlias(ctx context.Context, alias, collection string) error {
	target, err := c.AliasTarget(ctx, alias)
	if err != nil {
		return err
	}
	if target != "" {
		if err := c.client.AlterAlias(ctx, milvusclient.NewAlterAliasOption(alias, collection)); err != nil {
			return fmt.Errorf("failed to alter alias %s: %w", alias, err)
		}
		return nil
	}

	legacy, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(alias))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if legacy {
		if err := c.DropCollection(ctx, alias); err != nil {
			return err
		}
	}
	if err := c.client.CreateAlias(ctx, milvusclient.NewCreateAliasOption(collection, alias)); err != nil {
		return fmt.Errorf("failed to create alias %s: %w", alias, err)
	}
	return nil
}

// isNotFound reports whether err is Milvus saying the alias is unknown.
// The SDK exposes no typed error for it.
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "not exist")
}

// Row is one chunk and its vector.
type Row struct {
	Chunk  chunker.Chunk
	Vector []float32
}

// Insert writes rows in batches and flushes once at the end.
func (c *Client) Insert(ctx context.Context, name string, rows []Row) error {
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		if err := c.insertBatch(ctx, name, rows[start:end]); err != nil {
			return err
		}
	}

	task, err := c.client.Flush(ctx, milvusclient.NewFlushOption(name))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

func (c *Client) insertBatch(ctx context.Context, name string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	n := len(rows)
	var (
		ids, docIDs, docNames, sources, texts = make([]string, n), make([]string, n), make([]string, n), make([]string, n), make([]string, n)
		seqs, starts, ends                    = make([]int64, n), make([]int64, n), make([]int64, n)
		vectors                               = make([][]float32, n)
	)
	dim := len(rows[0].Vector)
	for i, r := range rows {
		if len(r.Vector) != dim {
			return fmt.Errorf("milvus: row %s has dimension %d, want %d", r.Chunk.ID, len(r.Vector), dim)
		}
		ids[i], docIDs[i], docNames[i] = r.Chunk.ID, r.Chunk.DocumentID, r.Chunk.DocumentName
		sources[i], texts[i] = r.Chunk.SourcePath, r.Chunk.Text
		seqs[i], starts[i], ends[i] = int64(r.Chunk.Seq), int64(r.Chunk.Start), int64(r.Chunk.End)
		vectors[i] = r.Vector
	}

	_, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(name,
		column.NewColumnVarChar(FieldChunkID, ids),
		column.NewColumnVarChar(FieldDocID, docIDs),
		column.NewColumnVarChar(FieldDocName, docNames),
		column.NewColumnVarChar(FieldSource, sources),
		column.NewColumnInt64(FieldSeq, seqs),
		column.NewColumnInt64(FieldStart, starts),
		column.NewColumnInt64(FieldEnd, ends),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnFloatVector(FieldVector, dim, vectors),
	))
	if err != nil {
		return fmt.Errorf("failed to insert data: %w", err)
	}
	return nil
}

// Hit is one search result.
type Hit struct {
	Chunk chunker.Chunk
	Score float32
}

// Search returns the topK chunks closest to vector by cosine similarity.
func (c *Client) Search(ctx context.Context, name string, vector []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(name, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldVector).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	ids, ok := rs.IDs.(*column.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("milvus: unexpected id column %T", rs.IDs)
	}
	docIDs := varchars(rs.GetColumn(FieldDocID))
	docNames := varchars(rs.GetColumn(FieldDocName))
	sources := varchars(rs.GetColumn(FieldSource))
	texts := varchars(rs.GetColumn(FieldText))
	seqs := int64s(rs.GetColumn(FieldSeq))
	starts := int64s(rs.GetColumn(FieldStart))
	ends := int64s(rs.GetColumn(FieldEnd))

	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hits = append(hits, Hit{
			Score: rs.Scores[i],
			Chunk: chunker.Chunk{
				ID:           ids.Data()[i],
				DocumentID:   at(docIDs, i),
				DocumentName: at(docNames, i),
				SourcePath:   at(sources, i),
				Seq:          int(at(seqs, i)),
				Start:        int(at(starts, i)),
				End:          int(at(ends, i)),
				Text:         at(texts, i),
			},
		})
	}
	return hits, nil
}

// Count returns the number of rows in the collection.
func (c *Client) Count(ctx context.Context, name string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(name))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

func varchars(col column.Column) []string {
	if c, ok := col.(*column.ColumnVarChar); ok {
		return c.Data()
	}
	return nil
}

func int64s(col column.Column) []int64 {
	if c, ok := col.(*column.ColumnInt64); ok {
		return c.Data()
	}
	return nil
}

func at[T any](s []T, i int) T {
	var zero T
	if i < len(s) {
		return s[i]
	}
	return zero
}
