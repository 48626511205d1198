package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/JamesMcDaniel04/People.AI-Demo/pkg/logger"
)

const (
	fieldDocID      = "doc_id"
	fieldEmbedding  = "embedding"
	fieldAccount    = "account"
	fieldSourceType = "source_type"
	fieldText       = "text"
	fieldMetadata   = "metadata"

	// Stored text is a retrieval snippet, not the document of record.
	maxStoredTextLen = 1000

	upsertBatchSize  = 100
	upsertBatchDelay = 100 * time.Millisecond
)

// Document is one embedded text unit (email message, call transcript,
// interaction summary, raw document) scoped to an account.
type Document struct {
	ID         string
	Account    string
	SourceType string
	Text       string
	Metadata   map[string]any
	Vector     []float32
}

// SearchResult is a semantic hit. Score is inner product over unit
// vectors, so it behaves as cosine similarity.
type SearchResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Client struct {
	conn           client.Client
	collectionName string
	vectorDim      int
	nlist          int
	log            *zap.Logger
}

func NewClient(address, apiKey, collectionName string, vectorDim, nlist int) (*Client, error) {
	var conn client.Client
	var err error

	if apiKey != "" {
		conn, err = client.NewClient(context.Background(), client.Config{
			Address: address,
			APIKey:  apiKey,
		})
	} else {
		conn, err = client.NewGrpcClient(context.Background(), address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	log := logger.Named("milvus")
	log.Info("Milvus client initialized",
		zap.String("address", address),
		zap.String("collection", collectionName),
		zap.Int("dim", vectorDim),
	)

	return &Client{
		conn:           conn,
		collectionName: collectionName,
		vectorDim:      vectorDim,
		nlist:          nlist,
		log:            log,
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.conn.HasCollection(ctx, c.collectionName); err != nil {
		return fmt.Errorf("milvus unreachable: %w", err)
	}
	return nil
}

// EnsureCollection creates and loads the document collection if it does
// not exist yet. Safe to call on every startup.
func (c *Client) EnsureCollection(ctx context.Context) error {
	has, err := c.conn.HasCollection(ctx, c.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		c.log.Info("Collection already exists", zap.String("collection", c.collectionName))
		return c.conn.LoadCollection(ctx, c.collectionName, false)
	}

	schema := &entity.Schema{
		CollectionName: c.collectionName,
		Description:    "Account interaction document embeddings",
		Fields: []*entity.Field{
			{
				Name:       fieldDocID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", c.vectorDim),
				},
			},
			{
				Name:     fieldAccount,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     fieldSourceType,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     fieldMetadata,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
		},
	}

	if err := c.conn.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Embeddings are unit-normalized upstream, so inner product ranks
	// identically to cosine similarity.
	idx, err := entity.NewIndexIvfFlat(entity.IP, c.nlist)
	if err != nil {
		return fmt.Errorf("failed to build index spec: %w", err)
	}
	if err := c.conn.CreateIndex(ctx, c.collectionName, fieldEmbedding, idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := c.conn.LoadCollection(ctx, c.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	c.log.Info("Collection created and loaded", zap.String("collection", c.collectionName))

	return nil
}

// Upsert writes documents in batches. Replaying the same documents
// converges on one row per doc id.
func (c *Client) Upsert(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	written := 0
	for start := 0; start < len(docs); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(docs) {
			end = len(docs)
		}

		if err := c.upsertBatch(ctx, docs[start:end]); err != nil {
			return written, err
		}
		written += end - start

		if end < len(docs) {
			select {
			case <-ctx.Done():
				return written, ctx.Err()
			case <-time.After(upsertBatchDelay):
			}
		}
	}

	if err := c.conn.Flush(ctx, c.collectionName, false); err != nil {
		return written, fmt.Errorf("failed to flush: %w", err)
	}

	c.log.Info("Documents upserted into vector store", zap.Int("count", written))

	return written, nil
}

func (c *Client) upsertBatch(ctx context.Context, docs []Document) error {
	docIDs := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	accounts := make([]string, len(docs))
	sourceTypes := make([]string, len(docs))
	texts := make([]string, len(docs))
	metadatas := make([]string, len(docs))

	for i, doc := range docs {
		docIDs[i] = doc.ID
		embeddings[i] = doc.Vector
		accounts[i] = doc.Account
		sourceTypes[i] = doc.SourceType
		texts[i] = truncateText(doc.Text, maxStoredTextLen)
		metadatas[i] = encodeMetadata(doc)
	}

	_, err := c.conn.Upsert(
		ctx,
		c.collectionName,
		"",
		entity.NewColumnVarChar(fieldDocID, docIDs),
		entity.NewColumnFloatVector(fieldEmbedding, c.vectorDim, embeddings),
		entity.NewColumnVarChar(fieldAccount, accounts),
		entity.NewColumnVarChar(fieldSourceType, sourceTypes),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldMetadata, metadatas),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}

	return nil
}

// Search returns the topK nearest documents, optionally scoped to one
// account. An empty account searches the whole collection.
func (c *Client) Search(ctx context.Context, vector []float32, topK int, account string) ([]SearchResult, error) {
	expr := ""
	if account != "" {
		expr = fmt.Sprintf(`%s == "%s"`, fieldAccount, escapeExprString(account))
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := c.conn.Search(
		ctx,
		c.collectionName,
		[]string{},
		expr,
		[]string{fieldDocID, fieldText, fieldSourceType, fieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldEmbedding,
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		docIDCol := sr.Fields.GetColumn(fieldDocID)
		textCol := sr.Fields.GetColumn(fieldText)
		sourceTypeCol := sr.Fields.GetColumn(fieldSourceType)
		metadataCol := sr.Fields.GetColumn(fieldMetadata)

		for i := 0; i < sr.ResultCount; i++ {
			docID, _ := docIDCol.Get(i)
			text, _ := textCol.Get(i)
			sourceType, _ := sourceTypeCol.Get(i)
			rawMetadata, _ := metadataCol.Get(i)

			metadata := decodeMetadata(rawMetadata)
			if s, ok := sourceType.(string); ok && s != "" {
				metadata["source_type"] = s
			}

			results = append(results, SearchResult{
				ID:       docID.(string),
				Score:    float64(sr.Scores[i]),
				Text:     text.(string),
				Metadata: metadata,
			})
		}
	}

	c.log.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filter", expr),
	)

	return results, nil
}

func encodeMetadata(doc Document) string {
	merged := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		merged[k] = v
	}
	merged["source_type"] = doc.SourceType
	merged["text_length"] = len(doc.Text)

	raw, err := json.Marshal(merged)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeMetadata(raw any) map[string]any {
	s, ok := raw.(string)
	if !ok || s == "" {
		return map[string]any{}
	}

	var metadata map[string]any
	if err := json.Unmarshal([]byte(s), &metadata); err != nil {
		return map[string]any{}
	}
	return metadata
}

func escapeExprString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func truncateText(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
