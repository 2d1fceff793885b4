package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/inspect/schema"
)

// Document maps models onto JSON documents in a redis-backed store.
// Records live at mv:<Model>:<id>; a per-model list at mv:idx:<Model>
// holds ids newest-first, which gives deterministic pagination.
// Embedded relations (embeds_one/embeds_many) live inside the parent
// document under the relation name and are paged as in-memory slices,
// because embedded documents have no independent query surface.
// many_to_many is an id-array field on the source document.
type Document struct {
	client   *redis.Client
	registry *schema.Registry
	logger   *zap.Logger
}

// NewDocument connects to the document store and verifies the connection
func NewDocument(ctx context.Context, cfg Config, registry *schema.Registry, logger *zap.Logger) (*Document, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	return NewDocumentWithClient(client, registry, logger), nil
}

// NewDocumentWithClient wraps an existing client (used by tests)
func NewDocumentWithClient(client *redis.Client, registry *schema.Registry, logger *zap.Logger) *Document {
	return &Document{
		client:   client,
		registry: registry,
		logger:   logger,
	}
}

func recordKey(model, id string) string {
	return "mv:" + model + ":" + id
}

func indexKey(model string) string {
	return "mv:idx:" + model
}

// Model implements Adapter
func (a *Document) Model(name string) (*schema.Model, error) {
	return resolveModel(a.registry, name)
}

// Find implements Adapter
func (a *Document) Find(ctx context.Context, model, id string) (*Record, error) {
	m, err := a.Model(model)
	if err != nil {
		return nil, err
	}

	data, err := a.client.Get(ctx, recordKey(m.Name, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s#%s", ErrRecordNotFound, model, id)
		}
		return nil, fmt.Errorf("failed to fetch %s#%s: %w", model, id, err)
	}

	return a.decode(m, id, data)
}

// ListPage implements Adapter
func (a *Document) ListPage(ctx context.Context, model string, page, perPage int) ([]*Record, int, error) {
	m, err := a.Model(model)
	if err != nil {
		return nil, 0, err
	}
	offset, limit := pageBounds(page, perPage)

	total, err := a.client.LLen(ctx, indexKey(m.Name)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", model, err)
	}

	ids, err := a.client.LRange(ctx, indexKey(m.Name), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to page %s: %w", model, err)
	}

	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := a.Find(ctx, model, id)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				// Index entry with no document; skip rather than fail the page
				continue
			}
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, int(total), nil
}

// FetchPage implements Adapter
func (a *Document) FetchPage(ctx context.Context, rec *Record, rel *schema.Relation, page, perPage int) ([]*Record, error) {
	offset, limit := pageBounds(page, perPage)

	switch rel.Cardinality {
	case schema.BelongsTo:
		if offset > 0 {
			return nil, nil
		}
		fk := stringValue(rec.Attributes[rel.ForeignKey])
		if fk == "" {
			return nil, nil
		}
		related, err := a.Find(ctx, rel.Target, fk)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []*Record{related}, nil

	case schema.HasOne:
		if offset > 0 {
			return nil, nil
		}
		ids, err := a.referencingIDs(ctx, rec, rel)
		if err != nil || len(ids) == 0 {
			return nil, err
		}
		related, err := a.Find(ctx, rel.Target, ids[0])
		if err != nil {
			return nil, err
		}
		return []*Record{related}, nil

	case schema.HasMany:
		ids, err := a.referencingIDs(ctx, rec, rel)
		if err != nil {
			return nil, err
		}
		return a.findPage(ctx, rel.Target, slicePage(ids, offset, limit))

	case schema.ManyToMany:
		ids := idArray(rec.Attributes[manyToManyField(rel)])
		return a.findPage(ctx, rel.Target, slicePage(ids, offset, limit))

	case schema.EmbedsOne:
		if offset > 0 {
			return nil, nil
		}
		doc, ok := rec.Attributes[rel.Name].(map[string]interface{})
		if !ok {
			return nil, nil
		}
		return []*Record{embeddedRecord(rel.Target, doc)}, nil

	case schema.EmbedsMany:
		docs := embeddedArray(rec.Attributes[rel.Name])
		paged := slicePage(docs, offset, limit)
		records := make([]*Record, 0, len(paged))
		for _, doc := range paged {
			records = append(records, embeddedRecord(rel.Target, doc))
		}
		return records, nil

	default:
		return nil, fmt.Errorf("relation %s: unsupported cardinality %s", rel.Name, rel.Cardinality)
	}
}

// Count implements Adapter
func (a *Document) Count(ctx context.Context, rec *Record, rel *schema.Relation) (int, error) {
	switch rel.Cardinality {
	case schema.BelongsTo:
		if stringValue(rec.Attributes[rel.ForeignKey]) != "" {
			return 1, nil
		}
		return 0, nil

	case schema.HasOne:
		ids, err := a.referencingIDs(ctx, rec, rel)
		if err != nil {
			return 0, err
		}
		if len(ids) > 0 {
			return 1, nil
		}
		return 0, nil

	case schema.HasMany:
		ids, err := a.referencingIDs(ctx, rec, rel)
		if err != nil {
			return 0, err
		}
		return len(ids), nil

	case schema.ManyToMany:
		return len(idArray(rec.Attributes[manyToManyField(rel)])), nil

	case schema.EmbedsOne:
		if _, ok := rec.Attributes[rel.Name].(map[string]interface{}); ok {
			return 1, nil
		}
		return 0, nil

	case schema.EmbedsMany:
		return len(embeddedArray(rec.Attributes[rel.Name])), nil

	default:
		return 0, fmt.Errorf("relation %s: unsupported cardinality %s", rel.Name, rel.Cardinality)
	}
}

// RelatedIDs implements Adapter
func (a *Document) RelatedIDs(ctx context.Context, rec *Record, rel *schema.Relation, limit int) ([]string, error) {
	switch rel.Cardinality {
	case schema.HasMany:
		ids, err := a.referencingIDs(ctx, rec, rel)
		if err != nil {
			return nil, err
		}
		return slicePage(ids, 0, limit), nil

	case schema.ManyToMany:
		return slicePage(idArray(rec.Attributes[manyToManyField(rel)]), 0, limit), nil

	case schema.EmbedsMany:
		docs := slicePage(embeddedArray(rec.Attributes[rel.Name]), 0, limit)
		ids := make([]string, 0, len(docs))
		for _, doc := range docs {
			if id := embeddedID(doc); id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("relation %s: no id preview for cardinality %s", rel.Name, rel.Cardinality)
	}
}

// referencingIDs walks the target model's index and keeps ids whose
// document references rec through the relation's foreign key. Linear in
// the target collection, which is acceptable for a development tool.
func (a *Document) referencingIDs(ctx context.Context, rec *Record, rel *schema.Relation) ([]string, error) {
	target, err := a.Model(rel.Target)
	if err != nil {
		return nil, err
	}

	ids, err := a.client.LRange(ctx, indexKey(target.Name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s index: %w", rel.Target, err)
	}

	var matched []string
	for _, id := range ids {
		data, err := a.client.Get(ctx, recordKey(target.Name, id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		if stringValue(doc[rel.ForeignKey]) == rec.ID {
			matched = append(matched, id)
		}
	}
	return matched, nil
}

// findPage fetches full records for a pre-paged id list
func (a *Document) findPage(ctx context.Context, model string, ids []string) ([]*Record, error) {
	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := a.Find(ctx, model, id)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (a *Document) decode(m *schema.Model, id string, data []byte) (*Record, error) {
	var attrs map[string]interface{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("malformed document %s#%s: %w", m.Name, id, err)
	}
	return &Record{Model: m.Name, ID: id, Attributes: attrs}, nil
}

// manyToManyField is the conventional id-array field for a many_to_many
// relation ("tags" targeting Tag -> "tag_ids")
func manyToManyField(rel *schema.Relation) string {
	return schema.DefaultForeignKey(rel.Target) + "s"
}

// embeddedRecord wraps an embedded document as a Record of the target
// model
func embeddedRecord(model string, doc map[string]interface{}) *Record {
	return &Record{Model: model, ID: embeddedID(doc), Attributes: doc}
}

// embeddedID reads the identifier of an embedded document, preferring the
// document-paradigm _id field
func embeddedID(doc map[string]interface{}) string {
	if id := stringValue(doc["_id"]); id != "" {
		return id
	}
	return stringValue(doc["id"])
}

func embeddedArray(v interface{}) []map[string]interface{} {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	docs := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if doc, ok := item.(map[string]interface{}); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// idArray coerces a JSON array into string ids
func idArray(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		if id := stringValue(item); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// slicePage pages an in-memory slice, clamping out-of-range bounds
func slicePage[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
