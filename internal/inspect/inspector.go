package inspect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/inspect/adapter"
	"github.com/modelviz/modelviz/internal/inspect/schema"
)

// maxListColumns caps the column set in the table view
const maxListColumns = 30

// Options configures the inspector's exclusion lists and preview bounds
type Options struct {
	// RelationLimit bounds preview_ids on stubs and is the default page
	// size for relation expansion
	RelationLimit int
	// ExcludedModels are hidden from listing, schema nodes, and edges
	ExcludedModels []string
	// ExcludedAttributes are stripped from every serialized instance,
	// matched by exact name or suffix
	ExcludedAttributes []string
}

// DefaultOptions mirrors the stock configuration: a preview of five and
// the internal id and timestamp fields hidden
func DefaultOptions() Options {
	return Options{
		RelationLimit:      5,
		ExcludedAttributes: []string{"_id", "created_at", "updated_at"},
	}
}

// Inspector is the reflection engine. It is safe for concurrent use: all
// state is immutable after construction and every store access goes
// through the adapter.
type Inspector struct {
	adapter  adapter.Adapter
	registry *schema.Registry
	opts     Options
	logger   *zap.Logger
}

// New creates an inspector over a detected adapter
func New(a adapter.Adapter, registry *schema.Registry, opts Options, logger *zap.Logger) *Inspector {
	if opts.RelationLimit <= 0 {
		opts.RelationLimit = DefaultOptions().RelationLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{
		adapter:  a,
		registry: registry,
		opts:     opts,
		logger:   logger,
	}
}

// RelationLimit exposes the configured preview bound
func (in *Inspector) RelationLimit() int {
	return in.opts.RelationLimit
}

// Models returns all eligible model names in lexicographic order
func (in *Inspector) Models() []string {
	return in.registry.Names(in.opts.ExcludedModels)
}

// Schema assembles the class-level graph: one descriptor per eligible
// model and one edge per relation whose target is also eligible,
// deduplicated by (source, target, label). A model that fails reflection
// is skipped so one broken class never aborts the walk.
func (in *Inspector) Schema() SchemaGraph {
	names := in.Models()
	eligible := make(map[string]bool, len(names))
	for _, name := range names {
		eligible[name] = true
	}

	graph := SchemaGraph{
		Nodes: make([]ModelDescriptor, 0, len(names)),
		Edges: make([]SchemaEdge, 0),
	}
	seenEdges := make(map[string]bool)

	for _, name := range names {
		model, err := in.adapter.Model(name)
		if err != nil {
			in.logger.Warn("skipping model during schema walk",
				zap.String("model", name), zap.Error(err))
			continue
		}

		relations := schema.Classify(model)
		graph.Nodes = append(graph.Nodes, ModelDescriptor{
			ID:             name,
			Label:          name,
			FieldsCount:    len(model.Fields),
			RelationsCount: len(relations),
		})

		for _, rel := range relations {
			if !eligible[rel.Target] {
				continue
			}
			edgeKey := name + ":" + rel.Target + ":" + rel.Name
			if seenEdges[edgeKey] {
				continue
			}
			seenEdges[edgeKey] = true
			graph.Edges = append(graph.Edges, SchemaEdge{
				Source: name,
				Target: rel.Target,
				Label:  rel.Name,
				Type:   rel.Cardinality,
			})
		}
	}

	return graph
}

// Inspect resolves a record and shapes it into an instance node with one
// best-effort relation stub per classified relation. Inspection cost is
// O(relation count), independent of related-record volume; full related
// records only ever move through Expand.
func (in *Inspector) Inspect(ctx context.Context, modelName, id string) (*InstanceNode, error) {
	if excludedModel(modelName, in.opts.ExcludedModels) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelName)
	}
	rec, err := in.adapter.Find(ctx, modelName, id)
	if err != nil {
		return nil, err
	}
	node := in.buildNode(ctx, rec)
	return &node, nil
}

// ListRecords returns one page of records for the table view
func (in *Inspector) ListRecords(ctx context.Context, modelName string, page, perPage int) (*RecordPage, error) {
	if excludedModel(modelName, in.opts.ExcludedModels) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelName)
	}
	model, err := in.adapter.Model(modelName)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 25
	}

	records, total, err := in.adapter.ListPage(ctx, modelName, page, perPage)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, maxListColumns+1)
	columns = append(columns, model.PrimaryKey)
	for _, field := range model.Fields {
		if field.Name == model.PrimaryKey {
			continue
		}
		if len(columns) >= maxListColumns {
			break
		}
		columns = append(columns, field.Name)
	}

	rows := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		row := make(map[string]interface{}, len(columns))
		for _, col := range columns {
			row[col] = serializeValue(rec.Attributes[col])
		}
		rows = append(rows, row)
	}

	return &RecordPage{
		Model:      modelName,
		Columns:    columns,
		Rows:       rows,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// Expand fetches one page of related records for a named relation. An
// unknown relation on a known model is a lookup failure and reuses
// ErrModelNotFound. A failing fetch degrades to an empty page with total
// zero: one misbehaving relation never blocks exploration of the rest of
// the record.
func (in *Inspector) Expand(ctx context.Context, modelName, id, relationName string, page, perPage int) (*ExpansionResult, error) {
	if excludedModel(modelName, in.opts.ExcludedModels) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelName)
	}
	model, err := in.adapter.Model(modelName)
	if err != nil {
		return nil, err
	}
	rec, err := in.adapter.Find(ctx, modelName, id)
	if err != nil {
		return nil, err
	}

	rel, ok := findRelation(schema.Classify(model), relationName)
	if !ok {
		return nil, fmt.Errorf("%w: relation %q on %s", ErrModelNotFound, relationName, modelName)
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = in.opts.RelationLimit
	}

	result := &ExpansionResult{
		SourceKey: NodeKey(modelName, id),
		Relation:  relationName,
		Page:      page,
		PerPage:   perPage,
		Nodes:     []InstanceNode{},
	}

	related, err := in.adapter.FetchPage(ctx, rec, rel, page, perPage)
	if err != nil {
		in.logger.Warn("relation fetch degraded to empty result",
			zap.String("model", modelName),
			zap.String("relation", relationName),
			zap.Error(err))
		return result, nil
	}

	total, err := in.adapter.Count(ctx, rec, rel)
	if err != nil {
		in.logger.Warn("relation count degraded to zero",
			zap.String("model", modelName),
			zap.String("relation", relationName),
			zap.Error(err))
		total = 0
	}

	for _, item := range related {
		result.Nodes = append(result.Nodes, in.buildNode(ctx, item))
	}
	result.Total = total
	result.HasMore = page*perPage < total

	return result, nil
}

// buildNode serializes a record and attaches a stub for every classified
// relation on its model. Nodes built here are immediately
// further-expandable by the client.
func (in *Inspector) buildNode(ctx context.Context, rec *adapter.Record) InstanceNode {
	node := InstanceNode{
		Key:        NodeKey(rec.Model, rec.ID),
		Model:      rec.Model,
		RecordID:   rec.ID,
		Attributes: serializeAttributes(rec.Attributes, in.opts.ExcludedAttributes),
		Relations:  []RelationStub{},
	}

	model, err := in.adapter.Model(rec.Model)
	if err != nil {
		return node
	}
	for _, rel := range schema.Classify(model) {
		node.Relations = append(node.Relations, in.buildStub(ctx, rec, rel))
	}
	return node
}

// buildStub summarizes one relation without materializing full related
// records. Every failure path degrades to a zero-valued stub: count 0, no
// preview, logged but never propagated, so the other relations on the
// same instance are unaffected.
func (in *Inspector) buildStub(ctx context.Context, rec *adapter.Record, rel schema.Relation) RelationStub {
	stub := RelationStub{
		Name:        rel.Name,
		Cardinality: rel.Cardinality,
		TargetClass: rel.Target,
		ForeignKey:  rel.ForeignKey,
		Embedded:    rel.Embedded(),
	}

	switch rel.Cardinality {
	case schema.BelongsTo:
		// The foreign key attribute alone decides presence; no fetch
		if fk := rawString(rec.Attributes[rel.ForeignKey]); fk != "" {
			stub.Value = &fk
			stub.Count = 1
		}

	case schema.HasOne, schema.EmbedsOne:
		related, err := in.adapter.FetchPage(ctx, rec, &rel, 1, 1)
		if err != nil {
			in.logSoftFailure(rec, rel, err)
			return stub
		}
		if len(related) > 0 {
			id := related[0].ID
			stub.Value = &id
			stub.Count = 1
		}

	case schema.HasMany, schema.ManyToMany, schema.EmbedsMany:
		count, err := in.adapter.Count(ctx, rec, &rel)
		if err != nil {
			in.logSoftFailure(rec, rel, err)
			return stub
		}
		ids, err := in.adapter.RelatedIDs(ctx, rec, &rel, in.opts.RelationLimit)
		if err != nil {
			in.logSoftFailure(rec, rel, err)
			return stub
		}
		stub.Count = count
		stub.PreviewIDs = ids
	}

	return stub
}

func (in *Inspector) logSoftFailure(rec *adapter.Record, rel schema.Relation, err error) {
	in.logger.Warn("relation stub degraded",
		zap.String("model", rec.Model),
		zap.String("record", rec.ID),
		zap.String("relation", rel.Name),
		zap.Error(err))
}

func findRelation(relations []schema.Relation, name string) (*schema.Relation, bool) {
	for i := range relations {
		if relations[i].Name == name {
			return &relations[i], true
		}
	}
	return nil, false
}

func excludedModel(name string, excluded []string) bool {
	for _, entry := range excluded {
		if name == entry {
			return true
		}
	}
	return false
}

// rawString renders a foreign key attribute without going through full
// value serialization
func rawString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
