// Package inspect implements the model reflection engine: the schema
// assembler, the instance inspector, and the relation expander. All three
// sit on top of the mapping adapter and never touch a store directly.
package inspect

import (
	"github.com/modelviz/modelviz/internal/inspect/adapter"
	"github.com/modelviz/modelviz/internal/inspect/schema"
)

// Re-exported lookup failures so callers do not need to import the
// adapter package to classify errors
var (
	ErrModelNotFound  = adapter.ErrModelNotFound
	ErrRecordNotFound = adapter.ErrRecordNotFound
)

// ModelDescriptor is a schema-graph node: one per eligible model
type ModelDescriptor struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	FieldsCount    int    `json:"fields_count"`
	RelationsCount int    `json:"relations_count"`
}

// SchemaEdge is a schema-graph edge, deduplicated by (source, target,
// label). Both endpoints are always eligible models in the same response.
type SchemaEdge struct {
	Source string             `json:"source"`
	Target string             `json:"target"`
	Label  string             `json:"label"`
	Type   schema.Cardinality `json:"type"`
}

// SchemaGraph is the class-level graph of all eligible models
type SchemaGraph struct {
	Nodes []ModelDescriptor `json:"nodes"`
	Edges []SchemaEdge      `json:"edges"`
}

// RelationStub is a lightweight relation summary on an instance node:
// a count and a bounded id preview, with no full related records. Count
// and preview are best-effort; a failed fetch degrades to zero values
// rather than failing the instance.
type RelationStub struct {
	Name        string             `json:"name"`
	Cardinality schema.Cardinality `json:"cardinality"`
	TargetClass string             `json:"target_class"`
	ForeignKey  string             `json:"foreign_key,omitempty"`
	Embedded    bool               `json:"embedded"`
	Value       *string            `json:"value,omitempty"`
	Count       int                `json:"count"`
	PreviewIDs  []string           `json:"preview_ids,omitempty"`
}

// InstanceNode is a fetched record shaped for the client graph. Key is
// the stable identity "<model>:<id>": two fetches of the same record
// always produce the same key, so the client can deduplicate.
type InstanceNode struct {
	Key        string                 `json:"key"`
	Model      string                 `json:"model"`
	RecordID   string                 `json:"record_id"`
	Attributes map[string]interface{} `json:"attributes"`
	Relations  []RelationStub         `json:"relations"`
}

// NodeKey builds the stable instance identity
func NodeKey(model, id string) string {
	return model + ":" + id
}

// ExpansionResult is one page of related records for a relation
type ExpansionResult struct {
	SourceKey string         `json:"source_key"`
	Relation  string         `json:"relation"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	PerPage   int            `json:"per_page"`
	HasMore   bool           `json:"has_more"`
	Nodes     []InstanceNode `json:"nodes"`
}

// RecordPage is one page of records for the table view
type RecordPage struct {
	Model      string                   `json:"model"`
	Columns    []string                 `json:"columns"`
	Rows       []map[string]interface{} `json:"rows"`
	Total      int                      `json:"total"`
	Page       int                      `json:"page"`
	PerPage    int                      `json:"per_page"`
	TotalPages int                      `json:"total_pages"`
}
