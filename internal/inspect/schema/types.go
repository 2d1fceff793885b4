// Package schema defines the model metadata that modelviz reflects over:
// fields, relations, and the closed set of relation cardinalities shared by
// both supported mapping paradigms.
package schema

import (
	"fmt"
)

// Cardinality represents the declared kind of a relation
type Cardinality int

const (
	// Relational macros
	BelongsTo Cardinality = iota
	HasOne
	HasMany
	ManyToMany

	// Document-paradigm macros
	EmbedsOne
	EmbedsMany

	// EmbeddedIn is the inverse side of EmbedsOne/EmbedsMany. It is never
	// surfaced by the classifier: it is redundant with its owning side and
	// would produce a duplicate inverse edge.
	EmbeddedIn
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	switch c {
	case BelongsTo:
		return "belongs_to"
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case ManyToMany:
		return "many_to_many"
	case EmbedsOne:
		return "embeds_one"
	case EmbedsMany:
		return "embeds_many"
	case EmbeddedIn:
		return "embedded_in"
	default:
		return "unknown"
	}
}

// ParseCardinality converts a string to a Cardinality
func ParseCardinality(s string) (Cardinality, error) {
	switch s {
	case "belongs_to":
		return BelongsTo, nil
	case "has_one":
		return HasOne, nil
	case "has_many":
		return HasMany, nil
	case "many_to_many", "has_and_belongs_to_many":
		return ManyToMany, nil
	case "embeds_one":
		return EmbedsOne, nil
	case "embeds_many":
		return EmbedsMany, nil
	case "embedded_in":
		return EmbeddedIn, nil
	default:
		return 0, fmt.Errorf("unknown cardinality: %s", s)
	}
}

// IsEmbedded returns true for the embedded document macros
func (c Cardinality) IsEmbedded() bool {
	return c == EmbedsOne || c == EmbedsMany || c == EmbeddedIn
}

// IsToMany returns true for macros that relate to a collection of records
func (c Cardinality) IsToMany() bool {
	return c == HasMany || c == ManyToMany || c == EmbedsMany
}

// MarshalJSON encodes the cardinality as its string form
func (c Cardinality) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON decodes the cardinality from its string form
func (c *Cardinality) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseCardinality(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Field represents a declared field (column) on a model
type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Relation represents a declared relation on a model, normalized across
// both mapping paradigms
type Relation struct {
	Name        string      `yaml:"name"`
	Target      string      `yaml:"target"`
	Cardinality Cardinality `yaml:"-"`
	ForeignKey  string      `yaml:"foreign_key"`
	InverseOf   string      `yaml:"inverse_of"`

	// Join table configuration, only meaningful for ManyToMany in the
	// relational paradigm
	JoinTable     string `yaml:"join_table"`
	JoinSourceKey string `yaml:"join_source_key"`
	JoinTargetKey string `yaml:"join_target_key"`
}

// Embedded reports whether the relation targets embedded documents
func (r *Relation) Embedded() bool {
	return r.Cardinality.IsEmbedded()
}

// Model represents a reflected model class
type Model struct {
	Name string
	// Table is the backing table (relational) or document namespace
	// (document paradigm). Defaults to snake_case plural of Name.
	Table string
	// PrimaryKey is the identifier column/field. Defaults to "id".
	PrimaryKey string
	// Abstract models are never eligible for inspection.
	Abstract bool

	Fields    []Field
	Relations []Relation
}

// NewModel creates a model with defaulted table and primary key
func NewModel(name string) *Model {
	return &Model{
		Name:       name,
		Table:      Tableize(name),
		PrimaryKey: "id",
	}
}

// Relation returns the named relation, if declared
func (m *Model) Relation(name string) (*Relation, bool) {
	for i := range m.Relations {
		if m.Relations[i].Name == name {
			return &m.Relations[i], true
		}
	}
	return nil, false
}

// Field returns the named field, if declared
func (m *Model) Field(name string) (*Field, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// Tableize converts a model name to its default backing table name:
// snake_case with a naive plural ("Author" -> "authors", "Category" ->
// "categories")
func Tableize(name string) string {
	snake := toSnakeCase(name)
	switch {
	case len(snake) > 1 && snake[len(snake)-1] == 'y':
		return snake[:len(snake)-1] + "ies"
	case len(snake) > 0 && (snake[len(snake)-1] == 's' || snake[len(snake)-1] == 'x'):
		return snake + "es"
	default:
		return snake + "s"
	}
}

// DefaultForeignKey derives the conventional foreign key column for a model
// name ("Author" -> "author_id")
func DefaultForeignKey(name string) string {
	return toSnakeCase(name) + "_id"
}

// toSnakeCase converts a CamelCase name to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}
