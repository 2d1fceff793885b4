package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk shape of a model definition file
type schemaFile struct {
	Models []modelDef `yaml:"models"`
}

type modelDef struct {
	Name       string        `yaml:"name"`
	Table      string        `yaml:"table"`
	PrimaryKey string        `yaml:"primary_key"`
	Abstract   bool          `yaml:"abstract"`
	Fields     []Field       `yaml:"fields"`
	Relations  []relationDef `yaml:"relations"`
}

type relationDef struct {
	Relation    `yaml:",inline"`
	Cardinality string `yaml:"cardinality"`
}

// LoadFile parses a YAML model definition file and registers every model
// it declares. This is how a standalone modelviz process learns the shape
// of the host application's data.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML model definitions from a byte slice
func Parse(data []byte) (*Registry, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema file: %w", err)
	}

	registry := NewRegistry()
	for _, def := range file.Models {
		model := &Model{
			Name:       def.Name,
			Table:      def.Table,
			PrimaryKey: def.PrimaryKey,
			Abstract:   def.Abstract,
			Fields:     def.Fields,
		}

		for _, relDef := range def.Relations {
			rel := relDef.Relation
			cardinality, err := ParseCardinality(relDef.Cardinality)
			if err != nil {
				return nil, fmt.Errorf("model %s, relation %s: %w", def.Name, rel.Name, err)
			}
			rel.Cardinality = cardinality
			model.Relations = append(model.Relations, rel)
		}

		if err := registry.Register(model); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
