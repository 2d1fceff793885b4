package schema

// Classify normalizes a model's declared relations into the descriptors
// the inspector works with. The inverse side of an embedding relation
// (embedded_in) is dropped: it is not independently expandable and would
// otherwise surface as a second edge for the same logical relation.
// Foreign keys are defaulted by convention where the paradigm has one;
// embedded relations never carry a foreign key.
func Classify(m *Model) []Relation {
	result := make([]Relation, 0, len(m.Relations))
	for _, rel := range m.Relations {
		if rel.Cardinality == EmbeddedIn {
			continue
		}

		switch rel.Cardinality {
		case BelongsTo:
			if rel.ForeignKey == "" {
				rel.ForeignKey = DefaultForeignKey(rel.Name)
			}
		case HasOne, HasMany:
			if rel.ForeignKey == "" {
				rel.ForeignKey = DefaultForeignKey(m.Name)
			}
		case ManyToMany:
			// No single-column foreign key; the join metadata carries
			// both sides.
			rel.ForeignKey = ""
			if rel.JoinTable == "" {
				rel.JoinTable = defaultJoinTable(m.Name, rel.Target)
			}
			if rel.JoinSourceKey == "" {
				rel.JoinSourceKey = DefaultForeignKey(m.Name)
			}
			if rel.JoinTargetKey == "" {
				rel.JoinTargetKey = DefaultForeignKey(rel.Target)
			}
		case EmbedsOne, EmbedsMany:
			rel.ForeignKey = ""
		}

		result = append(result, rel)
	}
	return result
}

// defaultJoinTable derives the conventional join table name for a
// many_to_many pair: both table names, lexicographically ordered, joined
// with an underscore ("authors_books")
func defaultJoinTable(source, target string) string {
	a, b := Tableize(source), Tableize(target)
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}
