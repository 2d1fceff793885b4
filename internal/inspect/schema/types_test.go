package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardinalityRoundTrip(t *testing.T) {
	all := []Cardinality{BelongsTo, HasOne, HasMany, ManyToMany, EmbedsOne, EmbedsMany, EmbeddedIn}
	for _, c := range all {
		parsed, err := ParseCardinality(c.String())
		require.NoError(t, err, c.String())
		assert.Equal(t, c, parsed)
	}
}

func TestParseCardinality(t *testing.T) {
	tests := []struct {
		input     string
		want      Cardinality
		expectErr bool
	}{
		{"belongs_to", BelongsTo, false},
		{"has_and_belongs_to_many", ManyToMany, false},
		{"embeds_many", EmbedsMany, false},
		{"embedded_in", EmbeddedIn, false},
		{"has_lots", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCardinality(tt.input)
		if tt.expectErr {
			assert.Error(t, err, tt.input)
		} else {
			require.NoError(t, err, tt.input)
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestCardinalityPredicates(t *testing.T) {
	assert.True(t, EmbedsOne.IsEmbedded())
	assert.True(t, EmbedsMany.IsEmbedded())
	assert.True(t, EmbeddedIn.IsEmbedded())
	assert.False(t, HasMany.IsEmbedded())

	assert.True(t, HasMany.IsToMany())
	assert.True(t, ManyToMany.IsToMany())
	assert.True(t, EmbedsMany.IsToMany())
	assert.False(t, BelongsTo.IsToMany())
	assert.False(t, HasOne.IsToMany())
}

func TestCardinalityJSON(t *testing.T) {
	data, err := HasMany.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"has_many"`, string(data))

	var c Cardinality
	require.NoError(t, c.UnmarshalJSON([]byte(`"embeds_one"`)))
	assert.Equal(t, EmbedsOne, c)

	assert.Error(t, c.UnmarshalJSON([]byte(`"bogus"`)))
}

func TestTableize(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Author", "authors"},
		{"Category", "categories"},
		{"BlogPost", "blog_posts"},
		{"Address", "addresses"},
		{"Box", "boxes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tableize(tt.name), tt.name)
	}
}

func TestDefaultForeignKey(t *testing.T) {
	assert.Equal(t, "author_id", DefaultForeignKey("Author"))
	assert.Equal(t, "blog_post_id", DefaultForeignKey("BlogPost"))
}

func TestModelLookups(t *testing.T) {
	m := NewModel("Post")
	m.Fields = []Field{{Name: "title", Type: "string"}}
	m.Relations = []Relation{{Name: "author", Target: "Author", Cardinality: BelongsTo}}

	assert.Equal(t, "posts", m.Table)
	assert.Equal(t, "id", m.PrimaryKey)

	rel, ok := m.Relation("author")
	require.True(t, ok)
	assert.Equal(t, "Author", rel.Target)

	_, ok = m.Relation("missing")
	assert.False(t, ok)

	field, ok := m.Field("title")
	require.True(t, ok)
	assert.Equal(t, "string", field.Type)

	_, ok = m.Field("missing")
	assert.False(t, ok)
}
