package adapter

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/inspect/schema"
)

func setupRelational(t *testing.T) (*Relational, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	registry := schema.NewRegistry()

	author := schema.NewModel("Author")
	author.Fields = []schema.Field{{Name: "id", Type: "int"}, {Name: "name", Type: "string"}}
	author.Relations = []schema.Relation{
		{Name: "posts", Target: "Post", Cardinality: schema.HasMany},
	}
	require.NoError(t, registry.Register(author))

	post := schema.NewModel("Post")
	post.Fields = []schema.Field{
		{Name: "id", Type: "int"},
		{Name: "title", Type: "string"},
		{Name: "author_id", Type: "int"},
	}
	post.Relations = []schema.Relation{
		{Name: "author", Target: "Author", Cardinality: schema.BelongsTo},
		{Name: "tags", Target: "Tag", Cardinality: schema.ManyToMany},
	}
	require.NoError(t, registry.Register(post))

	tag := schema.NewModel("Tag")
	tag.Fields = []schema.Field{{Name: "id", Type: "int"}, {Name: "label", Type: "string"}}
	require.NoError(t, registry.Register(tag))

	return NewRelationalWithDB(db, DialectPostgres, registry, zap.NewNop()), mock
}

func classified(t *testing.T, a *Relational, model, name string) *schema.Relation {
	t.Helper()
	m, err := a.Model(model)
	require.NoError(t, err)
	for _, rel := range schema.Classify(m) {
		if rel.Name == name {
			relCopy := rel
			return &relCopy
		}
	}
	t.Fatalf("relation %s not found on %s", name, model)
	return nil
}

func TestRelationalModelNotFound(t *testing.T) {
	a, _ := setupRelational(t)

	_, err := a.Model("Ghost")
	assert.ErrorIs(t, err, ErrModelNotFound)

	_, err = a.Find(context.Background(), "Ghost", "1")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestRelationalFind(t *testing.T) {
	a, mock := setupRelational(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM authors WHERE id = $1 LIMIT 1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("a1", "Ada"))

	rec, err := a.Find(context.Background(), "Author", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Author", rec.Model)
	assert.Equal(t, "a1", rec.ID)
	assert.Equal(t, "Ada", rec.Attributes["name"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationalFindRecordNotFound(t *testing.T) {
	a, mock := setupRelational(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM authors WHERE id = $1 LIMIT 1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := a.Find(context.Background(), "Author", "nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRelationalListPage(t *testing.T) {
	a, mock := setupRelational(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM posts")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM posts ORDER BY id DESC LIMIT $1 OFFSET $2")).
		WithArgs(5, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
			AddRow("p7", "Seven", "a1").
			AddRow("p6", "Six", "a1"))

	records, total, err := a.ListPage(context.Background(), "Post", 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, records, 2)
	assert.Equal(t, "p7", records[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelationalFetchPageHasMany(t *testing.T) {
	a, mock := setupRelational(t)
	rel := classified(t, a, "Author", "posts")

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM posts WHERE author_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3")).
		WithArgs("a1", 2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
			AddRow("p1", "One", "a1"))

	source := &Record{Model: "Author", ID: "a1", Attributes: map[string]interface{}{"id": "a1"}}
	records, err := a.FetchPage(context.Background(), source, rel, 2, 2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Post", records[0].Model)
	assert.Equal(t, "p1", records[0].ID)
}

func TestRelationalFetchPageBelongsTo(t *testing.T) {
	a, mock := setupRelational(t)
	rel := classified(t, a, "Post", "author")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM authors WHERE id = $1 LIMIT 1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("a1", "Ada"))

	source := &Record{Model: "Post", ID: "p1", Attributes: map[string]interface{}{"author_id": "a1"}}
	records, err := a.FetchPage(context.Background(), source, rel, 1, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a1", records[0].ID)

	// Absent foreign key means no fetch at all
	empty := &Record{Model: "Post", ID: "p2", Attributes: map[string]interface{}{}}
	records, err = a.FetchPage(context.Background(), empty, rel, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRelationalFetchPageManyToMany(t *testing.T) {
	a, mock := setupRelational(t)
	rel := classified(t, a, "Post", "tags")

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT t.* FROM tags t JOIN posts_tags j ON j.tag_id = t.id WHERE j.post_id = $1 ORDER BY t.id DESC LIMIT $2 OFFSET $3")).
		WithArgs("p1", 5, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).
			AddRow("t2", "go").
			AddRow("t1", "dev"))

	source := &Record{Model: "Post", ID: "p1", Attributes: map[string]interface{}{}}
	records, err := a.FetchPage(context.Background(), source, rel, 1, 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Tag", records[0].Model)
}

func TestRelationalCount(t *testing.T) {
	a, mock := setupRelational(t)

	hasMany := classified(t, a, "Author", "posts")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM posts WHERE author_id = $1")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	source := &Record{Model: "Author", ID: "a1", Attributes: map[string]interface{}{}}
	count, err := a.Count(context.Background(), source, hasMany)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// belongs_to decides from the foreign key alone
	belongsTo := classified(t, a, "Post", "author")
	post := &Record{Model: "Post", ID: "p1", Attributes: map[string]interface{}{"author_id": "a1"}}
	count, err = a.Count(context.Background(), post, belongsTo)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	orphan := &Record{Model: "Post", ID: "p2", Attributes: map[string]interface{}{}}
	count, err = a.Count(context.Background(), orphan, belongsTo)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRelationalRelatedIDs(t *testing.T) {
	a, mock := setupRelational(t)
	rel := classified(t, a, "Author", "posts")

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id FROM posts WHERE author_id = $1 ORDER BY id DESC LIMIT $2")).
		WithArgs("a1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p3").AddRow("p2").AddRow("p1"))

	source := &Record{Model: "Author", ID: "a1", Attributes: map[string]interface{}{}}
	ids, err := a.RelatedIDs(context.Background(), source, rel, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p2", "p1"}, ids)
}

func TestRelationalRejectsEmbedded(t *testing.T) {
	a, _ := setupRelational(t)

	rel := &schema.Relation{Name: "profile", Target: "Author", Cardinality: schema.EmbedsOne}
	source := &Record{Model: "Author", ID: "a1", Attributes: map[string]interface{}{}}

	_, err := a.FetchPage(context.Background(), source, rel, 1, 5)
	assert.Error(t, err)

	_, err = a.Count(context.Background(), source, rel)
	assert.Error(t, err)
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "", stringValue(nil))
	assert.Equal(t, "abc", stringValue("abc"))
	assert.Equal(t, "abc", stringValue([]byte("abc")))
	assert.Equal(t, "42", stringValue(float64(42)))
	assert.Equal(t, "42", stringValue(int64(42)))
	assert.Equal(t, "1.5", stringValue(1.5))
}
