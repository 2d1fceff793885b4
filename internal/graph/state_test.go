package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelviz/modelviz/internal/inspect"
)

// fakeExpander serves canned instance nodes and relation pages keyed by
// "<model>:<id>:<relation>". The onInspect/onExpand hooks fire before a
// result is returned, letting tests interleave state mutations with an
// in-flight fetch.
type fakeExpander struct {
	instances map[string]inspect.InstanceNode
	pages     map[string][]inspect.InstanceNode // full related set, paged on demand
	perPage   int
	calls     int
	onInspect func()
	onExpand  func()
}

func newFakeExpander() *fakeExpander {
	return &fakeExpander{
		instances: make(map[string]inspect.InstanceNode),
		pages:     make(map[string][]inspect.InstanceNode),
		perPage:   2,
	}
}

func (f *fakeExpander) instance(model, id string) inspect.InstanceNode {
	node := inspect.InstanceNode{
		Key:        inspect.NodeKey(model, id),
		Model:      model,
		RecordID:   id,
		Attributes: map[string]interface{}{"id": id},
		Relations:  []inspect.RelationStub{},
	}
	f.instances[node.Key] = node
	return node
}

func (f *fakeExpander) relate(sourceKey, relation string, targets ...inspect.InstanceNode) {
	f.pages[sourceKey+":"+relation] = targets
}

func (f *fakeExpander) Inspect(ctx context.Context, model, id string) (*inspect.InstanceNode, error) {
	f.calls++
	if f.onInspect != nil {
		f.onInspect()
	}
	node, ok := f.instances[inspect.NodeKey(model, id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inspect.ErrRecordNotFound, id)
	}
	return &node, nil
}

func (f *fakeExpander) Expand(ctx context.Context, model, id, relation string, page, perPage int) (*inspect.ExpansionResult, error) {
	f.calls++
	if f.onExpand != nil {
		f.onExpand()
	}
	if perPage < 1 {
		perPage = f.perPage
	}
	if page < 1 {
		page = 1
	}
	all := f.pages[inspect.NodeKey(model, id)+":"+relation]

	offset := (page - 1) * perPage
	nodes := []inspect.InstanceNode{}
	for i := offset; i < len(all) && i < offset+perPage; i++ {
		nodes = append(nodes, all[i])
	}
	return &inspect.ExpansionResult{
		SourceKey: inspect.NodeKey(model, id),
		Relation:  relation,
		Total:     len(all),
		Page:      page,
		PerPage:   perPage,
		HasMore:   page*perPage < len(all),
		Nodes:     nodes,
	}, nil
}

func seededState(t *testing.T) (*State, *fakeExpander) {
	t.Helper()
	fake := newFakeExpander()
	author := fake.instance("Author", "a1")
	p1 := fake.instance("Post", "p1")
	p2 := fake.instance("Post", "p2")
	p3 := fake.instance("Post", "p3")
	fake.relate(author.Key, "posts", p3, p2, p1)
	fake.relate(p3.Key, "author", author)

	state := NewState(fake)
	_, err := state.LoadRoot(context.Background(), "Author", "a1")
	require.NoError(t, err)
	return state, fake
}

func TestLoadRoot(t *testing.T) {
	state, _ := seededState(t)

	assert.Equal(t, "Author:a1", state.RootKey())
	nodes := state.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, 0, nodes[0].Depth)
	assert.Empty(t, state.Edges())
}

func TestLoadRootUnknownRecord(t *testing.T) {
	state := NewState(newFakeExpander())
	_, err := state.LoadRoot(context.Background(), "Author", "missing")
	assert.ErrorIs(t, err, inspect.ErrRecordNotFound)
	assert.Empty(t, state.RootKey())
}

func TestExpandMergesNodesAndEdges(t *testing.T) {
	state, _ := seededState(t)

	result, err := state.Expand(context.Background(), "Author:a1", "posts", 1)
	require.NoError(t, err)
	assert.True(t, result.HasMore)

	assert.Len(t, state.Nodes(), 3) // root + 2 posts
	edges := state.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "e:Author:a1->Post:p2:posts", edges[0].ID)
	assert.True(t, state.Expanded("Author:a1", "posts"))

	for _, node := range state.Nodes() {
		if node.Instance.Key != "Author:a1" {
			assert.Equal(t, 1, node.Depth)
		}
	}
}

func TestExpandIdempotent(t *testing.T) {
	state, _ := seededState(t)
	ctx := context.Background()

	_, err := state.Expand(ctx, "Author:a1", "posts", 1)
	require.NoError(t, err)
	nodes, edges := len(state.Nodes()), len(state.Edges())

	// Replaying the same page grows nothing
	_, err = state.Expand(ctx, "Author:a1", "posts", 1)
	require.NoError(t, err)
	assert.Len(t, state.Nodes(), nodes)
	assert.Len(t, state.Edges(), edges)
}

func TestExpandPlaceholderLifecycle(t *testing.T) {
	state, _ := seededState(t)
	ctx := context.Background()

	_, err := state.Expand(ctx, "Author:a1", "posts", 1)
	require.NoError(t, err)

	pending := state.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "Author:a1", pending[0].SourceKey)
	assert.Equal(t, "posts", pending[0].Relation)
	assert.Equal(t, 2, pending[0].NextPage)
	assert.Equal(t, 1, pending[0].Remaining)

	// Fetching the final page removes the marker
	_, err = state.Expand(ctx, "Author:a1", "posts", 2)
	require.NoError(t, err)
	assert.Empty(t, state.Pending())
	assert.Len(t, state.Nodes(), 4)
}

func TestExpandKeepsMinimumDepth(t *testing.T) {
	state, _ := seededState(t)
	ctx := context.Background()

	_, err := state.Expand(ctx, "Author:a1", "posts", 1)
	require.NoError(t, err)

	// Expanding back from a depth-1 post must not deepen the root
	_, err = state.Expand(ctx, "Post:p3", "author", 1)
	require.NoError(t, err)

	for _, node := range state.Nodes() {
		if node.Instance.Key == "Author:a1" {
			assert.Equal(t, 0, node.Depth)
		}
	}
	// The back edge is distinct from the forward edge
	assert.Len(t, state.Edges(), 3)
}

func TestExpandMalformedKey(t *testing.T) {
	state, _ := seededState(t)
	_, err := state.Expand(context.Background(), "nocolon", "posts", 1)
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	state, _ := seededState(t)
	_, err := state.Expand(context.Background(), "Author:a1", "posts", 1)
	require.NoError(t, err)

	state.Clear()

	assert.Empty(t, state.RootKey())
	assert.Empty(t, state.Nodes())
	assert.Empty(t, state.Edges())
	assert.Empty(t, state.Pending())
	assert.False(t, state.Expanded("Author:a1", "posts"))
}

func TestExpandDroppedWhenClearedInFlight(t *testing.T) {
	state, fake := seededState(t)

	// The graph is cleared while the relation fetch is still out
	fake.onExpand = func() { state.Clear() }

	result, err := state.Expand(context.Background(), "Author:a1", "posts", 1)
	require.NoError(t, err)
	assert.Nil(t, result)

	// The stale result must not resurrect the cleared graph
	assert.Empty(t, state.Nodes())
	assert.Empty(t, state.Edges())
	assert.Empty(t, state.Pending())
	assert.False(t, state.Expanded("Author:a1", "posts"))
}

func TestExpandDroppedWhenRootReloadedInFlight(t *testing.T) {
	state, fake := seededState(t)
	ctx := context.Background()

	// A new root load wins the race against the in-flight expansion
	fake.onExpand = func() {
		fake.onExpand = nil
		_, err := state.LoadRoot(ctx, "Post", "p1")
		require.NoError(t, err)
	}

	result, err := state.Expand(ctx, "Author:a1", "posts", 1)
	require.NoError(t, err)
	assert.Nil(t, result)

	// Only the new root survives; nothing from the old root's expansion
	// leaked in
	assert.Equal(t, "Post:p1", state.RootKey())
	nodes := state.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "Post:p1", nodes[0].Instance.Key)
	assert.Empty(t, state.Edges())
	assert.False(t, state.Expanded("Author:a1", "posts"))
}

func TestLoadRootDroppedWhenSuperseded(t *testing.T) {
	state, fake := seededState(t)

	fake.onInspect = func() {
		fake.onInspect = nil
		state.Clear()
	}

	node, err := state.LoadRoot(context.Background(), "Author", "a1")
	require.NoError(t, err)
	assert.Nil(t, node)
	assert.Empty(t, state.RootKey())
	assert.Empty(t, state.Nodes())
}

func TestSetPosition(t *testing.T) {
	state, _ := seededState(t)
	state.SetPosition("Author:a1", Position{X: 10, Y: -4})

	nodes := state.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, Position{X: 10, Y: -4}, nodes[0].Position)

	// Unknown keys are ignored
	state.SetPosition("Ghost:1", Position{X: 1, Y: 1})
	assert.Len(t, state.Nodes(), 1)
}

func TestEdgeID(t *testing.T) {
	assert.Equal(t, "e:Author:a1->Post:p1:posts", EdgeID("Author:a1", "Post:p1", "posts"))
}

func TestSplitKey(t *testing.T) {
	model, id, err := SplitKey("Author:a1")
	require.NoError(t, err)
	assert.Equal(t, "Author", model)
	assert.Equal(t, "a1", id)

	// An id may itself contain separators
	model, id, err = SplitKey("Event:2024:03:01")
	require.NoError(t, err)
	assert.Equal(t, "Event", model)
	assert.Equal(t, "2024:03:01", id)

	for _, bad := range []string{"", "nocolon", ":leading", "trailing:"} {
		_, _, err := SplitKey(bad)
		assert.Error(t, err, bad)
	}
}
