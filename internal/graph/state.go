// Package graph owns the accumulated exploration state on the consuming
// side: the node/edge sets built up by successive relation expansions,
// keyed by stable instance identities. Merge logic lives behind a single
// lock so concurrent expansions never interleave partial updates.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/modelviz/modelviz/internal/inspect"
)

// Expander is the engine surface the graph state consumes. The inspector
// satisfies it; tests substitute fakes.
type Expander interface {
	Inspect(ctx context.Context, model, id string) (*inspect.InstanceNode, error)
	Expand(ctx context.Context, model, id, relation string, page, perPage int) (*inspect.ExpansionResult, error)
}

// Position is a 2D layout coordinate, owned by the renderer but carried
// through snapshots
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is an instance node plus its client-side bookkeeping
type Node struct {
	Instance inspect.InstanceNode
	// Depth is the minimum depth at which the node was ever reached
	Depth    int
	Position Position
}

// Edge connects two instance nodes through a named relation
type Edge struct {
	ID       string
	Source   string
	Target   string
	Relation string
}

// morePlaceholder marks a paginated relation with remaining pages
type morePlaceholder struct {
	SourceKey string
	Relation  string
	NextPage  int
	Remaining int
}

// State is the accumulated client graph. All mutation happens under one
// mutex; the remove-placeholder / merge-nodes / add-placeholder sequence
// of an expansion is observed as a single atomic unit.
type State struct {
	mu       sync.Mutex
	expander Expander

	nodes        map[string]*Node
	edges        map[string]Edge
	expanded     map[string]bool
	placeholders map[string]morePlaceholder
	rootKey      string

	// generation guards against resurrecting a cleared graph: a response
	// that started against an older root is dropped on arrival
	generation uint64
}

// NewState creates an empty graph over the given expander
func NewState(expander Expander) *State {
	s := &State{expander: expander}
	s.resetLocked()
	return s
}

func (s *State) resetLocked() {
	s.nodes = make(map[string]*Node)
	s.edges = make(map[string]Edge)
	s.expanded = make(map[string]bool)
	s.placeholders = make(map[string]morePlaceholder)
	s.rootKey = ""
}

// LoadRoot replaces the entire graph with a single root node at depth 0.
// Any expansion still in flight against the previous root is superseded.
// Returns (nil, nil) when this load was itself superseded by a newer
// LoadRoot or Clear before its result arrived; callers must treat a nil
// node as "discarded", not as success.
func (s *State) LoadRoot(ctx context.Context, model, id string) (*Node, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	instance, err := s.expander.Inspect(ctx, model, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		// A newer LoadRoot or Clear won the race; drop this result
		return nil, nil
	}

	s.resetLocked()
	node := &Node{Instance: *instance, Depth: 0}
	s.nodes[instance.Key] = node
	s.rootKey = instance.Key
	return node, nil
}

// Expand fetches one page of a relation and merges the result. Merging is
// idempotent: replaying the same page grows nothing, and previously seen
// nodes are never overwritten or re-parented (their depth stays the
// minimum ever observed). Returns (nil, nil) when the graph was cleared
// or reloaded while the fetch was in flight; the stale result is dropped
// and nothing is merged.
func (s *State) Expand(ctx context.Context, sourceKey, relation string, page int) (*inspect.ExpansionResult, error) {
	model, id, err := SplitKey(sourceKey)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	gen := s.generation
	sourceDepth := 0
	if src, ok := s.nodes[sourceKey]; ok {
		sourceDepth = src.Depth
	}
	s.mu.Unlock()

	result, err := s.expander.Expand(ctx, model, id, relation, page, 0)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil, nil
	}

	relKey := sourceKey + ":" + relation

	// Stale "more results" placeholder for this relation goes first,
	// whatever page it pointed at
	delete(s.placeholders, relKey)

	s.expanded[relKey] = true
	childDepth := sourceDepth + 1

	for _, instance := range result.Nodes {
		existing, ok := s.nodes[instance.Key]
		if !ok {
			s.nodes[instance.Key] = &Node{Instance: instance, Depth: childDepth}
		} else if childDepth < existing.Depth {
			existing.Depth = childDepth
		}

		edgeID := EdgeID(sourceKey, instance.Key, relation)
		if _, ok := s.edges[edgeID]; !ok {
			s.edges[edgeID] = Edge{
				ID:       edgeID,
				Source:   sourceKey,
				Target:   instance.Key,
				Relation: relation,
			}
		}
	}

	if result.HasMore {
		s.placeholders[relKey] = morePlaceholder{
			SourceKey: sourceKey,
			Relation:  relation,
			NextPage:  result.Page + 1,
			Remaining: result.Total - result.Page*result.PerPage,
		}
	}

	return result, nil
}

// Clear resets all accumulated state and supersedes in-flight operations
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.resetLocked()
}

// SetPosition records a layout position for a node, if it exists
func (s *State) SetPosition(key string, pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node, ok := s.nodes[key]; ok {
		node.Position = pos
	}
}

// RootKey returns the current root identity, empty when unloaded
func (s *State) RootKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootKey
}

// Expanded reports whether a source+relation pair has been expanded
func (s *State) Expanded(sourceKey, relation string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanded[sourceKey+":"+relation]
}

// Nodes returns a copy of all nodes, sorted by key for determinism
func (s *State) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Instance.Key < nodes[j].Instance.Key
	})
	return nodes
}

// Edges returns a copy of all edges, sorted by id for determinism
func (s *State) Edges() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	edges := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

// Pending returns the outstanding "more results" markers, sorted for
// determinism
func (s *State) Pending() []MoreMarker {
	s.mu.Lock()
	defer s.mu.Unlock()
	markers := make([]MoreMarker, 0, len(s.placeholders))
	for _, p := range s.placeholders {
		markers = append(markers, MoreMarker(p))
	}
	sort.Slice(markers, func(i, j int) bool {
		if markers[i].SourceKey != markers[j].SourceKey {
			return markers[i].SourceKey < markers[j].SourceKey
		}
		return markers[i].Relation < markers[j].Relation
	})
	return markers
}

// MoreMarker is the exported view of a pagination placeholder
type MoreMarker struct {
	SourceKey string
	Relation  string
	NextPage  int
	Remaining int
}

// EdgeID builds the deterministic edge identity for a source, target, and
// relation
func EdgeID(source, target, relation string) string {
	return "e:" + source + "->" + target + ":" + relation
}

// SplitKey splits "<model>:<id>" into its parts
func SplitKey(key string) (model, id string, err error) {
	idx := strings.Index(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("malformed node key: %q", key)
	}
	return key[:idx], key[idx+1:], nil
}
