package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/modelviz/modelviz/internal/inspect"
)

// SnapshotVersion is the only snapshot format this build reads or writes
const SnapshotVersion = 1

// Snapshot is the serialized form of a whole exploration session
type Snapshot struct {
	Version           int            `json:"version"`
	ID                string         `json:"id"`
	Timestamp         string         `json:"timestamp"`
	Root              *RootRef       `json:"root"`
	Nodes             []SnapshotNode `json:"nodes"`
	ExpandedRelations []string       `json:"expandedRelations"`
	Edges             []SnapshotEdge `json:"edges"`
}

// RootRef identifies the root record of a session
type RootRef struct {
	Model string `json:"model"`
	ID    string `json:"id"`
}

// SnapshotNode is an instance node with its layout position
type SnapshotNode struct {
	inspect.InstanceNode
	Position Position `json:"position"`
}

// SnapshotEdge is a serialized edge
type SnapshotEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
	Macro    string `json:"macro"`
}

// Export serializes the full node set, edge set, positions,
// expanded-relation markers, and root identity
func (s *State) Export() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version:           SnapshotVersion,
		ID:                uuid.NewString(),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Nodes:             make([]SnapshotNode, 0, len(s.nodes)),
		ExpandedRelations: make([]string, 0, len(s.expanded)),
		Edges:             make([]SnapshotEdge, 0, len(s.edges)),
	}

	if s.rootKey != "" {
		if model, id, err := SplitKey(s.rootKey); err == nil {
			snap.Root = &RootRef{Model: model, ID: id}
		}
	}

	for _, node := range s.nodes {
		snap.Nodes = append(snap.Nodes, SnapshotNode{
			InstanceNode: node.Instance,
			Position:     node.Position,
		})
	}
	for relKey := range s.expanded {
		snap.ExpandedRelations = append(snap.ExpandedRelations, relKey)
	}
	for _, edge := range s.edges {
		snap.Edges = append(snap.Edges, SnapshotEdge{
			Source:   edge.Source,
			Target:   edge.Target,
			Relation: edge.Relation,
		})
	}

	// Sorted output so two exports of the same graph serialize identically
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].Key < snap.Nodes[j].Key })
	sort.Strings(snap.ExpandedRelations)
	sort.Slice(snap.Edges, func(i, j int) bool {
		a, b := snap.Edges[i], snap.Edges[j]
		return EdgeID(a.Source, a.Target, a.Relation) < EdgeID(b.Source, b.Target, b.Relation)
	})

	return snap
}

// Import replaces the whole graph with a restored snapshot. Snapshots
// from any other format version are rejected.
func (s *State) Import(snap Snapshot) error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d (want %d)", snap.Version, SnapshotVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.resetLocked()

	if snap.Root != nil {
		s.rootKey = inspect.NodeKey(snap.Root.Model, snap.Root.ID)
	}

	for _, node := range snap.Nodes {
		depth := 1
		if node.Key == s.rootKey {
			depth = 0
		}
		s.nodes[node.Key] = &Node{
			Instance: node.InstanceNode,
			Depth:    depth,
			Position: node.Position,
		}
	}
	for _, relKey := range snap.ExpandedRelations {
		s.expanded[relKey] = true
	}
	for _, edge := range snap.Edges {
		id := EdgeID(edge.Source, edge.Target, edge.Relation)
		s.edges[id] = Edge{
			ID:       id,
			Source:   edge.Source,
			Target:   edge.Target,
			Relation: edge.Relation,
		}
	}

	return nil
}
