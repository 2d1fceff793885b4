// Package adapter abstracts the two supported mapping paradigms behind a
// uniform capability surface: a relational store (tables, foreign keys,
// join tables) and a document store (JSON documents with embedded and
// referenced relations). Which paradigm is active is detected exactly once
// at process start; downstream components only ever see the Adapter
// interface.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/inspect/schema"
)

var (
	// ErrModelNotFound is returned when a name does not resolve to a
	// known, non-abstract model
	ErrModelNotFound = errors.New("model not found")

	// ErrRecordNotFound is returned when a resolved model has no record
	// with the given identifier
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoAdapter is returned by Detect when neither mapping paradigm is
	// configured. It is fatal at startup, never a per-request error.
	ErrNoAdapter = errors.New("no supported mapping layer configured (need a database URL or a redis address)")
)

// Record is a fetched instance: a model name, its string identifier, and
// the raw attribute map as the store returned it
type Record struct {
	Model      string
	ID         string
	Attributes map[string]interface{}
}

// Adapter is the uniform capability surface over a mapping paradigm.
// Fetch operations take a context because every call suspends on store
// I/O; the underlying connection pool is owned by the store client, and
// the adapter must tolerate concurrent unrelated queries against it.
type Adapter interface {
	// Model resolves a name to a known, non-abstract model or fails with
	// ErrModelNotFound
	Model(name string) (*schema.Model, error)

	// Find resolves a record by identifier or fails with ErrRecordNotFound
	Find(ctx context.Context, model, id string) (*Record, error)

	// ListPage returns one page of records for a model, newest first,
	// along with the total record count. Pages are stable and
	// non-overlapping against an unmodified dataset.
	ListPage(ctx context.Context, model string, page, perPage int) ([]*Record, int, error)

	// FetchPage returns one page of records related to rec through rel
	FetchPage(ctx context.Context, rec *Record, rel *schema.Relation, page, perPage int) ([]*Record, error)

	// Count returns the number of records related to rec through rel
	Count(ctx context.Context, rec *Record, rel *schema.Relation) (int, error)

	// RelatedIDs returns up to limit identifiers of records related to
	// rec through rel, without materializing full records
	RelatedIDs(ctx context.Context, rec *Record, rel *schema.Relation, limit int) ([]string, error)
}

// Config carries the connection settings Detect probes. Exactly one of
// DatabaseURL or RedisAddr selects a paradigm.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Detect inspects the configuration once at startup and returns the
// matching adapter. The paradigm does not change at runtime, so callers
// hold the result for the process lifetime. Returns ErrNoAdapter when
// neither store is configured.
func Detect(ctx context.Context, cfg Config, registry *schema.Registry, logger *zap.Logger) (Adapter, error) {
	switch {
	case cfg.DatabaseURL != "":
		a, err := NewRelational(ctx, cfg.DatabaseURL, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("relational mapping layer: %w", err)
		}
		logger.Info("mapping layer detected", zap.String("paradigm", "relational"))
		return a, nil
	case cfg.RedisAddr != "":
		a, err := NewDocument(ctx, cfg, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("document mapping layer: %w", err)
		}
		logger.Info("mapping layer detected", zap.String("paradigm", "document"))
		return a, nil
	default:
		return nil, ErrNoAdapter
	}
}

// resolveModel is the shared model lookup both adapters use
func resolveModel(registry *schema.Registry, name string) (*schema.Model, error) {
	m, ok := registry.Get(name)
	if !ok || m.Abstract {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return m, nil
}

// pageBounds converts 1-based page arguments to an offset, clamping
// nonsensical values to the first page
func pageBounds(page, perPage int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	return (page - 1) * perPage, perPage
}
