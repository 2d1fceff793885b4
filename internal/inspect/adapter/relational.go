package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "github.com/mattn/go-sqlite3"    // sqlite driver
	"go.uber.org/zap"

	"github.com/modelviz/modelviz/internal/inspect/schema"
)

// Dialect selects the SQL flavor for bind placeholders
type Dialect int

const (
	// DialectPostgres uses $1-style placeholders
	DialectPostgres Dialect = iota
	// DialectSQLite uses ?-style placeholders
	DialectSQLite
)

// Querier is the subset of *sql.DB the adapter needs, allowing tests to
// substitute a mock
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Relational maps models onto SQL tables: belongs_to through a foreign
// key column, has_one/has_many through a foreign key on the target table,
// many_to_many through a join table. Pages are offset/limit queries
// ordered newest-first by primary key for stable, non-overlapping pages.
type Relational struct {
	db       Querier
	dialect  Dialect
	registry *schema.Registry
	logger   *zap.Logger
}

// NewRelational opens a SQL connection for the given URL and verifies it.
// postgres:// and postgresql:// URLs use the pgx stdlib driver; anything
// else is treated as a sqlite DSN.
func NewRelational(ctx context.Context, url string, registry *schema.Registry, logger *zap.Logger) (*Relational, error) {
	driver, dialect := driverFor(url)

	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewRelationalWithDB(db, dialect, registry, logger), nil
}

// NewRelationalWithDB wraps an existing connection (used by tests and by
// hosts that own their pool)
func NewRelationalWithDB(db Querier, dialect Dialect, registry *schema.Registry, logger *zap.Logger) *Relational {
	return &Relational{
		db:       db,
		dialect:  dialect,
		registry: registry,
		logger:   logger,
	}
}

func driverFor(url string) (string, Dialect) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "pgx", DialectPostgres
	}
	return "sqlite3", DialectSQLite
}

// bind returns the n-th (1-based) bind placeholder for the dialect
func (a *Relational) bind(n int) string {
	if a.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Model implements Adapter
func (a *Relational) Model(name string) (*schema.Model, error) {
	return resolveModel(a.registry, name)
}

// Find implements Adapter
func (a *Relational) Find(ctx context.Context, model, id string) (*Record, error) {
	m, err := a.Model(model)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s LIMIT 1", m.Table, m.PrimaryKey, a.bind(1))
	rows, err := a.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s#%s: %w", model, id, convertDBError(err))
	}
	defer rows.Close()

	records, err := a.scanRecords(rows, m)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s#%s", ErrRecordNotFound, model, id)
	}
	return records[0], nil
}

// ListPage implements Adapter
func (a *Relational) ListPage(ctx context.Context, model string, page, perPage int) ([]*Record, int, error) {
	m, err := a.Model(model)
	if err != nil {
		return nil, 0, err
	}
	offset, limit := pageBounds(page, perPage)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", m.Table)
	if err := a.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", model, convertDBError(err))
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s DESC LIMIT %s OFFSET %s",
		m.Table, m.PrimaryKey, a.bind(1), a.bind(2))
	rows, err := a.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", model, convertDBError(err))
	}
	defer rows.Close()

	records, err := a.scanRecords(rows, m)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// FetchPage implements Adapter
func (a *Relational) FetchPage(ctx context.Context, rec *Record, rel *schema.Relation, page, perPage int) ([]*Record, error) {
	target, err := a.Model(rel.Target)
	if err != nil {
		return nil, err
	}
	offset, limit := pageBounds(page, perPage)

	switch rel.Cardinality {
	case schema.BelongsTo:
		if offset > 0 {
			return nil, nil
		}
		fk := stringValue(rec.Attributes[rel.ForeignKey])
		if fk == "" {
			return nil, nil
		}
		related, err := a.Find(ctx, rel.Target, fk)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []*Record{related}, nil

	case schema.HasOne:
		if offset > 0 {
			return nil, nil
		}
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY %s DESC LIMIT 1",
			target.Table, rel.ForeignKey, a.bind(1), target.PrimaryKey)
		rows, err := a.db.QueryContext(ctx, query, rec.ID)
		if err != nil {
			return nil, convertDBError(err)
		}
		defer rows.Close()
		return a.scanRecords(rows, target)

	case schema.HasMany:
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY %s DESC LIMIT %s OFFSET %s",
			target.Table, rel.ForeignKey, a.bind(1), target.PrimaryKey, a.bind(2), a.bind(3))
		rows, err := a.db.QueryContext(ctx, query, rec.ID, limit, offset)
		if err != nil {
			return nil, convertDBError(err)
		}
		defer rows.Close()
		return a.scanRecords(rows, target)

	case schema.ManyToMany:
		query := fmt.Sprintf(
			"SELECT t.* FROM %s t JOIN %s j ON j.%s = t.%s WHERE j.%s = %s ORDER BY t.%s DESC LIMIT %s OFFSET %s",
			target.Table, rel.JoinTable, rel.JoinTargetKey, target.PrimaryKey,
			rel.JoinSourceKey, a.bind(1), target.PrimaryKey, a.bind(2), a.bind(3))
		rows, err := a.db.QueryContext(ctx, query, rec.ID, limit, offset)
		if err != nil {
			return nil, convertDBError(err)
		}
		defer rows.Close()
		return a.scanRecords(rows, target)

	default:
		return nil, fmt.Errorf("relation %s: cardinality %s not supported by the relational paradigm",
			rel.Name, rel.Cardinality)
	}
}

// Count implements Adapter
func (a *Relational) Count(ctx context.Context, rec *Record, rel *schema.Relation) (int, error) {
	target, err := a.Model(rel.Target)
	if err != nil {
		return 0, err
	}

	switch rel.Cardinality {
	case schema.BelongsTo:
		if stringValue(rec.Attributes[rel.ForeignKey]) != "" {
			return 1, nil
		}
		return 0, nil

	case schema.HasOne, schema.HasMany:
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s",
			target.Table, rel.ForeignKey, a.bind(1))
		var count int
		if err := a.db.QueryRowContext(ctx, query, rec.ID).Scan(&count); err != nil {
			return 0, convertDBError(err)
		}
		if rel.Cardinality == schema.HasOne && count > 1 {
			count = 1
		}
		return count, nil

	case schema.ManyToMany:
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s",
			rel.JoinTable, rel.JoinSourceKey, a.bind(1))
		var count int
		if err := a.db.QueryRowContext(ctx, query, rec.ID).Scan(&count); err != nil {
			return 0, convertDBError(err)
		}
		return count, nil

	default:
		return 0, fmt.Errorf("relation %s: cardinality %s not supported by the relational paradigm",
			rel.Name, rel.Cardinality)
	}
}

// RelatedIDs implements Adapter. Only identifiers are selected, never
// full rows.
func (a *Relational) RelatedIDs(ctx context.Context, rec *Record, rel *schema.Relation, limit int) ([]string, error) {
	target, err := a.Model(rel.Target)
	if err != nil {
		return nil, err
	}

	var query string
	switch rel.Cardinality {
	case schema.HasMany:
		query = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s DESC LIMIT %s",
			target.PrimaryKey, target.Table, rel.ForeignKey, a.bind(1), target.PrimaryKey, a.bind(2))
	case schema.ManyToMany:
		query = fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s LIMIT %s",
			rel.JoinTargetKey, rel.JoinTable, rel.JoinSourceKey, a.bind(1), a.bind(2))
	default:
		return nil, fmt.Errorf("relation %s: no id preview for cardinality %s", rel.Name, rel.Cardinality)
	}

	rows, err := a.db.QueryContext(ctx, query, rec.ID, limit)
	if err != nil {
		return nil, convertDBError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var raw interface{}
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		ids = append(ids, stringValue(raw))
	}
	return ids, rows.Err()
}

// scanRecords reads every row into a generic attribute map
func (a *Relational) scanRecords(rows *sql.Rows, m *schema.Model) ([]*Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []*Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", m.Name, err)
		}

		attrs := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			attrs[col] = normalizeSQLValue(values[i])
		}
		records = append(records, &Record{
			Model:      m.Name,
			ID:         stringValue(attrs[m.PrimaryKey]),
			Attributes: attrs,
		})
	}
	return records, rows.Err()
}

// normalizeSQLValue converts driver-specific scan results into plain Go
// values ([]byte column data arrives as raw bytes)
func normalizeSQLValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// stringValue renders an identifier-ish value as a string, empty for nil
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		// JSON numbers and some drivers hand back float64 for integer
		// keys; render whole values without a fraction
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// convertDBError maps store errors onto the adapter taxonomy
func convertDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" { // undefined_table
		return fmt.Errorf("%w: %s", ErrModelNotFound, pgErr.Message)
	}
	return err
}
