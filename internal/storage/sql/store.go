// Package sql implements the record store on a SQL database via sqlx.
// It works against sqlite3 (default) and postgres with the same queries.
package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/confhub/confhub/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// Store implements the storage.RecordStore interface using SQL.
type Store struct {
	db      *sqlx.DB
	noLimit string
}

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	// OFFSET without LIMIT is a syntax error on sqlite, and sqlite's
	// unbounded "LIMIT -1" is rejected by postgres. Pick the dialect's
	// unbounded-limit spelling once.
	noLimit := "-1"
	if driver == "postgres" {
		noLimit = "ALL"
	}

	return &Store{db: db, noLimit: noLimit}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type recordRow struct {
	ID          string    `db:"id"`
	Tier        string    `db:"tier"`
	DomainID    string    `db:"domain_id"`
	WorkspaceID string    `db:"workspace_id"`
	ProjectID   string    `db:"project_id"`
	UserID      string    `db:"user_id"`
	Name        string    `db:"name"`
	Data        []byte    `db:"data"`
	Tags        []byte    `db:"tags"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

const recordColumns = `id, tier, domain_id, workspace_id, project_id, user_id, name, data, tags, created_at, updated_at`

func (r *recordRow) toDomain() (*domain.ConfigRecord, error) {
	rec := &domain.ConfigRecord{
		ID:          r.ID,
		Tier:        domain.Tier(r.Tier),
		Name:        r.Name,
		DomainID:    r.DomainID,
		WorkspaceID: r.WorkspaceID,
		ProjectID:   r.ProjectID,
		UserID:      r.UserID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &rec.Data); err != nil {
			return nil, fmt.Errorf("decoding record data: %w", err)
		}
	}
	if len(r.Tags) > 0 {
		if err := json.Unmarshal(r.Tags, &rec.Tags); err != nil {
			return nil, fmt.Errorf("decoding record tags: %w", err)
		}
	}
	return rec, nil
}

// Insert stores a new record; a composite-key collision maps to
// domain.ErrAlreadyExists.
func (s *Store) Insert(ctx context.Context, rec *domain.ConfigRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encoding record data: %w", err)
	}
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("encoding record tags: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO config_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Tier, rec.DomainID, rec.WorkspaceID, rec.ProjectID, rec.UserID,
		rec.Name, data, tags, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}

	if err := insertTagRows(ctx, tx, rec.ID, rec.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

func insertTagRows(ctx context.Context, tx *sqlx.Tx, recordID string, tags map[string]string) error {
	for k, v := range tags {
		_, err := tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO config_record_tags (record_id, tag_key, tag_value) VALUES (?, ?, ?)`),
			recordID, k, v)
		if err != nil {
			return err
		}
	}
	return nil
}

// Get fetches the record at the composite key.
func (s *Store) Get(ctx context.Context, key domain.ScopeKey) (*domain.ConfigRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT `+recordColumns+` FROM config_records
		 WHERE tier = ? AND domain_id = ? AND workspace_id = ? AND project_id = ? AND user_id = ? AND name = ?`),
		key.Tier, key.DomainID, key.WorkspaceID, key.ProjectID, key.UserID, key.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Update applies the patch to the record at the composite key.
func (s *Store) Update(ctx context.Context, key domain.ScopeKey, patch domain.RecordPatch) (*domain.ConfigRecord, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var row recordRow
	err = tx.GetContext(ctx, &row, tx.Rebind(
		`SELECT `+recordColumns+` FROM config_records
		 WHERE tier = ? AND domain_id = ? AND workspace_id = ? AND project_id = ? AND user_id = ? AND name = ?`),
		key.Tier, key.DomainID, key.WorkspaceID, key.ProjectID, key.UserID, key.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if patch.Data != nil {
		if row.Data, err = json.Marshal(patch.Data); err != nil {
			return nil, fmt.Errorf("encoding record data: %w", err)
		}
	}
	if patch.Tags != nil {
		if row.Tags, err = json.Marshal(patch.Tags); err != nil {
			return nil, fmt.Errorf("encoding record tags: %w", err)
		}
	}
	if patch.UpdatedAt != nil {
		row.UpdatedAt = *patch.UpdatedAt
	} else {
		row.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(
		`UPDATE config_records SET data = ?, tags = ?, updated_at = ? WHERE id = ?`),
		row.Data, row.Tags, row.UpdatedAt, row.ID)
	if err != nil {
		return nil, err
	}

	if patch.Tags != nil {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`DELETE FROM config_record_tags WHERE record_id = ?`), row.ID); err != nil {
			return nil, err
		}
		if err := insertTagRows(ctx, tx, row.ID, patch.Tags); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Delete removes the record at the composite key.
func (s *Store) Delete(ctx context.Context, key domain.ScopeKey) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM config_records
		 WHERE tier = ? AND domain_id = ? AND workspace_id = ? AND project_id = ? AND user_id = ? AND name = ?`),
		key.Tier, key.DomainID, key.WorkspaceID, key.ProjectID, key.UserID, key.Name)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// buildWhere renders the filter as a WHERE clause with ? placeholders.
func buildWhere(filter domain.Filter) (string, []any, error) {
	conds := []string{"1 = 1"}
	var args []any

	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}

	if filter.Tier != "" {
		add("tier = ?", string(filter.Tier))
	}
	if filter.DomainID != "" {
		add("domain_id = ?", filter.DomainID)
	}
	if filter.UserID != "" {
		add("user_id = ?", filter.UserID)
	}
	if len(filter.WorkspaceIDs) > 0 {
		cond, vals, err := sqlx.In("workspace_id IN (?)", filter.WorkspaceIDs)
		if err != nil {
			return "", nil, err
		}
		add(cond, vals...)
	}
	if len(filter.ProjectIDs) > 0 {
		cond, vals, err := sqlx.In("project_id IN (?)", filter.ProjectIDs)
		if err != nil {
			return "", nil, err
		}
		add(cond, vals...)
	}
	if filter.Name != "" {
		add("name = ?", filter.Name)
	}
	if filter.Keyword != "" {
		add("name LIKE ?", "%"+filter.Keyword+"%")
	}
	for k, v := range filter.Tags {
		add(`EXISTS (SELECT 1 FROM config_record_tags t
		      WHERE t.record_id = config_records.id AND t.tag_key = ? AND t.tag_value = ?)`, k, v)
	}

	return strings.Join(conds, " AND "), args, nil
}

// List returns records matching the filter ordered by name ascending,
// plus the total match count before pagination.
func (s *Store) List(ctx context.Context, filter domain.Filter) ([]*domain.ConfigRecord, int, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = s.db.GetContext(ctx, &total, s.db.Rebind(
		`SELECT COUNT(*) FROM config_records WHERE `+where), args...)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + recordColumns + ` FROM config_records WHERE ` + where + ` ORDER BY name ASC` +
		s.limitClause(filter.Page)

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, 0, err
	}

	records := make([]*domain.ConfigRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, nil
}

// aggregateColumns whitelists the fields a stat query may reference.
var aggregateColumns = map[string]string{
	"name":         "name",
	"domain_id":    "domain_id",
	"workspace_id": "workspace_id",
	"project_id":   "project_id",
	"user_id":      "user_id",
	"tier":         "tier",
}

// Aggregate evaluates the aggregation query over matching records.
func (s *Store) Aggregate(ctx context.Context, filter domain.Filter, query domain.StatQuery) ([]domain.StatBucket, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}

	switch {
	case len(query.GroupBy) > 0:
		return s.aggregateGroup(ctx, where, args, query)
	case query.Distinct != "":
		return s.aggregateDistinct(ctx, where, args, query)
	default:
		var count int
		err := s.db.GetContext(ctx, &count, s.db.Rebind(
			`SELECT COUNT(*) FROM config_records WHERE `+where), args...)
		if err != nil {
			return nil, err
		}
		return []domain.StatBucket{{"count": count}}, nil
	}
}

func (s *Store) aggregateGroup(ctx context.Context, where string, args []any, query domain.StatQuery) ([]domain.StatBucket, error) {
	cols := make([]string, len(query.GroupBy))
	for i, field := range query.GroupBy {
		col, ok := aggregateColumns[field]
		if !ok {
			return nil, fmt.Errorf("%w: unknown aggregation field %q", domain.ErrInvalidInput, field)
		}
		cols[i] = col
	}

	orderBy, err := aggregateOrder(query, cols[0])
	if err != nil {
		return nil, err
	}

	sel := fmt.Sprintf(`SELECT %s, COUNT(*) AS count FROM config_records WHERE %s GROUP BY %s ORDER BY %s%s`,
		strings.Join(cols, ", "), where, strings.Join(cols, ", "), orderBy, s.limitClause(query.Page))

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(sel), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []domain.StatBucket
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		bucket := domain.StatBucket{}
		for i, field := range query.GroupBy {
			bucket[field] = asString(values[i])
		}
		bucket["count"] = asInt(values[len(values)-1])
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}

func (s *Store) aggregateDistinct(ctx context.Context, where string, args []any, query domain.StatQuery) ([]domain.StatBucket, error) {
	col, ok := aggregateColumns[query.Distinct]
	if !ok {
		return nil, fmt.Errorf("%w: unknown aggregation field %q", domain.ErrInvalidInput, query.Distinct)
	}

	sel := fmt.Sprintf(`SELECT DISTINCT %s FROM config_records WHERE %s ORDER BY %s ASC%s`,
		col, where, col, s.limitClause(query.Page))

	var values []string
	if err := s.db.SelectContext(ctx, &values, s.db.Rebind(sel), args...); err != nil {
		return nil, err
	}

	buckets := make([]domain.StatBucket, len(values))
	for i, v := range values {
		buckets[i] = domain.StatBucket{"value": v}
	}
	return buckets, nil
}

func aggregateOrder(query domain.StatQuery, defaultCol string) (string, error) {
	if query.Sort == nil || query.Sort.Key == "" {
		return defaultCol + " ASC", nil
	}
	col := query.Sort.Key
	if col != "count" {
		mapped, ok := aggregateColumns[col]
		if !ok {
			return "", fmt.Errorf("%w: unknown sort field %q", domain.ErrInvalidInput, col)
		}
		col = mapped
	}
	if query.Sort.Desc {
		return col + " DESC", nil
	}
	return col + " ASC", nil
}

func (s *Store) limitClause(page domain.Page) string {
	var b strings.Builder
	if page.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", page.Limit)
	}
	if page.Start > 0 {
		if page.Limit <= 0 {
			fmt.Fprintf(&b, " LIMIT %s", s.noLimit)
		}
		fmt.Fprintf(&b, " OFFSET %d", page.Start)
	}
	return b.String()
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case []byte:
		n := 0
		fmt.Sscan(string(t), &n)
		return n
	default:
		return 0
	}
}
