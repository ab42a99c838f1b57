package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
)

const entriesTable = "abbreviations"

var entryColumns = []string{"id", "abbreviation", "full_form", "description"}

// likeEscaper escapes LIKE wildcards so the query matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SQLStore implements Store on top of database/sql. Queries are built with
// squirrel using the placeholder style of the configured dialect.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// NewSQLStore creates a store for db speaking the given dialect.
func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: d,
		sb:      sq.StatementBuilder.PlaceholderFormat(d.placeholder),
	}
}

// NewSQLiteStore creates a store backed by SQLite.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db, SQLite)
}

// NewPostgresStore creates a store backed by PostgreSQL.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return NewSQLStore(db, Postgres)
}

// Ping verifies that the database connection is alive.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// List / Search
// ---------------------------------------------------------------------------

// ListEntries returns every entry ordered by abbreviation.
func (s *SQLStore) ListEntries(ctx context.Context) ([]model.Entry, error) {
	return s.queryEntries(ctx, s.selectEntries())
}

// SearchEntries returns entries whose scoped columns contain opts.Query,
// ignoring case. A blank query lists everything.
func (s *SQLStore) SearchEntries(ctx context.Context, opts SearchOptions) ([]model.Entry, error) {
	q := strings.TrimSpace(opts.Query)
	if q == "" {
		return s.ListEntries(ctx)
	}

	pattern := "%" + likeEscaper.Replace(q) + "%"
	match := func(column string) sq.Sqlizer {
		return sq.Expr(column+" "+s.dialect.likeOperator+` ? ESCAPE '\'`, pattern)
	}

	var where sq.Sqlizer
	switch opts.Scope {
	case ScopeAbbreviation:
		where = match("abbreviation")
	default:
		where = sq.Or{
			match("abbreviation"),
			match("full_form"),
			match("description"),
		}
	}

	return s.queryEntries(ctx, s.selectEntries().Where(where))
}

func (s *SQLStore) selectEntries() sq.SelectBuilder {
	return s.sb.
		Select(entryColumns...).
		From(entriesTable).
		OrderBy(s.dialect.orderBy, "id ASC")
}

func (s *SQLStore) queryEntries(ctx context.Context, query sq.SelectBuilder) ([]model.Entry, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("executing select query: %w", err)
	}
	defer rows.Close()

	items := []model.Entry{}
	for rows.Next() {
		var m model.Entry
		if err := rows.Scan(&m.ID, &m.Abbreviation, &m.FullForm, &m.Description); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return items, nil
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

// GetEntry retrieves a single entry by ID.
func (s *SQLStore) GetEntry(ctx context.Context, id int64) (model.Entry, error) {
	sqlStr, args, err := s.sb.
		Select(entryColumns...).
		From(entriesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Entry{}, fmt.Errorf("building query: %w", err)
	}

	var m model.Entry
	err = s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&m.ID, &m.Abbreviation, &m.FullForm, &m.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Entry{}, ErrNotFound
		}
		return model.Entry{}, fmt.Errorf("querying entry: %w", err)
	}

	return m, nil
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

// CreateEntry inserts a new entry and returns it with the generated ID.
func (s *SQLStore) CreateEntry(ctx context.Context, m model.Entry) (model.Entry, error) {
	sqlStr, args, err := s.insertEntry(m).Suffix("RETURNING id").ToSql()
	if err != nil {
		return model.Entry{}, fmt.Errorf("building insert query: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&m.ID); err != nil {
		if s.dialect.isUniqueViolation(err) {
			return model.Entry{}, ErrConflict
		}
		return model.Entry{}, fmt.Errorf("inserting entry: %w", err)
	}

	return m, nil
}

func (s *SQLStore) insertEntry(m model.Entry) sq.InsertBuilder {
	return s.sb.
		Insert(entriesTable).
		Columns("abbreviation", "full_form", "description").
		Values(m.Abbreviation, m.FullForm, m.Description)
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

// UpdateEntry replaces all content fields of the entry with m.ID.
func (s *SQLStore) UpdateEntry(ctx context.Context, m model.Entry) (model.Entry, error) {
	sqlStr, args, err := s.sb.
		Update(entriesTable).
		Set("abbreviation", m.Abbreviation).
		Set("full_form", m.FullForm).
		Set("description", m.Description).
		Where(sq.Eq{"id": m.ID}).
		ToSql()
	if err != nil {
		return model.Entry{}, fmt.Errorf("building update query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return model.Entry{}, ErrConflict
		}
		return model.Entry{}, fmt.Errorf("updating entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return model.Entry{}, fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.Entry{}, ErrNotFound
	}

	return m, nil
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

// DeleteEntry removes an entry by ID.
func (s *SQLStore) DeleteEntry(ctx context.Context, id int64) error {
	sqlStr, args, err := s.sb.
		Delete(entriesTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ---------------------------------------------------------------------------
// Seed
// ---------------------------------------------------------------------------

// SeedEntries inserts the entries whose abbreviation is not stored yet, all
// in one transaction. Duplicates are detected by exact abbreviation match
// through the unique index.
func (s *SQLStore) SeedEntries(ctx context.Context, entries []model.Entry) (int, error) {
	inserted := 0
	err := WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		for _, e := range entries {
			sqlStr, args, err := s.insertEntry(e).
				Suffix("ON CONFLICT (abbreviation) DO NOTHING").
				ToSql()
			if err != nil {
				return fmt.Errorf("building seed insert: %w", err)
			}

			result, err := tx.ExecContext(ctx, sqlStr, args...)
			if err != nil {
				return fmt.Errorf("seeding %q: %w", e.Abbreviation, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("checking rows affected: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}
