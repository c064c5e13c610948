package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

type sqlCatalog struct {
	db *sql.DB
}

// NewSQLCatalog returns a catalog stored in db, migrating it if required. The
// schema is written for sqlite.
func NewSQLCatalog(db *sql.DB) (Catalog, error) {
	c := &sqlCatalog{db: db}
	if err := c.initialize(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *sqlCatalog) initialize() error {
	var maxApplied int64
	err := c.db.QueryRow("select max(version) from schema_migrations").Scan(&maxApplied)
	if err == nil && maxApplied == 1 {
		return nil
	}
	if _, err := c.db.Exec(`
	create table if not exists reservations (
		name text primary key,
		version bigint not null
	);

	create table if not exists versions (
		name text not null,
		version bigint not null,
		format text not null,
		prefix text not null,
		size bigint not null,
		created text not null default (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		primary key (name, version)
	);

	create table if not exists schema_migrations(
		version bigint not null,
		timestamp text not null default current_timestamp
	);

	insert into schema_migrations(version) values (1);
	`); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (c *sqlCatalog) NextVersion(ctx context.Context, name string) (uint64, error) {
	if err := ValidateName(name); err != nil {
		return 0, err
	}
	var version uint64
	err := c.db.QueryRowContext(ctx, `
	insert into reservations (name, version) values ($1, 1)
	on conflict (name) do update set version = version + 1
	returning version`,
		name,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve version: %w", err)
	}
	return version, nil
}

func (c *sqlCatalog) Put(ctx context.Context, entry Entry) error {
	if err := ValidateName(entry.Name); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, `
	insert into versions (name, version, format, prefix, size) values ($1, $2, $3, $4, $5)`,
		entry.Name, entry.Version, string(entry.Format), entry.Prefix, entry.Size,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%s version %d: %w", entry.Name, entry.Version, ErrVersionExists)
		}
		return fmt.Errorf("failed to store to catalog: %w", err)
	}
	return nil
}

func scanEntry(row *sql.Row) (Entry, error) {
	var entry Entry
	var format string
	err := row.Scan(&entry.Name, &entry.Version, &format, &entry.Prefix, &entry.Size, &entry.Created)
	entry.Format = Format(format)
	return entry, err
}

func (c *sqlCatalog) Get(ctx context.Context, name string) (Entry, error) {
	entry, err := scanEntry(c.db.QueryRowContext(ctx, `
	select name, version, format, prefix, size, created from versions
	where name = $1 order by version desc limit 1`,
		name,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, DatasetNotFoundError{Name: name}
		}
		return Entry{}, fmt.Errorf("failed to read from catalog: %w", err)
	}
	return entry, nil
}

func (c *sqlCatalog) GetVersion(ctx context.Context, name string, version uint64) (Entry, error) {
	entry, err := scanEntry(c.db.QueryRowContext(ctx, `
	select name, version, format, prefix, size, created from versions
	where name = $1 and version = $2`,
		name, version,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, DatasetNotFoundError{Name: name, Version: version}
		}
		return Entry{}, fmt.Errorf("failed to read from catalog: %w", err)
	}
	return entry, nil
}

func (c *sqlCatalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
	select v.name, v.version, v.format, v.prefix, v.size, v.created
	from versions v
	join (select name, max(version) as version from versions group by name) latest
	on v.name = latest.name and v.version = latest.version
	order by v.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		var format string
		if err := rows.Scan(
			&entry.Name, &entry.Version, &format, &entry.Prefix, &entry.Size, &entry.Created,
		); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		entry.Format = Format(format)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return entries, nil
}
