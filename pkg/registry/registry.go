// Package registry is the local package registry. Published packages, their
// revisions and their consumer metadata are stored in a SQLite database.
package registry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/sqlite-burrito/burrito/pkg/types"
)

// ErrNotFound is returned when a package reference is not in the registry
var ErrNotFound = errors.New("package not found")

// Package is one published package revision
type Package struct {
	types.PackageMetadata
	Revision    string
	Options     map[string]string
	CppInfo     types.CppInfo
	PublishedAt time.Time
}

// Registry is a SQLite backed package store
type Registry struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	name         TEXT NOT NULL,
	version      TEXT NOT NULL,
	revision     TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	license      TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	homepage     TEXT NOT NULL DEFAULT '',
	topics       TEXT NOT NULL DEFAULT '[]',
	options      TEXT NOT NULL DEFAULT '{}',
	published_at INTEGER NOT NULL,
	PRIMARY KEY (name, version)
);
CREATE TABLE IF NOT EXISTS package_libs (
	name     TEXT NOT NULL,
	version  TEXT NOT NULL,
	position INTEGER NOT NULL,
	lib      TEXT NOT NULL,
	FOREIGN KEY (name, version) REFERENCES packages (name, version) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS package_requires (
	name    TEXT NOT NULL,
	version TEXT NOT NULL,
	ref     TEXT NOT NULL,
	FOREIGN KEY (name, version) REFERENCES packages (name, version) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS package_properties (
	name    TEXT NOT NULL,
	version TEXT NOT NULL,
	key     TEXT NOT NULL,
	value   TEXT NOT NULL,
	FOREIGN KEY (name, version) REFERENCES packages (name, version) ON DELETE CASCADE
);
`

// Open opens or creates the registry database at path
func Open(ctx context.Context, path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db := sql.OpenDB(&connector{driver: &sqlite3.SQLiteDriver{}, dbPath: path})
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open registry %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate registry: %w", err)
	}

	return &Registry{db: db, path: path}, nil
}

// Path returns the database file
func (r *Registry) Path() string {
	return r.path
}

// Close closes the database
func (r *Registry) Close() error {
	return r.db.Close()
}

// Publish stores a package, replacing any earlier revision of the same
// name/version, and returns the new revision ID
func (r *Registry) Publish(ctx context.Context, pkg Package) (string, error) {
	if pkg.Name == "" || pkg.Version == "" {
		return "", fmt.Errorf("cannot publish %q: name and version are required", pkg.Reference())
	}

	topics, err := json.Marshal(nonNil(pkg.Topics))
	if err != nil {
		return "", err
	}
	options, err := json.Marshal(pkg.Options)
	if err != nil {
		return "", err
	}

	revision := uuid.NewString()
	publishedAt := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE name = ? AND version = ?`, pkg.Name, pkg.Version); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", pkg.Reference(), err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO packages (name, version, revision, description, license, url, homepage, topics, options, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.Name, pkg.Version, revision, pkg.Description, pkg.License, pkg.URL, pkg.Homepage,
		string(topics), string(options), publishedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to insert %s: %w", pkg.Reference(), err)
	}

	for i, lib := range pkg.CppInfo.Libs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO package_libs (name, version, position, lib) VALUES (?, ?, ?, ?)`,
			pkg.Name, pkg.Version, i, lib); err != nil {
			return "", err
		}
	}
	for _, ref := range pkg.CppInfo.Requires {
		if _, err := tx.ExecContext(ctx, `INSERT INTO package_requires (name, version, ref) VALUES (?, ?, ?)`,
			pkg.Name, pkg.Version, ref); err != nil {
			return "", err
		}
	}
	for k, v := range pkg.CppInfo.Properties {
		if _, err := tx.ExecContext(ctx, `INSERT INTO package_properties (name, version, key, value) VALUES (?, ?, ?, ?)`,
			pkg.Name, pkg.Version, k, v); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return revision, nil
}

// Get returns the package with the given name and version
func (r *Registry) Get(ctx context.Context, name, version string) (*Package, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, version, revision, description, license, url, homepage, topics, options, published_at
		FROM packages WHERE name = ? AND version = ?`, name, version)

	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, name, version)
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadCppInfo(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// List returns every package, ordered by name then version
func (r *Registry) List(ctx context.Context) ([]Package, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, version, revision, description, license, url, homepage, topics, options, published_at
		FROM packages ORDER BY name, version`)
	if err != nil {
		return nil, err
	}

	var pkgs []Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pkgs = append(pkgs, *pkg)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range pkgs {
		if err := r.loadCppInfo(ctx, &pkgs[i]); err != nil {
			return nil, err
		}
	}
	return pkgs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPackage(s scanner) (*Package, error) {
	var (
		pkg         Package
		topics      string
		options     string
		publishedAt int64
	)
	if err := s.Scan(&pkg.Name, &pkg.Version, &pkg.Revision, &pkg.Description, &pkg.License,
		&pkg.URL, &pkg.Homepage, &topics, &options, &publishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(topics), &pkg.Topics); err != nil {
		return nil, fmt.Errorf("corrupt topics for %s: %w", pkg.Reference(), err)
	}
	if err := json.Unmarshal([]byte(options), &pkg.Options); err != nil {
		return nil, fmt.Errorf("corrupt options for %s: %w", pkg.Reference(), err)
	}
	pkg.PublishedAt = time.Unix(0, publishedAt).UTC()
	return &pkg, nil
}

func (r *Registry) loadCppInfo(ctx context.Context, pkg *Package) error {
	info := types.CppInfo{Libs: []string{}, Requires: []string{}, Properties: map[string]string{}}

	libs, err := r.strings(ctx, `SELECT lib FROM package_libs WHERE name = ? AND version = ? ORDER BY position`, pkg.Name, pkg.Version)
	if err != nil {
		return err
	}
	info.Libs = append(info.Libs, libs...)

	requires, err := r.strings(ctx, `SELECT ref FROM package_requires WHERE name = ? AND version = ? ORDER BY ref`, pkg.Name, pkg.Version)
	if err != nil {
		return err
	}
	info.Requires = append(info.Requires, requires...)

	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM package_properties WHERE name = ? AND version = ?`, pkg.Name, pkg.Version)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		info.Properties[k] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}

	pkg.CppInfo = info
	return nil
}

func (r *Registry) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PropertyKeys returns the consumer property names of a package, sorted
func (p Package) PropertyKeys() []string {
	keys := make([]string, 0, len(p.CppInfo.Properties))
	for k := range p.CppInfo.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type connector struct {
	driver driver.Driver
	dbPath string
}

// Connect opens a connection with foreign keys and WAL enabled
func (c *connector) Connect(context.Context) (driver.Conn, error) {
	pragmas := []string{
		"PRAGMA JOURNAL_MODE = WAL;",
		"PRAGMA BUSY_TIMEOUT = 5000;",
		"PRAGMA FOREIGN_KEYS = true;",
	}

	conn, err := c.driver.Open("file:" + c.dbPath)
	if err != nil {
		return nil, err
	}
	for _, p := range pragmas {
		if err := execPragma(conn, p); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (c *connector) Driver() driver.Driver {
	return c.driver
}

func execPragma(conn driver.Conn, query string) error {
	stmt, err := conn.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(nil) //nolint:staticcheck
	return err
}
