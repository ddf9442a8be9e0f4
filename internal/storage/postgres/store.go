package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/axonops/openapi-diagram/internal/config"
	"github.com/axonops/openapi-diagram/internal/storage"
)

func init() {
	storage.Register(storage.StorageTypePostgres, func(cfg config.StorageConfig) (storage.Storage, error) {
		return NewStore(FromStorageConfig(cfg.PostgreSQL))
	})
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Database        string        `json:"database" yaml:"database"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
	SSLMode         string        `json:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "openapi_diagram",
		Username:        "postgres",
		Password:        "",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// FromStorageConfig maps the service configuration onto a store configuration,
// keeping defaults for unset fields.
func FromStorageConfig(c config.PostgreSQLConfig) Config {
	cfg := DefaultConfig()
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	if c.Database != "" {
		cfg.Database = c.Database
	}
	if c.User != "" {
		cfg.Username = c.User
	}
	cfg.Password = c.Password
	if c.SSLMode != "" {
		cfg.SSLMode = c.SSLMode
	}
	if c.MaxOpenConns != 0 {
		cfg.MaxOpenConns = c.MaxOpenConns
	}
	if c.MaxIdleConns != 0 {
		cfg.MaxIdleConns = c.MaxIdleConns
	}
	if c.ConnMaxLifetime != 0 {
		cfg.ConnMaxLifetime = time.Duration(c.ConnMaxLifetime) * time.Second
	}
	return cfg
}

// DSN returns the connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// Store implements the storage.Storage interface using PostgreSQL.
type Store struct {
	db     *sql.DB
	config Config

	// Prepared statements for better performance
	stmts *preparedStatements
}

// preparedStatements holds all prepared SQL statements.
type preparedStatements struct {
	insertDocument *sql.Stmt
	getDocument    *sql.Stmt
	listVersions   *sql.Stmt
	listPackages   *sql.Stmt
	deleteDocument *sql.Stmt
	packageExists  *sql.Stmt
	count          *sql.Stmt
}

const documentColumns = `id, package, version, title, openapi_version, content, fingerprint, created_at`

// NewStore creates a new PostgreSQL store.
func NewStore(config Config) (*Store, error) {
	return open(config.DSN(), config)
}

func open(dsn string, config Config) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:     db,
		config: config,
	}

	// Run migrations
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Prepare statements
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// prepareStatements prepares all SQL statements for better performance.
func (s *Store) prepareStatements() error {
	var err error
	stmts := &preparedStatements{}

	stmts.insertDocument, err = s.db.Prepare(
		`INSERT INTO documents (` + documentColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("prepare insertDocument: %w", err)
	}

	stmts.getDocument, err = s.db.Prepare(
		`SELECT ` + documentColumns + ` FROM documents WHERE package = $1 AND version = $2`)
	if err != nil {
		return fmt.Errorf("prepare getDocument: %w", err)
	}

	stmts.listVersions, err = s.db.Prepare(
		`SELECT ` + documentColumns + ` FROM documents WHERE package = $1 ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("prepare listVersions: %w", err)
	}

	stmts.listPackages, err = s.db.Prepare(
		`SELECT d.package, c.cnt, d.version, d.created_at
		 FROM documents d
		 JOIN (SELECT package, COUNT(*) AS cnt, MAX(seq) AS max_seq FROM documents GROUP BY package) c
		   ON d.seq = c.max_seq
		 ORDER BY d.package`)
	if err != nil {
		return fmt.Errorf("prepare listPackages: %w", err)
	}

	stmts.deleteDocument, err = s.db.Prepare(
		`DELETE FROM documents WHERE package = $1 AND version = $2`)
	if err != nil {
		return fmt.Errorf("prepare deleteDocument: %w", err)
	}

	stmts.packageExists, err = s.db.Prepare(
		`SELECT EXISTS (SELECT 1 FROM documents WHERE package = $1)`)
	if err != nil {
		return fmt.Errorf("prepare packageExists: %w", err)
	}

	stmts.count, err = s.db.Prepare(
		`SELECT COUNT(DISTINCT package), COUNT(*) FROM documents`)
	if err != nil {
		return fmt.Errorf("prepare count: %w", err)
	}

	s.stmts = stmts
	return nil
}

// CreateDocument stores a new document version.
func (s *Store) CreateDocument(ctx context.Context, record *storage.DocumentRecord) error {
	if err := storage.ValidateKey(record.Package, record.Version); err != nil {
		return err
	}

	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := time.Now().UTC().Truncate(time.Microsecond)

	_, err := s.stmts.insertDocument.ExecContext(ctx,
		id, record.Package, record.Version, record.Title, record.OpenAPI,
		record.Content, record.Fingerprint, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDocumentExists
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}

	record.ID = id
	record.CreatedAt = createdAt
	return nil
}

// GetDocument retrieves a document by package and version.
func (s *Store) GetDocument(ctx context.Context, pkg, version string) (*storage.DocumentRecord, error) {
	rec, err := scanDocument(s.stmts.getDocument.QueryRowContext(ctx, pkg, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.missing(ctx, pkg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return rec, nil
}

// ListPackages returns a summary of every package, sorted by name.
func (s *Store) ListPackages(ctx context.Context) ([]storage.PackageSummary, error) {
	rows, err := s.stmts.listPackages.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	summaries := []storage.PackageSummary{}
	for rows.Next() {
		var p storage.PackageSummary
		if err := rows.Scan(&p.Name, &p.VersionCount, &p.LatestVersion, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		summaries = append(summaries, p)
	}
	return summaries, rows.Err()
}

// ListVersions returns every version of a package in publication order.
func (s *Store) ListVersions(ctx context.Context, pkg string) ([]*storage.DocumentRecord, error) {
	rows, err := s.stmts.listVersions.QueryContext(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var records []*storage.DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrPackageNotFound
	}
	return records, nil
}

// DeleteDocument removes a document version.
func (s *Store) DeleteDocument(ctx context.Context, pkg, version string) error {
	result, err := s.stmts.deleteDocument.ExecContext(ctx, pkg, version)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return s.missing(ctx, pkg)
	}
	return nil
}

// Count returns the number of packages and documents.
func (s *Store) Count(ctx context.Context) (storage.Counts, error) {
	var counts storage.Counts
	if err := s.stmts.count.QueryRowContext(ctx).Scan(&counts.Packages, &counts.Documents); err != nil {
		return counts, fmt.Errorf("failed to count documents: %w", err)
	}
	return counts, nil
}

// missing tells a missing package apart from a missing version.
func (s *Store) missing(ctx context.Context, pkg string) error {
	var exists bool
	if err := s.stmts.packageExists.QueryRowContext(ctx, pkg).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check package: %w", err)
	}
	if exists {
		return storage.ErrVersionNotFound
	}
	return storage.ErrPackageNotFound
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*storage.DocumentRecord, error) {
	var rec storage.DocumentRecord
	err := row.Scan(&rec.ID, &rec.Package, &rec.Version, &rec.Title, &rec.OpenAPI,
		&rec.Content, &rec.Fingerprint, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// isUniqueViolation checks if the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsHealthy returns true if the database is reachable.
func (s *Store) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx) == nil
}

// Stats returns connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}
