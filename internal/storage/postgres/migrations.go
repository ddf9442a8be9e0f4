// Package postgres provides a PostgreSQL storage implementation.
package postgres

// migrations contains the database schema migrations.
var migrations = []string{
	// Migration 1: Documents
	`CREATE TABLE IF NOT EXISTS documents (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL UNIQUE,
		package VARCHAR(255) COLLATE "C" NOT NULL,
		version VARCHAR(255) NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		openapi_version VARCHAR(32) NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		fingerprint VARCHAR(64) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (package, version)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_documents_package ON documents(package)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_fingerprint ON documents(fingerprint)`,
}
