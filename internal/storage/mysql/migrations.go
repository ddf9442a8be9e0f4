// Package mysql provides a MySQL storage implementation.
package mysql

// migrations contains the database schema migrations.
var migrations = []string{
	// Migration 1: Documents with indexes
	"CREATE TABLE IF NOT EXISTS documents (" +
		"seq BIGINT AUTO_INCREMENT PRIMARY KEY," +
		"id CHAR(36) NOT NULL," +
		"package VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL," +
		"version VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL," +
		"title TEXT NOT NULL," +
		"openapi_version VARCHAR(32) NOT NULL DEFAULT ''," +
		"content MEDIUMTEXT NOT NULL," +
		"fingerprint VARCHAR(64) NOT NULL," +
		"created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)," +
		"UNIQUE KEY idx_documents_id (id)," +
		"UNIQUE KEY idx_package_version (package, version)," +
		"INDEX idx_documents_fingerprint (fingerprint)" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci",
}
