// Package database wraps GORM with the service logger, connection pooling,
// connect retries, transactions and auto-migration. The job store runs on
// SQLite through gorm.io/driver/sqlite.
package database
