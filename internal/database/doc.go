// Package database provides the PostgreSQL connection pool used by the
// journal for stream persistence.
package database
