// Package journal persists selected streams to PostgreSQL in batches:
// market ticks, platform notifications, and alerts. Inserts are
// append-only with ON CONFLICT DO NOTHING, so replays after a reconnect
// never duplicate rows.
package journal
