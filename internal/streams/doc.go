// Package streams provides typed adapters over the streaming core: each
// adapter subscribes to one domain's channels, decodes payloads, and
// maintains projected caches (latest values, capped histories) that are
// updated before any external consumer runs. Adapters may be built
// before the connection is established; their subscriptions queue and
// replay like any other. Close releases every registration an adapter
// made.
package streams
