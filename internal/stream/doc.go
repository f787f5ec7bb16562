// Package stream implements the multiplexing core: a subscription
// registry keyed by (channel, type, params), a message router that
// classifies inbound traffic and fans it out to consumers, a bounded
// per-stream buffer with optional trailing-edge throttling, and the
// Service facade tying them to a connection manager.
//
// One Service shares a single persistent connection across every
// logical subscription. Subscriptions created before the connection is
// up are queued as metadata and replayed on the first connect; after a
// reconnect every subscription with at least one consumer is replayed
// exactly once, in insertion order, so no stream is silently lost.
package stream
