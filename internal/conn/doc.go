// Package conn implements the connection manager: it owns the transport
// lifecycle for one multiplexed session, reconnects with exponential
// backoff after unexpected losses, and emits lifecycle events consumed
// by the subscription layer. It never mutates subscription state itself;
// after each successful (re)connection it invokes the injected
// Resubscriber so active registrations are replayed before the manager
// settles back into the Connected state.
package conn
