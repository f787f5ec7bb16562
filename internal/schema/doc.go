// Package schema defines the wire types shared by the streaming core:
// the inbound message envelope, outbound subscribe/unsubscribe control
// messages, and the domain payloads carried on the market, trading,
// strategy, and system channels.
package schema
