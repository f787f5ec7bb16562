package schema

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Channel names. A channel is the coarse category of a stream.
const (
	ChannelMarket   = "market"
	ChannelTrading  = "trading"
	ChannelStrategy = "strategy"
	ChannelSystem   = "system"
)

// Message types carried on the channels.
const (
	TypeTick           = "tick"
	TypeDepth          = "depth"
	TypeKline          = "kline"
	TypeOrder          = "order"
	TypeTrade          = "trade"
	TypePosition       = "position"
	TypeAccount        = "account"
	TypeStrategyStatus = "strategy_status"
	TypeStrategyLog    = "strategy_log"
	TypeStrategySignal = "strategy_signal"
	TypeNotification   = "notification"
	TypeAlert          = "alert"
)

// Control actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Inbound is the envelope of every message received from the server.
// Channel may be absent; the router then classifies by Type.
type Inbound struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
	ID        string          `json:"id,omitempty"`
}

// StreamParams identifies the scope of one logical stream within a
// (channel, type) pair. Which fields are set depends on the domain:
// symbol lists for ticks/depth, symbol+interval for klines, a strategy
// ID for strategy streams.
type StreamParams struct {
	Symbols    []string `json:"symbols,omitempty"`
	Symbol     string   `json:"symbol,omitempty"`
	Interval   string   `json:"interval,omitempty"`
	StrategyID string   `json:"strategy_id,omitempty"`
}

// IsZero reports whether no parameter is set.
func (p StreamParams) IsZero() bool {
	return len(p.Symbols) == 0 && p.Symbol == "" && p.Interval == "" && p.StrategyID == ""
}

// Fingerprint returns a canonical string form of the parameters,
// stable under symbol ordering, used as part of a subscription key.
func (p StreamParams) Fingerprint() string {
	if p.IsZero() {
		return ""
	}
	symbols := make([]string, len(p.Symbols))
	copy(symbols, p.Symbols)
	sort.Strings(symbols)

	var b strings.Builder
	b.WriteString(strings.Join(symbols, ","))
	b.WriteByte('|')
	b.WriteString(p.Symbol)
	b.WriteByte('|')
	b.WriteString(p.Interval)
	b.WriteByte('|')
	b.WriteString(p.StrategyID)
	return b.String()
}

// Matches reports whether a message carrying the given discriminator
// belongs to the stream described by these parameters. Empty parameter
// fields match everything; a symbol list matches any of its members.
func (p StreamParams) Matches(d Discriminator) bool {
	if len(p.Symbols) > 0 {
		found := false
		for _, s := range p.Symbols {
			if s == d.Symbol {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.Symbol != "" && d.Symbol != "" && p.Symbol != d.Symbol {
		return false
	}
	if p.Interval != "" && d.Interval != "" && p.Interval != d.Interval {
		return false
	}
	if p.StrategyID != "" && d.StrategyID != "" && p.StrategyID != d.StrategyID {
		return false
	}
	return true
}

// Discriminator holds the routing-relevant fields of a message payload.
// Fields absent from the payload stay empty and act as wildcards.
type Discriminator struct {
	Symbol     string `json:"symbol,omitempty"`
	Interval   string `json:"interval,omitempty"`
	StrategyID string `json:"strategy_id,omitempty"`
}

// ExtractDiscriminator partially decodes a payload for routing.
// Malformed payloads yield an empty discriminator rather than an error;
// full decoding happens downstream in the typed adapters.
func ExtractDiscriminator(data json.RawMessage) Discriminator {
	if len(data) == 0 {
		return Discriminator{}
	}
	var d Discriminator
	if err := json.Unmarshal(data, &d); err != nil {
		return Discriminator{}
	}
	return d
}

// Control is an outbound subscribe/unsubscribe control message.
type Control struct {
	ID      string `json:"id,omitempty"`
	Action  string `json:"action"`
	Channel string `json:"channel"`
	Type    string `json:"type"`
	StreamParams
}
