package schema

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestStreamParams_Fingerprint(t *testing.T) {
	tests := []struct {
		name string
		a, b StreamParams
		same bool
	}{
		{
			name: "symbol order does not matter",
			a:    StreamParams{Symbols: []string{"AAPL", "MSFT"}},
			b:    StreamParams{Symbols: []string{"MSFT", "AAPL"}},
			same: true,
		},
		{
			name: "different symbols differ",
			a:    StreamParams{Symbols: []string{"AAPL"}},
			b:    StreamParams{Symbols: []string{"MSFT"}},
			same: false,
		},
		{
			name: "interval distinguishes klines",
			a:    StreamParams{Symbol: "AAPL", Interval: "1m"},
			b:    StreamParams{Symbol: "AAPL", Interval: "5m"},
			same: false,
		},
		{
			name: "strategy id distinguishes strategies",
			a:    StreamParams{StrategyID: "s-1"},
			b:    StreamParams{StrategyID: "s-2"},
			same: false,
		},
		{
			name: "zero params collapse to empty",
			a:    StreamParams{},
			b:    StreamParams{Symbols: []string{}},
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Fingerprint() == tt.b.Fingerprint()
			if got != tt.same {
				t.Errorf("Fingerprint equality = %v, want %v (%q vs %q)",
					got, tt.same, tt.a.Fingerprint(), tt.b.Fingerprint())
			}
		})
	}
}

func TestStreamParams_Matches(t *testing.T) {
	tests := []struct {
		name   string
		params StreamParams
		disc   Discriminator
		want   bool
	}{
		{
			name:   "empty params match everything",
			params: StreamParams{},
			disc:   Discriminator{Symbol: "AAPL"},
			want:   true,
		},
		{
			name:   "symbol list contains",
			params: StreamParams{Symbols: []string{"AAPL", "MSFT"}},
			disc:   Discriminator{Symbol: "MSFT"},
			want:   true,
		},
		{
			name:   "symbol list excludes",
			params: StreamParams{Symbols: []string{"AAPL"}},
			disc:   Discriminator{Symbol: "TSLA"},
			want:   false,
		},
		{
			name:   "kline interval mismatch",
			params: StreamParams{Symbol: "AAPL", Interval: "1m"},
			disc:   Discriminator{Symbol: "AAPL", Interval: "5m"},
			want:   false,
		},
		{
			name:   "kline full match",
			params: StreamParams{Symbol: "AAPL", Interval: "1m"},
			disc:   Discriminator{Symbol: "AAPL", Interval: "1m"},
			want:   true,
		},
		{
			name:   "strategy id mismatch",
			params: StreamParams{StrategyID: "s-1"},
			disc:   Discriminator{StrategyID: "s-2"},
			want:   false,
		},
		{
			name:   "payload without discriminator matches scoped params",
			params: StreamParams{StrategyID: "s-1"},
			disc:   Discriminator{},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Matches(tt.disc); got != tt.want {
				t.Errorf("Matches(%+v) = %v, want %v", tt.disc, got, tt.want)
			}
		})
	}
}

func TestExtractDiscriminator(t *testing.T) {
	d := ExtractDiscriminator(json.RawMessage(`{"symbol":"AAPL","price":"187.2","strategy_id":"s-9"}`))
	if d.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", d.Symbol)
	}
	if d.StrategyID != "s-9" {
		t.Errorf("StrategyID = %q, want s-9", d.StrategyID)
	}

	// Malformed payloads degrade to a wildcard, not an error.
	d = ExtractDiscriminator(json.RawMessage(`not json`))
	if d != (Discriminator{}) {
		t.Errorf("discriminator from malformed payload = %+v, want zero", d)
	}
}

func TestControl_Marshal(t *testing.T) {
	c := Control{
		ID:      "abc",
		Action:  ActionSubscribe,
		Channel: ChannelMarket,
		Type:    TypeKline,
		StreamParams: StreamParams{
			Symbol:   "AAPL",
			Interval: "1m",
		},
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// Params flatten into the top-level control object.
	if decoded["symbol"] != "AAPL" {
		t.Errorf("symbol = %v, want AAPL", decoded["symbol"])
	}
	if decoded["interval"] != "1m" {
		t.Errorf("interval = %v, want 1m", decoded["interval"])
	}
	if decoded["action"] != "subscribe" {
		t.Errorf("action = %v, want subscribe", decoded["action"])
	}
	if _, ok := decoded["symbols"]; ok {
		t.Error("empty symbols should be omitted")
	}
}
