package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHandshakeTimeout    = 10 * time.Second
	DefaultPingInterval        = 15 * time.Second
	DefaultPingTimeout         = 60 * time.Second
	DefaultWriteTimeout        = 5 * time.Second
	DefaultConnectTimeout      = 10 * time.Second
	DefaultReconnectBaseDelay  = 1 * time.Second
	DefaultReconnectMaxDelay   = 30 * time.Second
	DefaultInboundBufferSize   = 4096
	DefaultKlineHistory        = 500
	DefaultOrderHistory        = 200
	DefaultTradeHistory        = 500
	DefaultLogHistory          = 500
	DefaultSignalHistory       = 200
	DefaultNotificationHistory = 200
	DefaultAlertHistory        = 200
	DefaultBatchSize           = 500
	DefaultFlushInterval       = 1 * time.Second
	DefaultBufferSize          = 10000
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultHealthPort          = 8090
	DefaultHealthPath          = "/healthz"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.PingTimeout == 0 {
		c.Server.PingTimeout = DefaultPingTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}

	// Connection defaults
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.InboundBufferSize == 0 {
		c.Connection.InboundBufferSize = DefaultInboundBufferSize
	}

	// Streams defaults
	if c.Streams.KlineHistory == 0 {
		c.Streams.KlineHistory = DefaultKlineHistory
	}
	if c.Streams.OrderHistory == 0 {
		c.Streams.OrderHistory = DefaultOrderHistory
	}
	if c.Streams.TradeHistory == 0 {
		c.Streams.TradeHistory = DefaultTradeHistory
	}
	if c.Streams.LogHistory == 0 {
		c.Streams.LogHistory = DefaultLogHistory
	}
	if c.Streams.SignalHistory == 0 {
		c.Streams.SignalHistory = DefaultSignalHistory
	}
	if c.Streams.NotificationHistory == 0 {
		c.Streams.NotificationHistory = DefaultNotificationHistory
	}
	if c.Streams.AlertHistory == 0 {
		c.Streams.AlertHistory = DefaultAlertHistory
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
