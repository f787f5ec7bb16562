package config

import "time"

// Config is the root configuration for a streamd instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Streams    StreamsConfig    `yaml:"streams"`
	Journal    JournalConfig    `yaml:"journal"`
	Database   DatabaseConfig   `yaml:"database"`
	Health     HealthConfig     `yaml:"health"`
}

// InstanceConfig identifies this streamd instance.
type InstanceConfig struct {
	ID  string `yaml:"id"`
	Env string `yaml:"env"`
}

// ServerConfig holds the upstream WebSocket endpoint settings.
type ServerConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	// MaxReconnectAttempts zero means retry forever.
	MaxReconnectAttempts int     `yaml:"max_reconnect_attempts"`
	SendRate             float64 `yaml:"send_rate"`
	SendBurst            int     `yaml:"send_burst"`
	InboundBufferSize    int     `yaml:"inbound_buffer_size"`
}

// StreamsConfig holds adapter cache and throttle settings.
type StreamsConfig struct {
	TickThrottle        time.Duration `yaml:"tick_throttle"`
	KlineHistory        int           `yaml:"kline_history"`
	OrderHistory        int           `yaml:"order_history"`
	TradeHistory        int           `yaml:"trade_history"`
	LogHistory          int           `yaml:"log_history"`
	SignalHistory       int           `yaml:"signal_history"`
	NotificationHistory int           `yaml:"notification_history"`
	AlertHistory        int           `yaml:"alert_history"`
}

// JournalConfig holds batched persistence settings. Symbols lists the
// market symbols whose ticks are journaled; notifications and alerts
// are always journaled when enabled.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Symbols       []string      `yaml:"symbols"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DatabaseConfig holds the Postgres connection for the journal.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HealthConfig holds the health/stats endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
