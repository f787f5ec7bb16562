package streams

import (
	"log/slog"
	"sync"

	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
)

// SystemConfig holds system adapter configuration.
type SystemConfig struct {
	NotificationHistory int
	AlertHistory        int
}

// DefaultSystemConfig returns sensible defaults.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		NotificationHistory: 200,
		AlertHistory:        200,
	}
}

// System projects platform-wide notification and alert streams into
// capped histories.
type System struct {
	core   Core
	cfg    SystemConfig
	logger *slog.Logger
	regs   registrations

	mu            sync.RWMutex
	notifications []schema.Notification
	alerts        []schema.Alert
}

// NewSystem creates a system adapter over the streaming core.
func NewSystem(core Core, cfg SystemConfig, logger *slog.Logger) *System {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultSystemConfig()
	if cfg.NotificationHistory < 1 {
		cfg.NotificationHistory = def.NotificationHistory
	}
	if cfg.AlertHistory < 1 {
		cfg.AlertHistory = def.AlertHistory
	}
	return &System{
		core:   core,
		cfg:    cfg,
		logger: logger,
	}
}

// SubscribeNotifications streams platform notifications.
func (s *System) SubscribeNotifications(fn func(schema.Notification)) func() {
	unsub := s.core.Subscribe(schema.ChannelSystem, schema.TypeNotification,
		schema.StreamParams{}, func(msg schema.Inbound) {
			n, ok := decodePayload[schema.Notification](s.logger, schema.TypeNotification, msg)
			if !ok {
				return
			}
			s.mu.Lock()
			s.notifications = appendCapped(s.notifications, n, s.cfg.NotificationHistory)
			s.mu.Unlock()
			if fn != nil {
				fn(n)
			}
		})
	return s.regs.add(unsub)
}

// SubscribeAlerts streams triggered alerts.
func (s *System) SubscribeAlerts(fn func(schema.Alert)) func() {
	unsub := s.core.Subscribe(schema.ChannelSystem, schema.TypeAlert,
		schema.StreamParams{}, func(msg schema.Inbound) {
			a, ok := decodePayload[schema.Alert](s.logger, schema.TypeAlert, msg)
			if !ok {
				return
			}
			s.mu.Lock()
			s.alerts = appendCapped(s.alerts, a, s.cfg.AlertHistory)
			s.mu.Unlock()
			if fn != nil {
				fn(a)
			}
		})
	return s.regs.add(unsub)
}

// Notifications returns a copy of the notification history, oldest first.
func (s *System) Notifications() []schema.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Alerts returns a copy of the alert history, oldest first.
func (s *System) Alerts() []schema.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Close releases every registration this adapter made.
func (s *System) Close() {
	s.regs.closeAll()
}
