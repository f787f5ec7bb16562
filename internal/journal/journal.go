package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wu-shaobing/quant-platform-stream/internal/schema"
)

// Config holds journal batching settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Stats holds journal counters.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}

// Journal batches stream records and writes them to PostgreSQL.
type Journal struct {
	cfg    Config
	db     *pgxpool.Pool
	logger *slog.Logger

	ticks         chan schema.Tick
	notifications chan schema.Notification
	alerts        chan schema.Alert

	batchMu    sync.Mutex
	tickRows   []schema.Tick
	notifRows  []schema.Notification
	alertRows  []schema.Alert
	receivedAt []int64 // parallel to tickRows, micros

	flushTicker *time.Ticker
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	metrics Stats
}

// New creates a journal writing to db.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	return &Journal{
		cfg:           cfg,
		db:            db,
		logger:        logger,
		ticks:         make(chan schema.Tick, cfg.BufferSize),
		notifications: make(chan schema.Notification, cfg.BufferSize),
		alerts:        make(chan schema.Alert, cfg.BufferSize),
		tickRows:      make([]schema.Tick, 0, cfg.BatchSize),
	}
}

// Start begins consuming enqueued records and flushing batches.
func (j *Journal) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.flushTicker = time.NewTicker(j.cfg.FlushInterval)

	j.wg.Add(1)
	go j.consumeLoop()

	j.wg.Add(1)
	go j.flushLoop()

	j.logger.Info("journal started",
		"batch_size", j.cfg.BatchSize,
		"flush_interval", j.cfg.FlushInterval,
	)
	return nil
}

// Stop drains goroutines and performs a final flush.
func (j *Journal) Stop(ctx context.Context) error {
	j.logger.Info("stopping journal")

	if j.cancel != nil {
		j.cancel()
	}
	if j.flushTicker != nil {
		j.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("journal stopped")
	case <-ctx.Done():
		j.logger.Warn("journal stop timed out")
	}

	j.flush(context.Background())
	return nil
}

// RecordTick enqueues a tick without blocking; full buffer drops it.
func (j *Journal) RecordTick(t schema.Tick) {
	select {
	case j.ticks <- t:
	default:
		j.drop("tick")
	}
}

// RecordNotification enqueues a notification without blocking.
func (j *Journal) RecordNotification(n schema.Notification) {
	select {
	case j.notifications <- n:
	default:
		j.drop("notification")
	}
}

// RecordAlert enqueues an alert without blocking.
func (j *Journal) RecordAlert(a schema.Alert) {
	select {
	case j.alerts <- a:
	default:
		j.drop("alert")
	}
}

// Stats returns current counters.
func (j *Journal) Stats() Stats {
	j.batchMu.Lock()
	defer j.batchMu.Unlock()
	return j.metrics
}

func (j *Journal) drop(kind string) {
	j.batchMu.Lock()
	j.metrics.Dropped++
	j.batchMu.Unlock()
	j.logger.Warn("journal buffer full, dropping record", "kind", kind)
}

func (j *Journal) consumeLoop() {
	defer j.wg.Done()

	for {
		var full bool
		select {
		case <-j.ctx.Done():
			return
		case t := <-j.ticks:
			j.batchMu.Lock()
			j.tickRows = append(j.tickRows, t)
			j.receivedAt = append(j.receivedAt, time.Now().UnixMicro())
			full = j.pendingLocked() >= j.cfg.BatchSize
			j.batchMu.Unlock()
		case n := <-j.notifications:
			j.batchMu.Lock()
			j.notifRows = append(j.notifRows, n)
			full = j.pendingLocked() >= j.cfg.BatchSize
			j.batchMu.Unlock()
		case a := <-j.alerts:
			j.batchMu.Lock()
			j.alertRows = append(j.alertRows, a)
			full = j.pendingLocked() >= j.cfg.BatchSize
			j.batchMu.Unlock()
		}

		if full {
			j.flush(j.ctx)
		}
	}
}

func (j *Journal) pendingLocked() int {
	return len(j.tickRows) + len(j.notifRows) + len(j.alertRows)
}

func (j *Journal) flushLoop() {
	defer j.wg.Done()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-j.flushTicker.C:
			j.flush(j.ctx)
		}
	}
}

// flush writes every pending row to the database in one batch.
func (j *Journal) flush(ctx context.Context) {
	j.batchMu.Lock()
	if j.pendingLocked() == 0 {
		j.batchMu.Unlock()
		return
	}
	ticks := j.tickRows
	received := j.receivedAt
	notifs := j.notifRows
	alerts := j.alertRows
	j.tickRows = make([]schema.Tick, 0, j.cfg.BatchSize)
	j.receivedAt = nil
	j.notifRows = nil
	j.alertRows = nil
	j.batchMu.Unlock()

	total := len(ticks) + len(notifs) + len(alerts)
	start := time.Now()

	batch := buildBatch(ticks, received, notifs, alerts)

	conflicts, err := j.sendBatch(ctx, batch, total)
	if err != nil {
		j.logger.Error("batch insert failed", "error", err, "count", total)
		j.batchMu.Lock()
		j.metrics.Errors++
		j.batchMu.Unlock()
		return
	}

	j.batchMu.Lock()
	j.metrics.Inserts += int64(total - conflicts)
	j.metrics.Conflicts += int64(conflicts)
	j.metrics.Flushes++
	j.batchMu.Unlock()

	j.logger.Debug("flushed journal batch",
		"count", total,
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// buildBatch queues one insert per row, append-only.
func buildBatch(ticks []schema.Tick, received []int64, notifs []schema.Notification, alerts []schema.Alert) *pgx.Batch {
	batch := &pgx.Batch{}

	for i, t := range ticks {
		batch.Queue(`
			INSERT INTO ticks (symbol, price, volume, change, ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (symbol, ts) DO NOTHING
		`, t.Symbol, t.Price.String(), t.Volume.String(), t.Change.String(), t.Ts, received[i])
	}

	for _, n := range notifs {
		batch.Queue(`
			INSERT INTO notifications (id, level, title, message, ts)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, n.ID, n.Level, n.Title, n.Message, n.Ts)
	}

	for _, a := range alerts {
		batch.Queue(`
			INSERT INTO alerts (id, severity, source, message, ts)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, a.ID, a.Severity, a.Source, a.Message, a.Ts)
	}

	return batch
}

func (j *Journal) sendBatch(ctx context.Context, batch *pgx.Batch, rows int) (conflicts int, err error) {
	results := j.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < rows; i++ {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
