package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vwapbook/db"
	"vwapbook/metrics"
	"vwapbook/orderbook"
	"vwapbook/view"
)

var ErrClosed = errors.New("feed closed")

const DefaultQueueSize = 1024

type Config struct {
	Symbol    string
	Mode      orderbook.TrackMode
	Brokers   int
	QueueSize int
}

// Snapshot is what readers see through Latest. It is never mutated once
// published.
type Snapshot struct {
	Session string          `json:"session"`
	Symbol  string          `json:"symbol"`
	Lines   uint64          `json:"lines"`
	Bids    int             `json:"bids"`
	Asks    int             `json:"asks"`
	Stats   orderbook.Stats `json:"stats"`
	View    view.Snapshot   `json:"view"`
	Time    time.Time       `json:"time"`
}

// Feed applies raw lines to one book and its view engine. Any number of
// goroutines may Submit; Run is the only writer.
type Feed struct {
	symbol  string
	session uuid.UUID
	adaptor *orderbook.Adaptor
	engine  *view.Engine
	repo    db.Repo
	logger  *zap.Logger
	metrics *metrics.Metrics
	rnd     *rand.Rand

	queue  chan string
	mu     sync.RWMutex
	closed bool
	lines  uint64
	latest atomic.Pointer[Snapshot]
}

type Option func(*Feed)

func WithLogger(l *zap.Logger) Option { return func(f *Feed) { f.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(f *Feed) { f.metrics = m } }

// WithRand fixes the broker id source, for reproducible runs.
func WithRand(r *rand.Rand) Option { return func(f *Feed) { f.rnd = r } }

// NewFeed builds the book and rebuilds it from the orders the repo still
// holds for the symbol. A nil repo starts from an empty book.
func NewFeed(cfg Config, engine *view.Engine, repo db.Repo, opts ...Option) (*Feed, error) {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("queue size %d", cfg.QueueSize)
	}
	f := &Feed{
		symbol:  cfg.Symbol,
		session: uuid.New(),
		engine:  engine,
		repo:    repo,
		logger:  zap.NewNop(),
		queue:   make(chan string, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("symbol", f.symbol), zap.String("session", f.session.String()))

	adaptorOpts := []orderbook.Option{
		orderbook.WithLogger(f.logger),
		orderbook.WithUnknownRefHook(func(m orderbook.Message) {
			f.logger.Debug("unknown_order_ref", zap.Int64("order_id", m.ID), zap.String("action", m.Action.String()))
		}),
	}
	if f.rnd != nil {
		adaptorOpts = append(adaptorOpts, orderbook.WithRand(f.rnd))
	}
	if repo != nil {
		adaptorOpts = append(adaptorOpts, orderbook.WithJournal(repoJournal{repo: repo, symbol: f.symbol}))
	}
	a, err := orderbook.NewAdaptor(cfg.Mode, cfg.Brokers, adaptorOpts...)
	if err != nil {
		return nil, err
	}
	f.adaptor = a

	if err := f.initOrderBook(); err != nil {
		return nil, err
	}
	f.publish()
	return f, nil
}

func (f *Feed) initOrderBook() error {
	if f.repo == nil {
		return nil
	}
	orders, err := f.repo.GetAvailableOrders(f.symbol)
	if err != nil {
		return fmt.Errorf("load orders for %s: %w", f.symbol, err)
	}
	events := f.adaptor.Restore(fromDBOrders(orders))
	for _, ev := range events {
		if err := f.engine.Apply(ev); err != nil {
			return fmt.Errorf("restore %s: %w", f.symbol, err)
		}
	}
	if len(orders) > 0 {
		f.logger.Info("orders_restored", zap.Int("stored", len(orders)), zap.Int("live", f.adaptor.Book().Len()))
	}
	return nil
}

func (f *Feed) Session() uuid.UUID { return f.session }

// Book exposes the live book. Only safe to read once Run has returned.
func (f *Feed) Book() *orderbook.Book { return f.adaptor.Book() }

// Latest returns the most recently published snapshot.
func (f *Feed) Latest() *Snapshot { return f.latest.Load() }

// Submit queues one raw line. It blocks while the queue is full.
func (f *Feed) Submit(ctx context.Context, line string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrClosed
	}
	select {
	case f.queue <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting lines. Run drains what is queued and returns.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
}

// Run consumes queued lines until Close or ctx cancellation. It stops with
// an error if the engine rejects an event.
func (f *Feed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-f.queue:
			if !ok {
				f.logger.Info("feed_drained", zap.Uint64("lines", f.lines), zap.Uint64("events", f.engine.Applied()))
				return nil
			}
			if err := f.handle(line); err != nil {
				f.logger.Error("feed_stopped", zap.String("line", line), zap.Error(err))
				return err
			}
		}
	}
}

// Consume runs the feed over every line of r and closes it at EOF. Ending
// ctx is a clean shutdown: Consume returns nil and Latest keeps the last
// applied state. Only an engine or read failure is returned.
func (f *Feed) Consume(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := f.Run(ctx)
		if err != nil {
			// unblock a producer stuck on a full queue
			cancel()
		}
		done <- err
	}()

	read := make(chan error, 1)
	go func() {
		_, err := ReadLines(ctx, r, f.Submit)
		read <- err
	}()

	// a terminal stdin may not unblock on close, so cancellation does not
	// wait for the reader
	var readErr error
	select {
	case readErr = <-read:
	case <-ctx.Done():
	}
	f.Close()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		return readErr
	}
	return nil
}

func (f *Feed) handle(line string) error {
	start := time.Now()
	f.lines++

	events, err := f.adaptor.Process(line)
	if err != nil {
		f.observeLine("malformed", start)
		return nil
	}
	for _, ev := range events {
		if err := f.engine.Apply(ev); err != nil {
			return fmt.Errorf("line %d: %w", f.lines, err)
		}
	}
	if f.metrics != nil {
		f.metrics.ObserveEvents(events)
	}
	f.publish()
	f.observeLine("applied", start)
	return nil
}

func (f *Feed) observeLine(outcome string, start time.Time) {
	if f.metrics == nil {
		return
	}
	f.metrics.Lines.WithLabelValues(outcome).Inc()
	f.metrics.ApplySeconds.Observe(time.Since(start).Seconds())
	f.metrics.QueueDepth.Set(float64(len(f.queue)))
}

func (f *Feed) publish() {
	book := f.adaptor.Book()
	s := &Snapshot{
		Session: f.session.String(),
		Symbol:  f.symbol,
		Lines:   f.lines,
		Bids:    len(book.Bids),
		Asks:    len(book.Asks),
		Stats:   f.adaptor.Stats(),
		View:    f.engine.Snapshot(),
		Time:    time.Now(),
	}
	f.latest.Store(s)

	if f.metrics != nil {
		f.metrics.ObserveBook(book)
		f.metrics.ObserveResult(s.View.Threshold, s.View.Result, s.View.HasResult)
		f.metrics.ObserveDomains(f.engine.DomainSizes())
	}
}
