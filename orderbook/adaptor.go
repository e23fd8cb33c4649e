package orderbook

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	messageFields  = 5
	DefaultBrokers = 9
)

var (
	ErrMalformed     = errors.New("malformed message")
	ErrInvalidConfig = errors.New("invalid adaptor config")
)

var fieldNames = [messageFields]string{"timestamp", "order_id", "action", "volume", "price"}

// ParseError reports which field of a raw line was rejected.
type ParseError struct {
	Field int
	Line  string
	Err   error
}

// Field is the index of the rejected field, or messageFields when the line
// has the wrong number of fields.
func (e *ParseError) Error() string {
	what := "invalid field count"
	if e.Field >= 0 && e.Field < messageFields {
		what = fmt.Sprintf("invalid %s (field %d)", fieldNames[e.Field], e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s in %q: %v", what, e.Line, e.Err)
	}
	return fmt.Sprintf("%s in %q", what, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformed }

// ParseMessage parses timestamp,order_id,action,volume,price.
func ParseMessage(line string) (Message, error) {
	var msg Message
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != messageFields {
		return msg, &ParseError{Field: messageFields, Line: line,
			Err: fmt.Errorf("want %d fields, got %d", messageFields, len(fields))}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] == "" {
			return msg, &ParseError{Field: i, Line: line, Err: errors.New("empty field")}
		}
	}

	var err error
	if msg.Timestamp, err = parseDecimal(fields[0]); err != nil {
		return msg, &ParseError{Field: 0, Line: line, Err: err}
	}
	if msg.ID, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
		return msg, &ParseError{Field: 1, Line: line, Err: err}
	}
	if len(fields[2]) != 1 || !Action(fields[2][0]).Valid() {
		return msg, &ParseError{Field: 2, Line: line, Err: fmt.Errorf("unknown action %q", fields[2])}
	}
	msg.Action = Action(fields[2][0])
	if msg.Volume, err = parseDecimal(fields[3]); err != nil {
		return msg, &ParseError{Field: 3, Line: line, Err: err}
	}
	if msg.Price, err = parseDecimal(fields[4]); err != nil {
		return msg, &ParseError{Field: 4, Line: line, Err: err}
	}
	return msg, nil
}

// parseDecimal accepts plain decimal notation only. Exponent forms would let
// one line carry a value whose arithmetic never finishes.
func parseDecimal(field string) (decimal.Decimal, error) {
	if strings.ContainsAny(field, "eE") {
		return decimal.Zero, fmt.Errorf("exponent notation in %q", field)
	}
	return decimal.NewFromString(field)
}

// Journal is told about every book mutation so the live book can be persisted.
type Journal interface {
	Upsert(o Order) error
	Remove(id int64) error
}

type Stats struct {
	Processed   uint64
	Malformed   uint64
	UnknownRefs uint64
	Untracked   uint64
	Ignored     uint64
	Duplicates  uint64
	Events      uint64
}

// Adaptor turns raw feed lines into insert/delete events on the (price,
// volume) relation while keeping the per-order book up to date. It is not
// safe for concurrent use.
type Adaptor struct {
	book    *Book
	mode    TrackMode
	brokers int
	rnd     *rand.Rand
	journal Journal
	logger  *zap.Logger
	stats   Stats

	// OnUnknownRef, when set, sees every E/F/D message whose order id is in
	// neither book. Such messages are otherwise dropped.
	OnUnknownRef func(Message)
}

type Option func(*Adaptor)

func WithRand(r *rand.Rand) Option { return func(a *Adaptor) { a.rnd = r } }

func WithJournal(j Journal) Option { return func(a *Adaptor) { a.journal = j } }

func WithLogger(l *zap.Logger) Option { return func(a *Adaptor) { a.logger = l } }

func WithUnknownRefHook(fn func(Message)) Option {
	return func(a *Adaptor) { a.OnUnknownRef = fn }
}

func NewAdaptor(mode TrackMode, brokers int, opts ...Option) (*Adaptor, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: book side %q", ErrInvalidConfig, mode)
	}
	if brokers < 1 {
		return nil, fmt.Errorf("%w: broker count %d", ErrInvalidConfig, brokers)
	}
	a := &Adaptor{
		book:    NewBook(),
		mode:    mode,
		brokers: brokers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rnd == nil {
		a.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return a, nil
}

func (a *Adaptor) Book() *Book { return a.book }

func (a *Adaptor) Mode() TrackMode { return a.mode }

func (a *Adaptor) Stats() Stats { return a.stats }

// Process parses one raw line and applies it. A malformed line changes
// nothing and is reported through the returned error.
func (a *Adaptor) Process(line string) ([]Event, error) {
	msg, err := ParseMessage(line)
	if err != nil {
		a.stats.Malformed++
		a.logger.Warn("malformed_message", zap.String("line", line), zap.Error(err))
		return nil, err
	}
	return a.Apply(msg), nil
}

// Apply applies a parsed message to the book and returns the resulting
// events: a delete of the old state and/or an insert of the new one.
func (a *Adaptor) Apply(msg Message) []Event {
	a.stats.Processed++
	var events []Event
	switch msg.Action {
	case NewBid:
		events = a.place(msg, Bid)
	case NewAsk:
		events = a.place(msg, Ask)
	case Execute:
		events = a.execute(msg)
	case Fill, Cancel:
		events = a.drop(msg)
	default:
		a.stats.Ignored++
	}
	a.stats.Events += uint64(len(events))
	return events
}

func (a *Adaptor) place(msg Message, side Side) []Event {
	if !a.mode.Tracks(side) {
		a.stats.Untracked++
		return nil
	}
	var events []Event
	if old, ok := a.book.Find(msg.ID); ok {
		// a repeated id replaces the live order so the relation never keeps
		// a tuple without an order behind it
		a.stats.Duplicates++
		a.logger.Debug("duplicate_order_id", zap.Int64("order_id", msg.ID), zap.String("side", string(old.Side)))
		a.book.remove(old)
		events = append(events, DeleteEvent(old.Price, old.Volume))
	}
	o := &Order{
		ID:        msg.ID,
		Side:      side,
		BrokerID:  a.rnd.Intn(a.brokers) + 1,
		Price:     msg.Price,
		Volume:    msg.Volume,
		EntryTime: msg.Timestamp,
	}
	a.book.put(o)
	a.upsert(*o)
	return append(events, InsertEvent(o.Price, o.Volume))
}

func (a *Adaptor) execute(msg Message) []Event {
	o, ok := a.book.Find(msg.ID)
	if !ok {
		a.unknown(msg)
		return nil
	}
	events := []Event{DeleteEvent(o.Price, o.Volume)}
	remaining := o.Volume.Sub(msg.Volume)
	if remaining.LessThanOrEqual(decimal.Zero) {
		a.book.remove(o)
		a.forget(o.ID)
		return events
	}
	o.Volume = remaining
	a.upsert(*o)
	return append(events, InsertEvent(o.Price, o.Volume))
}

func (a *Adaptor) drop(msg Message) []Event {
	o, ok := a.book.Find(msg.ID)
	if !ok {
		a.unknown(msg)
		return nil
	}
	a.book.remove(o)
	a.forget(o.ID)
	return []Event{DeleteEvent(o.Price, o.Volume)}
}

func (a *Adaptor) unknown(msg Message) {
	a.stats.UnknownRefs++
	if a.OnUnknownRef != nil {
		a.OnUnknownRef(msg)
	}
}

// Restore places previously persisted orders into the book and returns the
// inserts that rebuild the relation. Orders on untracked sides are skipped.
func (a *Adaptor) Restore(orders []Order) []Event {
	var events []Event
	for i := range orders {
		o := orders[i]
		if !a.mode.Tracks(o.Side) {
			continue
		}
		if old, ok := a.book.Find(o.ID); ok {
			a.book.remove(old)
			events = append(events, DeleteEvent(old.Price, old.Volume))
		}
		a.book.put(&o)
		events = append(events, InsertEvent(o.Price, o.Volume))
	}
	return events
}

func (a *Adaptor) upsert(o Order) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Upsert(o); err != nil {
		a.logger.Error("journal_upsert_failed", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func (a *Adaptor) forget(id int64) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Remove(id); err != nil {
		a.logger.Error("journal_remove_failed", zap.Int64("order_id", id), zap.Error(err))
	}
}
