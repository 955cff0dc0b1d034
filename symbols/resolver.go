package symbols

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	broker "github.com/samarthkathal/broker-go"
	"golang.org/x/sync/singleflight"
)

var errNoSource = errors.New("no reference source or store configured")

// DefaultReloadTimeout bounds one shared reload, independent of any caller
const DefaultReloadTimeout = 5 * time.Minute

type index struct {
	gen      uint64
	exact    map[string]Record
	stripped map[string]Record
	size     int
}

func indexKey(segment, symbol string) string {
	return strings.ToUpper(segment) + "|" + symbol
}

func buildIndex(gen uint64, records []Record) *index {
	idx := &index{
		gen:      gen,
		exact:    make(map[string]Record, len(records)),
		stripped: make(map[string]Record, len(records)),
		size:     len(records),
	}
	for _, rec := range records {
		raw := strings.ToUpper(strings.TrimSpace(rec.TradingSymbol))
		idx.exact[indexKey(rec.ExchangeSegment, raw)] = rec

		key := indexKey(rec.ExchangeSegment, NormalizeSymbol(raw))
		if prev, ok := idx.stripped[key]; !ok || seriesRank(raw) < seriesRank(prev.TradingSymbol) {
			idx.stripped[key] = rec
		}
	}
	return idx
}

func (idx *index) lookup(symbol, segment string) (Record, bool) {
	if rec, ok := idx.exact[indexKey(segment, symbol)]; ok {
		return rec, true
	}
	rec, ok := idx.stripped[indexKey(segment, NormalizeSymbol(symbol))]
	return rec, ok
}

// ReloadHook is notified after every reload attempt
type ReloadHook func(broker string, records int, err error)

// Resolver maps trading symbols to instrument records for one broker.
//
// Lookups read an immutable in-memory index. On a miss the resolver performs
// one full reload and retries once; concurrent misses against the same index
// generation share a single reload.
type Resolver struct {
	broker  string
	source  Source
	store   Store
	segment SegmentFunc
	logger  zerolog.Logger
	onLoad  ReloadHook
	timeout time.Duration

	current atomic.Pointer[index]
	group   singleflight.Group
	mu      sync.Mutex
	reloads atomic.Uint64
}

// Option configures a Resolver
type Option func(*Resolver)

// WithStore persists fetched records and lets Load warm the index from disk
func WithStore(store Store) Option {
	return func(r *Resolver) {
		r.store = store
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithReloadHook registers a hook called after each reload
func WithReloadHook(hook ReloadHook) Option {
	return func(r *Resolver) {
		r.onLoad = hook
	}
}

// WithReloadTimeout bounds each reload. Callers stop waiting on their own
// context; the reload itself runs until it finishes or this timeout passes.
func WithReloadTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewResolver creates a resolver. source may be nil when an external job
// maintains the store; reloads then re-read the store.
func NewResolver(brokerName string, source Source, segment SegmentFunc, opts ...Option) *Resolver {
	r := &Resolver{
		broker:  brokerName,
		source:  source,
		segment: segment,
		logger:  zerolog.Nop(),
		timeout: DefaultReloadTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(buildIndex(0, nil))
	return r
}

// Load warms the index from the store without contacting the source.
// An empty store is not an error; the first miss will trigger a reload.
func (r *Resolver) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.All(ctx)
	if err != nil {
		return fmt.Errorf("%w: load %s symbols: %v", broker.ErrReferenceDataUnavailable, r.broker, err)
	}
	if len(records) == 0 {
		return nil
	}
	r.swap(records)
	return nil
}

// Refresh forces a full reload, e.g. from a daily scheduler
func (r *Resolver) Refresh(ctx context.Context) error {
	return r.refreshFrom(ctx, r.current.Load().gen)
}

// Resolve returns the record for symbol on the given exchange and segment
func (r *Resolver) Resolve(ctx context.Context, symbol string, exchange broker.Exchange, segment broker.Segment) (Record, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return Record{}, fmt.Errorf("%w: empty trading symbol", broker.ErrInvalidSymbolQuery)
	}

	seg, err := r.segment(strings.ToUpper(string(exchange)), strings.ToUpper(string(segment)))
	if err != nil {
		return Record{}, err
	}

	idx := r.current.Load()
	if rec, ok := idx.lookup(sym, seg); ok {
		return rec, nil
	}

	if err := r.refreshFrom(ctx, idx.gen); err != nil {
		return Record{}, err
	}

	if rec, ok := r.current.Load().lookup(sym, seg); ok {
		return rec, nil
	}
	return Record{}, fmt.Errorf("%w: %s on %s (%s)", broker.ErrSymbolNotFound, symbol, seg, r.broker)
}

// Reloads returns how many reloads have completed or failed
func (r *Resolver) Reloads() uint64 {
	return r.reloads.Load()
}

// Len returns the number of records in the current index
func (r *Resolver) Len() int {
	return r.current.Load().size
}

// refreshFrom reloads unless the index has moved past the generation the
// caller observed, in which case another caller already refreshed it. The
// shared reload does not inherit the cancellation of whichever caller
// started it.
func (r *Resolver) refreshFrom(ctx context.Context, observed uint64) error {
	ch := r.group.DoChan(strconv.FormatUint(observed, 10), func() (any, error) {
		if r.current.Load().gen != observed {
			return nil, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return nil, r.reload(rctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", broker.ErrReferenceDataUnavailable, r.broker, ctx.Err())
	}
}

func (r *Resolver) reload(ctx context.Context) error {
	start := time.Now()
	r.reloads.Add(1)

	records, err := r.fetch(ctx)
	if err == nil && len(records) == 0 {
		err = errors.New("reference source returned no records")
	}
	if r.onLoad != nil {
		r.onLoad(r.broker, len(records), err)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("broker", r.broker).Msg("symbol master reload failed")
		return fmt.Errorf("%w: %s: %v", broker.ErrReferenceDataUnavailable, r.broker, err)
	}

	r.swap(records)
	r.logger.Info().
		Str("broker", r.broker).
		Int("records", len(records)).
		Dur("took", time.Since(start)).
		Msg("symbol master reloaded")
	return nil
}

func (r *Resolver) fetch(ctx context.Context) ([]Record, error) {
	switch {
	case r.source != nil:
		records, err := r.source.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if r.store != nil && len(records) > 0 {
			if err := r.store.Replace(ctx, records); err != nil {
				r.logger.Warn().Err(err).Str("broker", r.broker).Msg("persisting symbol master failed, serving from memory")
			}
		}
		return records, nil
	case r.store != nil:
		return r.store.All(ctx)
	default:
		return nil, errNoSource
	}
}

func (r *Resolver) swap(records []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := buildIndex(r.current.Load().gen+1, records)
	r.current.Store(next)
}
