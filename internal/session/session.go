// Package session ties the pipeline together for one user: it loads and
// caches normalized tables and answers per-date analyses against the
// currently selected dataset.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/KaramelBytes/sameday-cli/internal/cache"
	"github.com/KaramelBytes/sameday-cli/internal/cohort"
	"github.com/KaramelBytes/sameday-cli/internal/observability"
	"github.com/KaramelBytes/sameday-cli/internal/schema"
	"github.com/KaramelBytes/sameday-cli/internal/stats"
	"github.com/KaramelBytes/sameday-cli/internal/table"
)

// ErrNoDataset is returned by Analyze before any source has been loaded.
var ErrNoDataset = errors.New("no dataset loaded")

// DefaultCacheEntries bounds the number of cached tables.
const DefaultCacheEntries = 4

// Dataset is a normalized table together with its identity.
type Dataset struct {
	ID          string        `json:"id"`
	Fingerprint string        `json:"fingerprint"`
	Source      string        `json:"source"`
	Table       *schema.Table `json:"-"`
	LoadedAt    time.Time     `json:"loaded_at"`
}

// Period returns the first and last dates of the dataset.
func (d *Dataset) Period() (first, last schema.Date, ok bool) {
	if d == nil {
		return schema.Date{}, schema.Date{}, false
	}
	return d.Table.Range()
}

// Contains reports whether date lies inside the dataset's period.
func (d *Dataset) Contains(date schema.Date) bool {
	first, last, ok := d.Period()
	return ok && !date.Before(first) && !last.Before(date)
}

// Options configures a Session. A zero Loader or Engine selects the
// package defaults of table and stats.
type Options struct {
	Loader       table.Options
	Engine       stats.Options
	CacheEntries int
	Clock        clockwork.Clock
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// Session is safe for concurrent use. Cached tables are shared read-only.
type Session struct {
	mu      sync.Mutex
	loader  table.Options
	engine  *stats.Engine
	cache   *cache.Cache[*Dataset]
	current *Dataset

	metrics *observability.Metrics
	logger  *slog.Logger
}

// New returns a Session with opt.
func New(opt Options) *Session {
	if opt.Loader == (table.Options{}) {
		opt.Loader = table.DefaultOptions()
	}
	if opt.Engine == (stats.Options{}) {
		opt.Engine = stats.DefaultOptions()
	}
	if opt.CacheEntries <= 0 {
		opt.CacheEntries = DefaultCacheEntries
	}
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	if opt.Logger == nil {
		opt.Logger = observability.Discard()
	}
	return &Session{
		loader:  opt.Loader,
		engine:  stats.New(opt.Engine),
		cache:   cache.NewWithClock[*Dataset](opt.Clock, opt.CacheEntries),
		metrics: opt.Metrics,
		logger:  opt.Logger,
	}
}

// Load reads src, normalizes it and makes it the current dataset. Content
// already seen is served from the cache without re-parsing.
func (s *Session) Load(src table.Source) (*Dataset, error) {
	content, err := src.Bytes()
	if err != nil {
		s.metrics.LoadFailed("load")
		return nil, &table.LoadError{Source: src.Name(), Err: err}
	}
	key := table.Fingerprint(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.cache.Get(key); ok {
		s.metrics.CacheLookup(true)
		s.logger.Debug("dataset cache hit", "source", src.Name(), "fingerprint", short(key))
		s.current = ds
		return ds, nil
	}
	s.metrics.CacheLookup(false)

	start := time.Now()
	raw, err := table.Load(table.BytesSource(src.Name(), content), s.loader)
	if err != nil {
		s.metrics.LoadFailed(failureKind(err))
		return nil, err
	}
	t, err := schema.Normalize(raw)
	if err != nil {
		s.metrics.LoadFailed(failureKind(err))
		return nil, err
	}
	st := t.Stats
	s.metrics.ObserveLoad(t.Encoding, time.Since(start).Seconds(), st.Kept, st.BadDate, st.MissingTemp, st.Duplicates)

	ds := &Dataset{
		ID:          uuid.NewString(),
		Fingerprint: key,
		Source:      src.Name(),
		Table:       t,
	}
	ds.LoadedAt = s.cache.Put(key, ds)
	s.current = ds

	s.logger.Info("dataset loaded",
		"source", ds.Source,
		"encoding", t.Encoding,
		"rows_read", st.RowsRead,
		"kept", st.Kept,
		"dropped", st.Dropped(),
		"fingerprint", short(key),
	)
	if !t.Has(schema.FieldMean) {
		s.logger.Warn("source has no mean temperature column", "source", ds.Source)
	}
	return ds, nil
}

// Current returns the selected dataset, or nil.
func (s *Session) Current() *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Analyze compares date against its cohort in the current dataset. ok is
// false when the dataset has no observation for date, including dates
// outside its period.
func (s *Session) Analyze(date schema.Date) (*stats.Result, bool, error) {
	ds := s.Current()
	if ds == nil {
		return nil, false, ErrNoDataset
	}
	return s.AnalyzeDataset(ds, date)
}

// AnalyzeDataset is Analyze against a specific dataset.
func (s *Session) AnalyzeDataset(ds *Dataset, date schema.Date) (*stats.Result, bool, error) {
	if !ds.Contains(date) {
		s.metrics.Analysis(observability.OutcomeNoData, false)
		return nil, false, nil
	}
	target, ok, c := cohort.Build(ds.Table, date)
	if !ok {
		s.metrics.Analysis(observability.OutcomeNoData, false)
		return nil, false, nil
	}
	res, err := s.engine.Analyze(target, c)
	switch {
	case errors.Is(err, stats.ErrNoData):
		s.metrics.Analysis(observability.OutcomeNoData, false)
		return nil, false, nil
	case err != nil:
		s.metrics.Analysis(observability.OutcomeError, false)
		return nil, false, fmt.Errorf("analyze %s: %w", date, err)
	}
	s.metrics.Analysis(observability.OutcomeOK, res.HasTrend())
	s.logger.Debug("date analyzed", "date", date.String(), "cohort", res.CohortSize, "rank", res.Rank, "trend", res.HasTrend())
	return res, true, nil
}

// Invalidate drops the cached table with fingerprint key. The current
// dataset is deselected if it was that table.
func (s *Session) Invalidate(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Fingerprint == key {
		s.current = nil
	}
	return s.cache.Invalidate(key)
}

// Clear drops every cached table and the current selection.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.cache.Clear()
}

// Cached returns the number of cached tables.
func (s *Session) Cached() int { return s.cache.Len() }

func failureKind(err error) string {
	var de *table.DecodeError
	var se *schema.SchemaError
	switch {
	case errors.As(err, &de):
		return "decode"
	case errors.As(err, &se):
		return "schema"
	default:
		return "load"
	}
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
