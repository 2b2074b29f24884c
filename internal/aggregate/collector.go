// Package aggregate walks each user's contribution history and merges the
// results into one repository table.
package aggregate

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cam3ron2/oss-contributions/internal/contrib"
	"github.com/cam3ron2/oss-contributions/internal/githubapi"
	"github.com/cam3ron2/oss-contributions/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// windowLength is how far back one contributions query reaches.
const windowLength = 365 * 24 * time.Hour

// WindowFetcher returns one user's contributions between from and to.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, login string, from, to time.Time) (githubapi.ContributionWindow, error)
}

// WindowObserver is notified after every queried window.
type WindowObserver interface {
	ObserveWindow(entries int)
}

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	// From bounds the walk; zero walks back until a window comes back empty.
	From time.Time
	// To is where the walk starts; zero means now.
	To              time.Time
	IncludePrivate  bool
	IncludeInactive bool
	Now             func() time.Time
	Logger          *zap.Logger
	Observer        WindowObserver
	Tracer          trace.Tracer
}

// Collector fetches and merges one user's contributions window by window.
type Collector struct {
	fetcher         WindowFetcher
	from            time.Time
	to              time.Time
	includePrivate  bool
	includeInactive bool
	now             func() time.Time
	logger          *zap.Logger
	observer        WindowObserver
	tracer          trace.Tracer
}

// NewCollector creates a Collector over fetcher.
func NewCollector(fetcher WindowFetcher, opts CollectorOptions) (*Collector, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("window fetcher is required")
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.From.After(opts.To) {
		return nil, fmt.Errorf("range start %s is after range end %s", opts.From.Format(time.DateOnly), opts.To.Format(time.DateOnly))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("aggregate")
	}

	return &Collector{
		fetcher:         fetcher,
		from:            opts.From,
		to:              opts.To,
		includePrivate:  opts.IncludePrivate,
		includeInactive: opts.IncludeInactive,
		now:             now,
		logger:          logger,
		observer:        opts.Observer,
		tracer:          tracer,
	}, nil
}

// Collect walks login's history backwards one window at a time and returns one
// record per repository, most starred first.
func (c *Collector) Collect(ctx context.Context, login string) ([]contrib.Record, error) {
	ctx, span := c.tracer.Start(ctx, "aggregate.collect", trace.WithAttributes(
		attribute.String("github.user", login),
	))
	defer span.End()

	records, windows, err := c.walk(ctx, span, login)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	kept := c.filter(records)
	span.SetAttributes(
		attribute.Int("contributions.windows", windows),
		attribute.Int("contributions.repositories", len(kept)),
	)
	c.logger.Info(
		"collected contributions",
		zap.String("user", login),
		zap.Int("windows", windows),
		zap.Int("repositories", len(kept)),
		zap.Int("filtered", len(records)-len(kept)),
	)
	return kept, nil
}

func (c *Collector) walk(ctx context.Context, span trace.Span, login string) ([]contrib.Record, int, error) {
	to := c.to
	if to.IsZero() {
		to = c.now()
	}
	to = to.UTC()
	if !c.from.IsZero() && c.from.After(to) {
		return nil, 0, fmt.Errorf("range start %s is after range end %s", c.from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	merged := newRecordSet()
	windows := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, windows, err
		}

		from := to.Add(-windowLength).Add(time.Second)
		lastWindow := false
		if !c.from.IsZero() && !from.After(c.from) {
			from = c.from.UTC()
			lastWindow = true
		}

		window, err := c.fetcher.FetchWindow(ctx, login, from, to)
		if err != nil {
			return nil, windows, fmt.Errorf("fetch contributions window %s..%s for %q: %w", from.Format(time.DateOnly), to.Format(time.DateOnly), login, err)
		}
		windows++
		entries := window.Len()
		if c.observer != nil {
			c.observer.ObserveWindow(entries)
		}
		span.AddEvent("contributions.window", trace.WithAttributes(
			attribute.String("window.from", from.Format(time.RFC3339)),
			attribute.String("window.to", to.Format(time.RFC3339)),
			attribute.Int("window.entries", entries),
		))
		c.logger.Debug(
			"fetched contributions window",
			zap.String("user", login),
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Int("entries", entries),
		)

		merged.addAll(login, window.Commits, func(t *contrib.Tally, n int) { t.Commits = n })
		merged.addAll(login, window.PullRequests, func(t *contrib.Tally, n int) { t.PullRequests = n })
		merged.addAll(login, window.Reviews, func(t *contrib.Tally, n int) { t.Reviews = n })
		merged.addAll(login, window.Issues, func(t *contrib.Tally, n int) { t.Issues = n })

		if entries == 0 || lastWindow {
			break
		}
		to = from.Add(-time.Second)
	}
	return merged.records(), windows, nil
}

func (c *Collector) filter(records []contrib.Record) []contrib.Record {
	kept := make([]contrib.Record, 0, len(records))
	for _, record := range records {
		if record.Repository.IsPrivate && !c.includePrivate {
			continue
		}
		if !record.Repository.IsActive && !c.includeInactive {
			continue
		}
		kept = append(kept, record)
	}
	slices.SortFunc(kept, func(a, b contrib.Record) int {
		return cmp.Or(
			cmp.Compare(b.Repository.Stargazers, a.Repository.Stargazers),
			strings.Compare(a.Repository.Name, b.Repository.Name),
		)
	})
	return kept
}

// recordSet merges records by repository name, keeping first-sighting order.
type recordSet struct {
	index map[string]int
	items []contrib.Record
}

func newRecordSet() *recordSet {
	return &recordSet{index: map[string]int{}}
}

func (s *recordSet) add(record contrib.Record) {
	name := record.Repository.Name
	if i, ok := s.index[name]; ok {
		s.items[i].Merge(record)
		return
	}
	s.index[name] = len(s.items)
	s.items = append(s.items, record)
}

func (s *recordSet) addAll(login string, entries []githubapi.RepositoryContribution, set func(*contrib.Tally, int)) {
	for _, entry := range entries {
		record := contrib.BuildRecord(login, entry.Repository)
		set(&record.Tally, entry.Count)
		s.add(record)
	}
}

func (s *recordSet) records() []contrib.Record {
	return s.items
}
