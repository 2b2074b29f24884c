// Package app wires user resolution, collection, aggregation and report assembly.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cam3ron2/oss-contributions/internal/aggregate"
	"github.com/cam3ron2/oss-contributions/internal/contrib"
	"github.com/cam3ron2/oss-contributions/internal/ordering"
	"github.com/cam3ron2/oss-contributions/internal/report"
	"go.uber.org/zap"
)

// MemberSource lists an organization's members.
type MemberSource interface {
	ListMembers(ctx context.Context, org string) ([]string, error)
}

// UserCollector returns one user's contribution records.
type UserCollector interface {
	Collect(ctx context.Context, login string) ([]contrib.Record, error)
}

// ReportObserver is told the size of each finished report.
type ReportObserver interface {
	ObserveReport(repositories, users int, completedUnix float64)
}

// Options configures a Runner.
type Options struct {
	Users            []string
	Organization     string
	ContributionOnly bool
	MinStargazers    int
	IncludePersonal  bool
	Mode             ordering.Mode
}

// Runner produces one report per Run.
type Runner struct {
	collector UserCollector
	members   MemberSource
	observer  ReportObserver
	opts      Options
	logger    *zap.Logger

	// Now is injected for deterministic tests.
	Now func() time.Time
}

// NewRunner creates a Runner. members may be nil when no organization is configured.
func NewRunner(collector UserCollector, members MemberSource, observer ReportObserver, opts Options, logger ...*zap.Logger) (*Runner, error) {
	if collector == nil {
		return nil, errors.New("user collector is required")
	}
	if strings.TrimSpace(opts.Organization) != "" && members == nil {
		return nil, errors.New("member source is required when an organization is configured")
	}
	if len(opts.Mode.Dimensions) == 0 {
		opts.Mode = ordering.DefaultMode()
	}
	baseLogger := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		baseLogger = logger[0]
	}
	return &Runner{
		collector: collector,
		members:   members,
		observer:  observer,
		opts:      opts,
		logger:    baseLogger,
		Now:       time.Now,
	}, nil
}

// Run collects every resolved user sequentially and assembles the report.
func (r *Runner) Run(ctx context.Context) (report.Report, error) {
	users, err := r.ResolveUsers(ctx)
	if err != nil {
		return report.Report{}, err
	}
	r.logger.Info("resolved users", zap.Int("users", len(users)), zap.String("sort", r.opts.Mode.Name))

	agg := aggregate.NewAggregator(aggregate.Options{
		ContributionOnly: r.opts.ContributionOnly,
		Logger:           r.logger,
	})
	for _, login := range users {
		records, err := r.collector.Collect(ctx, login)
		if err != nil {
			return report.Report{}, fmt.Errorf("collect %q: %w", login, err)
		}
		agg.Add(login, records)
	}

	result := report.Assemble(agg.Repositories(), agg.Stats(), ordering.New(r.opts.Mode), report.Options{
		MinStargazers:   r.opts.MinStargazers,
		IncludePersonal: r.opts.IncludePersonal,
	})
	for _, repo := range result.Repositories {
		r.logger.Debug("repository contributors", zap.String("repository", repo.Name), zap.Strings("contributors", repo.Logins()))
	}
	if r.observer != nil {
		r.observer.ObserveReport(len(result.Repositories), len(result.Users), float64(r.Now().Unix()))
	}
	r.logger.Info(
		"assembled report",
		zap.Int("repositories", len(result.Repositories)),
		zap.Int("users", len(result.Users)),
		zap.Int("total_users", result.Stats.TotalUsers),
	)
	return result, nil
}

// ResolveUsers returns the configured users followed by the organization's
// members. Duplicates, compared case-insensitively, keep their first spelling.
func (r *Runner) ResolveUsers(ctx context.Context) ([]string, error) {
	users := make([]string, 0, len(r.opts.Users))
	users = append(users, r.opts.Users...)

	if org := strings.TrimSpace(r.opts.Organization); org != "" {
		members, err := r.members.ListMembers(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("list members of %q: %w", org, err)
		}
		r.logger.Info("listed organization members", zap.String("organization", org), zap.Int("members", len(members)))
		users = append(users, members...)
	}
	return dedupeLogins(users), nil
}

func dedupeLogins(logins []string) []string {
	seen := make(map[string]struct{}, len(logins))
	out := make([]string, 0, len(logins))
	for _, login := range logins {
		trimmed := strings.TrimSpace(login)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
