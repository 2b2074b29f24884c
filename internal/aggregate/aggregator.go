package aggregate

import (
	"github.com/cam3ron2/oss-contributions/internal/contrib"
	"go.uber.org/zap"
)

// Options configures an Aggregator.
type Options struct {
	// ContributionOnly drops entries for repositories the user owns.
	ContributionOnly bool
	Logger           *zap.Logger
}

// Stats summarizes every contributor entry kept by an Aggregator. Role totals
// count distinct logins per role, so one user may appear under several roles.
type Stats struct {
	TotalUsers         int `json:"total_users"`
	TotalOwners        int `json:"total_owners"`
	TotalMaintainers   int `json:"total_maintainers"`
	TotalCollaborators int `json:"total_collaborators"`
	TotalContributors  int `json:"total_contributors"`
	TotalCommits       int `json:"total_commits"`
	TotalPullRequests  int `json:"total_pull_requests"`
	TotalReviews       int `json:"total_reviews"`
	TotalIssues        int `json:"total_issues"`
}

// Aggregator owns the repository table, the role index and the running totals.
type Aggregator struct {
	contributionOnly bool
	logger           *zap.Logger

	repositories map[string]*contrib.Repository
	order        []*contrib.Repository
	users        map[string]struct{}
	roles        map[contrib.Role]map[string]struct{}
	totals       contrib.Tally
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	roles := make(map[contrib.Role]map[string]struct{}, len(contrib.Roles))
	for _, role := range contrib.Roles {
		roles[role] = map[string]struct{}{}
	}
	return &Aggregator{
		contributionOnly: opts.ContributionOnly,
		logger:           logger,
		repositories:     map[string]*contrib.Repository{},
		users:            map[string]struct{}{},
		roles:            roles,
	}
}

// Add appends one contributor entry per record of login.
func (a *Aggregator) Add(login string, records []contrib.Record) {
	skipped := 0
	for _, record := range records {
		if a.contributionOnly && record.Role == contrib.RoleOwner {
			skipped++
			continue
		}

		repo, ok := a.repositories[record.Repository.Name]
		if !ok {
			repo = &contrib.Repository{
				RepositoryInfo: record.Repository,
				Contributors:   []contrib.Contributor{},
			}
			a.repositories[record.Repository.Name] = repo
			a.order = append(a.order, repo)
		}
		repo.Contributors = append(repo.Contributors, contrib.Contributor{
			User:          login,
			Role:          record.Role,
			Contributions: record.Tally,
		})
		a.index(login, record)
	}

	if skipped > 0 {
		a.logger.Debug("skipped owned repositories", zap.String("user", login), zap.Int("repositories", skipped))
	}
}

func (a *Aggregator) index(login string, record contrib.Record) {
	a.users[login] = struct{}{}
	logins, ok := a.roles[record.Role]
	if !ok {
		logins = map[string]struct{}{}
		a.roles[record.Role] = logins
	}
	logins[login] = struct{}{}
	a.totals = a.totals.Add(record.Tally)
}

// Repositories returns every repository in the order it was first seen.
func (a *Aggregator) Repositories() []*contrib.Repository {
	out := make([]*contrib.Repository, len(a.order))
	copy(out, a.order)
	return out
}

// Stats returns the current totals.
func (a *Aggregator) Stats() Stats {
	return Stats{
		TotalUsers:         len(a.users),
		TotalOwners:        len(a.roles[contrib.RoleOwner]),
		TotalMaintainers:   len(a.roles[contrib.RoleMaintainer]),
		TotalCollaborators: len(a.roles[contrib.RoleCollaborator]),
		TotalContributors:  len(a.roles[contrib.RoleContributor]),
		TotalCommits:       a.totals.Commits,
		TotalPullRequests:  a.totals.PullRequests,
		TotalReviews:       a.totals.Reviews,
		TotalIssues:        a.totals.Issues,
	}
}
