package ordering

import (
	"slices"
	"strings"

	"github.com/cam3ron2/oss-contributions/internal/contrib"
)

// Preset names accepted by ParseMode.
const (
	PresetMaxContribution    = "max-contribution"
	PresetTotalContributions = "total-contributions"
	PresetTotalContributors  = "total-contributors"
	PresetStargazers         = "stargazers"
)

var (
	contributionDimensions = []Dimension{
		DimensionPullRequests,
		DimensionCommits,
		DimensionReviews,
		DimensionIssues,
		DimensionContributors,
		DimensionRole,
		DimensionStargazers,
	}
	contributorDimensions = []Dimension{
		DimensionContributors,
		DimensionRole,
		DimensionPullRequests,
		DimensionCommits,
		DimensionReviews,
		DimensionIssues,
		DimensionStargazers,
	}
	stargazerDimensions = []Dimension{
		DimensionStargazers,
		DimensionContributors,
		DimensionRole,
		DimensionPullRequests,
		DimensionCommits,
		DimensionReviews,
		DimensionIssues,
	}
)

// Mode is a dimension order paired with an accumulation strategy.
type Mode struct {
	Name       string
	Dimensions []Dimension
	Strategy   Strategy
}

// DefaultMode is the stargazers preset.
func DefaultMode() Mode {
	return Mode{Name: PresetStargazers, Dimensions: slices.Clone(stargazerDimensions), Strategy: StrategySum}
}

// ParseMode resolves a preset name, or treats raw as a comma separated list of
// dimensions summed together. An empty value selects DefaultMode.
func ParseMode(raw string) Mode {
	trimmed := strings.TrimSpace(raw)
	switch trimmed {
	case "", PresetStargazers:
		return DefaultMode()
	case PresetMaxContribution:
		return Mode{Name: trimmed, Dimensions: slices.Clone(contributionDimensions), Strategy: StrategyMax}
	case PresetTotalContributions:
		return Mode{Name: trimmed, Dimensions: slices.Clone(contributionDimensions), Strategy: StrategySum}
	case PresetTotalContributors:
		return Mode{Name: trimmed, Dimensions: slices.Clone(contributorDimensions), Strategy: StrategySum}
	default:
		return Mode{Name: trimmed, Dimensions: ParseDimensions(trimmed), Strategy: StrategySum}
	}
}

// Ordering computes keys and sorts under one Mode.
type Ordering struct {
	mode Mode
}

// New creates an Ordering for mode.
func New(mode Mode) Ordering {
	return Ordering{mode: mode}
}

// ContributorKey folds one repository contributor.
func (o Ordering) ContributorKey(c contrib.Contributor) Key {
	var k Key
	k.foldContributor(o.mode.Strategy, c)
	return k
}

// TallyKey folds one tally earned under role. An empty role leaves the role dimension untouched.
func (o Ordering) TallyKey(role contrib.Role, t contrib.Tally) Key {
	var k Key
	k.foldTally(o.mode.Strategy, role, t)
	return k
}

// RepositoryKey folds a repository and all its contributors.
func (o Ordering) RepositoryKey(r *contrib.Repository) Key {
	var k Key
	k.foldRepository(o.mode.Strategy, r)
	return k
}

// ProfileKey folds every contribution of one user.
func (o Ordering) ProfileKey(tallies []TaggedTally) Key {
	var k Key
	for _, t := range tallies {
		k.foldTally(o.mode.Strategy, t.Role, t.Tally)
	}
	return k
}

// Compare orders a and b lexicographically over the mode's dimensions.
func (o Ordering) Compare(a, b Key) int {
	return slices.Compare(a.Project(o.mode.Dimensions), b.Project(o.mode.Dimensions))
}

// SortContributors sorts contributors by descending key. Equal keys keep their order.
func (o Ordering) SortContributors(contributors []contrib.Contributor) {
	SortDescending(o, contributors, o.ContributorKey)
}

// SortRepositories sorts repositories by descending key. Equal keys keep their order.
func (o Ordering) SortRepositories(repos []*contrib.Repository) {
	SortDescending(o, repos, o.RepositoryKey)
}

// SortDescending stably sorts items by descending key under o.
func SortDescending[T any](o Ordering, items []T, key func(T) Key) {
	type keyed struct {
		item  T
		value Key
	}
	decorated := make([]keyed, len(items))
	for i, item := range items {
		decorated[i] = keyed{item: item, value: key(item)}
	}
	slices.SortStableFunc(decorated, func(a, b keyed) int {
		return o.Compare(b.value, a.value)
	})
	for i := range decorated {
		items[i] = decorated[i].item
	}
}
