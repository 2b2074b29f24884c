// Package ordering ranks contributors, repositories and users by lexicographic
// keys built from their contribution counts.
package ordering

import (
	"slices"
	"strings"

	"github.com/cam3ron2/oss-contributions/internal/contrib"
)

// Strategy folds one value into a running key dimension.
type Strategy int

const (
	// StrategySum adds every value.
	StrategySum Strategy = iota
	// StrategyMax keeps the largest value.
	StrategyMax
)

// String returns the strategy name.
func (s Strategy) String() string {
	if s == StrategyMax {
		return "max"
	}
	return "sum"
}

// Accumulate folds value into acc.
func (s Strategy) Accumulate(acc, value int) int {
	switch s {
	case StrategyMax:
		return max(acc, value)
	default:
		return acc + value
	}
}

// Dimension is one component of a sort key.
type Dimension int

const (
	// DimensionUnknown is any unrecognised name; it always projects to 0.
	DimensionUnknown Dimension = iota
	DimensionStargazers
	DimensionRole
	DimensionContributors
	DimensionPullRequests
	DimensionCommits
	DimensionReviews
	DimensionIssues
)

var dimensionNames = map[string]Dimension{
	"stargazers":    DimensionStargazers,
	"role":          DimensionRole,
	"contributors":  DimensionContributors,
	"pull-requests": DimensionPullRequests,
	"commits":       DimensionCommits,
	"reviews":       DimensionReviews,
	"issues":        DimensionIssues,
}

// DimensionNames lists the recognised dimension names in alphabetical order.
func DimensionNames() []string {
	names := make([]string, 0, len(dimensionNames))
	for name := range dimensionNames {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ParseDimension maps a dimension name to its Dimension.
func ParseDimension(name string) Dimension {
	return dimensionNames[strings.ToLower(strings.TrimSpace(name))]
}

// ParseDimensions splits a comma separated list of dimension names.
// Unknown names are kept as DimensionUnknown so positions are preserved.
func ParseDimensions(raw string) []Dimension {
	parts := strings.Split(raw, ",")
	dims := make([]Dimension, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		dims = append(dims, ParseDimension(part))
	}
	return dims
}

var roleScores = map[contrib.Role]int{
	contrib.RoleOwner:        3,
	contrib.RoleMaintainer:   3,
	contrib.RoleCollaborator: 2,
	contrib.RoleContributor:  1,
}

// RoleScore ranks a role; unknown roles score 0.
func RoleScore(role contrib.Role) int {
	return roleScores[role]
}

// Key holds one accumulated value per dimension.
type Key struct {
	Stargazers   int
	Role         int
	Contributors int
	PullRequests int
	Commits      int
	Reviews      int
	Issues       int
}

// Value returns the value of one dimension.
func (k Key) Value(d Dimension) int {
	switch d {
	case DimensionStargazers:
		return k.Stargazers
	case DimensionRole:
		return k.Role
	case DimensionContributors:
		return k.Contributors
	case DimensionPullRequests:
		return k.PullRequests
	case DimensionCommits:
		return k.Commits
	case DimensionReviews:
		return k.Reviews
	case DimensionIssues:
		return k.Issues
	default:
		return 0
	}
}

// Project returns the key's values in the order of dims.
func (k Key) Project(dims []Dimension) []int {
	values := make([]int, len(dims))
	for i, d := range dims {
		values[i] = k.Value(d)
	}
	return values
}

func (k *Key) foldRole(s Strategy, role contrib.Role) {
	if role == "" {
		return
	}
	k.Role = s.Accumulate(k.Role, RoleScore(role))
}

func (k *Key) foldTally(s Strategy, role contrib.Role, t contrib.Tally) {
	k.Contributors++
	k.foldRole(s, role)
	k.PullRequests = s.Accumulate(k.PullRequests, t.PullRequests)
	k.Commits = s.Accumulate(k.Commits, t.Commits)
	k.Reviews = s.Accumulate(k.Reviews, t.Reviews)
	k.Issues = s.Accumulate(k.Issues, t.Issues)
}

func (k *Key) foldContributor(s Strategy, c contrib.Contributor) {
	k.foldRole(s, c.Role)
	k.foldTally(s, "", c.Contributions)
}

func (k *Key) foldRepository(s Strategy, r *contrib.Repository) {
	k.Stargazers = s.Accumulate(k.Stargazers, r.Stargazers)
	for _, c := range r.Contributors {
		k.foldContributor(s, c)
	}
}

// TaggedTally is a tally together with the role it was earned under.
type TaggedTally struct {
	Role  contrib.Role
	Tally contrib.Tally
}
