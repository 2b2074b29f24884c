// Package report filters, orders and renders the aggregated contributions.
package report

import (
	"github.com/cam3ron2/oss-contributions/internal/aggregate"
	"github.com/cam3ron2/oss-contributions/internal/contrib"
	"github.com/cam3ron2/oss-contributions/internal/ordering"
)

// Report is the value handed to the renderer.
type Report struct {
	Stats        aggregate.Stats       `json:"stats"`
	Repositories []*contrib.Repository `json:"repositories"`
	Users        []User                `json:"users"`
}

// User is one contributor's view across repositories.
type User struct {
	User          string             `json:"user"`
	Total         contrib.Tally      `json:"total"`
	Contributions []UserContribution `json:"contributions"`
}

// UserContribution is one repository a user contributed to, with the counts inlined.
type UserContribution struct {
	Repository contrib.RepositoryInfo `json:"repository"`
	Role       contrib.Role           `json:"role"`
	contrib.Tally
}

// Options controls which repositories and contributions are reported.
type Options struct {
	MinStargazers   int
	IncludePersonal bool
}

// Assemble sorts every repository's contributors, then builds the filtered
// repository list and the per-user view. repos is modified in place.
func Assemble(repos []*contrib.Repository, stats aggregate.Stats, order ordering.Ordering, opts Options) Report {
	for _, repo := range repos {
		order.SortContributors(repo.Contributors)
	}

	kept := make([]*contrib.Repository, 0, len(repos))
	for _, repo := range repos {
		if keepRepository(repo, opts) {
			kept = append(kept, repo)
		}
	}
	order.SortRepositories(kept)

	return Report{
		Stats:        stats,
		Repositories: kept,
		Users:        buildUsers(repos, order, opts),
	}
}

func keepRepository(repo *contrib.Repository, opts Options) bool {
	if repo.Stargazers < opts.MinStargazers {
		return false
	}
	if opts.IncludePersonal {
		return len(repo.Contributors) > 0
	}
	return repo.HasNonOwnerContributor()
}

func keepContribution(c UserContribution, opts Options) bool {
	if c.Repository.Stargazers < opts.MinStargazers {
		return false
	}
	return opts.IncludePersonal || c.Role != contrib.RoleOwner
}

func buildUsers(repos []*contrib.Repository, order ordering.Ordering, opts Options) []User {
	index := map[string]int{}
	users := []User{}
	for _, repo := range repos {
		for _, c := range repo.Contributors {
			i, ok := index[c.User]
			if !ok {
				i = len(users)
				index[c.User] = i
				users = append(users, User{User: c.User, Contributions: []UserContribution{}})
			}
			users[i].Contributions = append(users[i].Contributions, UserContribution{
				Repository: repo.RepositoryInfo,
				Role:       c.Role,
				Tally:      c.Contributions,
			})
		}
	}

	kept := make([]User, 0, len(users))
	for _, user := range users {
		contributions := make([]UserContribution, 0, len(user.Contributions))
		var total contrib.Tally
		for _, c := range user.Contributions {
			if !keepContribution(c, opts) {
				continue
			}
			contributions = append(contributions, c)
			total = total.Add(c.Tally)
		}
		if len(contributions) == 0 {
			continue
		}
		ordering.SortDescending(order, contributions, func(c UserContribution) ordering.Key {
			return order.TallyKey(c.Role, c.Tally)
		})
		kept = append(kept, User{User: user.User, Total: total, Contributions: contributions})
	}

	ordering.SortDescending(order, kept, func(u User) ordering.Key {
		return order.ProfileKey(u.tagged())
	})
	return kept
}

func (u User) tagged() []ordering.TaggedTally {
	tallies := make([]ordering.TaggedTally, 0, len(u.Contributions))
	for _, c := range u.Contributions {
		tallies = append(tallies, ordering.TaggedTally{Role: c.Role, Tally: c.Tally})
	}
	return tallies
}
