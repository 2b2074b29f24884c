package githubapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
)

// LanguageEdge is one language entry of a repository, as reported by GitHub.
type LanguageEdge struct {
	Name  string
	Color string
	Size  int
}

// TopicNode is one repository topic.
type TopicNode struct {
	Name string
	URL  string
}

// RepositoryPayload is the repository metadata attached to a contribution entry.
type RepositoryPayload struct {
	NameWithOwner string
	OwnerLogin    string
	Description   string
	URL           string
	IsArchived    bool
	IsDisabled    bool
	IsLocked      bool
	IsPrivate     bool
	// CollaboratorPermission is empty when GitHub returned no collaborator record
	// for the queried login.
	CollaboratorPermission string
	Stargazers             int
	LanguagesTotalSize     int
	Languages              []LanguageEdge
	Topics                 []TopicNode
}

// RepositoryContribution is one repository with the number of contributions of one kind.
type RepositoryContribution struct {
	Repository RepositoryPayload
	Count      int
}

// ContributionWindow is the result of one contributionsCollection query.
type ContributionWindow struct {
	From         time.Time
	To           time.Time
	Commits      []RepositoryContribution
	PullRequests []RepositoryContribution
	Reviews      []RepositoryContribution
	Issues       []RepositoryContribution
}

// Len reports the number of repository entries across all categories, issues
// included when they were queried.
func (w ContributionWindow) Len() int {
	return len(w.Commits) + len(w.PullRequests) + len(w.Reviews) + len(w.Issues)
}

// GraphQLQuerier is implemented by githubv4.Client.
type GraphQLQuerier interface {
	Query(ctx context.Context, q any, variables map[string]any) error
}

// ContributionsOptions configures a ContributionsClient.
type ContributionsOptions struct {
	// WithIssues adds issueContributionsByRepository to every query.
	WithIssues bool
	Logger     *zap.Logger
}

// ContributionsClient queries a user's contributionsCollection one window at a time.
type ContributionsClient struct {
	querier    GraphQLQuerier
	withIssues bool
	logger     *zap.Logger
}

// NewContributionsClient creates a contributions client over a GraphQL querier.
func NewContributionsClient(querier GraphQLQuerier, opts ContributionsOptions) (*ContributionsClient, error) {
	if querier == nil {
		return nil, fmt.Errorf("graphql querier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContributionsClient{
		querier:    querier,
		withIssues: opts.WithIssues,
		logger:     logger,
	}, nil
}

// FetchWindow returns the repositories login contributed to between from and to.
//
// GitHub answers with partial data and an error when some nested field is hidden
// from the viewer (collaborators of repositories without push access, typically).
// Such responses are accepted as long as the user object itself was returned.
func (c *ContributionsClient) FetchWindow(ctx context.Context, login string, from, to time.Time) (ContributionWindow, error) {
	trimmedLogin := strings.TrimSpace(login)
	if trimmedLogin == "" {
		return ContributionWindow{}, fmt.Errorf("login is required")
	}
	if to.Before(from) {
		return ContributionWindow{}, fmt.Errorf("window end must not be before start")
	}

	var query contributionsQuery
	variables := map[string]any{
		"login":      githubv4.String(trimmedLogin),
		"from":       githubv4.DateTime{Time: from.UTC()},
		"to":         githubv4.DateTime{Time: to.UTC()},
		"withIssues": githubv4.Boolean(c.withIssues),
	}
	if err := c.querier.Query(ctx, &query, variables); err != nil {
		if query.User.Login == "" {
			return ContributionWindow{}, fmt.Errorf("query contributions of %q: %w", trimmedLogin, err)
		}
		c.logger.Warn("partial contributions response",
			zap.String("user", trimmedLogin),
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Error(err),
		)
	}

	collection := query.User.ContributionsCollection
	return ContributionWindow{
		From:         from,
		To:           to,
		Commits:      toRepositoryContributions(collection.CommitContributionsByRepository),
		PullRequests: toRepositoryContributions(collection.PullRequestContributionsByRepository),
		Reviews:      toRepositoryContributions(collection.PullRequestReviewContributionsByRepository),
		Issues:       toRepositoryContributions(collection.IssueContributionsByRepository),
	}, nil
}

func toRepositoryContributions(nodes []repositoryContributionNode) []RepositoryContribution {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]RepositoryContribution, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, RepositoryContribution{
			Repository: node.Repository.toPayload(),
			Count:      node.Contributions.TotalCount,
		})
	}
	return out
}

func (r repositoryNode) toPayload() RepositoryPayload {
	payload := RepositoryPayload{
		NameWithOwner:      r.NameWithOwner,
		OwnerLogin:         r.Owner.Login,
		Description:        r.Description,
		URL:                r.URL,
		IsArchived:         r.IsArchived,
		IsDisabled:         r.IsDisabled,
		IsLocked:           r.IsLocked,
		IsPrivate:          r.IsPrivate,
		Stargazers:         r.StargazerCount,
		LanguagesTotalSize: r.Languages.TotalSize,
	}
	if r.Collaborators != nil && len(r.Collaborators.Edges) > 0 {
		payload.CollaboratorPermission = string(r.Collaborators.Edges[0].Permission)
	}
	for _, edge := range r.Languages.Edges {
		payload.Languages = append(payload.Languages, LanguageEdge{
			Name:  edge.Node.Name,
			Color: edge.Node.Color,
			Size:  edge.Size,
		})
	}
	for _, node := range r.RepositoryTopics.Nodes {
		payload.Topics = append(payload.Topics, TopicNode{
			Name: node.Topic.Name,
			URL:  node.URL,
		})
	}
	return payload
}

type contributionsQuery struct {
	User struct {
		Login                   string
		ContributionsCollection struct {
			CommitContributionsByRepository            []repositoryContributionNode `graphql:"commitContributionsByRepository(maxRepositories: 100)"`
			PullRequestContributionsByRepository       []repositoryContributionNode `graphql:"pullRequestContributionsByRepository(maxRepositories: 100)"`
			PullRequestReviewContributionsByRepository []repositoryContributionNode `graphql:"pullRequestReviewContributionsByRepository(maxRepositories: 100)"`
			IssueContributionsByRepository             []repositoryContributionNode `graphql:"issueContributionsByRepository(maxRepositories: 100) @include(if: $withIssues)"`
		} `graphql:"contributionsCollection(from: $from, to: $to)"`
	} `graphql:"user(login: $login)"`
}

type repositoryContributionNode struct {
	Contributions struct {
		TotalCount int
	}
	Repository repositoryNode
}

type repositoryNode struct {
	NameWithOwner string
	Owner         struct {
		Login string
	}
	Description   string
	URL           string
	IsArchived    bool
	IsDisabled    bool
	IsLocked      bool
	IsPrivate     bool
	Collaborators *struct {
		Edges []struct {
			Permission githubv4.RepositoryPermission
		}
	} `graphql:"collaborators(query: $login)"`
	StargazerCount int
	Languages      struct {
		TotalSize int
		Edges     []struct {
			Size int
			Node struct {
				Name  string
				Color string
			}
		}
	} `graphql:"languages(first: 10, orderBy: {field: SIZE, direction: DESC})"`
	RepositoryTopics struct {
		Nodes []struct {
			URL   string
			Topic struct {
				Name string
			}
		}
	} `graphql:"repositoryTopics(first: 10)"`
}
