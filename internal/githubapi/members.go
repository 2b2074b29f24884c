package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v75/github"
	"go.uber.org/zap"
)

const membersPerPage = 100

// MemberLister lists organization members over the REST API.
type MemberLister struct {
	client *github.Client
	logger *zap.Logger
}

// NewMemberLister creates a member lister over a go-github REST client.
func NewMemberLister(rest *RESTClient, logger *zap.Logger) (*MemberLister, error) {
	if rest == nil || rest.Client == nil {
		return nil, fmt.Errorf("rest client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemberLister{
		client: rest.Client,
		logger: logger,
	}, nil
}

// ListMembers returns the logins of org's members, page by page.
//
// Paging ends on the first empty page. A non-success response also ends paging
// and is only logged; transport failures are returned.
func (l *MemberLister) ListMembers(ctx context.Context, org string) ([]string, error) {
	trimmedOrg := strings.TrimSpace(org)
	if trimmedOrg == "" {
		return nil, fmt.Errorf("organization is required")
	}

	var logins []string
	for page := 1; ; page++ {
		members, resp, err := l.client.Organizations.ListMembers(ctx, trimmedOrg, &github.ListMembersOptions{
			ListOptions: github.ListOptions{
				Page:    page,
				PerPage: membersPerPage,
			},
		})
		if err != nil {
			if resp == nil || resp.Response == nil {
				return nil, fmt.Errorf("list members of %q: %w", trimmedOrg, err)
			}
			l.logger.Warn("organization member paging stopped",
				zap.String("organization", trimmedOrg),
				zap.Int("page", page),
				zap.Int("status", resp.StatusCode),
				zap.Error(err),
			)
			break
		}
		if resp != nil && resp.StatusCode != http.StatusOK {
			break
		}
		if len(members) == 0 {
			break
		}
		for _, member := range members {
			if login := member.GetLogin(); login != "" {
				logins = append(logins, login)
			}
		}
	}

	l.logger.Debug("organization members listed",
		zap.String("organization", trimmedOrg),
		zap.Int("members", len(logins)),
	)
	return logins, nil
}
