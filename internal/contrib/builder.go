package contrib

import (
	"strings"

	"github.com/cam3ron2/oss-contributions/internal/githubapi"
)

// DeriveRole classifies login's relationship to repo.
func DeriveRole(login string, repo githubapi.RepositoryPayload) Role {
	if repo.OwnerLogin != "" && strings.EqualFold(repo.OwnerLogin, login) {
		return RoleOwner
	}
	switch strings.ToUpper(repo.CollaboratorPermission) {
	case "ADMIN", "MAINTAIN":
		return RoleMaintainer
	case "WRITE":
		return RoleCollaborator
	default:
		return RoleContributor
	}
}

// LanguageCoverage is size as a truncated percentage of total. A repository
// without any language bytes has zero coverage everywhere.
func LanguageCoverage(size, total int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return size * 100 / total
}

// BuildRecord normalizes one repository payload for login. The tally is left empty.
func BuildRecord(login string, repo githubapi.RepositoryPayload) Record {
	info := RepositoryInfo{
		Name:        repo.NameWithOwner,
		Description: repo.Description,
		URL:         repo.URL,
		IsPrivate:   repo.IsPrivate,
		IsActive:    !repo.IsArchived && !repo.IsDisabled && !repo.IsLocked,
		Stargazers:  repo.Stargazers,
		Languages:   make([]Language, 0, len(repo.Languages)),
		Topics:      make([]Topic, 0, len(repo.Topics)),
	}
	for _, edge := range repo.Languages {
		info.Languages = append(info.Languages, Language{
			Name:     edge.Name,
			Color:    edge.Color,
			Size:     edge.Size,
			Coverage: LanguageCoverage(edge.Size, repo.LanguagesTotalSize),
		})
	}
	for _, topic := range repo.Topics {
		info.Topics = append(info.Topics, Topic{
			Name: topic.Name,
			URL:  topic.URL,
		})
	}

	return Record{
		Repository: info,
		Role:       DeriveRole(login, repo),
	}
}
