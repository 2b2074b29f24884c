// Package contrib holds the repository and contribution model shared by the
// aggregation, ordering and report packages.
package contrib

// Role is a user's relationship to a repository.
type Role string

const (
	// RoleOwner means the user owns the repository.
	RoleOwner Role = "owner"
	// RoleMaintainer means the user has ADMIN or MAINTAIN permission.
	RoleMaintainer Role = "maintainer"
	// RoleCollaborator means the user has WRITE permission.
	RoleCollaborator Role = "collaborator"
	// RoleContributor covers everyone else.
	RoleContributor Role = "contributor"
)

// Roles lists the known roles from the strongest relationship to the weakest.
var Roles = []Role{RoleOwner, RoleMaintainer, RoleCollaborator, RoleContributor}

// Tally counts one user's contributions to one repository.
type Tally struct {
	Commits      int `json:"commits"`
	PullRequests int `json:"pull_requests"`
	Reviews      int `json:"reviews"`
	Issues       int `json:"issues"`
}

// Add returns the field-wise sum of t and other.
func (t Tally) Add(other Tally) Tally {
	return Tally{
		Commits:      t.Commits + other.Commits,
		PullRequests: t.PullRequests + other.PullRequests,
		Reviews:      t.Reviews + other.Reviews,
		Issues:       t.Issues + other.Issues,
	}
}

// Language is one language of a repository with its share of the code.
type Language struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Size     int    `json:"size"`
	Coverage int    `json:"coverage"`
}

// Topic is one repository topic.
type Topic struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RepositoryInfo is the descriptive part of a repository.
type RepositoryInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	IsPrivate   bool       `json:"is_private"`
	IsActive    bool       `json:"is_active"`
	Stargazers  int        `json:"stargazers"`
	Languages   []Language `json:"languages"`
	Topics      []Topic    `json:"topics"`
}

// Contributor is one user's entry in a repository's contributor list.
type Contributor struct {
	User          string `json:"user"`
	Role          Role   `json:"role"`
	Contributions Tally  `json:"contributions"`
}

// Repository is a repository together with everyone who contributed to it.
type Repository struct {
	RepositoryInfo
	Contributors []Contributor `json:"contributors"`
}

// HasNonOwnerContributor reports whether someone other than the owner contributed.
func (r *Repository) HasNonOwnerContributor() bool {
	for _, c := range r.Contributors {
		if c.Role != RoleOwner {
			return true
		}
	}
	return false
}

// Record is what one queried user contributed to one repository.
type Record struct {
	Repository RepositoryInfo
	Role       Role
	Tally      Tally
}

// Merge folds other into r. Only the tally changes; r keeps its metadata and role.
func (r *Record) Merge(other Record) {
	r.Tally = r.Tally.Add(other.Tally)
}

// Logins lists the contributors' logins in list order.
func (r *Repository) Logins() []string {
	logins := make([]string, 0, len(r.Contributors))
	for _, c := range r.Contributors {
		logins = append(logins, c.User)
	}
	return logins
}
