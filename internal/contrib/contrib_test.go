package contrib

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRepositoryContributorHelpers(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		contributors []Contributor
		wantNonOwner bool
		wantLogins   []string
	}{
		{
			name:         "empty",
			contributors: nil,
			wantNonOwner: false,
			wantLogins:   []string{},
		},
		{
			name:         "owner_only",
			contributors: []Contributor{{User: "alice", Role: RoleOwner}},
			wantNonOwner: false,
			wantLogins:   []string{"alice"},
		},
		{
			name: "owner_and_contributor",
			contributors: []Contributor{
				{User: "alice", Role: RoleOwner},
				{User: "bob", Role: RoleContributor},
			},
			wantNonOwner: true,
			wantLogins:   []string{"alice", "bob"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := &Repository{Contributors: tc.contributors}
			if got := repo.HasNonOwnerContributor(); got != tc.wantNonOwner {
				t.Fatalf("HasNonOwnerContributor() = %t, want %t", got, tc.wantNonOwner)
			}
			if diff := cmp.Diff(tc.wantLogins, repo.Logins()); diff != "" {
				t.Fatalf("Logins() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
