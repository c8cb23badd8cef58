package fleet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRegistryValidate covers the registry validation rules.
func TestRegistryValidate(t *testing.T) {
	t.Parallel()

	valid := Registry{
		{Name: "git-commit", Repository: "github-push-script", Mode: ModeArchiveReplace},
		{Name: "vm-status-monitor", Repository: "azure-vm-monitor", Mode: ModeVCSSync},
	}
	require.NoError(t, valid.Validate())

	cases := map[string]Registry{
		"empty name":     {{Name: "", Repository: "r", Mode: ModeVCSSync}},
		"nested name":    {{Name: "a/b", Repository: "r", Mode: ModeVCSSync}},
		"dot name":       {{Name: "..", Repository: "r", Mode: ModeVCSSync}},
		"padded name":    {{Name: " a", Repository: "r", Mode: ModeVCSSync}},
		"no repository":  {{Name: "a", Repository: " ", Mode: ModeVCSSync}},
		"unknown mode":   {{Name: "a", Repository: "r", Mode: "rsync"}},
		"duplicate name": {{Name: "a", Repository: "r", Mode: ModeVCSSync}, {Name: "a", Repository: "q", Mode: ModeArchiveReplace}},
	}

	for name, registry := range cases {
		require.Error(t, registry.Validate(), name)
	}
}

// TestOutcomeChanged checks which statuses end up in the notification batch.
func TestOutcomeChanged(t *testing.T) {
	t.Parallel()

	require.True(t, (&Outcome{Status: StatusUpdated}).Changed())
	require.True(t, (&Outcome{Status: StatusBootstrapped}).Changed())
	require.False(t, (&Outcome{Status: StatusUpToDate}).Changed())
	require.False(t, (&Outcome{Status: StatusFailed}).Changed())

	failed := &Outcome{Status: StatusFailed, Err: Errorf(KindNoReleases, "resolve", "nothing")}
	require.Equal(t, KindNoReleases, failed.Reason())
	require.Empty(t, (&Outcome{Status: StatusUpdated}).Reason())
}

func TestRegistryFind(t *testing.T) {
	t.Parallel()

	registry := Registry{
		{Name: "a", Repository: "repo-a", Mode: ModeVCSSync},
		{Name: "b", Repository: "repo-b", Mode: ModeArchiveReplace},
	}

	entry, found := registry.Find("b")
	require.True(t, found)
	require.Equal(t, "repo-b", entry.Repository)

	_, found = registry.Find("c")
	require.False(t, found)
}
