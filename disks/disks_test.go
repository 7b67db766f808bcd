package disks_test

import (
	"testing"

	"github.com/dargueta/simplefs/disks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetImageProfile(t *testing.T) {
	profile, err := disks.GetImageProfile("small")
	require.NoError(t, err)
	assert.Equal(t, "small", profile.Slug)
	assert.EqualValues(t, 20, profile.TotalBlocks)
	assert.EqualValues(t, 20*4096, profile.TotalSizeBytes())
}

func TestGetImageProfile__UnknownSlug(t *testing.T) {
	_, err := disks.GetImageProfile("does-not-exist")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist")
}

func TestListImageProfiles(t *testing.T) {
	profiles := disks.ListImageProfiles()
	require.NotEmpty(t, profiles)

	for i := 1; i < len(profiles); i++ {
		assert.Less(t, profiles[i-1].Slug, profiles[i].Slug, "profiles must be sorted by slug")
	}

	slugs := make(map[string]bool)
	for _, profile := range profiles {
		assert.GreaterOrEqual(t, profile.TotalBlocks, uint(2),
			"profile %q is too small to format", profile.Slug)
		slugs[profile.Slug] = true
	}
	assert.True(t, slugs["tiny"])
	assert.True(t, slugs["medium"])
}
