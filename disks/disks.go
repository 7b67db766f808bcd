// Package disks holds a registry of predefined disk image profiles, loaded
// from an embedded CSV table. The command line tools use it so an image of a
// familiar size can be created by name instead of by block count.
package disks

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// ImageProfile describes one canned image size.
type ImageProfile struct {
	Name string `csv:"name"`
	Slug string `csv:"slug"`

	// TotalBlocks gives the image size in 4 KiB blocks.
	TotalBlocks uint `csv:"total_blocks"`

	Notes string `csv:"notes"`
}

// TotalSizeBytes gives the size of the image file this profile produces.
func (p *ImageProfile) TotalSizeBytes() int64 {
	return int64(p.TotalBlocks) * 4096
}

//go:embed image-profiles.csv
var imageProfilesRawCSV string
var imageProfiles = make(map[string]ImageProfile)

// GetImageProfile looks up a profile by its slug.
func GetImageProfile(slug string) (ImageProfile, error) {
	profile, ok := imageProfiles[slug]
	if ok {
		return profile, nil
	}

	err := fmt.Errorf("no predefined image profile exists with slug %q", slug)
	return ImageProfile{}, err
}

// ListImageProfiles returns every registered profile, ordered by slug.
func ListImageProfiles() []ImageProfile {
	profiles := make([]ImageProfile, 0, len(imageProfiles))
	for _, profile := range imageProfiles {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Slug < profiles[j].Slug
	})
	return profiles
}

func init() {
	reader := strings.NewReader(imageProfilesRawCSV)
	err := gocsv.UnmarshalToCallback(
		reader,
		func(row ImageProfile) error {
			_, exists := imageProfiles[row.Slug]
			if exists {
				return fmt.Errorf(
					"duplicate definition for image profile %q found on row %d",
					row.Slug,
					len(imageProfiles)+1,
				)
			}
			imageProfiles[row.Slug] = row
			return nil
		},
	)
	if err != nil && err != io.EOF {
		panic(err)
	}
}
