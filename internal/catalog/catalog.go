// Package catalog reads version tags from the local firmware checkout and
// turns them into an ordered build plan.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/samber/lo"
)

// ErrSourceUnavailable indicates the firmware checkout could not be queried
// for tags, typically because the submodule has not been initialized.
var ErrSourceUnavailable = errors.New("firmware tag source unavailable")

// VersionEntry pairs a raw tag with the semantic version extracted from it.
type VersionEntry struct {
	Tag     string
	Version *semver.Version
}

var (
	// versionPattern extracts the leading major.minor.patch(-prerelease)
	// portion of a tag after an optional "v" prefix. Trailing decoration
	// such as "+metadata" is discarded.
	versionPattern = regexp.MustCompile(`^v?(\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?)`)

	// describeSuffix matches git-describe decoration ("-14-g1a2b3c4" or
	// "-g1a2b3c4") appended to a release tag. It is decoration, not a
	// prerelease label, and is stripped before extraction.
	describeSuffix = regexp.MustCompile(`-(?:\d+-)?g[0-9a-f]{6,}$`)
)

// ListTags returns all tag names of the firmware checkout at path.
// Failures are surfaced as ErrSourceUnavailable so callers can tell the
// operator to initialize the checkout instead of reporting an empty catalog.
func ListTags(path string) ([]string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s (run 'git submodule update --init'): %v",
			ErrSourceUnavailable, path, err)
	}

	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot list tags of %s: %v", ErrSourceUnavailable, path, err)
	}

	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: cannot iterate tags of %s: %v", ErrSourceUnavailable, path, err)
	}

	return tags, nil
}

// ParseValidVersions extracts semantic versions from raw tags and returns the
// surviving entries sorted by descending version precedence. Tags that do not
// contain a valid version are dropped. Distinct tags decorating the same
// version are all retained, in catalog order.
func ParseValidVersions(tags []string) []VersionEntry {
	entries := make([]VersionEntry, 0, len(tags))
	for _, tag := range tags {
		m := versionPattern.FindStringSubmatch(describeSuffix.ReplaceAllString(tag, ""))
		if m == nil {
			continue
		}
		v, err := semver.StrictNewVersion(m[1])
		if err != nil {
			continue
		}
		entries = append(entries, VersionEntry{Tag: tag, Version: v})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Version.GreaterThan(entries[j].Version)
	})

	return entries
}

// Select produces a build plan from parsed entries.
//
// filter "latest" (or empty) keeps only the single highest-precedence entry.
// Any other filter is a semver range expression; entries satisfying it are
// kept in their existing descending order. With collapse enabled only the
// first entry of each (major, minor) line survives, preserving order of
// first appearance.
//
// An empty result is a valid outcome, not an error.
func Select(entries []VersionEntry, filter string, collapse bool) ([]VersionEntry, error) {
	if filter == "" || filter == "latest" {
		if len(entries) == 0 {
			return nil, nil
		}
		return entries[:1], nil
	}

	constraint, err := semver.NewConstraint(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid version filter %q: %w", filter, err)
	}

	matched := lo.Filter(entries, func(e VersionEntry, _ int) bool {
		return constraint.Check(e.Version)
	})

	if collapse {
		matched = lo.UniqBy(matched, func(e VersionEntry) string {
			return fmt.Sprintf("%d.%d", e.Version.Major(), e.Version.Minor())
		})
	}

	return matched, nil
}

// FindExact returns the catalog entry matching the given version, if any.
// Used when a single concrete version is requested rather than a range.
func FindExact(entries []VersionEntry, version *semver.Version) (VersionEntry, bool) {
	for _, e := range entries {
		if e.Version.Equal(version) {
			return e, true
		}
	}
	return VersionEntry{}, false
}
